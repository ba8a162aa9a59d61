package plugin

import (
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/df-mc/dragonfly/server/block/cube"
	"github.com/dm-vev/alwaysfarm/server/world"
	"github.com/dm-vev/alwaysfarm/server/world/farm"
)

type eventRegistration[T any] struct {
	plugin  string
	handler T
	id      uint64
}

type eventList[T any] struct {
	regs []eventRegistration[T]
	next uint64
}

func (l *eventList[T]) add(plugin string, handler T) uint64 {
	id := l.next
	l.next++
	l.regs = append(l.regs, eventRegistration[T]{plugin: plugin, handler: handler, id: id})
	return id
}

func (l *eventList[T]) removeByID(id uint64) {
	if len(l.regs) == 0 {
		return
	}
	regs := l.regs[:0]
	for _, reg := range l.regs {
		if reg.id == id {
			continue
		}
		regs = append(regs, reg)
	}
	l.regs = regs
}

func (l *eventList[T]) removePlugin(plugin string) {
	if len(l.regs) == 0 {
		return
	}
	regs := l.regs[:0]
	for _, reg := range l.regs {
		if reg.plugin == plugin {
			continue
		}
		regs = append(regs, reg)
	}
	l.regs = regs
}

func (l *eventList[T]) snapshot() []eventRegistration[T] {
	if len(l.regs) == 0 {
		return nil
	}
	out := make([]eventRegistration[T], len(l.regs))
	copy(out, l.regs)
	return out
}

type eventHub[S any, C any] struct {
	mu           sync.Mutex
	log          *slog.Logger
	manager      *Manager[S, C]
	world        eventList[world.Handler]
	monitor      eventList[world.Handler]
	worldChain   atomic.Value // []eventRegistration[world.Handler]
	monitorChain atomic.Value // []eventRegistration[world.Handler]
}

func newEventHub[S any, C any](manager *Manager[S, C], log *slog.Logger) *eventHub[S, C] {
	if log == nil {
		log = slog.Default()
	}
	hub := &eventHub[S, C]{manager: manager, log: log.With("subsystem", "plugin.events")}
	hub.worldChain.Store([]eventRegistration[world.Handler]{})
	hub.monitorChain.Store([]eventRegistration[world.Handler]{})
	return hub
}

func (pe *eventHub[S, C]) addWorld(plugin string, handler world.Handler) func() {
	return pe.add(&pe.world, &pe.worldChain, plugin, handler)
}

func (pe *eventHub[S, C]) addWorldMonitor(plugin string, handler world.Handler) func() {
	return pe.add(&pe.monitor, &pe.monitorChain, plugin, handler)
}

func (pe *eventHub[S, C]) add(list *eventList[world.Handler], chain *atomic.Value, plugin string, handler world.Handler) func() {
	if handler == nil {
		return func() {}
	}
	pe.mu.Lock()
	id := list.add(plugin, handler)
	chain.Store(list.snapshot())
	pe.mu.Unlock()
	var once sync.Once
	return func() {
		once.Do(func() {
			pe.mu.Lock()
			list.removeByID(id)
			chain.Store(list.snapshot())
			pe.mu.Unlock()
		})
	}
}

func (pe *eventHub[S, C]) clear(plugin string) {
	pe.mu.Lock()
	pe.world.removePlugin(plugin)
	pe.monitor.removePlugin(plugin)
	pe.worldChain.Store(pe.world.snapshot())
	pe.monitorChain.Store(pe.monitor.snapshot())
	pe.mu.Unlock()
}

func (pe *eventHub[S, C]) loadWorldChain() []eventRegistration[world.Handler] {
	if v := pe.worldChain.Load(); v != nil {
		return v.([]eventRegistration[world.Handler])
	}
	return nil
}

func (pe *eventHub[S, C]) loadMonitorChain() []eventRegistration[world.Handler] {
	if v := pe.monitorChain.Load(); v != nil {
		return v.([]eventRegistration[world.Handler])
	}
	return nil
}

func (pe *eventHub[S, C]) wrapWorld(_ *world.World, base world.Handler) world.Handler {
	if chain, ok := base.(*worldHandlerChain[S, C]); ok {
		base = chain.base
	}
	return &worldHandlerChain[S, C]{manager: pe, base: base}
}

type cancellable interface {
	Cancelled() bool
}

type worldHandlerChain[S any, C any] struct {
	manager *eventHub[S, C]
	base    world.Handler
}

// callCtx runs the plugin handlers and the base handler until one of them
// cancels ctx. Monitors always run last.
func (c *worldHandlerChain[S, C]) callCtx(ctx cancellable, fn func(world.Handler)) {
	defer c.monitor(fn)
	for _, reg := range c.manager.loadWorldChain() {
		handler := reg.handler
		c.manager.invoke(reg.plugin, func() {
			fn(handler)
		})
		if ctx.Cancelled() {
			return
		}
	}
	fn(c.base)
}

func (c *worldHandlerChain[S, C]) call(fn func(world.Handler)) {
	for _, reg := range c.manager.loadWorldChain() {
		handler := reg.handler
		c.manager.invoke(reg.plugin, func() {
			fn(handler)
		})
	}
	fn(c.base)
	c.monitor(fn)
}

func (c *worldHandlerChain[S, C]) monitor(fn func(world.Handler)) {
	for _, reg := range c.manager.loadMonitorChain() {
		handler := reg.handler
		c.manager.invoke(reg.plugin, func() {
			fn(handler)
		})
	}
}

func (c *worldHandlerChain[S, C]) HandleBlockPlace(ctx *world.Context, pos cube.Pos, b farm.Block) {
	c.callCtx(ctx, func(h world.Handler) { h.HandleBlockPlace(ctx, pos, b) })
}

func (c *worldHandlerChain[S, C]) HandleBlockBreak(ctx *world.Context, pos cube.Pos, b farm.Block) {
	c.callCtx(ctx, func(h world.Handler) { h.HandleBlockBreak(ctx, pos, b) })
}

func (c *worldHandlerChain[S, C]) HandleCropGrow(ctx *world.Context, pos cube.Pos, b farm.Block, stage int, cause world.GrowCause) {
	c.callCtx(ctx, func(h world.Handler) { h.HandleCropGrow(ctx, pos, b, stage, cause) })
}

func (c *worldHandlerChain[S, C]) HandleChunkLoad(w *world.World, pos world.ChunkPos) {
	c.call(func(h world.Handler) { h.HandleChunkLoad(w, pos) })
}

func (c *worldHandlerChain[S, C]) HandleChunkUnload(w *world.World, pos world.ChunkPos) {
	c.call(func(h world.Handler) { h.HandleChunkUnload(w, pos) })
}

func (c *worldHandlerChain[S, C]) HandleClose(w *world.World) {
	c.call(func(h world.Handler) { h.HandleClose(w) })
}

func (pe *eventHub[S, C]) invoke(plugin string, call func()) {
	if call == nil {
		return
	}
	if plugin == "" {
		call()
		return
	}
	defer func() {
		if r := recover(); r != nil {
			pe.manager.handlePluginPanic(plugin, r)
		}
	}()
	call()
}

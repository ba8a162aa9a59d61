// Package alwaysfarm implements the plugin that hands crop growth over to a farm.Farm, so that crops keep
// growing over wall-clock time while their chunks are unloaded or the server is offline.
package alwaysfarm

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/dm-vev/alwaysfarm/server/block/legacy"
	"github.com/dm-vev/alwaysfarm/server/plugin"
	"github.com/dm-vev/alwaysfarm/server/world/farm"
)

const (
	// Name is the name the plugin is enabled under. It also names its data directory.
	Name = "AlwaysFarm"
	// Version is the version reported by the plugin.
	Version = "1.2.0"
)

// Plugin grows the crops of every world of a server through a farm.Farm. All of its methods, apart from
// the accessors, run on the server goroutine.
type Plugin[S any, C any] struct {
	api  *plugin.API[S, C]
	conf Config
	log  *slog.Logger
	farm *farm.Farm

	unsub  []func()
	cancel []func()
	closed bool
}

// Factory returns a plugin.Factory that creates the plugin with conf.
func Factory[S any, C any](conf Config) plugin.Factory[S, C] {
	return func(api *plugin.API[S, C]) (plugin.Plugin, error) {
		return New(api, conf)
	}
}

// New creates the plugin, restores the farm from the snapshot in the plugin data directory and starts
// handling world events.
func New[S any, C any](api *plugin.API[S, C], conf Config) (*Plugin[S, C], error) {
	conf = conf.withDefaults()
	p := &Plugin[S, C]{api: api, conf: conf, log: api.Logger()}

	dir, err := api.EnsureDataSubdir("")
	if err != nil {
		return nil, fmt.Errorf("prepare data directory: %w", err)
	}
	prov, err := conf.provider(dir, p.log)
	if err != nil {
		return nil, fmt.Errorf("open farm storage: %w", err)
	}
	p.farm, err = farm.Config{
		Log:             p.log,
		Worlds:          api.Worlds(),
		Catalog:         legacy.Catalog{},
		Provider:        prov,
		ProcessingLimit: conf.ProcessingLimit,
		FruitDelayMin:   conf.FruitDelayMin,
		FruitDelayMax:   conf.FruitDelayMax,
		Revisit:         conf.Revisit,
		Clock:           conf.Clock,
		Rand:            conf.Rand,
		Metrics:         conf.Metrics,
	}.New()
	if err != nil {
		return nil, errors.Join(err, prov.Close())
	}

	events := api.Events()
	p.unsub = append(p.unsub,
		events.OnWorld(growthGuard[S, C]{p: p}),
		events.OnWorldMonitor(tracker[S, C]{p: p}),
	)
	p.cancel = append(p.cancel, api.ScheduleRepeating(conf.TickInterval, p.tick))
	if conf.AutosaveInterval > 0 {
		p.cancel = append(p.cancel, api.ScheduleRepeating(conf.AutosaveInterval, p.save))
	}

	p.log.Info("Farm enabled.",
		"backend", string(conf.Backend),
		"tracked", p.farm.TrackedLen(),
		"queued", p.farm.QueueLen(),
		"tickInterval", conf.TickInterval,
	)
	return p, nil
}

// Name ...
func (p *Plugin[S, C]) Name() string { return Name }

// Version ...
func (p *Plugin[S, C]) Version() string { return Version }

// Farm returns the farm driven by the plugin.
func (p *Plugin[S, C]) Farm() *farm.Farm { return p.farm }

// Close stops handling events, stops the scheduled tasks and closes the farm, which writes its final
// snapshot.
func (p *Plugin[S, C]) Close() error {
	if p.closed {
		return nil
	}
	p.closed = true
	for i := len(p.unsub) - 1; i >= 0; i-- {
		p.unsub[i]()
	}
	for _, cancel := range p.cancel {
		cancel()
	}
	p.unsub, p.cancel = nil, nil

	if err := p.farm.Close(); err != nil {
		return fmt.Errorf("close farm: %w", err)
	}
	p.log.Info("Farm disabled.", "tracked", p.farm.TrackedLen(), "queued", p.farm.QueueLen())
	return nil
}

func (p *Plugin[S, C]) tick() {
	if p.closed {
		return
	}
	res := p.farm.Tick()
	if res.Processed == 0 {
		return
	}
	p.log.Debug("Farm ticked.",
		"processed", res.Processed,
		"grown", res.Count(farm.OutcomeGrown),
		"matured", res.Count(farm.OutcomeMatured),
		"fruit", res.Count(farm.OutcomeFruitSpawned),
		"aborted", res.Aborted,
	)
}

func (p *Plugin[S, C]) save() {
	if p.closed {
		return
	}
	if err := p.farm.Save(); err != nil {
		p.log.Error("Save farm snapshot.", "error", err)
	}
}

var (
	_ plugin.Plugin          = (*Plugin[struct{}, struct{}])(nil)
	_ plugin.VersionedPlugin = (*Plugin[struct{}, struct{}])(nil)
)

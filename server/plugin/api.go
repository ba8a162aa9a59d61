package plugin

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dm-vev/alwaysfarm/server/world"
	"github.com/google/uuid"
)

// API exposes functionality of the server core to plugins.
type API[S any, C any] struct {
	manager *Manager[S, C]
	host    Host[S, C]
	id      uuid.UUID
	name    string
	ctx     atomic.Value // stores context.Context
	dataDir atomic.Value // stores string

	taskMu sync.Mutex
	tasks  []func()
}

func newAPI[S any, C any](manager *Manager[S, C], host Host[S, C], name string, id uuid.UUID) *API[S, C] {
	api := &API[S, C]{manager: manager, host: host, name: name, id: id}
	api.ctx.Store(context.Background())
	return api
}

func (api *API[S, C]) pluginName() string {
	if api.name == "" {
		return "plugin"
	}
	return api.name
}

func (api *API[S, C]) setContext(ctx context.Context) {
	if ctx == nil {
		ctx = context.Background()
	}
	api.ctx.Store(ctx)
}

// ID returns the identifier the plugin was enabled with. It changes every time
// the plugin is enabled.
func (api *API[S, C]) ID() uuid.UUID {
	return api.id
}

// Context returns a cancellable context that is invalidated when the plugin is disabled.
func (api *API[S, C]) Context() context.Context {
	if v := api.ctx.Load(); v != nil {
		if ctx, ok := v.(context.Context); ok && ctx != nil {
			return ctx
		}
	}
	return context.Background()
}

func (api *API[S, C]) setDataDirectory(dir string) {
	if dir == "" {
		api.dataDir.Store("")
		return
	}
	api.dataDir.Store(filepath.Clean(dir))
}

// DataDirectory returns the path to the plugin's data directory.
func (api *API[S, C]) DataDirectory() string {
	if v := api.dataDir.Load(); v != nil {
		if dir, ok := v.(string); ok && dir != "" {
			return dir
		}
	}
	return api.manager.pluginDataDirectory(api.pluginName())
}

func (api *API[S, C]) resolveDataPath(name string) (string, error) {
	if name == "" {
		return "", fmt.Errorf("data path is empty")
	}
	if filepath.IsAbs(name) {
		return "", fmt.Errorf("data path must be relative")
	}
	base := api.DataDirectory()
	cleaned := filepath.Clean(name)
	target := filepath.Join(base, cleaned)
	rel, err := filepath.Rel(base, target)
	if err != nil {
		return "", err
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(os.PathSeparator)) {
		return "", fmt.Errorf("data path escapes plugin directory")
	}
	return target, nil
}

// EnsureDataSubdir ensures a subdirectory inside the plugin data directory exists and returns its path.
func (api *API[S, C]) EnsureDataSubdir(name string) (string, error) {
	if name == "" {
		dir := api.DataDirectory()
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return "", err
		}
		return dir, nil
	}
	path, err := api.resolveDataPath(name)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(path, 0o755); err != nil {
		return "", err
	}
	return path, nil
}

// OpenDataFile opens or creates a file within the plugin data directory using the provided flags and permissions.
func (api *API[S, C]) OpenDataFile(name string, flag int, perm fs.FileMode) (*os.File, error) {
	path, err := api.resolveDataPath(name)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	if perm == 0 {
		perm = 0o644
	}
	return os.OpenFile(path, flag, perm)
}

// Go launches fn on a new goroutine tied to the plugin's lifecycle context. Panics cause the plugin to be disabled.
func (api *API[S, C]) Go(fn func(context.Context)) {
	if fn == nil {
		return
	}
	ctx := api.Context()
	name := api.pluginName()
	go func() {
		defer func() {
			if r := recover(); r != nil {
				api.manager.handlePluginPanic(name, r)
			}
		}()
		fn(ctx)
	}()
}

// Exec runs fn on the server goroutine. The channel returned is closed once fn
// has run. Panics cause the plugin to be disabled.
func (api *API[S, C]) Exec(fn func()) <-chan struct{} {
	name := api.pluginName()
	return api.host.Exec(func() {
		api.manager.events.invoke(name, fn)
	})
}

// ScheduleRepeating runs fn on the server goroutine once every interval ticks.
// The task stops when the function returned is called or when the plugin is
// disabled, whichever comes first.
func (api *API[S, C]) ScheduleRepeating(interval int, fn func()) (cancel func()) {
	if fn == nil || interval <= 0 {
		return func() {}
	}
	name := api.pluginName()
	stop := api.host.ScheduleRepeating(interval, func() {
		api.manager.events.invoke(name, fn)
	})
	var once sync.Once
	cancel = func() { once.Do(stop) }

	api.taskMu.Lock()
	api.tasks = append(api.tasks, cancel)
	api.taskMu.Unlock()
	return cancel
}

func (api *API[S, C]) stopTasks() {
	api.taskMu.Lock()
	tasks := api.tasks
	api.tasks = nil
	api.taskMu.Unlock()
	for _, cancel := range tasks {
		cancel()
	}
}

// Server returns the underlying server instance.
func (api *API[S, C]) Server() S {
	return api.host.Instance()
}

// Config returns a snapshot of the server configuration at the time of the call.
func (api *API[S, C]) Config() C {
	return api.host.Config()
}

// StartTime reports when the server started ticking.
func (api *API[S, C]) StartTime() time.Time {
	return api.host.StartTime()
}

// Logger returns a logger scoped to the plugin's name for structured logging.
func (api *API[S, C]) Logger() *slog.Logger {
	logger := api.host.Logger()
	if logger == nil {
		logger = slog.Default()
	}
	return logger.With("plugin", api.pluginName())
}

// Worlds returns the worlds managed by the server. See Host.Worlds for the
// goroutine the registry may be used on.
func (api *API[S, C]) Worlds() *world.Registry {
	return api.host.Worlds()
}

// World looks up a world managed by the server by its name.
func (api *API[S, C]) World(name string) (*world.World, bool) {
	return api.host.Worlds().Get(name)
}

// CloseServer requests a graceful server shutdown.
func (api *API[S, C]) CloseServer() error {
	return api.host.Close()
}

// Plugins returns metadata for all currently loaded plugins.
func (api *API[S, C]) Plugins() []Info {
	return api.manager.Infos()
}

// Plugin returns a loaded plugin by name if present.
func (api *API[S, C]) Plugin(name string) (Plugin, bool) {
	return api.manager.Plugin(name)
}

// DisablePlugin disables a plugin by its name.
func (api *API[S, C]) DisablePlugin(name string) (Info, error) {
	return api.manager.Disable(name)
}

// ReloadPlugin reloads a plugin by disabling and re-enabling it.
func (api *API[S, C]) ReloadPlugin(name string) (Info, error) {
	return api.manager.Reload(name)
}

// PluginDataRoot returns the root directory used to persist plugin data.
func (api *API[S, C]) PluginDataRoot() string {
	return api.manager.DataRoot()
}

// Events returns helpers for subscribing to world events.
func (api *API[S, C]) Events() *PluginEvents[S, C] {
	return &PluginEvents[S, C]{api: api}
}

// PluginEvents exposes registration helpers for subscribing to core event streams.
type PluginEvents[S any, C any] struct {
	api *API[S, C]
}

// OnWorld registers a world.Handler invoked for each world managed by the server.
// Handlers run in registration order before the world's own handler. Once a
// handler cancels an event, the handlers after it are not called.
// The returned function removes the handler when called.
func (pe *PluginEvents[S, C]) OnWorld(handler world.Handler) func() {
	if pe == nil || handler == nil {
		return func() {}
	}
	return pe.api.manager.events.addWorld(pe.api.pluginName(), handler)
}

// OnWorldMonitor registers a world.Handler that observes the outcome of world
// events. Monitors run after every other handler, including when the event was
// cancelled, and should only inspect the event context rather than cancel it.
// The returned function removes the handler when called.
func (pe *PluginEvents[S, C]) OnWorldMonitor(handler world.Handler) func() {
	if pe == nil || handler == nil {
		return func() {}
	}
	return pe.api.manager.events.addWorldMonitor(pe.api.pluginName(), handler)
}

// Clear removes all handlers previously registered by the plugin.
func (pe *PluginEvents[S, C]) Clear() {
	if pe == nil {
		return
	}
	pe.api.manager.events.clear(pe.api.pluginName())
}

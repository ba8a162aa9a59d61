package plugin

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime/debug"
	"slices"
	"strings"
	"sync"

	"github.com/dm-vev/alwaysfarm/server/world"
	"github.com/google/uuid"
)

type pluginInstance[S any, C any] struct {
	id      uuid.UUID
	name    string
	version string
	factory Factory[S, C]
	plugin  Plugin
	api     *API[S, C]
	cancel  context.CancelFunc
}

func (pi pluginInstance[S, C]) info() Info {
	info := Info{ID: pi.id, Name: pi.name, Version: pi.version}
	if pi.api != nil {
		info.DataDirectory = pi.api.DataDirectory()
	}
	return info
}

// Manager coordinates plugin loading and lifecycle management.
type Manager[S any, C any] struct {
	host       Host[S, C]
	cfg        Config
	log        *slog.Logger
	runtimeLog *slog.Logger

	mu      sync.RWMutex
	plugins []pluginInstance[S, C]
	events  *eventHub[S, C]
}

// NewManager constructs a Manager using the provided host and configuration snapshot.
func NewManager[S any, C any](host Host[S, C], cfg Config) *Manager[S, C] {
	manager := &Manager[S, C]{host: host, cfg: cfg}
	logger := host.Logger()
	if logger == nil {
		logger = slog.Default()
	}
	manager.log = logger
	manager.runtimeLog = logger.With("subsystem", "plugin.runtime")
	manager.events = newEventHub(manager, logger)
	return manager
}

// Enabled reports whether the plugin subsystem should run.
func (m *Manager[S, C]) Enabled() bool {
	return m.cfg.Enabled
}

// Directory returns the base directory of plugin state.
func (m *Manager[S, C]) Directory() string {
	return m.directory()
}

// DataRoot returns the root directory used for plugin data storage.
func (m *Manager[S, C]) DataRoot() string {
	return m.dataRoot()
}

// Infos returns metadata for all loaded plugins.
func (m *Manager[S, C]) Infos() []Info {
	m.mu.RLock()
	defer m.mu.RUnlock()

	infos := make([]Info, len(m.plugins))
	for i, p := range m.plugins {
		infos[i] = p.info()
	}
	return infos
}

// Plugin returns a loaded plugin by its case-insensitive name.
func (m *Manager[S, C]) Plugin(name string) (Plugin, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, p := range m.plugins {
		if strings.EqualFold(p.name, name) {
			return p.plugin, true
		}
	}
	return nil, false
}

// Enable constructs a plugin using factory and enables it under name. The data
// directory of the plugin is derived from name, so it stays the same across
// restarts and reloads.
func (m *Manager[S, C]) Enable(name string, factory Factory[S, C]) (info Info, err error) {
	if !m.Enabled() {
		return Info{}, ErrDisabled
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return Info{}, fmt.Errorf("enable plugin: empty name")
	}
	if factory == nil {
		return Info{}, fmt.Errorf("enable plugin %s: nil factory", name)
	}
	if _, ok := m.Plugin(name); ok {
		return Info{}, fmt.Errorf("%w: %s", ErrNameConflict, name)
	}
	if err := m.ensureDataRoot(); err != nil {
		return Info{}, fmt.Errorf("prepare plugin data storage: %w", err)
	}

	id := uuid.New()
	ctx, cancel := context.WithCancel(context.Background())
	api := newAPI(m, m.host, name, id)
	api.setContext(ctx)
	dataDir := m.pluginDataDirectory(name)
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		cancel()
		return Info{}, fmt.Errorf("create plugin data directory: %w", err)
	}
	api.setDataDirectory(dataDir)
	defer func() {
		if err != nil {
			cancel()
			api.stopTasks()
			m.events.clear(name)
		}
	}()
	inst, err := factory(api)
	if err != nil {
		return Info{}, fmt.Errorf("initialise plugin %s: %w", name, err)
	}
	if inst == nil {
		return Info{}, fmt.Errorf("initialise plugin %s: factory returned nil", name)
	}
	if reported := inst.Name(); reported != "" && !strings.EqualFold(reported, name) {
		if err := inst.Close(); err != nil {
			m.log.Error("Close mismatched plugin instance.", "error", err, "name", reported)
		}
		return Info{}, fmt.Errorf("%w: enabled as %s, reported %s", ErrNameMismatch, name, reported)
	}

	version := ""
	if v, ok := inst.(VersionedPlugin); ok {
		version = v.Version()
	}

	entry := pluginInstance[S, C]{
		id:      id,
		name:    name,
		version: version,
		factory: factory,
		plugin:  inst,
		api:     api,
		cancel:  cancel,
	}

	m.mu.Lock()
	for _, existing := range m.plugins {
		if strings.EqualFold(existing.name, entry.name) {
			m.mu.Unlock()
			if err := entry.plugin.Close(); err != nil {
				m.log.Error("Close conflicting plugin instance.", "error", err, "name", entry.name)
			}
			return Info{}, fmt.Errorf("%w: %s", ErrNameConflict, entry.name)
		}
	}
	m.plugins = append(m.plugins, entry)
	m.mu.Unlock()

	attrs := []any{"name", entry.name, "id", entry.id}
	if entry.version != "" {
		attrs = append(attrs, "version", entry.version)
	}
	m.log.Info("Plugin enabled.", attrs...)

	return entry.info(), nil
}

// Disable disables a plugin by its case-insensitive name and removes it from the manager.
func (m *Manager[S, C]) Disable(name string) (Info, error) {
	if !m.Enabled() {
		return Info{}, ErrDisabled
	}

	m.mu.Lock()
	index := -1
	var entry pluginInstance[S, C]
	for i, p := range m.plugins {
		if strings.EqualFold(p.name, name) {
			index = i
			entry = p
			m.plugins = append(m.plugins[:i], m.plugins[i+1:]...)
			break
		}
	}
	m.mu.Unlock()

	if index == -1 {
		return Info{}, ErrNotFound
	}

	if err := entry.plugin.Close(); err != nil {
		m.mu.Lock()
		m.plugins = append(m.plugins, entry)
		m.mu.Unlock()
		return Info{}, fmt.Errorf("close plugin: %w", err)
	}
	m.release(entry)

	m.log.Info("Plugin disabled.", "name", entry.name, "id", entry.id)
	return entry.info(), nil
}

// Reload disables and then re-enables a plugin by name using the factory it was
// enabled with.
func (m *Manager[S, C]) Reload(name string) (Info, error) {
	m.mu.RLock()
	var factory Factory[S, C]
	for _, p := range m.plugins {
		if strings.EqualFold(p.name, name) {
			factory = p.factory
			break
		}
	}
	m.mu.RUnlock()
	if factory == nil {
		return Info{}, ErrNotFound
	}

	info, err := m.Disable(name)
	if err != nil {
		return Info{}, err
	}
	reloaded, err := m.Enable(info.Name, factory)
	if err != nil {
		return Info{}, err
	}

	attrs := []any{"name", reloaded.Name, "id", reloaded.ID}
	if reloaded.Version != "" {
		attrs = append(attrs, "version", reloaded.Version)
	}
	m.log.Info("Plugin reloaded.", attrs...)
	return reloaded, nil
}

// DisableAll disables all currently loaded plugins in reverse load order.
// The returned slice contains metadata for every plugin that was disabled in
// the order the operations were performed.
func (m *Manager[S, C]) DisableAll() ([]Info, error) {
	if !m.Enabled() {
		return nil, ErrDisabled
	}

	m.mu.RLock()
	names := make([]string, len(m.plugins))
	for i, p := range m.plugins {
		names[i] = p.name
	}
	m.mu.RUnlock()

	infos := make([]Info, 0, len(names))
	for i := len(names) - 1; i >= 0; i-- {
		info, err := m.Disable(names[i])
		if err != nil {
			return infos, err
		}
		infos = append(infos, info)
	}
	return infos, nil
}

// Shutdown disables all plugins in reverse load order. Errors returned by
// plugins are logged.
func (m *Manager[S, C]) Shutdown() {
	m.mu.Lock()
	plugins := slices.Clone(m.plugins)
	m.plugins = nil
	m.mu.Unlock()

	for i := len(plugins) - 1; i >= 0; i-- {
		entry := plugins[i]
		err := entry.plugin.Close()
		m.release(entry)
		if err != nil {
			m.log.Error("Disable plugin.", "error", err, "name", entry.name)
			continue
		}
		m.log.Info("Plugin disabled.", "name", entry.name, "id", entry.id)
	}
}

// WorldHandlerWrap wraps the world handler to invoke plugin callbacks.
func (m *Manager[S, C]) WorldHandlerWrap(w *world.World, base world.Handler) world.Handler {
	return m.events.wrapWorld(w, base)
}

// release frees everything the manager holds on behalf of a plugin that was
// closed.
func (m *Manager[S, C]) release(entry pluginInstance[S, C]) {
	if entry.cancel != nil {
		entry.cancel()
	}
	if entry.api != nil {
		entry.api.stopTasks()
	}
	m.events.clear(entry.name)
}

func (m *Manager[S, C]) directory() string {
	if m.cfg.Directory == "" {
		return "plugins"
	}
	return m.cfg.Directory
}

func (m *Manager[S, C]) dataRoot() string {
	dir := m.cfg.DataDirectory
	if dir == "" {
		dir = filepath.Join(m.directory(), "data")
	} else if !filepath.IsAbs(dir) {
		dir = filepath.Join(m.directory(), dir)
	}
	return filepath.Clean(dir)
}

func (m *Manager[S, C]) ensureDataRoot() error {
	return os.MkdirAll(m.dataRoot(), 0o755)
}

func (m *Manager[S, C]) pluginDataDirectory(name string) string {
	safe := sanitizePluginDirectory(name)
	return filepath.Join(m.dataRoot(), safe)
}

// handlePluginPanic drops the handlers of a plugin that panicked and disables
// it on the server goroutine.
func (m *Manager[S, C]) handlePluginPanic(name string, reason any) {
	pluginName := name
	if pluginName == "" {
		pluginName = "plugin"
	}
	stack := debug.Stack()
	m.events.clear(pluginName)
	m.runtimeLog.Error("Plugin panic.", "plugin", pluginName, "panic", reason, "stack", string(stack))
	m.host.Exec(func() {
		info, err := m.Disable(pluginName)
		if err != nil {
			if !errors.Is(err, ErrNotFound) {
				m.runtimeLog.Error("Disable panic plugin.", "plugin", pluginName, "error", err)
			}
			return
		}
		attrs := []any{"name", info.Name, "id", info.ID}
		if info.Version != "" {
			attrs = append(attrs, "version", info.Version)
		}
		m.runtimeLog.Warn("Plugin disabled after panic.", attrs...)
	})
}

func sanitizePluginDirectory(name string) string {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return "plugin"
	}
	lower := strings.ToLower(trimmed)
	sanitized := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z':
			return r
		case r >= '0' && r <= '9':
			return r
		case r == '-' || r == '_' || r == '.':
			return r
		default:
			return '-'
		}
	}, lower)
	sanitized = strings.Trim(sanitized, "-_.")
	if sanitized == "" {
		return "plugin"
	}
	return sanitized
}

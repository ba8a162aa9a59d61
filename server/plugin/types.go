package plugin

import (
	"errors"

	"github.com/google/uuid"
)

// Plugin defines an extension that can interact with the server.
type Plugin interface {
	// Name returns the display name of the plugin. It should be unique for the
	// lifetime of the server process.
	Name() string
	// Close releases all resources held by the plugin. It is called once when
	// the server shuts down or when the plugin is disabled.
	Close() error
}

// VersionedPlugin may be implemented by plugins to expose a version string.
type VersionedPlugin interface {
	Version() string
}

// Factory constructs a plugin using the API passed. The returned Plugin is
// enabled immediately and must be ready to handle callbacks.
type Factory[S any, C any] func(api *API[S, C]) (Plugin, error)

// Info describes a plugin currently loaded by the manager.
type Info struct {
	// ID is unique for every time a plugin is enabled, including reloads.
	ID            uuid.UUID
	Name          string
	Version       string
	DataDirectory string
}

var (
	// ErrDisabled is returned when the plugin subsystem is disabled.
	ErrDisabled = errors.New("plugin subsystem disabled")
	// ErrNameConflict is returned when another loaded plugin already uses the
	// same case-insensitive name.
	ErrNameConflict = errors.New("plugin name already registered")
	// ErrNameMismatch is returned when a plugin reports a name different from
	// the one it was enabled under.
	ErrNameMismatch = errors.New("plugin name does not match")
	// ErrNotFound is returned when attempting to disable or reload a plugin that
	// is not currently loaded.
	ErrNotFound = errors.New("plugin not found")
)

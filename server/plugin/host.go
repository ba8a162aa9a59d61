package plugin

import (
	"log/slog"
	"time"

	"github.com/dm-vev/alwaysfarm/server/world"
)

// Host exposes the subset of server functionality required by the plugin
// manager and APIs.
type Host[S any, C any] interface {
	// Instance returns the underlying server value.
	Instance() S
	// Config returns a snapshot of the server configuration.
	Config() C
	// Logger returns the logger used for structured diagnostics.
	Logger() *slog.Logger
	// StartTime reports the time the server started ticking.
	StartTime() time.Time
	// Worlds returns the worlds of the server. The registry may only be used on
	// the server goroutine, either from a function passed to Exec or from an
	// event handler.
	Worlds() *world.Registry
	// Exec schedules fn to run on the server goroutine. The channel returned is
	// closed once fn has run. Exec never blocks, so it is safe to call from the
	// server goroutine as long as the channel is not waited on there.
	Exec(fn func()) <-chan struct{}
	// ScheduleRepeating runs fn on the server goroutine once every interval
	// ticks until the function returned is called.
	ScheduleRepeating(interval int, fn func()) (cancel func())
	// Close shuts the underlying server down.
	Close() error
}

package server

import (
	"log/slog"
	"time"

	"github.com/dm-vev/alwaysfarm/server/plugin"
	"github.com/dm-vev/alwaysfarm/server/world"
)

type pluginHost struct {
	srv *Server
}

func newPluginHost(srv *Server) plugin.Host[*Server, Config] {
	return pluginHost{srv: srv}
}

func (h pluginHost) Instance() *Server {
	return h.srv
}

func (h pluginHost) Config() Config {
	return h.srv.conf
}

func (h pluginHost) Logger() *slog.Logger {
	return h.srv.conf.Log
}

func (h pluginHost) StartTime() time.Time {
	return h.srv.StartTime()
}

func (h pluginHost) Worlds() *world.Registry {
	return h.srv.Worlds()
}

func (h pluginHost) Exec(fn func()) <-chan struct{} {
	return h.srv.Exec(fn)
}

func (h pluginHost) ScheduleRepeating(interval int, fn func()) func() {
	return h.srv.ScheduleRepeating(interval, fn)
}

func (h pluginHost) Close() error {
	// Close waits for the tick loop, which is the caller when a plugin closes the server from a task.
	go func() {
		if err := h.srv.Close(); err != nil {
			h.srv.conf.Log.Error("Close server.", "error", err)
		}
	}()
	return nil
}

var _ plugin.Host[*Server, Config] = pluginHost{}

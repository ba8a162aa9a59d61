package server

import (
	"errors"
	"math"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/dm-vev/alwaysfarm/server/plugin"
	"github.com/dm-vev/alwaysfarm/server/world"
)

// Server holds the worlds of a voxel game server and the plugins acting on them. All world and plugin
// state is owned by a single goroutine: the tick loop started by Start. Other goroutines interact with
// it through Exec.
type Server struct {
	conf    Config
	worlds  *world.Registry
	plugins *plugin.Manager[*Server, Config]

	started atomic.Pointer[time.Time]
	tps     atomic.Uint64
	tick    int64

	execMu sync.Mutex
	execs  []execTask

	taskMu   sync.Mutex
	tasks    map[uint64]*repeatingTask
	nextTask uint64

	startOnce, closeOnce sync.Once
	closing              chan struct{}
	running              sync.WaitGroup
}

type execTask struct {
	fn   func()
	done chan struct{}
}

type repeatingTask struct {
	interval int64
	fn       func()
}

// Start starts ticking the Server on a new goroutine. Calling Start more than once is a no-op.
func (srv *Server) Start() {
	srv.startOnce.Do(func() {
		t := time.Now()
		srv.started.Store(&t)
		srv.running.Add(1)
		go srv.tickLoop()
		srv.conf.Log.Info("Server started.", "name", srv.conf.Name, "worlds", srv.worlds.Len(), "plugins", len(srv.plugins.Infos()))
	})
}

// StartTime returns the time the Server started ticking, or the zero time if it was never started.
func (srv *Server) StartTime() time.Time {
	if t := srv.started.Load(); t != nil {
		return *t
	}
	return time.Time{}
}

// TPS returns the average number of ticks per second measured over the last second of ticking.
func (srv *Server) TPS() float64 {
	return math.Float64frombits(srv.tps.Load())
}

// Worlds returns the worlds of the Server. The registry may only be used on the Server goroutine.
func (srv *Server) Worlds() *world.Registry {
	return srv.worlds
}

// World returns the world with the name passed. It may only be used on the Server goroutine.
func (srv *Server) World(name string) (*world.World, bool) {
	return srv.worlds.Get(name)
}

// Plugins returns the plugin manager of the Server.
func (srv *Server) Plugins() *plugin.Manager[*Server, Config] {
	return srv.plugins
}

// Exec schedules fn to run on the Server goroutine at the start of the next tick. The channel returned is
// closed once fn has run. Exec does not block, but waiting on the channel from the Server goroutine
// itself deadlocks.
func (srv *Server) Exec(fn func()) <-chan struct{} {
	done := make(chan struct{})
	srv.execMu.Lock()
	srv.execs = append(srv.execs, execTask{fn: fn, done: done})
	srv.execMu.Unlock()
	return done
}

// ScheduleRepeating runs fn on the Server goroutine once every interval ticks until the function
// returned is called.
func (srv *Server) ScheduleRepeating(interval int, fn func()) (cancel func()) {
	if interval <= 0 || fn == nil {
		return func() {}
	}
	srv.taskMu.Lock()
	id := srv.nextTask
	srv.nextTask++
	srv.tasks[id] = &repeatingTask{interval: int64(interval), fn: fn}
	srv.taskMu.Unlock()

	return func() {
		srv.taskMu.Lock()
		delete(srv.tasks, id)
		srv.taskMu.Unlock()
	}
}

// CloseOnProgramEnd closes the Server right before the program ends, so that all data of the Server is
// saved properly.
func (srv *Server) CloseOnProgramEnd() {
	c := make(chan os.Signal, 2)
	signal.Notify(c, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-c
		if err := srv.Close(); err != nil {
			srv.conf.Log.Error("Close server.", "error", err)
		}
	}()
}

// Close stops ticking the Server, disables its plugins so that the farm writes its snapshot, and closes
// its worlds. Calling Close more than once is a no-op.
func (srv *Server) Close() error {
	var err error
	srv.closeOnce.Do(func() {
		srv.conf.Log.Info("Server closing...")
		close(srv.closing)
		srv.running.Wait()

		// The tick loop is gone, so this goroutine owns the Server state from here.
		srv.runExecs()
		srv.plugins.Shutdown()
		srv.runExecs()
		err = srv.closeWorlds()
		if srv.plugins.Enabled() {
			world.SetHandlerWrap(nil)
		}
		srv.conf.Log.Info("Server closed.", "ticks", srv.tick)
	})
	return err
}

func (srv *Server) closeWorlds() error {
	var errs []error
	for _, w := range srv.worlds.All() {
		errs = append(errs, w.Close())
		srv.worlds.Remove(w.Name())
	}
	return errors.Join(errs...)
}

// abort undoes a partially constructed Server and returns err.
func (srv *Server) abort(err error) error {
	srv.plugins.Shutdown()
	if cerr := srv.closeWorlds(); cerr != nil {
		err = errors.Join(err, cerr)
	}
	if srv.plugins.Enabled() {
		world.SetHandlerWrap(nil)
	}
	return err
}

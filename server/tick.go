package server

import (
	"math"
	"time"
)

const (
	tpsSampleSize       = 20
	tpsWarningThreshold = 19.0
)

// tickLoop ticks the Server once every TickInterval until the Server is closed.
func (srv *Server) tickLoop() {
	defer srv.running.Done()

	tc := time.NewTicker(srv.conf.TickInterval)
	defer tc.Stop()
	lastTick := time.Now()
	var (
		durationSum time.Duration
		ticksCount  int
		warned      bool
	)
	for {
		select {
		case <-tc.C:
			tickStart := time.Now()
			duration := tickStart.Sub(lastTick)
			lastTick = tickStart
			if duration > 0 {
				durationSum += duration
				ticksCount++
				if ticksCount >= tpsSampleSize {
					tps := 1.0 / (durationSum / time.Duration(ticksCount)).Seconds()
					srv.tps.Store(math.Float64bits(tps))
					if tps < tpsWarningThreshold {
						if !warned {
							srv.conf.Log.Warn("TPS dropped below threshold.", "tps", tps)
							warned = true
						}
					} else {
						warned = false
					}
					durationSum, ticksCount = 0, 0
				}
			}
			srv.step()
		case <-srv.closing:
			return
		}
	}
}

// step performs a single tick: it runs the functions passed to Exec, performs random ticks in every world
// and runs the repeating tasks that are due.
func (srv *Server) step() {
	srv.tick++
	srv.runExecs()
	for _, w := range srv.worlds.All() {
		w.Tick()
	}
	for _, fn := range srv.dueTasks() {
		fn()
	}
}

func (srv *Server) runExecs() {
	srv.execMu.Lock()
	execs := srv.execs
	srv.execs = nil
	srv.execMu.Unlock()

	for _, e := range execs {
		e.fn()
		close(e.done)
	}
}

func (srv *Server) dueTasks() []func() {
	srv.taskMu.Lock()
	defer srv.taskMu.Unlock()
	var due []func()
	for _, t := range srv.tasks {
		if srv.tick%t.interval == 0 {
			due = append(due, t.fn)
		}
	}
	return due
}

package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dm-vev/alwaysfarm/examples/plugins/harvestlog"
	"github.com/dm-vev/alwaysfarm/server"
	"github.com/dm-vev/alwaysfarm/server/console"
	"github.com/dm-vev/alwaysfarm/server/world/farm"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	var (
		path     = flag.String("config", "config.toml", "path of the TOML configuration file")
		duration = flag.Duration("duration", 0, "stop the server after this duration, 0 runs until interrupted")
		noStdin  = flag.Bool("no-console", false, "do not read commands from standard input")
		harvests = flag.Bool("harvestlog", false, "enable the example harvest log plugin")
	)
	flag.Parse()

	log := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	if err := run(log, *path, *duration, !*noStdin, *harvests); err != nil {
		log.Error("Server stopped.", "error", err)
		os.Exit(1)
	}
}

func run(log *slog.Logger, path string, duration time.Duration, stdin, harvests bool) error {
	uc, err := server.ReadUserConfig(path)
	if err != nil {
		return err
	}
	conf, err := uc.Config(log)
	if err != nil {
		return err
	}
	metrics := farm.NewMetrics()
	conf.Farm.Metrics = metrics

	srv, err := conf.New()
	if err != nil {
		return err
	}
	if harvests {
		if _, err := srv.Plugins().Enable(harvestlog.Name, harvestlog.Init); err != nil {
			_ = srv.Close()
			return err
		}
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	if duration > 0 {
		var stop context.CancelFunc
		ctx, stop = context.WithTimeout(ctx, duration)
		defer stop()
	}

	if uc.Metrics.Enabled {
		httpSrv := serveMetrics(log, uc.Metrics.Address, metrics)
		defer func() {
			shutdownCtx, stop := context.WithTimeout(context.Background(), 5*time.Second)
			defer stop()
			_ = httpSrv.Shutdown(shutdownCtx)
		}()
	}

	srv.Start()
	if uc.Simulation.Enabled {
		<-srv.Exec(func() {
			newSimulation(srv, uc, log).start()
		})
	}
	if stdin {
		go func() {
			console.New(srv, log).Run(ctx)
			// A closed input or a stop command ends the program.
			cancel()
		}()
	}

	<-ctx.Done()
	return srv.Close()
}

// serveMetrics exposes the farm metrics together with the Go runtime metrics on addr.
func serveMetrics(log *slog.Logger, addr string, metrics *farm.Metrics) *http.Server {
	reg := prometheus.NewRegistry()
	reg.MustRegister(metrics, collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	httpSrv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		log.Info("Serving metrics.", "addr", addr)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("Serve metrics.", "error", err)
		}
	}()
	return httpSrv
}

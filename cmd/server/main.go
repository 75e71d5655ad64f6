package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v3"

	"energyweb/internal/api"
	"energyweb/internal/catalog"
	"energyweb/internal/config"
	"energyweb/internal/dataset"
	"energyweb/internal/ingest"
	"energyweb/internal/live"
	"energyweb/internal/metrics"
	"energyweb/internal/store"
	"energyweb/internal/ws"
)

func main() {
	cmd := &cli.Command{
		Name:  "energyweb",
		Usage: "serve building power graphs, tables and the live feed",
		Flags: append(config.Flags(),
			&cli.StringFlag{
				Name:    "addr",
				Usage:   "listen address (overrides listen_addr)",
				Sources: cli.EnvVars("ENERGYWEB_ADDR"),
			},
		),
		Action: run,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := cmd.Run(ctx, os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cmd *cli.Command) error {
	cfg, err := config.FromCommand(cmd)
	if err != nil {
		return err
	}
	if cmd.IsSet("addr") {
		cfg.ListenAddr = cmd.String("addr")
	}
	log := cfg.NewLogger()

	a, err := newApp(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer a.Close()

	a.engine.Start()
	go a.refresh(ctx, cfg.Rollup.Interval)

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           a.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		log.WithField("addr", cfg.ListenAddr).Info("Starting server")
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	case <-ctx.Done():
		log.Info("Shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
	}
	return nil
}

// app holds the wired components of a running server.
type app struct {
	cfg       config.Config
	log       logrus.FieldLogger
	backend   store.Backend
	loader    *catalog.Loader
	assembler *dataset.Assembler
	engine    *live.Engine
	hub       *ws.Hub
	metrics   *metrics.Metrics
	handler   http.Handler
}

func newApp(ctx context.Context, cfg config.Config, log logrus.FieldLogger) (*app, error) {
	backend, err := store.Open(cfg.Database.Driver, cfg.Database.Path, log)
	if err != nil {
		return nil, err
	}
	a := &app{cfg: cfg, log: log, backend: backend, metrics: metrics.New()}
	if o, ok := backend.(interface{ SetObserver(store.QueryObserver) }); ok {
		o.SetObserver(a.metrics)
	}

	if err := a.seed(ctx); err != nil {
		backend.Close()
		return nil, err
	}
	if _, err := store.RollUpAll(ctx, backend, cfg.Rollup.Resolutions, log); err != nil {
		backend.Close()
		return nil, err
	}

	a.loader = catalog.NewLoader(backend, log)
	if _, err := a.loader.Reload(ctx); err != nil {
		backend.Close()
		return nil, fmt.Errorf("load catalog: %w", err)
	}

	a.assembler = dataset.New(a.loader, backend, log, dataset.Options{
		Location:          cfg.Location(),
		MaxPoints:         cfg.Graph.MaxPoints,
		DynamicWindow:     cfg.Graph.DynamicWindow,
		DynamicResolution: cfg.Graph.DynamicResolution,
		Observer:          a.metrics,
	})

	a.hub = ws.NewHub(log)
	a.engine = live.New(a.assembler, ws.NewBridge(a.hub, log), log, cfg.Live.PollInterval)
	a.metrics.GaugeFunc("ws_clients", "Connected live feed clients.", func() float64 {
		return float64(a.hub.ClientCount())
	})

	a.handler = api.NewServer(a.assembler, log, api.Options{
		ShowAcademic: cfg.ShowAcademic,
		Live:         ws.NewHandler(a.hub, a.engine, a.assembler, a.loader, log),
		Metrics:      a.metrics,
	}).Handler()
	return a, nil
}

func (a *app) seed(ctx context.Context) error {
	if path := a.cfg.Seed.SensorsCSV; path != "" {
		if err := ingest.SeedCatalog(ctx, a.backend, path, a.log); err != nil {
			return err
		}
	}
	if path := a.cfg.Seed.ReadingsCSV; path != "" {
		if _, err := ingest.SeedReadings(ctx, a.backend, path, a.log); err != nil {
			return err
		}
	}
	return nil
}

// refresh periodically rolls up new readings and reloads the catalog so
// newly provisioned sensors show up without a restart.
func (a *app) refresh(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := store.RollUpAll(ctx, a.backend, a.cfg.Rollup.Resolutions, a.log); err != nil {
				a.log.WithError(err).Error("Rollup failed")
			}
			if _, err := a.loader.Reload(ctx); err != nil {
				a.log.WithError(err).Error("Catalog reload failed")
			}
		}
	}
}

func (a *app) Close() error {
	if a.engine != nil {
		a.engine.Stop()
	}
	return a.backend.Close()
}

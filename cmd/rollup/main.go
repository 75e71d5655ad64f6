package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v3"

	"energyweb/internal/config"
	"energyweb/internal/ingest"
	"energyweb/internal/store"
)

func main() {
	cmd := &cli.Command{
		Name:  "rollup",
		Usage: "insert power averages for completed buckets",
		Flags: append(config.Flags(),
			&cli.BoolFlag{
				Name:  "watch",
				Usage: "keep running, rolling up every rollup.interval",
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
	log := cfg.NewLogger()

	backend, err := store.Open(cfg.Database.Driver, cfg.Database.Path, log)
	if err != nil {
		return err
	}
	defer backend.Close()

	if path := cfg.Seed.ReadingsCSV; path != "" {
		if _, err := ingest.SeedReadings(ctx, backend, path, log); err != nil {
			return err
		}
	}

	if !cmd.Bool("watch") {
		return once(ctx, backend, cfg, log)
	}

	ticker := time.NewTicker(cfg.Rollup.Interval)
	defer ticker.Stop()
	for {
		if err := once(ctx, backend, cfg, log); err != nil {
			log.WithError(err).Error("Rollup failed")
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func once(ctx context.Context, backend store.Backend, cfg config.Config, log logrus.FieldLogger) error {
	start := time.Now()
	n, err := store.RollUpAll(ctx, backend, cfg.Rollup.Resolutions, log)
	if err != nil {
		return err
	}
	log.WithFields(logrus.Fields{
		"inserted":    n,
		"resolutions": cfg.Rollup.Resolutions,
		"duration":    time.Since(start),
	}).Info("Rollup complete")
	return nil
}

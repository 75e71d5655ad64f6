package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v3"

	"energyweb/internal/catalog"
	"energyweb/internal/config"
	"energyweb/internal/dataset"
	"energyweb/internal/ingest"
	"energyweb/internal/resolution"
	"energyweb/internal/store"
)

func main() {
	layouts := cli.TimestampConfig{Layouts: []string{time.RFC3339, time.DateTime, time.DateOnly}}
	cmd := &cli.Command{
		Name:      "export-csv",
		Usage:     "write per-building power for a range as CSV",
		ArgsUsage: "[output file]",
		Flags: append(config.Flags(),
			&cli.TimestampFlag{Name: "start", Usage: "range start", Required: true, Config: layouts},
			&cli.TimestampFlag{Name: "end", Usage: "range end, inclusive", Required: true, Config: layouts},
			&cli.StringFlag{Name: "resolution", Value: resolution.Auto, Usage: "bucket resolution or auto"},
		),
		Action: run,
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
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

	var w io.Writer = os.Stdout
	if path := cmd.Args().First(); path != "" {
		f, err := os.Create(path)
		if err != nil {
			return err
		}
		defer f.Close()
		w = f
	}
	return export(ctx, cfg, log, w, cmd.Timestamp("start"), cmd.Timestamp("end"), cmd.String("resolution"))
}

// export writes the same CSV as the data access download for [start, end].
func export(ctx context.Context, cfg config.Config, log logrus.FieldLogger, w io.Writer, start, end time.Time, res string) error {
	backend, err := store.Open(cfg.Database.Driver, cfg.Database.Path, log)
	if err != nil {
		return err
	}
	defer backend.Close()

	if path := cfg.Seed.SensorsCSV; path != "" {
		if err := ingest.SeedCatalog(ctx, backend, path, log); err != nil {
			return err
		}
	}
	if path := cfg.Seed.ReadingsCSV; path != "" {
		if _, err := ingest.SeedReadings(ctx, backend, path, log); err != nil {
			return err
		}
		if _, err := store.RollUpAll(ctx, backend, cfg.Rollup.Resolutions, log); err != nil {
			return err
		}
	}

	loader := catalog.NewLoader(backend, log)
	if _, err := loader.Reload(ctx); err != nil {
		return err
	}

	rng, err := dataset.Validate(start, end, res, dataset.Unrestricted, cfg.Graph.MaxPoints)
	if err != nil {
		return err
	}
	a := dataset.New(loader, backend, log, dataset.Options{Location: cfg.Location()})

	log.WithFields(logrus.Fields{
		"start":      rng.Start,
		"end":        rng.End,
		"resolution": rng.Resolution,
	}).Info("Exporting")
	return a.WriteCSV(ctx, w, rng.Start, rng.End, rng.Resolution)
}

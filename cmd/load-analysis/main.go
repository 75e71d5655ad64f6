package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/urfave/cli/v3"

	"energyweb/internal/catalog"
	"energyweb/internal/config"
	"energyweb/internal/dataset"
	"energyweb/internal/store"
)

func main() {
	layouts := cli.TimestampConfig{Layouts: []string{time.RFC3339, time.DateOnly}}
	cmd := &cli.Command{
		Name:  "load-analysis",
		Usage: "print each building's energy use by hour of day",
		Flags: append(config.Flags(),
			&cli.TimestampFlag{Name: "start", Usage: "range start", Required: true, Config: layouts},
			&cli.TimestampFlag{Name: "end", Usage: "range end, exclusive", Required: true, Config: layouts},
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

	backend, err := store.Open(cfg.Database.Driver, cfg.Database.Path, log)
	if err != nil {
		return err
	}
	defer backend.Close()

	loader := catalog.NewLoader(backend, log)
	if _, err := loader.Reload(ctx); err != nil {
		return err
	}
	a := dataset.New(loader, backend, log, dataset.Options{Location: cfg.Location()})

	start, end := cmd.Timestamp("start"), cmd.Timestamp("end")
	profiles, err := a.LoadProfile(ctx, start, end)
	if err != nil {
		return err
	}

	fmt.Println()
	fmt.Println("Load Profile")
	fmt.Printf("  Data: %s to %s (%.0f days)\n", start.Format(time.DateOnly), end.Format(time.DateOnly), end.Sub(start).Hours()/24)
	for _, p := range profiles {
		fmt.Println()
		fmt.Printf("=== %s ===\n", p.Group.Name)
		fmt.Printf("  Total: %s\n", formatKWh(p.TotalKWh))
		printHourlyTable(os.Stdout, p)
	}
	return nil
}

func printHourlyTable(w io.Writer, p *dataset.LoadProfile) {
	fmt.Fprintln(w, "  Hourly Distribution:")
	fmt.Fprintf(w, "   %4s │ %8s │ %8s │ %5s\n", "Hour", "kWh", "Avg kW", "Share")
	fmt.Fprintf(w, "  ──────┼──────────┼──────────┼──────\n")

	peak := p.PeakHour()
	for h, b := range p.Hours {
		if b.KWh < 0.01 {
			continue
		}
		marker := ""
		if h == peak {
			marker = " ← peak"
		}
		fmt.Fprintf(w, "     %02d │ %8.1f │ %8.2f │ %4.1f%%%s\n",
			h, b.KWh, b.AvgKW(), safeDivide(b.KWh, p.TotalKWh)*100, marker)
	}
}

func safeDivide(a, b float64) float64 {
	if b == 0 {
		return 0
	}
	return a / b
}

func formatKWh(v float64) string {
	if v >= 1000 {
		return fmt.Sprintf("%.1f MWh", v/1000)
	}
	return fmt.Sprintf("%.1f kWh", v)
}

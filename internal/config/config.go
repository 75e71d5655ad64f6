// Package config loads the YAML configuration shared by the server and the
// batch commands.
package config

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"time"
	_ "time/tzdata"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"energyweb/internal/resolution"
	"energyweb/internal/store"
)

type Database struct {
	Driver string `yaml:"driver"`
	Path   string `yaml:"path"`
}

type Log struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type Graph struct {
	MaxPoints         int                   `yaml:"max_points"`
	DynamicWindow     time.Duration         `yaml:"dynamic_window"`
	DynamicResolution resolution.Resolution `yaml:"dynamic_resolution"`
	// Location is the IANA zone form input and CSV timestamps are read in.
	Location string `yaml:"location"`
}

type Live struct {
	PollInterval time.Duration `yaml:"poll_interval"`
}

type Rollup struct {
	Interval    time.Duration           `yaml:"interval"`
	Resolutions []resolution.Resolution `yaml:"resolutions"`
}

type Seed struct {
	SensorsCSV  string `yaml:"sensors_csv"`
	ReadingsCSV string `yaml:"readings_csv"`
}

type Config struct {
	ListenAddr   string   `yaml:"listen_addr"`
	Database     Database `yaml:"database"`
	Log          Log      `yaml:"log"`
	Graph        Graph    `yaml:"graph"`
	Live         Live     `yaml:"live"`
	Rollup       Rollup   `yaml:"rollup"`
	ShowAcademic bool     `yaml:"show_academic"`
	Seed         Seed     `yaml:"seed"`
}

func Default() Config {
	return Config{
		ListenAddr: ":8080",
		Database: Database{
			Driver: store.DriverSQLite,
			Path:   "energyweb.db",
		},
		Log: Log{Level: "info", Format: "text"},
		Graph: Graph{
			MaxPoints:         2000,
			DynamicWindow:     2 * time.Hour,
			DynamicResolution: resolution.Second10,
			Location:          "UTC",
		},
		Live: Live{PollInterval: 10 * time.Second},
		Rollup: Rollup{
			Interval:    time.Minute,
			Resolutions: append([]resolution.Resolution(nil), resolution.AverageTypes...),
		},
	}
}

// Load overlays the file at path on Default. An empty path returns the
// defaults unchanged.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, cfg.Validate()
}

func (c Config) Validate() error {
	var errs []error
	switch c.Database.Driver {
	case store.DriverMemory:
	case store.DriverSQLite:
		if c.Database.Path == "" {
			errs = append(errs, errors.New("database.path is required for sqlite3"))
		}
	default:
		errs = append(errs, fmt.Errorf("database.driver: unknown driver %q", c.Database.Driver))
	}
	if _, err := logrus.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, fmt.Errorf("log.level: %w", err))
	}
	if c.Log.Format != "text" && c.Log.Format != "json" {
		errs = append(errs, fmt.Errorf("log.format: want text or json, got %q", c.Log.Format))
	}
	if c.Graph.MaxPoints <= 0 {
		errs = append(errs, errors.New("graph.max_points must be positive"))
	}
	if c.Graph.DynamicWindow <= 0 {
		errs = append(errs, errors.New("graph.dynamic_window must be positive"))
	}
	if _, err := resolution.Width(c.Graph.DynamicResolution); err != nil {
		errs = append(errs, fmt.Errorf("graph.dynamic_resolution: %w", err))
	}
	if _, err := time.LoadLocation(c.Graph.Location); err != nil {
		errs = append(errs, fmt.Errorf("graph.location: %w", err))
	}
	if c.Live.PollInterval <= 0 {
		errs = append(errs, errors.New("live.poll_interval must be positive"))
	}
	if c.Rollup.Interval <= 0 {
		errs = append(errs, errors.New("rollup.interval must be positive"))
	}
	for _, r := range c.Rollup.Resolutions {
		if !slices.Contains(resolution.AverageTypes, r) {
			errs = append(errs, fmt.Errorf("rollup.resolutions: %w: %q", resolution.ErrInvalidResolution, r))
		}
	}
	return errors.Join(errs...)
}

// Location resolves Graph.Location, falling back to UTC.
func (c Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Graph.Location)
	if err != nil {
		return time.UTC
	}
	return loc
}

// NewLogger builds the process logger from the log section.
func (c Config) NewLogger() *logrus.Logger {
	logger := logrus.New()
	if level, err := logrus.ParseLevel(c.Log.Level); err == nil {
		logger.SetLevel(level)
	}
	if c.Log.Format == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	return logger
}

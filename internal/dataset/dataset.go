// Package dataset assembles the shapes the web tier serves: point dumps,
// CSV exports, detail graphs and tables, and the statistics table. Power is
// reported in kilowatts and energy in kilowatt-hours.
package dataset

import (
	"errors"
	"time"

	"github.com/sirupsen/logrus"

	"energyweb/internal/aggregate"
	"energyweb/internal/catalog"
	"energyweb/internal/resolution"
)

// ErrCatalogNotLoaded is returned before the first catalog load.
var ErrCatalogNotLoaded = errors.New("catalog not loaded")

type Options struct {
	// Location is used for CSV timestamps.
	Location          *time.Location
	MaxPoints         int
	DynamicWindow     time.Duration
	DynamicResolution resolution.Resolution
	Now               func() time.Time
	Observer          aggregate.PassObserver
}

// DefaultOptions mirrors the public site's limits.
func DefaultOptions() Options {
	return Options{
		Location:          time.UTC,
		MaxPoints:         2000,
		DynamicWindow:     2 * time.Hour,
		DynamicResolution: resolution.Second10,
		Now:               time.Now,
	}
}

type Assembler struct {
	catalogs catalog.Provider
	src      aggregate.Source
	log      logrus.FieldLogger
	opts     Options
}

// New returns an assembler. Zero fields of opts take their defaults.
func New(catalogs catalog.Provider, src aggregate.Source, log logrus.FieldLogger, opts Options) *Assembler {
	def := DefaultOptions()
	if opts.Location == nil {
		opts.Location = def.Location
	}
	if opts.MaxPoints == 0 {
		opts.MaxPoints = def.MaxPoints
	}
	if opts.DynamicWindow == 0 {
		opts.DynamicWindow = def.DynamicWindow
	}
	if opts.DynamicResolution == "" {
		opts.DynamicResolution = def.DynamicResolution
	}
	if opts.Now == nil {
		opts.Now = def.Now
	}
	return &Assembler{catalogs: catalogs, src: src, log: log, opts: opts}
}

func (a *Assembler) Options() Options {
	return a.opts
}

// aggregator binds the catalog current at call time to a fresh aggregator.
func (a *Assembler) aggregator() (*aggregate.Aggregator, *catalog.Catalog, error) {
	c := a.catalogs.Current()
	if c == nil {
		return nil, nil, ErrCatalogNotLoaded
	}
	agg := aggregate.New(c, a.src, a.log)
	if a.opts.Observer != nil {
		agg.SetObserver(a.opts.Observer)
	}
	return agg, c, nil
}

// Catalog returns the catalog requests are currently served from.
func (a *Assembler) Catalog() (*catalog.Catalog, error) {
	c := a.catalogs.Current()
	if c == nil {
		return nil, ErrCatalogNotLoaded
	}
	return c, nil
}

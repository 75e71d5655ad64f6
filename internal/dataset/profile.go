package dataset

import (
	"context"
	"errors"
	"time"

	"gopkg.in/guregu/null.v4"

	"energyweb/internal/aggregate"
	"energyweb/internal/catalog"
	"energyweb/internal/resolution"
	"energyweb/internal/store"
)

// HourBucket sums the hourly buckets that start at one hour of the day.
type HourBucket struct {
	KWh     float64
	Buckets int
}

// AvgKW is the mean power over the buckets seen.
func (b HourBucket) AvgKW() float64 {
	if b.Buckets == 0 {
		return 0
	}
	return b.KWh / float64(b.Buckets)
}

// LoadProfile is one building's energy by hour of day.
type LoadProfile struct {
	Group    catalog.Group
	Hours    [24]HourBucket
	TotalKWh float64
}

// PeakHour returns the hour with the most energy, or -1 when there is none.
func (p *LoadProfile) PeakHour() int {
	peak := -1
	for h, b := range p.Hours {
		if b.KWh > 0 && (peak < 0 || b.KWh > p.Hours[peak].KWh) {
			peak = h
		}
	}
	return peak
}

type profileVisitor struct {
	loc      *time.Location
	profiles map[int]*LoadProfile
}

func (v *profileVisitor) OnBucket(time.Time) {}

func (v *profileVisitor) OnSensor(time.Time, aggregate.SensorSample) {}

func (v *profileVisitor) OnBuilding(groupID int, t time.Time, y null.Float) {
	p, ok := v.profiles[groupID]
	if !ok || !y.Valid {
		return
	}
	// One hour at y watts.
	kwh := y.Float64 / 1000
	b := &p.Hours[t.In(v.loc).Hour()]
	b.KWh += kwh
	b.Buckets++
	p.TotalKWh += kwh
}

// LoadProfile folds the hourly buckets in [start, end) into per-building
// hour-of-day totals, using the assembler's location for the hour. Buckets
// where a building is missing a sensor are skipped.
func (a *Assembler) LoadProfile(ctx context.Context, start, end time.Time) ([]*LoadProfile, error) {
	agg, c, err := a.aggregator()
	if err != nil {
		return nil, err
	}

	groups := c.Groups()
	out := make([]*LoadProfile, len(groups))
	v := &profileVisitor{loc: a.opts.Location, profiles: make(map[int]*LoadProfile, len(groups))}
	for i, g := range groups {
		out[i] = &LoadProfile{Group: g}
		v.profiles[g.ID] = out[i]
	}

	q := store.Query{Resolution: resolution.Hour, Start: start, End: end, HalfOpen: true}
	if _, err := agg.Run(ctx, q, v); err != nil && !errors.Is(err, aggregate.ErrNoData) {
		return nil, err
	}
	return out, nil
}

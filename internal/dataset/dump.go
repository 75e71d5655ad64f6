package dataset

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"
	"gopkg.in/guregu/null.v4"

	"energyweb/internal/aggregate"
	"energyweb/internal/catalog"
	"energyweb/internal/model"
	"energyweb/internal/resolution"
	"energyweb/internal/store"
)

// PointDump is the per-building point series behind the dynamic, static and
// data-access graphs. LastRecord and DesiredFirstRecord are epoch
// milliseconds; polling clients resume from LastRecord via DataURL.
type PointDump struct {
	NoResults          bool                  `json:"no_results"`
	SensorGroups       []catalog.Group       `json:"sensor_groups"`
	XYPairs            map[int][]model.Point `json:"sg_xy_pairs,omitempty"`
	DesiredFirstRecord int64                 `json:"desired_first_record,omitempty"`
	LastRecord         int64                 `json:"last_record,omitempty"`
	DataURL            string                `json:"data_url,omitempty"`
}

type dumpVisitor struct {
	pairs map[int][]model.Point
	last  time.Time
}

func (v *dumpVisitor) OnBucket(t time.Time) { v.last = t }

func (v *dumpVisitor) OnSensor(time.Time, aggregate.SensorSample) {}

func (v *dumpVisitor) OnBuilding(groupID int, t time.Time, y null.Float) {
	v.pairs[groupID] = append(v.pairs[groupID], model.NewPoint(t, model.KW(y)))
}

// PointDump collects every building's series over [start, end] at res. A
// zero end leaves the range open. An empty range yields NoResults, not an
// error.
func (a *Assembler) PointDump(ctx context.Context, start, end time.Time, res resolution.Resolution) (*PointDump, error) {
	agg, c, err := a.aggregator()
	if err != nil {
		return nil, err
	}

	groups := c.Groups()
	v := &dumpVisitor{pairs: make(map[int][]model.Point, len(groups))}
	for _, g := range groups {
		v.pairs[g.ID] = []model.Point{}
	}

	q := store.Query{Resolution: res, Start: start, End: end}
	_, err = agg.Run(ctx, q, v)
	if errors.Is(err, aggregate.ErrNoData) {
		return &PointDump{NoResults: true, SensorGroups: groups}, nil
	}
	if err != nil {
		return nil, err
	}

	return &PointDump{
		SensorGroups:       groups,
		XYPairs:            v.pairs,
		DesiredFirstRecord: start.UnixMilli(),
		LastRecord:         v.last.UnixMilli(),
	}, nil
}

// DynamicGraph serves the self-refreshing graph: second*10 buckets from the
// requested start, but never further back than the dynamic window, up to the
// newest row.
func (a *Assembler) DynamicGraph(ctx context.Context, requested time.Time) (*PointDump, error) {
	start := requested
	if floor := a.opts.Now().Add(-a.opts.DynamicWindow); start.Before(floor) {
		start = floor
	}
	// Bucket keys are whole seconds.
	start = start.Truncate(time.Second)

	d, err := a.PointDump(ctx, start, time.Time{}, a.opts.DynamicResolution)
	if err != nil {
		return nil, err
	}
	if !d.NoResults {
		d.DataURL = a.DynamicURL(d.LastRecord)
	} else {
		a.log.WithFields(logrus.Fields{"start": start}).Debug("Dynamic graph has no new data")
	}
	return d, nil
}

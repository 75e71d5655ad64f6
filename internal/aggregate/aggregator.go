// Package aggregate merges the sorted graph cursor into per-bucket building
// and sensor values, and integrates those values into energy totals.
//
// A building's value for a bucket is the sum of its sensors' averaged watts.
// When any member sensor has no row for the bucket the building value is
// missing (null), not a partial sum.
package aggregate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"gopkg.in/guregu/null.v4"

	"energyweb/internal/catalog"
	"energyweb/internal/model"
	"energyweb/internal/resolution"
	"energyweb/internal/store"
)

var (
	// ErrNoData means the cursor produced no rows for the window.
	ErrNoData = errors.New("no data")
	// ErrUnsupportedResolution is resolution.ErrUnsupportedResolution, so
	// either package's sentinel matches with errors.Is.
	ErrUnsupportedResolution = resolution.ErrUnsupportedResolution
)

// Source opens a graph cursor. Each call must return an independent cursor.
type Source interface {
	GraphRows(ctx context.Context, q store.Query) (store.Rows, error)
}

// SensorSample is what a visitor sees for one sensor in one bucket: the
// sensor's own averaged watts and the building's running sum after it.
type SensorSample struct {
	SensorID int
	GroupID  int
	Own      null.Float
	Running  null.Float
}

// Visitor receives the merge output. For each bucket OnBucket is called once,
// then for each building (ascending id) OnSensor for each member sensor
// (ascending id) followed by OnBuilding with the building total.
type Visitor interface {
	OnBucket(t time.Time)
	OnSensor(t time.Time, s SensorSample)
	OnBuilding(groupID int, t time.Time, v null.Float)
}

// PassObserver is told about every completed aggregation pass.
type PassObserver interface {
	ObservePass(res resolution.Resolution, rows int, noData bool)
}

// Stats describes one pass.
type Stats struct {
	Rows    int
	Buckets int
	// Stale counts rows dropped because no catalog sensor could claim them.
	Stale int
}

type Aggregator struct {
	catalog  *catalog.Catalog
	src      Source
	log      logrus.FieldLogger
	observer PassObserver
}

func New(c *catalog.Catalog, src Source, log logrus.FieldLogger) *Aggregator {
	return &Aggregator{catalog: c, src: src, log: log}
}

func (a *Aggregator) SetObserver(o PassObserver) {
	a.observer = o
}

func (a *Aggregator) Catalog() *catalog.Catalog {
	return a.catalog
}

// Run drives v over the rows selected by q. It returns ErrNoData when the
// cursor is empty. If the cursor fails part way the error is returned and
// whatever v collected must be discarded.
func (a *Aggregator) Run(ctx context.Context, q store.Query, v Visitor) (Stats, error) {
	var stats Stats

	width, err := resolution.Width(q.Resolution)
	if err != nil {
		return stats, err
	}

	rows, err := a.src.GraphRows(ctx, q)
	if err != nil {
		return stats, fmt.Errorf("open graph cursor: %w", err)
	}
	defer rows.Close()

	cur := NewCursor(rows)
	log := a.log.WithFields(logrus.Fields{
		"resolution": q.Resolution,
		"start":      q.Start,
		"end":        q.End,
	})

	first, ok := cur.Peek()
	if !ok {
		if err := cur.Err(); err != nil {
			return stats, fmt.Errorf("read graph cursor: %w", err)
		}
		log.Debug("No rows in range")
		a.observe(q.Resolution, 0, true)
		return stats, ErrNoData
	}

	groups := a.catalog.Groups()
	per := first.Bucket

	for !cur.Exhausted() {
		if err := ctx.Err(); err != nil {
			return stats, err
		}

		v.OnBucket(per)
		stats.Buckets++

		for _, g := range groups {
			y := null.FloatFrom(0)
			for _, s := range g.Sensors {
				own := null.Float{}
				stats.Stale += a.skipUnknown(cur, per, log)
				row, ok := cur.Peek()
				if ok && row.SensorID == s.ID && !row.Bucket.After(per) {
					own = null.FloatFrom(row.Watts)
					if y.Valid {
						y.Float64 += row.Watts
					}
					cur.Advance()
				} else {
					y = null.Float{}
				}
				v.OnSensor(per, SensorSample{SensorID: s.ID, GroupID: g.ID, Own: own, Running: y})
			}
			v.OnBuilding(g.ID, per, y)
		}

		// Unknown sensors after the last group, or rows a mis-sorted cursor
		// left behind, can never be matched later.
		for {
			row, ok := cur.Peek()
			if !ok || row.Bucket.After(per) {
				break
			}
			dropRow(log, row)
			cur.Advance()
			stats.Stale++
		}

		per = per.Add(width)
	}

	stats.Rows = cur.Consumed()
	if err := cur.Err(); err != nil {
		return stats, fmt.Errorf("read graph cursor: %w", err)
	}

	log.WithFields(logrus.Fields{
		"rows":    stats.Rows,
		"buckets": stats.Buckets,
		"stale":   stats.Stale,
	}).Debug("Aggregation pass complete")
	a.observe(q.Resolution, stats.Rows, false)
	return stats, nil
}

// skipUnknown advances past rows at or before per whose sensor is not in the
// catalog, such as a sensor provisioned since the last catalog reload.
func (a *Aggregator) skipUnknown(cur *Cursor, per time.Time, log logrus.FieldLogger) int {
	n := 0
	for {
		row, ok := cur.Peek()
		if !ok || row.Bucket.After(per) {
			return n
		}
		if _, known := a.catalog.Sensor(row.SensorID); known {
			return n
		}
		dropRow(log, row)
		cur.Advance()
		n++
	}
}

func dropRow(log logrus.FieldLogger, row model.Row) {
	log.WithFields(logrus.Fields{
		"sensor": row.SensorID,
		"bucket": row.Bucket,
	}).Debug("Dropping unmatched row")
}

func (a *Aggregator) observe(res resolution.Resolution, rows int, noData bool) {
	if a.observer != nil {
		a.observer.ObservePass(res, rows, noData)
	}
}

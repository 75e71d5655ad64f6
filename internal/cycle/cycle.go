// Package cycle computes comparison windows (this day, yesterday, a week ago
// and so on) and lays every window's buckets onto the current window's time
// axis so they can be drawn on top of each other.
package cycle

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"gopkg.in/guregu/null.v4"

	"energyweb/internal/aggregate"
	"energyweb/internal/catalog"
	"energyweb/internal/model"
	"energyweb/internal/resolution"
	"energyweb/internal/store"
)

// Window is one comparison cycle. Index 0 is the current cycle.
type Window struct {
	Index  int
	Offset time.Duration
	Start  time.Time
	End    time.Time
	Bucket resolution.Resolution

	base time.Duration // offset of cycle 0
}

// Rebase moves a bucket time of this cycle onto the axis of cycle 0.
func (w Window) Rebase(t time.Time) time.Time {
	if w.Index == 0 {
		return t
	}
	return t.Add(w.Offset - w.base)
}

// Query selects the window's rows at the detail bucket resolution.
func (w Window) Query() store.Query {
	return store.Query{Resolution: w.Bucket, Start: w.Start, End: w.End}
}

// Windows returns the cycles of a detail view anchored at anchor. Each window
// starts offset before the anchor and lasts one period of the view.
func Windows(view resolution.Resolution, anchor time.Time) ([]Window, error) {
	offsets, err := resolution.CycleOffsets(view)
	if err != nil {
		return nil, err
	}
	bucket, err := resolution.DetailBucket(view)
	if err != nil {
		return nil, err
	}
	span, err := resolution.Span(view)
	if err != nil {
		return nil, err
	}

	windows := make([]Window, len(offsets))
	for i, off := range offsets {
		start := anchor.Add(-off)
		windows[i] = Window{
			Index:  i,
			Offset: off,
			Start:  start,
			End:    start.Add(span),
			Bucket: bucket,
			base:   offsets[0],
		}
	}
	return windows, nil
}

// Series is one cycle of a building's detail graph, already rebased. Values
// are kilowatts; Sensors holds each member sensor's own contribution.
type Series struct {
	Index   int                   `json:"-"`
	Total   []model.Point         `json:"total"`
	Sensors map[int][]model.Point `json:"sensors"`
}

type seriesVisitor struct {
	window  Window
	groupID int
	series  *Series
}

func (v *seriesVisitor) OnBucket(time.Time) {}

func (v *seriesVisitor) OnSensor(t time.Time, s aggregate.SensorSample) {
	if s.GroupID != v.groupID {
		return
	}
	v.series.Sensors[s.SensorID] = append(v.series.Sensors[s.SensorID],
		model.NewPoint(v.window.Rebase(t), model.KW(s.Own)))
}

func (v *seriesVisitor) OnBuilding(groupID int, t time.Time, y null.Float) {
	if groupID != v.groupID {
		return
	}
	v.series.Total = append(v.series.Total, model.NewPoint(v.window.Rebase(t), model.KW(y)))
}

// Detail runs one aggregation pass per cycle and returns the cycles that had
// data, in cycle order.
func Detail(ctx context.Context, agg *aggregate.Aggregator, group catalog.Group, windows []Window, log logrus.FieldLogger) ([]Series, error) {
	var out []Series
	for _, w := range windows {
		s := Series{Index: w.Index, Sensors: make(map[int][]model.Point, len(group.Sensors))}
		for _, sn := range group.Sensors {
			s.Sensors[sn.ID] = []model.Point{}
		}

		_, err := agg.Run(ctx, w.Query(), &seriesVisitor{window: w, groupID: group.ID, series: &s})
		if errors.Is(err, aggregate.ErrNoData) {
			log.WithFields(logrus.Fields{
				"building": group.Name,
				"cycle":    w.Index,
			}).Debug("Cycle has no data")
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("cycle %d: %w", w.Index, err)
		}
		out = append(out, s)
	}
	return out, nil
}

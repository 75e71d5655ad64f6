package dataset

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"

	"energyweb/internal/aggregate"
	"energyweb/internal/catalog"
	"energyweb/internal/cycle"
	"energyweb/internal/resolution"
	"energyweb/internal/store"
)

// DetailGraph is one building's multi-cycle overlay graph. GraphData is in
// cycle order and leaves out cycles without data.
type DetailGraph struct {
	NoResults          bool                  `json:"no_results"`
	GraphData          []cycle.Series        `json:"graph_data,omitempty"`
	Building           string                `json:"building"`
	BuildingColor      string                `json:"building_color"`
	Res                resolution.Resolution `json:"res"`
	Sensors            [][2]any              `json:"sensors"`
	DesiredFirstRecord int64                 `json:"desired_first_record"`
	LastRecord         int64                 `json:"last_record,omitempty"`
	DataURL            string                `json:"data_url,omitempty"`
}

func detailView(view resolution.Resolution) error {
	for _, v := range resolution.Views {
		if v == view {
			return nil
		}
	}
	return fmt.Errorf("%w: %q is not a detail view", resolution.ErrInvalidResolution, view)
}

// DetailGraph overlays the cycles of view for the named building, anchored at
// anchor.
func (a *Assembler) DetailGraph(ctx context.Context, building string, view resolution.Resolution, anchor time.Time) (*DetailGraph, error) {
	if err := detailView(view); err != nil {
		return nil, err
	}
	agg, c, err := a.aggregator()
	if err != nil {
		return nil, err
	}
	group, err := c.ByName(building)
	if err != nil {
		return nil, err
	}
	windows, err := cycle.Windows(view, anchor)
	if err != nil {
		return nil, err
	}

	series, err := cycle.Detail(ctx, agg, group, windows, a.log)
	if err != nil {
		return nil, err
	}

	g := &DetailGraph{
		Building:           group.Name,
		BuildingColor:      group.Color,
		Res:                view,
		Sensors:            make([][2]any, len(group.Sensors)),
		DesiredFirstRecord: anchor.UnixMilli(),
	}
	for i, s := range group.Sensors {
		g.Sensors[i] = [2]any{s.ID, s.Name}
	}

	if len(series) == 0 || len(series[0].Total) == 0 {
		g.NoResults = true
		return g, nil
	}
	g.GraphData = series
	total := series[0].Total
	g.LastRecord = total[len(total)-1].X
	g.DataURL = a.DetailGraphURL(group.Name, view, g.LastRecord)
	return g, nil
}

// CycleRow is one comparison cycle of the detail table: average power in kW
// and energy over the cycle in kWh.
type CycleRow struct {
	Avg        float64 `json:"avg"`
	Integrated float64 `json:"integrated"`
}

// DiagnosticRow is one sensor of the detail table: the latest minute and
// view-resolution averages in kW, and its energy over the current cycle in
// kWh.
type DiagnosticRow struct {
	Now        float64 `json:"now"`
	Interval   float64 `json:"interval"`
	Integrated float64 `json:"integrated"`
}

// DetailTable backs the table under the detail graph. Table keys are cycle
// indexes and sensor ids rendered as strings.
type DetailTable struct {
	Building        string                   `json:"building"`
	Res             resolution.Resolution    `json:"res"`
	CycleTable      map[string]CycleRow      `json:"cycleTable"`
	DiagnosticTable map[string]DiagnosticRow `json:"diagnosticTable"`
	CycleRow        []string                 `json:"cycleRow"`
	DiagnosticRow   []string                 `json:"diagnosticRow"`
}

// DetailTable builds the cycle and diagnostic tables for the named building.
func (a *Assembler) DetailTable(ctx context.Context, building string, view resolution.Resolution, anchor time.Time) (*DetailTable, error) {
	if err := detailView(view); err != nil {
		return nil, err
	}
	agg, c, err := a.aggregator()
	if err != nil {
		return nil, err
	}
	group, err := c.ByName(building)
	if err != nil {
		return nil, err
	}
	windows, err := cycle.Windows(view, anchor)
	if err != nil {
		return nil, err
	}
	lags, err := resolution.AverageLags(view)
	if err != nil {
		return nil, err
	}

	now := a.opts.Now()
	t := &DetailTable{
		Building:        group.Name,
		Res:             view,
		CycleTable:      make(map[string]CycleRow, len(windows)),
		DiagnosticTable: make(map[string]DiagnosticRow, len(group.Sensors)),
		CycleRow:        []string{"avg", "integrated"},
		DiagnosticRow:   []string{"now", "interval", "integrated"},
	}

	// Latest averages per cycle, lagging "now" by whole periods.
	cycleAvgs := make([]map[int]float64, len(lags))
	for i, lag := range lags {
		cycleAvgs[i], err = a.latestAverages(ctx, c, view, now.Add(-lag))
		if err != nil {
			return nil, err
		}
	}
	minuteAvgs, err := a.latestAverages(ctx, c, resolution.Minute, now)
	if err != nil {
		return nil, err
	}

	for i, w := range windows {
		var row CycleRow
		if i < len(cycleAvgs) {
			for _, s := range group.Sensors {
				row.Avg += cycleAvgs[i][s.ID]
			}
			row.Avg /= 1000
		}
		energy, err := a.integrate(ctx, agg, w, false)
		if err != nil {
			return nil, err
		}
		row.Integrated = energy[group.ID] / 1000
		t.CycleTable[strconv.Itoa(w.Index)] = row
	}

	perSensor, err := a.integrate(ctx, agg, windows[0], true)
	if err != nil {
		return nil, err
	}
	for _, s := range group.Sensors {
		t.DiagnosticTable[strconv.Itoa(s.ID)] = DiagnosticRow{
			Now:        minuteAvgs[s.ID] / 1000,
			Interval:   cycleAvgs[0][s.ID] / 1000,
			Integrated: perSensor[s.ID] / 1000,
		}
	}
	return t, nil
}

// integrate returns watt-hours over one cycle window. A window without data
// integrates to an empty map, so every lookup reads zero.
func (a *Assembler) integrate(ctx context.Context, agg *aggregate.Aggregator, w cycle.Window, splitBySensor bool) (map[int]float64, error) {
	out, err := agg.Integrate(ctx, w.Start, w.End, w.Bucket, splitBySensor)
	if errors.Is(err, aggregate.ErrNoData) {
		a.log.WithFields(logrus.Fields{
			"cycle":      w.Index,
			"resolution": w.Bucket,
		}).Debug("Nothing to integrate")
		return map[int]float64{}, nil
	}
	return out, err
}

// LatestAverages returns, per sensor, the average watts of the newest bucket
// of res within [at - span(res), at]. Sensors without a bucket read 0.
func (a *Assembler) LatestAverages(ctx context.Context, res resolution.Resolution, at time.Time) (map[int]float64, error) {
	c := a.catalogs.Current()
	if c == nil {
		return nil, ErrCatalogNotLoaded
	}
	return a.latestAverages(ctx, c, res, at)
}

func (a *Assembler) latestAverages(ctx context.Context, c *catalog.Catalog, res resolution.Resolution, at time.Time) (map[int]float64, error) {
	span, err := resolution.Span(res)
	if err != nil {
		return nil, err
	}

	out := make(map[int]float64, len(c.SensorIDs()))
	for _, id := range c.SensorIDs() {
		out[id] = 0
	}

	rows, err := a.src.GraphRows(ctx, store.Query{Resolution: res, Start: at.Add(-span), End: at})
	if err != nil {
		return nil, fmt.Errorf("open averages cursor: %w", err)
	}
	defer rows.Close()

	// Rows come in bucket order, so the last one seen per sensor is the newest.
	for rows.Next() {
		r := rows.Row()
		if _, ok := out[r.SensorID]; ok {
			out[r.SensorID] = r.Watts
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read averages cursor: %w", err)
	}
	return out, nil
}

// StatisticsTable is the site-wide energy table: latest minute, week and
// month averages per sensor in kW.
type StatisticsTable struct {
	NoResults     bool            `json:"no_results"`
	MinAverages   map[int]float64 `json:"min_averages"`
	WeekAverages  map[int]float64 `json:"week_averages"`
	MonthAverages map[int]float64 `json:"month_averages"`
	SensorGroups  []catalog.Group `json:"sensor_groups"`
	DataURL       string          `json:"data_url"`
}

func (a *Assembler) StatisticsTable(ctx context.Context) (*StatisticsTable, error) {
	c := a.catalogs.Current()
	if c == nil {
		return nil, ErrCatalogNotLoaded
	}
	now := a.opts.Now()

	kw := func(res resolution.Resolution) (map[int]float64, error) {
		avgs, err := a.latestAverages(ctx, c, res, now)
		if err != nil {
			return nil, fmt.Errorf("%s averages: %w", res, err)
		}
		for id, w := range avgs {
			avgs[id] = w / 1000
		}
		return avgs, nil
	}

	t := &StatisticsTable{SensorGroups: c.Groups(), DataURL: a.StatisticsURL()}
	var err error
	if t.MinAverages, err = kw(resolution.Minute); err != nil {
		return nil, err
	}
	if t.WeekAverages, err = kw(resolution.Week); err != nil {
		return nil, err
	}
	if t.MonthAverages, err = kw(resolution.Month); err != nil {
		return nil, err
	}
	return t, nil
}

package dataset

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"time"

	"gopkg.in/guregu/null.v4"

	"energyweb/internal/aggregate"
	"energyweb/internal/model"
	"energyweb/internal/resolution"
	"energyweb/internal/store"
)

// CSVTimeFormat is the timestamp layout of the first CSV column.
const CSVTimeFormat = "Mon 02 Jan 2006 15:04:05"

// Missing is written for a building without a value in a bucket.
const Missing = "None"

type csvVisitor struct {
	loc  *time.Location
	rows [][]string
}

func (v *csvVisitor) OnBucket(t time.Time) {
	v.rows = append(v.rows, []string{t.In(v.loc).Format(CSVTimeFormat)})
}

func (v *csvVisitor) OnSensor(time.Time, aggregate.SensorSample) {}

func (v *csvVisitor) OnBuilding(_ int, _ time.Time, y null.Float) {
	cell := Missing
	if kw := model.KW(y); kw.Valid {
		cell = strconv.FormatFloat(kw.Float64, 'f', -1, 64)
	}
	last := len(v.rows) - 1
	v.rows[last] = append(v.rows[last], cell)
}

// WriteCSV writes one row per bucket over [start, end] with one kW column per
// building in catalog order. Nothing is written if the pass fails. An empty
// range writes only the header.
func (a *Assembler) WriteCSV(ctx context.Context, w io.Writer, start, end time.Time, res resolution.Resolution) error {
	agg, c, err := a.aggregator()
	if err != nil {
		return err
	}

	header := []string{"Time"}
	for _, g := range c.Groups() {
		header = append(header, g.Name)
	}

	v := &csvVisitor{loc: a.opts.Location}
	_, err = agg.Run(ctx, store.Query{Resolution: res, Start: start, End: end}, v)
	if err != nil && !errors.Is(err, aggregate.ErrNoData) {
		return err
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	if err := cw.WriteAll(v.rows); err != nil {
		return fmt.Errorf("write csv: %w", err)
	}
	return nil
}

// CSVFilename names a download of [start, end].
func CSVFilename(start, end time.Time) string {
	return fmt.Sprintf("energyweb_%d_to_%d.csv", start.Unix(), end.Unix())
}

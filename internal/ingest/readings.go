package ingest

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"

	"energyweb/internal/model"
)

// ReadingsParser parses raw monitor readings. Columns may come in any order.
//
// Expected format:
//
//	sensor_id,reading_time,awatthr,bwatthr,cwatthr
//	3,2011-03-01T00:00:05Z,1204,1187,0
//
// bwatthr and cwatthr are optional for single-phase monitors. Rows that do
// not parse are skipped and reported in the Result.
type ReadingsParser struct{}

func (p *ReadingsParser) Parse(r io.Reader) ([]model.RawReading, Result, error) {
	var res Result

	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, res, nil
	}
	if err != nil {
		return nil, res, fmt.Errorf("reading CSV header: %w", err)
	}
	index, err := headerIndex(header, "sensor_id", "reading_time", "awatthr")
	if err != nil {
		return nil, res, err
	}

	var readings []model.RawReading
	lineNum := 1
	for {
		lineNum++
		fields, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		res.Total++
		if err != nil {
			res.skip(lineNum, err)
			continue
		}

		reading, err := parseReading(record{fields: fields, index: index})
		if err != nil {
			res.skip(lineNum, err)
			continue
		}
		readings = append(readings, reading)
	}
	return readings, res, nil
}

func parseReading(rec record) (model.RawReading, error) {
	id, err := strconv.Atoi(rec.get("sensor_id"))
	if err != nil {
		return model.RawReading{}, fmt.Errorf("parsing sensor_id %q", rec.get("sensor_id"))
	}
	ts, err := parseTimestamp(rec.get("reading_time"))
	if err != nil {
		return model.RawReading{}, err
	}

	phases := make([]int64, 3)
	for i, col := range []string{"awatthr", "bwatthr", "cwatthr"} {
		v := rec.get(col)
		if v == "" && i > 0 {
			continue
		}
		phases[i], err = strconv.ParseInt(v, 10, 64)
		if err != nil {
			return model.RawReading{}, fmt.Errorf("parsing %s %q", col, v)
		}
	}

	return model.RawReading{
		SensorID:    id,
		ReadingTime: ts,
		AWattHr:     phases[0],
		BWattHr:     phases[1],
		CWattHr:     phases[2],
	}, nil
}

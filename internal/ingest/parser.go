// Package ingest reads the CSV files a store is seeded from: the sensor
// provisioning file and exported raw monitor readings.
package ingest

import (
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"time"

	"energyweb/internal/model"
)

// Parser reads raw readings from a source.
type Parser interface {
	Parse(r io.Reader) ([]model.RawReading, Result, error)
}

// Result summarises one parsed file. Errors holds one message per skipped
// row.
type Result struct {
	Total   int
	Skipped int
	Errors  []string
}

func (r *Result) skip(line int, err error) {
	r.Skipped++
	r.Errors = append(r.Errors, fmt.Sprintf("line %d: %v", line, err))
}

// headerIndex maps lower-cased column names to their position and checks
// the required ones are present.
func headerIndex(header []string, required ...string) (map[string]int, error) {
	idx := make(map[string]int, len(header))
	for i, h := range header {
		idx[strings.ToLower(strings.TrimSpace(h))] = i
	}
	for _, col := range required {
		if _, ok := idx[col]; !ok {
			return nil, fmt.Errorf("missing required column %q", col)
		}
	}
	return idx, nil
}

type record struct {
	fields []string
	index  map[string]int
}

func (r record) get(col string) string {
	if i, ok := r.index[col]; ok && i < len(r.fields) {
		return strings.TrimSpace(r.fields[i])
	}
	return ""
}

var timestampFormats = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
}

// parseTimestamp accepts RFC 3339, SQL-style UTC timestamps and epoch
// seconds with an optional fraction.
func parseTimestamp(s string) (time.Time, error) {
	for _, f := range timestampFormats {
		if t, err := time.Parse(f, s); err == nil {
			return t.UTC(), nil
		}
	}
	secs, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing timestamp %q", s)
	}
	whole, frac := math.Modf(secs)
	return time.Unix(int64(whole), int64(frac*float64(time.Second))).UTC(), nil
}

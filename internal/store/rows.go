package store

import (
	"time"

	"energyweb/internal/model"
	"energyweb/internal/resolution"
)

// Query selects rollup rows of one resolution. Start is inclusive. A zero End
// means open-ended; otherwise End is inclusive unless HalfOpen is set.
type Query struct {
	Resolution resolution.Resolution
	Start      time.Time
	End        time.Time
	HalfOpen   bool
}

// Contains reports whether bucket t falls in the query window.
func (q Query) Contains(t time.Time) bool {
	if t.Before(q.Start) {
		return false
	}
	if q.End.IsZero() {
		return true
	}
	if q.HalfOpen {
		return t.Before(q.End)
	}
	return !t.After(q.End)
}

// Rows is a forward-only cursor over graph rows sorted by
// (bucket, sensor group id, sensor id). A cursor belongs to one caller.
type Rows interface {
	Next() bool
	Row() model.Row
	Err() error
	Close() error
}

// SliceRows serves rows from memory.
type SliceRows struct {
	rows []model.Row
	pos  int
}

func NewSliceRows(rows []model.Row) *SliceRows {
	return &SliceRows{rows: rows, pos: -1}
}

func (r *SliceRows) Next() bool {
	if r.pos+1 >= len(r.rows) {
		r.pos = len(r.rows)
		return false
	}
	r.pos++
	return true
}

func (r *SliceRows) Row() model.Row {
	return r.rows[r.pos]
}

func (r *SliceRows) Err() error   { return nil }
func (r *SliceRows) Close() error { return nil }

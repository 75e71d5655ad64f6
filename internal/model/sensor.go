package model

import (
	"time"

	"energyweb/internal/resolution"
)

type Scope string

const (
	ScopeResidential Scope = "residential"
	ScopeAcademic    Scope = "academic"
)

// Scopes lists every scope a sensor group may be tagged with.
var Scopes = []Scope{ScopeResidential, ScopeAcademic}

// Valid reports whether s is a known scope.
func (s Scope) Valid() bool {
	for _, v := range Scopes {
		if s == v {
			return true
		}
	}
	return false
}

// SensorGroup is a building: a named set of sensors whose readings are summed.
type SensorGroup struct {
	ID    int
	Name  string
	Color string // hex without '#', rendered on graphs
	Scope Scope
}

// Sensor is one power monitor. Every sensor belongs to exactly one group.
type Sensor struct {
	ID         int
	Name       string
	IP         string
	Port       int
	GroupID    int
	Factor     float64
	ThreePhase bool
}

// RawReading is one sample as reported by a monitor. Watt-hour counters are
// per phase; only the sum matters for power averages.
type RawReading struct {
	SensorID    int
	ReadingTime time.Time
	AWattHr     int64
	BWattHr     int64
	CWattHr     int64
}

// Watts returns the summed phase value used for averaging.
func (r RawReading) Watts() float64 {
	return float64(r.AWattHr + r.BWattHr + r.CWattHr)
}

// PowerAverage is one rollup row: the average power of a sensor over one
// bucket of one resolution. There is exactly one row per
// (TruncReadingTime, SensorID, AverageType).
type PowerAverage struct {
	FirstReadingTime time.Time
	LastReadingTime  time.Time
	TruncReadingTime time.Time
	SensorID         int
	AverageType      resolution.Resolution
	NumPoints        int
	Watts            float64
}

// Row is one graph-query result: the averaged watts of a sensor in a bucket.
type Row struct {
	Watts    float64
	SensorID int
	Bucket   time.Time
}

type TimeRange struct {
	Start time.Time
	End   time.Time
}

// Duration returns End - Start.
func (tr TimeRange) Duration() time.Duration {
	return tr.End.Sub(tr.Start)
}

package aggregate

import (
	"time"

	"gopkg.in/guregu/null.v4"
)

// Policy is a Visitor that accumulates one running total per key.
type Policy interface {
	Visitor
	Totals() map[int]float64
}

// BySensor sums each sensor's own bucket values. Missing buckets add nothing.
type BySensor struct {
	totals map[int]float64
}

// NewBySensor starts every listed sensor at zero.
func NewBySensor(sensorIDs []int) *BySensor {
	p := &BySensor{totals: make(map[int]float64, len(sensorIDs))}
	for _, id := range sensorIDs {
		p.totals[id] = 0
	}
	return p
}

func (p *BySensor) OnBucket(time.Time) {}

func (p *BySensor) OnSensor(_ time.Time, s SensorSample) {
	if s.Own.Valid {
		p.totals[s.SensorID] += s.Own.Float64
	}
}

func (p *BySensor) OnBuilding(int, time.Time, null.Float) {}

func (p *BySensor) Totals() map[int]float64 { return p.totals }

// ByBuilding sums each building's bucket values. Missing buckets add nothing.
type ByBuilding struct {
	totals map[int]float64
}

// NewByBuilding starts every listed building at zero.
func NewByBuilding(groupIDs []int) *ByBuilding {
	p := &ByBuilding{totals: make(map[int]float64, len(groupIDs))}
	for _, id := range groupIDs {
		p.totals[id] = 0
	}
	return p
}

func (p *ByBuilding) OnBucket(time.Time) {}

func (p *ByBuilding) OnSensor(time.Time, SensorSample) {}

func (p *ByBuilding) OnBuilding(groupID int, _ time.Time, v null.Float) {
	if v.Valid {
		p.totals[groupID] += v.Float64
	}
}

func (p *ByBuilding) Totals() map[int]float64 { return p.totals }

var (
	_ Policy = (*BySensor)(nil)
	_ Policy = (*ByBuilding)(nil)
)

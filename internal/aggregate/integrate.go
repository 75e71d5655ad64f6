package aggregate

import (
	"context"
	"fmt"
	"time"

	"energyweb/internal/resolution"
	"energyweb/internal/store"
)

// integrable lists the resolutions whose buckets can be turned into energy.
var integrable = map[resolution.Resolution]bool{
	resolution.Minute10: true,
	resolution.Hour:     true,
	resolution.Day:      true,
}

// Factor converts a sum of bucket-average watts into watt-hours: the bucket
// width in hours (1/6 for minute*10, 1 for hour, 24 for day).
func Factor(res resolution.Resolution) (float64, error) {
	if !integrable[res] {
		return 0, fmt.Errorf("%w: cannot integrate %q", ErrUnsupportedResolution, res)
	}
	w, err := resolution.Width(res)
	if err != nil {
		return 0, err
	}
	return w.Seconds() / time.Hour.Seconds(), nil
}

// Integrate returns watt-hours over [start, end) per sensor id when
// splitBySensor is set, otherwise per building id. Every catalog key is
// present, starting at zero. Buckets with missing values contribute nothing.
func (a *Aggregator) Integrate(ctx context.Context, start, end time.Time, res resolution.Resolution, splitBySensor bool) (map[int]float64, error) {
	factor, err := Factor(res)
	if err != nil {
		return nil, err
	}

	var p Policy
	if splitBySensor {
		p = NewBySensor(a.catalog.SensorIDs())
	} else {
		groups := a.catalog.Groups()
		ids := make([]int, len(groups))
		for i, g := range groups {
			ids[i] = g.ID
		}
		p = NewByBuilding(ids)
	}

	q := store.Query{Resolution: res, Start: start, End: end, HalfOpen: true}
	if _, err := a.Run(ctx, q, p); err != nil {
		return nil, err
	}

	totals := p.Totals()
	for k, v := range totals {
		totals[k] = v * factor
	}
	return totals, nil
}

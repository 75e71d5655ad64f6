// Package resolution holds the static table of graph resolutions: bucket
// widths, truncation rules, the "auto" selection policy and the comparison
// cycle tables used by the detail views.
//
// All times are handled in UTC.
package resolution

import (
	"errors"
	"fmt"
	"time"

	"github.com/jinzhu/now"
)

type Resolution string

const (
	Year     Resolution = "year"
	Month    Resolution = "month"
	Week     Resolution = "week"
	Day      Resolution = "day"
	Hour     Resolution = "hour"
	Minute10 Resolution = "minute*10"
	Minute   Resolution = "minute"
	Second10 Resolution = "second*10"
)

// Auto is the request token asking for a resolution picked from the range.
const Auto = "auto"

var (
	// ErrInvalidResolution is returned for tags outside the table.
	ErrInvalidResolution = errors.New("invalid resolution")
	// ErrUnsupportedResolution is returned when an operation needs a bucket
	// width the resolution does not have ("month").
	ErrUnsupportedResolution = errors.New("unsupported resolution")
)

const day = 24 * time.Hour

// All lists every resolution from coarsest to finest.
var All = []Resolution{Year, Month, Week, Day, Hour, Minute10, Minute, Second10}

// AverageTypes are the resolutions the rollup job persists.
var AverageTypes = []Resolution{Month, Week, Day, Hour, Minute10, Minute, Second10}

// Views are the time intervals the detail page can show.
var Views = []Resolution{Day, Week, Month, Year}

var widths = map[Resolution]time.Duration{
	Year:     365 * day,
	Week:     7 * day,
	Day:      day,
	Hour:     time.Hour,
	Minute10: 10 * time.Minute,
	Minute:   time.Minute,
	Second10: 10 * time.Second,
}

// month is only ever a period length, never a bucket width.
const monthSpan = 30 * day

var descriptions = map[Resolution]string{
	Year:     "1 year",
	Month:    "1 month",
	Week:     "1 week",
	Day:      "1 day",
	Hour:     "1 hour",
	Minute10: "10 minutes",
	Minute:   "1 minute",
	Second10: "10 seconds",
}

var weekStart = &now.Config{WeekStartDay: time.Monday}

// Parse converts a tag into a Resolution.
func Parse(s string) (Resolution, error) {
	r := Resolution(s)
	if _, ok := descriptions[r]; !ok {
		return "", fmt.Errorf("%w: %q", ErrInvalidResolution, s)
	}
	return r, nil
}

func (r Resolution) String() string { return string(r) }

// Description returns the human label, e.g. "10 minutes".
func (r Resolution) Description() string { return descriptions[r] }

// rank orders resolutions from coarsest (0) to finest.
func (r Resolution) rank() int {
	for i, v := range All {
		if v == r {
			return i
		}
	}
	return -1
}

// Finer reports whether r has narrower buckets than o.
func (r Resolution) Finer(o Resolution) bool {
	return r.rank() > o.rank()
}

// Width returns the bucket width. Month has none.
func Width(r Resolution) (time.Duration, error) {
	if w, ok := widths[r]; ok {
		return w, nil
	}
	if r == Month {
		return 0, fmt.Errorf("%w: %q has no bucket width", ErrUnsupportedResolution, r)
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidResolution, r)
}

// Span returns the length of one period of r. Unlike Width it is defined for
// month (30 days), which is what the cycle and latest-average tables use.
func Span(r Resolution) (time.Duration, error) {
	if r == Month {
		return monthSpan, nil
	}
	return Width(r)
}

// Truncate returns the start of the bucket of r containing t.
func Truncate(r Resolution, t time.Time) (time.Time, error) {
	t = t.UTC()
	n := weekStart.With(t)
	switch r {
	case Second10:
		return t.Truncate(10 * time.Second), nil
	case Minute:
		return n.BeginningOfMinute(), nil
	case Minute10:
		return t.Truncate(10 * time.Minute), nil
	case Hour:
		return n.BeginningOfHour(), nil
	case Day:
		return n.BeginningOfDay(), nil
	case Week:
		return n.BeginningOfWeek(), nil
	case Month:
		return n.BeginningOfMonth(), nil
	case Year:
		return n.BeginningOfYear(), nil
	}
	return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidResolution, r)
}

// AutoSelect picks the resolution for a range. Thresholds compare whole
// elapsed days, then the seconds left over, and must not be tuned.
func AutoSelect(d time.Duration) Resolution {
	days := int64(d / day)
	seconds := d % day
	switch {
	case days > 7*52*3:
		return Week
	case days > 7*8:
		return Day
	case days > 6:
		return Hour
	case days > 0:
		return Minute10
	case seconds > 3*time.Hour:
		return Minute
	default:
		return Second10
	}
}

// EstimatedPoints is the largest number of buckets a range can produce.
func EstimatedPoints(d time.Duration, r Resolution) (float64, error) {
	w, err := Width(r)
	if err != nil {
		return 0, err
	}
	return d.Seconds() / w.Seconds(), nil
}

// DetailBucket maps a detail view to the resolution actually queried.
func DetailBucket(view Resolution) (Resolution, error) {
	switch view {
	case Day:
		return Minute10, nil
	case Week, Month:
		return Hour, nil
	case Year:
		return Day, nil
	}
	return "", fmt.Errorf("%w: %q is not a detail view", ErrInvalidResolution, view)
}

// CycleOffsets returns, per comparison cycle, how far before the anchor the
// cycle window starts. Index 0 is the current period.
func CycleOffsets(view Resolution) ([]time.Duration, error) {
	switch view {
	case Day:
		return []time.Duration{day, 2 * day, widths[Week], monthSpan, widths[Year]}, nil
	case Week:
		return []time.Duration{widths[Week], 2 * widths[Week], monthSpan, widths[Year]}, nil
	case Month:
		return []time.Duration{monthSpan, 2 * monthSpan, widths[Year]}, nil
	case Year:
		return []time.Duration{widths[Year], 2 * widths[Year]}, nil
	}
	return nil, fmt.Errorf("%w: %q has no cycles", ErrInvalidResolution, view)
}

// averageLagPeriods is the number of periods each cycle's latest average
// lags behind "now".
var averageLagPeriods = map[Resolution][]int{
	Second10: {0},
	Minute:   {0},
	Minute10: {0},
	Day:      {0, 1, 7, 30, 365},
	Week:     {0, 1, 4, 52},
	Month:    {0, 1, 12},
	Year:     {0, 1},
}

// AverageLags returns the look-back per cycle used for latest averages.
func AverageLags(r Resolution) ([]time.Duration, error) {
	periods, ok := averageLagPeriods[r]
	if !ok {
		return nil, fmt.Errorf("%w: %q has no average lags", ErrInvalidResolution, r)
	}
	span, err := Span(r)
	if err != nil {
		return nil, err
	}
	lags := make([]time.Duration, len(periods))
	for i, p := range periods {
		lags[i] = time.Duration(p) * span
	}
	return lags, nil
}

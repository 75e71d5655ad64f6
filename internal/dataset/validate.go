package dataset

import (
	"fmt"
	"strings"
	"time"

	"github.com/jinzhu/now"

	"energyweb/internal/resolution"
)

// Policy selects how strictly a requested range is checked.
type Policy int

const (
	// Static is the public custom graph: the point ceiling applies.
	Static Policy = iota
	// Unrestricted is the authenticated data-access graph.
	Unrestricted
)

// ValidationError reports a malformed or out-of-policy request.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return e.Field + ": " + e.Message
}

func invalid(field, format string, args ...any) error {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// Range is a validated graph request.
type Range struct {
	Start      time.Time
	End        time.Time
	Requested  string
	Resolution resolution.Resolution
}

// selectable are the resolutions a graph request may name besides "auto".
var selectable = []resolution.Resolution{
	resolution.Week, resolution.Day, resolution.Hour,
	resolution.Minute10, resolution.Minute, resolution.Second10,
}

// Selectable returns the resolutions a request may name, besides "auto".
func Selectable() []resolution.Resolution {
	return selectable
}

func selectableRes(s string) (resolution.Resolution, bool) {
	for _, r := range selectable {
		if string(r) == s {
			return r, true
		}
	}
	return "", false
}

// Validate checks a range request and resolves "auto". Under the Static
// policy a range whose estimated point count exceeds maxPoints is rejected.
func Validate(start, end time.Time, res string, policy Policy, maxPoints int) (Range, error) {
	if !start.Before(end) {
		return Range{}, invalid("", "Start and end times do not constitute a valid range.")
	}

	r := Range{Start: start, End: end, Requested: res}
	if res == resolution.Auto {
		r.Resolution = resolution.AutoSelect(end.Sub(start))
	} else {
		sel, ok := selectableRes(res)
		if !ok {
			return Range{}, invalid("res", "unknown resolution %q", res)
		}
		r.Resolution = sel
	}

	if policy == Static {
		n, err := resolution.EstimatedPoints(end.Sub(start), r.Resolution)
		if err != nil {
			return Range{}, err
		}
		if n > float64(maxPoints) {
			return Range{}, invalid("res", "Too many points in graph (resolution too fine).")
		}
	}
	return r, nil
}

var (
	formDateFormats = []string{"2006-1-2", "1/2/2006", "1/2/06"}
	formTimeFormats = []string{"15:04", "3:04 PM", "3PM"}
)

func formFormats() []string {
	var out []string
	for _, d := range formDateFormats {
		for _, t := range formTimeFormats {
			out = append(out, d+" "+t)
		}
	}
	return out
}

// ParseFormTime parses the split date and time fields of the graph form,
// e.g. "10/25/2006" and "2:30 pm". Lowercase and dotted meridiems are
// accepted.
func ParseFormTime(field, date, clock string, loc *time.Location) (time.Time, error) {
	date = strings.TrimSpace(date)
	clock = strings.TrimSpace(strings.ReplaceAll(strings.ToUpper(clock), ".", ""))
	if date == "" || clock == "" {
		return time.Time{}, invalid(field, "date and time are required")
	}

	// A zero reference keeps now.Parse from filling fields from the wall clock.
	cfg := &now.Config{TimeLocation: loc, TimeFormats: formFormats()}
	t, err := cfg.With(time.Date(1, 1, 1, 0, 0, 0, 0, loc)).Parse(date + " " + clock)
	if err != nil {
		return time.Time{}, invalid(field, "cannot parse %q %q", date, clock)
	}
	return t, nil
}

// ValidateForm parses the start_0/start_1/end_0/end_1/res form fields and
// validates the resulting range.
func ValidateForm(startDate, startClock, endDate, endClock, res string, loc *time.Location, policy Policy, maxPoints int) (Range, error) {
	start, err := ParseFormTime("start", startDate, startClock, loc)
	if err != nil {
		return Range{}, err
	}
	end, err := ParseFormTime("end", endDate, endClock, loc)
	if err != nil {
		return Range{}, err
	}
	return Validate(start, end, res, policy, maxPoints)
}

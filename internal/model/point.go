package model

import (
	"encoding/json"
	"time"

	"gopkg.in/guregu/null.v4"
)

// Point is one graph sample. It marshals as [x, y] with x in epoch
// milliseconds and y null when the value is missing.
type Point struct {
	X int64
	Y null.Float
}

func NewPoint(t time.Time, y null.Float) Point {
	return Point{X: t.UnixMilli(), Y: y}
}

func (p Point) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]any{p.X, p.Y})
}

func (p *Point) UnmarshalJSON(data []byte) error {
	var raw [2]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if err := json.Unmarshal(raw[0], &p.X); err != nil {
		return err
	}
	return json.Unmarshal(raw[1], &p.Y)
}

// KW converts watts to kilowatts, keeping a missing value missing.
func KW(w null.Float) null.Float {
	if !w.Valid {
		return w
	}
	return null.FloatFrom(w.Float64 / 1000)
}

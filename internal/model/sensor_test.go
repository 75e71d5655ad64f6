package model

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/guregu/null.v4"
)

func TestScope(t *testing.T) {
	assert.Equal(t, Scope("residential"), ScopeResidential)
	assert.True(t, ScopeAcademic.Valid())
	assert.False(t, Scope("industrial").Valid())
}

func TestRawReading_Watts(t *testing.T) {
	r := RawReading{
		SensorID:    3,
		ReadingTime: time.Date(2011, 3, 1, 12, 0, 0, 0, time.UTC),
		AWattHr:     120,
		BWattHr:     80,
		CWattHr:     0,
	}

	assert.InDelta(t, 200.0, r.Watts(), 0.001)
}

func TestTimeRange_Duration(t *testing.T) {
	start := time.Date(2011, 3, 1, 0, 0, 0, 0, time.UTC)
	tr := TimeRange{Start: start, End: start.Add(90 * time.Minute)}

	assert.Equal(t, 90*time.Minute, tr.Duration())
}

func TestPoint_JSON(t *testing.T) {
	ts := time.Date(2011, 3, 1, 0, 0, 0, 0, time.UTC)

	data, err := json.Marshal([]Point{
		NewPoint(ts, null.FloatFrom(1.5)),
		NewPoint(ts.Add(time.Second), null.Float{}),
	})
	require.NoError(t, err)
	assert.JSONEq(t, `[[1298937600000, 1.5], [1298937601000, null]]`, string(data))

	var back []Point
	require.NoError(t, json.Unmarshal(data, &back))
	require.Len(t, back, 2)
	assert.Equal(t, int64(1298937600000), back[0].X)
	assert.False(t, back[1].Y.Valid)
}

func TestKW(t *testing.T) {
	assert.Equal(t, null.FloatFrom(1.25), KW(null.FloatFrom(1250)))
	assert.False(t, KW(null.Float{}).Valid)
}

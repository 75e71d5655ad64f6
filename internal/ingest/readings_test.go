package ingest

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadingsParser_Parse(t *testing.T) {
	input := `sensor_id,reading_time,awatthr,bwatthr,cwatthr
3,2011-03-01T00:00:05Z,1204,1187,0
3,2011-03-01 00:00:15,1210,1190,2
4,1298937625.0,50,,`

	parser := &ReadingsParser{}
	readings, res, err := parser.Parse(strings.NewReader(input))

	require.NoError(t, err)
	require.Len(t, readings, 3)
	assert.Equal(t, 3, res.Total)
	assert.Zero(t, res.Skipped)

	assert.Equal(t, 3, readings[0].SensorID)
	assert.Equal(t, time.Date(2011, 3, 1, 0, 0, 5, 0, time.UTC), readings[0].ReadingTime)
	assert.Equal(t, int64(1204), readings[0].AWattHr)
	assert.Equal(t, int64(1187), readings[0].BWattHr)
	assert.InDelta(t, 2391.0, readings[0].Watts(), 0.001)

	assert.Equal(t, time.Date(2011, 3, 1, 0, 0, 15, 0, time.UTC), readings[1].ReadingTime)

	assert.Equal(t, 4, readings[2].SensorID)
	assert.Equal(t, time.Date(2011, 3, 1, 0, 0, 25, 0, time.UTC), readings[2].ReadingTime)
	assert.InDelta(t, 50.0, readings[2].Watts(), 0.001)
}

func TestReadingsParser_ColumnOrder(t *testing.T) {
	input := `Reading_Time, AWattHr, Sensor_ID
2011-03-01T00:00:05Z,100,7`

	parser := &ReadingsParser{}
	readings, _, err := parser.Parse(strings.NewReader(input))

	require.NoError(t, err)
	require.Len(t, readings, 1)
	assert.Equal(t, 7, readings[0].SensorID)
	assert.Equal(t, int64(100), readings[0].AWattHr)
}

func TestReadingsParser_SkipsBadRows(t *testing.T) {
	input := `sensor_id,reading_time,awatthr
3,2011-03-01T00:00:05Z,100
x,2011-03-01T00:00:15Z,100
3,yesterday,100
3,2011-03-01T00:00:25Z,unavailable
3,2011-03-01T00:00:35Z,120`

	parser := &ReadingsParser{}
	readings, res, err := parser.Parse(strings.NewReader(input))

	require.NoError(t, err)
	require.Len(t, readings, 2)
	assert.Equal(t, 5, res.Total)
	assert.Equal(t, 3, res.Skipped)
	require.Len(t, res.Errors, 3)
	assert.Contains(t, res.Errors[0], "line 3")
}

func TestReadingsParser_MissingColumn(t *testing.T) {
	input := `sensor_id,awatthr
3,100`

	parser := &ReadingsParser{}
	_, _, err := parser.Parse(strings.NewReader(input))

	require.Error(t, err)
	assert.Contains(t, err.Error(), "reading_time")
}

func TestReadingsParser_Empty(t *testing.T) {
	parser := &ReadingsParser{}
	readings, res, err := parser.Parse(strings.NewReader(""))

	require.NoError(t, err)
	assert.Empty(t, readings)
	assert.Zero(t, res.Total)
}

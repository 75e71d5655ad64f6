package dataset

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"energyweb/internal/resolution"
)

func TestLoadProfile(t *testing.T) {
	h1 := b0.Add(time.Hour)
	d2 := b0.Add(24 * time.Hour)
	s, c := fixture(t,
		avg(b0, 1, resolution.Hour, 1000),
		avg(b0, 2, resolution.Hour, 500),
		avg(b0, 3, resolution.Hour, 200),
		avg(h1, 1, resolution.Hour, 2000),
		avg(h1, 3, resolution.Hour, 100),
		avg(d2, 1, resolution.Hour, 1000),
		avg(d2, 2, resolution.Hour, 1000),
	)
	a := newAssembler(s, c, d2)

	profiles, err := a.LoadProfile(ctx, b0, b0.Add(48*time.Hour))
	require.NoError(t, err)
	require.Len(t, profiles, 2)

	dorm := profiles[0]
	assert.Equal(t, "Dorm A", dorm.Group.Name)
	assert.InDelta(t, 3.5, dorm.Hours[0].KWh, 1e-9)
	assert.Equal(t, 2, dorm.Hours[0].Buckets)
	assert.InDelta(t, 1.75, dorm.Hours[0].AvgKW(), 1e-9)
	assert.Zero(t, dorm.Hours[1].Buckets, "sensor 2 missing at 01:00")
	assert.InDelta(t, 3.5, dorm.TotalKWh, 1e-9)
	assert.Equal(t, 0, dorm.PeakHour())

	clark := profiles[1]
	assert.InDelta(t, 0.2, clark.Hours[0].KWh, 1e-9)
	assert.InDelta(t, 0.1, clark.Hours[1].KWh, 1e-9)
	assert.InDelta(t, 0.3, clark.TotalKWh, 1e-9)
}

func TestLoadProfile_Location(t *testing.T) {
	s, c := fixture(t, avg(b0, 1, resolution.Hour, 1000), avg(b0, 2, resolution.Hour, 0))
	a := New(c, s, quietLogger(), Options{Location: time.FixedZone("PST", -8*3600)})

	profiles, err := a.LoadProfile(ctx, b0, b0.Add(time.Hour))
	require.NoError(t, err)
	assert.InDelta(t, 1.0, profiles[0].Hours[16].KWh, 1e-9)
}

func TestLoadProfile_NoData(t *testing.T) {
	s, c := fixture(t)
	a := newAssembler(s, c, b0)

	profiles, err := a.LoadProfile(ctx, b0, b0.Add(time.Hour))
	require.NoError(t, err)
	require.Len(t, profiles, 2)
	assert.Zero(t, profiles[0].TotalKWh)
	assert.Equal(t, -1, profiles[0].PeakHour())
}

package main

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"energyweb/internal/config"
	"energyweb/internal/store"
)

const sensorsCSV = `sensor_group_id,sensor_group,color,scope,sensor_id,sensor
1,Dorm A,ff0000,residential,1,Main
1,Dorm A,ff0000,residential,2,Annex
2,Clark Hall,00ff00,academic,3,Main
`

const readingsCSV = `sensor_id,reading_time,awatthr
1,2011-03-01T00:00:05Z,100
2,2011-03-01T00:00:05Z,50
3,2011-03-01T00:00:05Z,40
1,2011-03-01T00:10:05Z,200
2,2011-03-01T00:10:05Z,60
3,2011-03-01T00:10:05Z,40
`

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func seededConfig(t *testing.T) config.Config {
	t.Helper()
	dir := t.TempDir()
	cfg := config.Default()
	cfg.Database.Driver = store.DriverMemory
	cfg.Seed.SensorsCSV = filepath.Join(dir, "sensors.csv")
	cfg.Seed.ReadingsCSV = filepath.Join(dir, "readings.csv")
	require.NoError(t, os.WriteFile(cfg.Seed.SensorsCSV, []byte(sensorsCSV), 0o644))
	require.NoError(t, os.WriteFile(cfg.Seed.ReadingsCSV, []byte(readingsCSV), 0o644))
	return cfg
}

func get(t *testing.T, h http.Handler, target string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func TestNewApp(t *testing.T) {
	a, err := newApp(context.Background(), seededConfig(t), quietLogger())
	require.NoError(t, err)
	defer a.Close()

	require.NotNil(t, a.loader.Current())
	assert.Len(t, a.loader.Current().Groups(), 2)

	rec := get(t, a.handler, "/graph/sensor_groups/residential")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"Dorm A"`)

	// Seeding rolls up the completed 00:00 bucket; 00:10 is still open.
	rec = get(t, a.handler, "/graph/dataaccess/1298937600/to/1298938200/minute*10/data.json")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), `"1":[[1298937600000,0.15]]`)
	assert.Contains(t, rec.Body.String(), `"2":[[1298937600000,0.04]]`)

	rec = get(t, a.handler, "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "energyweb_ws_clients 0")
	assert.Contains(t, rec.Body.String(), `energyweb_aggregation_passes_total{resolution="minute*10"} 1`)
}

func TestNewApp_NoSeed(t *testing.T) {
	cfg := config.Default()
	cfg.Database.Driver = store.DriverMemory

	a, err := newApp(context.Background(), cfg, quietLogger())
	require.NoError(t, err)
	defer a.Close()

	rec := get(t, a.handler, "/graph/energytable/data.json")
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestNewApp_BadSeed(t *testing.T) {
	cfg := config.Default()
	cfg.Database.Driver = store.DriverMemory
	cfg.Seed.SensorsCSV = filepath.Join(t.TempDir(), "missing.csv")

	_, err := newApp(context.Background(), cfg, quietLogger())
	assert.Error(t, err)
}

package store

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"energyweb/internal/model"
	"energyweb/internal/resolution"
)

// Backend is what the server and the batch commands need from a store.
type Backend interface {
	Provision(ctx context.Context, groups []model.SensorGroup, sensors []model.Sensor) error
	SensorGroups(ctx context.Context) ([]model.SensorGroup, error)
	Sensors(ctx context.Context) ([]model.Sensor, error)
	AddReadings(ctx context.Context, readings []model.RawReading) (int, error)
	LatestReadingTime(ctx context.Context) (time.Time, error)
	RollUp(ctx context.Context, res resolution.Resolution, latest time.Time) (int, error)
	GraphRows(ctx context.Context, q Query) (Rows, error)
	Close() error
}

// QueryObserver is told about every SQL statement the SQLite store runs.
type QueryObserver interface {
	ObserveQuery(name string, d time.Duration, err error)
}

const (
	DriverMemory = "memory"
	DriverSQLite = "sqlite3"
)

// Open returns the backend for driver. path is ignored for the memory driver.
func Open(driver, path string, log logrus.FieldLogger) (Backend, error) {
	switch driver {
	case DriverMemory:
		return New(), nil
	case DriverSQLite:
		return OpenSQLite(path, log)
	}
	return nil, fmt.Errorf("unknown store driver %q", driver)
}

var (
	_ Backend = (*Store)(nil)
	_ Backend = (*SQLite)(nil)
)

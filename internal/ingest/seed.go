package ingest

import (
	"context"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"

	"energyweb/internal/model"
)

// Sink is the part of a store that seeding writes to.
type Sink interface {
	Provision(ctx context.Context, groups []model.SensorGroup, sensors []model.Sensor) error
	AddReadings(ctx context.Context, readings []model.RawReading) (int, error)
}

// SeedCatalog provisions sink from the provisioning file at path.
func SeedCatalog(ctx context.Context, sink Sink, path string, log logrus.FieldLogger) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	groups, sensors, err := ParseCatalog(f)
	if err != nil {
		return fmt.Errorf("parsing %s: %w", path, err)
	}
	if err := sink.Provision(ctx, groups, sensors); err != nil {
		return err
	}
	log.WithFields(logrus.Fields{
		"file":    path,
		"groups":  len(groups),
		"sensors": len(sensors),
	}).Info("Provisioned sensors")
	return nil
}

// SeedReadings loads the readings file at path into sink. Skipped rows are
// logged, not fatal.
func SeedReadings(ctx context.Context, sink Sink, path string, log logrus.FieldLogger) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	p := &ReadingsParser{}
	readings, res, err := p.Parse(f)
	if err != nil {
		return 0, fmt.Errorf("parsing %s: %w", path, err)
	}
	for _, msg := range res.Errors {
		log.WithField("file", path).Warn("Skipping reading: " + msg)
	}

	n, err := sink.AddReadings(ctx, readings)
	if err != nil {
		return n, err
	}
	log.WithFields(logrus.Fields{
		"file":    path,
		"rows":    res.Total,
		"skipped": res.Skipped,
		"added":   n,
	}).Info("Loaded readings")
	return n, nil
}

package store

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/sirupsen/logrus"

	"energyweb/internal/model"
	"energyweb/internal/resolution"
)

// ComputeAverages groups one sensor's raw readings into buckets of res and
// averages the summed phase values of each bucket. Only buckets that start
// before Truncate(res, latest) are returned, so a bucket still receiving
// readings is never persisted. Readings must belong to a single sensor; the
// result is ordered by bucket.
func ComputeAverages(res resolution.Resolution, readings []model.RawReading, latest time.Time) ([]model.PowerAverage, error) {
	cutoff, err := resolution.Truncate(res, latest)
	if err != nil {
		return nil, err
	}

	type acc struct {
		first, last time.Time
		n           int
		sum         float64
	}
	buckets := make(map[time.Time]*acc)

	for _, r := range readings {
		trunc, err := resolution.Truncate(res, r.ReadingTime)
		if err != nil {
			return nil, err
		}
		if !trunc.Before(cutoff) {
			continue
		}
		a, ok := buckets[trunc]
		if !ok {
			a = &acc{first: r.ReadingTime, last: r.ReadingTime}
			buckets[trunc] = a
		}
		if r.ReadingTime.Before(a.first) {
			a.first = r.ReadingTime
		}
		if r.ReadingTime.After(a.last) {
			a.last = r.ReadingTime
		}
		a.n++
		a.sum += r.Watts()
	}

	if len(readings) > 0 && len(buckets) > 0 {
		sensorID := readings[0].SensorID
		for _, r := range readings[1:] {
			if r.SensorID != sensorID {
				return nil, fmt.Errorf("compute averages: mixed sensors %d and %d", sensorID, r.SensorID)
			}
		}
	}

	out := make([]model.PowerAverage, 0, len(buckets))
	for trunc, a := range buckets {
		out = append(out, model.PowerAverage{
			FirstReadingTime: a.first,
			LastReadingTime:  a.last,
			TruncReadingTime: trunc,
			SensorID:         readings[0].SensorID,
			AverageType:      res,
			NumPoints:        a.n,
			Watts:            a.sum / float64(a.n),
		})
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].TruncReadingTime.Before(out[j].TruncReadingTime)
	})
	return out, nil
}

// RollUpAll rolls up every resolution in resolutions up to the newest raw
// reading. It returns the number of rows inserted across all resolutions and
// stops at the first failure.
func RollUpAll(ctx context.Context, b Backend, resolutions []resolution.Resolution, log logrus.FieldLogger) (int, error) {
	latest, err := b.LatestReadingTime(ctx)
	if err != nil {
		return 0, fmt.Errorf("latest reading: %w", err)
	}
	if latest.IsZero() {
		log.Debug("No readings to roll up")
		return 0, nil
	}

	total := 0
	for _, res := range resolutions {
		start := time.Now()
		n, err := b.RollUp(ctx, res, latest)
		total += n
		if err != nil {
			return total, fmt.Errorf("roll up %s: %w", res, err)
		}
		log.WithFields(logrus.Fields{
			"resolution": res,
			"inserted":   n,
			"latest":     latest,
			"duration":   time.Since(start),
		}).Debug("Rolled up averages")
	}
	return total, nil
}

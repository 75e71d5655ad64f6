package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"energyweb/internal/model"
	"energyweb/internal/resolution"
)

type averageKey struct {
	trunc    int64
	sensorID int
	res      resolution.Resolution
}

type sensorRes struct {
	sensorID int
	res      resolution.Resolution
}

// Store holds provisioning records, raw readings and rollup rows in memory.
type Store struct {
	mu       sync.RWMutex
	groups   map[int]model.SensorGroup
	sensors  map[int]model.Sensor
	readings map[int][]model.RawReading // keyed by sensor ID, sorted by reading time
	averages map[resolution.Resolution][]model.PowerAverage
	keys     map[averageKey]struct{}
	newest   map[sensorRes]time.Time // latest rollup bucket per sensor and resolution
}

func New() *Store {
	return &Store{
		groups:   make(map[int]model.SensorGroup),
		sensors:  make(map[int]model.Sensor),
		readings: make(map[int][]model.RawReading),
		averages: make(map[resolution.Resolution][]model.PowerAverage),
		keys:     make(map[averageKey]struct{}),
		newest:   make(map[sensorRes]time.Time),
	}
}

// Provision registers sensor groups and sensors, replacing records with the same id.
func (s *Store) Provision(_ context.Context, groups []model.SensorGroup, sensors []model.Sensor) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, g := range groups {
		s.groups[g.ID] = g
	}
	for _, sensor := range sensors {
		s.sensors[sensor.ID] = sensor
	}
	return nil
}

// SensorGroups returns all registered groups ordered by id.
func (s *Store) SensorGroups(context.Context) ([]model.SensorGroup, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	groups := make([]model.SensorGroup, 0, len(s.groups))
	for _, g := range s.groups {
		groups = append(groups, g)
	}
	sort.Slice(groups, func(i, j int) bool { return groups[i].ID < groups[j].ID })
	return groups, nil
}

// Sensors returns all registered sensors ordered by id.
func (s *Store) Sensors(context.Context) ([]model.Sensor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sensors := make([]model.Sensor, 0, len(s.sensors))
	for _, sensor := range s.sensors {
		sensors = append(sensors, sensor)
	}
	sort.Slice(sensors, func(i, j int) bool { return sensors[i].ID < sensors[j].ID })
	return sensors, nil
}

// AddReadings adds raw readings, then sorts each affected sensor by reading time.
func (s *Store) AddReadings(_ context.Context, readings []model.RawReading) (int, error) {
	if len(readings) == 0 {
		return 0, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, r := range readings {
		s.readings[r.SensorID] = append(s.readings[r.SensorID], r)
	}

	seen := make(map[int]bool)
	for _, r := range readings {
		if !seen[r.SensorID] {
			seen[r.SensorID] = true
			rs := s.readings[r.SensorID]
			sort.SliceStable(rs, func(i, j int) bool {
				return rs[i].ReadingTime.Before(rs[j].ReadingTime)
			})
		}
	}
	return len(readings), nil
}

// ReadingCount returns the number of raw readings for a sensor.
func (s *Store) ReadingCount(sensorID int) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.readings[sensorID])
}

// GlobalTimeRange returns the union of all sensors' time ranges.
func (s *Store) GlobalTimeRange() (model.TimeRange, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var start, end time.Time
	first := true

	for _, readings := range s.readings {
		if len(readings) == 0 {
			continue
		}
		rStart := readings[0].ReadingTime
		rEnd := readings[len(readings)-1].ReadingTime

		if first || rStart.Before(start) {
			start = rStart
		}
		if first || rEnd.After(end) {
			end = rEnd
		}
		first = false
	}

	if first {
		return model.TimeRange{}, false
	}
	return model.TimeRange{Start: start, End: end}, true
}

// LatestReadingTime returns the newest raw reading time, or the zero time.
func (s *Store) LatestReadingTime(context.Context) (time.Time, error) {
	tr, ok := s.GlobalTimeRange()
	if !ok {
		return time.Time{}, nil
	}
	return tr.End, nil
}

// ReadingsInRange returns readings for a sensor between start (inclusive) and end (exclusive).
func (s *Store) ReadingsInRange(sensorID int, start, end time.Time) []model.RawReading {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.readingsInRangeLocked(sensorID, start, end)
}

func (s *Store) readingsInRangeLocked(sensorID int, start, end time.Time) []model.RawReading {
	all := s.readings[sensorID]
	if len(all) == 0 {
		return nil
	}

	startIdx := sort.Search(len(all), func(i int) bool {
		return !all[i].ReadingTime.Before(start)
	})
	endIdx := sort.Search(len(all), func(i int) bool {
		return !all[i].ReadingTime.Before(end)
	})

	if startIdx >= endIdx {
		return nil
	}

	result := make([]model.RawReading, endIdx-startIdx)
	copy(result, all[startIdx:endIdx])
	return result
}

// AddAverages inserts rollup rows, skipping any (bucket, sensor, resolution)
// that already has one. Returns the number inserted.
func (s *Store) AddAverages(_ context.Context, avgs []model.PowerAverage) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addAveragesLocked(avgs), nil
}

func (s *Store) addAveragesLocked(avgs []model.PowerAverage) int {
	inserted := 0
	touched := make(map[resolution.Resolution]bool)
	for _, a := range avgs {
		k := averageKey{trunc: a.TruncReadingTime.UnixNano(), sensorID: a.SensorID, res: a.AverageType}
		if _, dup := s.keys[k]; dup {
			continue
		}
		s.keys[k] = struct{}{}
		s.averages[a.AverageType] = append(s.averages[a.AverageType], a)
		nk := sensorRes{sensorID: a.SensorID, res: a.AverageType}
		if a.TruncReadingTime.After(s.newest[nk]) {
			s.newest[nk] = a.TruncReadingTime
		}
		touched[a.AverageType] = true
		inserted++
	}
	for res := range touched {
		rows := s.averages[res]
		sort.Slice(rows, func(i, j int) bool {
			if !rows[i].TruncReadingTime.Equal(rows[j].TruncReadingTime) {
				return rows[i].TruncReadingTime.Before(rows[j].TruncReadingTime)
			}
			return rows[i].SensorID < rows[j].SensorID
		})
	}
	return inserted
}

// AverageCount returns the number of rollup rows stored for res.
func (s *Store) AverageCount(res resolution.Resolution) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.averages[res])
}

// RollUp persists averages at res for every sensor's completed buckets
// before Truncate(res, latest). Each sensor is rescanned from its newest
// rollup bucket at res, so earlier buckets are never recomputed.
func (s *Store) RollUp(_ context.Context, res resolution.Resolution, latest time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	inserted := 0
	for id := range s.readings {
		since := s.newest[sensorRes{sensorID: id, res: res}]
		avgs, err := ComputeAverages(res, s.readingsInRangeLocked(id, since, latest), latest)
		if err != nil {
			return inserted, err
		}
		inserted += s.addAveragesLocked(avgs)
	}
	return inserted, nil
}

// GraphRows returns the rollup rows of q.Resolution inside the query window,
// ordered by (bucket, sensor group id, sensor id). Rows of sensors that are
// not provisioned are left out.
func (s *Store) GraphRows(_ context.Context, q Query) (Rows, error) {
	if _, err := resolution.Parse(string(q.Resolution)); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	all := s.averages[q.Resolution]
	startIdx := sort.Search(len(all), func(i int) bool {
		return !all[i].TruncReadingTime.Before(q.Start)
	})

	type keyed struct {
		row     model.Row
		groupID int
	}
	var out []keyed
	for _, a := range all[startIdx:] {
		if !q.Contains(a.TruncReadingTime) {
			break
		}
		sensor, ok := s.sensors[a.SensorID]
		if !ok {
			continue
		}
		out = append(out, keyed{
			row:     model.Row{Watts: a.Watts, SensorID: a.SensorID, Bucket: a.TruncReadingTime},
			groupID: sensor.GroupID,
		})
	}

	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].row.Bucket.Equal(out[j].row.Bucket) {
			return out[i].row.Bucket.Before(out[j].row.Bucket)
		}
		if out[i].groupID != out[j].groupID {
			return out[i].groupID < out[j].groupID
		}
		return out[i].row.SensorID < out[j].row.SensorID
	})

	rows := make([]model.Row, len(out))
	for i, k := range out {
		rows[i] = k.row
	}
	return NewSliceRows(rows), nil
}

func (s *Store) Close() error { return nil }

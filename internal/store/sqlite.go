package store

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/sirupsen/logrus"

	"energyweb/internal/model"
	"energyweb/internal/resolution"
)

// SQLite persists provisioning records, raw readings and rollup rows.
// Times are stored as unix nanoseconds.
type SQLite struct {
	db       *sql.DB
	log      logrus.FieldLogger
	queries  map[string]string
	observer QueryObserver
}

// OpenSQLite opens (creating if needed) the database at path and applies the schema.
func OpenSQLite(path string, log logrus.FieldLogger) (*SQLite, error) {
	dsn := fmt.Sprintf("%s?_foreign_keys=1&_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000", path)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// SQLite allows a single writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	s, err := NewSQLite(db, log)
	if err != nil {
		db.Close()
		return nil, err
	}
	if err := s.Migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	log.WithField("db_path", path).Info("Database connection established")
	return s, nil
}

// NewSQLite wraps an open handle. The schema is not touched.
func NewSQLite(db *sql.DB, log logrus.FieldLogger) (*SQLite, error) {
	queries, err := loadQueries()
	if err != nil {
		return nil, err
	}
	return &SQLite{db: db, log: log, queries: queries}, nil
}

// SetObserver registers a receiver for per-statement timings.
func (s *SQLite) SetObserver(o QueryObserver) {
	s.observer = o
}

// Query returns the SQL registered under name, or "" if there is none.
func (s *SQLite) Query(name string) string {
	return s.queries[name]
}

func (s *SQLite) observe(name string, start time.Time, err error) {
	d := time.Since(start)
	if s.observer != nil {
		s.observer.ObserveQuery(name, d, err)
	}
	entry := s.log.WithFields(logrus.Fields{"query": name, "duration": d})
	if err != nil {
		entry.WithError(err).Error("Query failed")
		return
	}
	entry.Debug("Query executed")
}

func (s *SQLite) Migrate(ctx context.Context) (err error) {
	defer func(start time.Time) { s.observe("create_schema", start, err) }(time.Now())
	if _, err = s.db.ExecContext(ctx, s.queries["create_schema"]); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

func (s *SQLite) Provision(ctx context.Context, groups []model.SensorGroup, sensors []model.Sensor) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin provision: %w", err)
	}
	defer tx.Rollback()

	for _, g := range groups {
		if _, err := tx.ExecContext(ctx, s.queries["upsert_sensor_group"], g.ID, g.Name, g.Color, string(g.Scope)); err != nil {
			return fmt.Errorf("upsert sensor group %d: %w", g.ID, err)
		}
	}
	for _, sn := range sensors {
		if _, err := tx.ExecContext(ctx, s.queries["upsert_sensor"],
			sn.ID, sn.Name, sn.IP, sn.Port, sn.GroupID, sn.Factor, sn.ThreePhase); err != nil {
			return fmt.Errorf("upsert sensor %d: %w", sn.ID, err)
		}
	}
	return tx.Commit()
}

func (s *SQLite) SensorGroups(ctx context.Context) (groups []model.SensorGroup, err error) {
	defer func(start time.Time) { s.observe("select_sensor_groups", start, err) }(time.Now())

	rows, err := s.db.QueryContext(ctx, s.queries["select_sensor_groups"])
	if err != nil {
		return nil, fmt.Errorf("select sensor groups: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var g model.SensorGroup
		var scope string
		if err := rows.Scan(&g.ID, &g.Name, &g.Color, &scope); err != nil {
			return nil, fmt.Errorf("scan sensor group: %w", err)
		}
		g.Scope = model.Scope(scope)
		groups = append(groups, g)
	}
	return groups, rows.Err()
}

func (s *SQLite) Sensors(ctx context.Context) (sensors []model.Sensor, err error) {
	defer func(start time.Time) { s.observe("select_sensors", start, err) }(time.Now())

	rows, err := s.db.QueryContext(ctx, s.queries["select_sensors"])
	if err != nil {
		return nil, fmt.Errorf("select sensors: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var sn model.Sensor
		if err := rows.Scan(&sn.ID, &sn.Name, &sn.IP, &sn.Port, &sn.GroupID, &sn.Factor, &sn.ThreePhase); err != nil {
			return nil, fmt.Errorf("scan sensor: %w", err)
		}
		sensors = append(sensors, sn)
	}
	return sensors, rows.Err()
}

func (s *SQLite) AddReadings(ctx context.Context, readings []model.RawReading) (int, error) {
	if len(readings) == 0 {
		return 0, nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin insert readings: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, s.queries["insert_reading"])
	if err != nil {
		return 0, fmt.Errorf("prepare insert reading: %w", err)
	}
	defer stmt.Close()

	for _, r := range readings {
		if _, err := stmt.ExecContext(ctx, r.SensorID, r.ReadingTime.UnixNano(), r.AWattHr, r.BWattHr, r.CWattHr); err != nil {
			return 0, fmt.Errorf("insert reading for sensor %d: %w", r.SensorID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return len(readings), nil
}

func (s *SQLite) LatestReadingTime(ctx context.Context) (time.Time, error) {
	var ns sql.NullInt64
	if err := s.db.QueryRowContext(ctx, s.queries["latest_reading_time"]).Scan(&ns); err != nil {
		return time.Time{}, fmt.Errorf("latest reading time: %w", err)
	}
	if !ns.Valid {
		return time.Time{}, nil
	}
	return time.Unix(0, ns.Int64).UTC(), nil
}

// RollUp persists averages at res for every sensor's completed buckets
// before Truncate(res, latest). Only readings from the newest existing rollup
// bucket onwards are read back; rows already present are ignored by the
// unique index.
func (s *SQLite) RollUp(ctx context.Context, res resolution.Resolution, latest time.Time) (inserted int, err error) {
	defer func(start time.Time) { s.observe("rollup_"+string(res), start, err) }(time.Now())

	sensorIDs, err := s.readingSensors(ctx)
	if err != nil {
		return 0, err
	}

	for _, id := range sensorIDs {
		n, err := s.rollUpSensor(ctx, res, id, latest)
		if err != nil {
			return inserted, fmt.Errorf("roll up sensor %d at %s: %w", id, res, err)
		}
		inserted += n
	}
	return inserted, nil
}

func (s *SQLite) readingSensors(ctx context.Context) ([]int, error) {
	rows, err := s.db.QueryContext(ctx, s.queries["reading_sensors"])
	if err != nil {
		return nil, fmt.Errorf("select reading sensors: %w", err)
	}
	defer rows.Close()

	var ids []int
	for rows.Next() {
		var id int
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (s *SQLite) rollUpSensor(ctx context.Context, res resolution.Resolution, sensorID int, latest time.Time) (int, error) {
	var since sql.NullInt64
	if err := s.db.QueryRowContext(ctx, s.queries["latest_average"], sensorID, string(res)).Scan(&since); err != nil {
		return 0, err
	}

	rows, err := s.db.QueryContext(ctx, s.queries["readings_since"], sensorID, since.Int64)
	if err != nil {
		return 0, err
	}
	var readings []model.RawReading
	for rows.Next() {
		var r model.RawReading
		var ns int64
		if err := rows.Scan(&r.SensorID, &ns, &r.AWattHr, &r.BWattHr, &r.CWattHr); err != nil {
			rows.Close()
			return 0, err
		}
		r.ReadingTime = time.Unix(0, ns).UTC()
		readings = append(readings, r)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, err
	}

	avgs, err := ComputeAverages(res, readings, latest)
	if err != nil || len(avgs) == 0 {
		return 0, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	inserted := 0
	for _, a := range avgs {
		result, err := tx.ExecContext(ctx, s.queries["insert_average"],
			a.FirstReadingTime.UnixNano(), a.LastReadingTime.UnixNano(), a.TruncReadingTime.UnixNano(),
			a.SensorID, string(a.AverageType), a.NumPoints, a.Watts)
		if err != nil {
			return 0, err
		}
		n, err := result.RowsAffected()
		if err != nil {
			return 0, err
		}
		inserted += int(n)
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return inserted, nil
}

// GraphRows runs the graph cursor query. The returned Rows must be closed.
func (s *SQLite) GraphRows(ctx context.Context, q Query) (Rows, error) {
	if _, err := resolution.Parse(string(q.Resolution)); err != nil {
		return nil, err
	}

	name := GraphQueryName(q)
	end := int64(math.MaxInt64)
	if !q.End.IsZero() {
		end = q.End.UnixNano()
	}

	start := time.Now()
	rows, err := s.db.QueryContext(ctx, s.queries[name], string(q.Resolution), q.Start.UnixNano(), end)
	s.observe(name, start, err)
	if err != nil {
		return nil, fmt.Errorf("graph query: %w", err)
	}
	return &sqlRows{rows: rows}, nil
}

func (s *SQLite) Close() error {
	return s.db.Close()
}

type sqlRows struct {
	rows *sql.Rows
	cur  model.Row
	err  error
}

func (r *sqlRows) Next() bool {
	if r.err != nil || !r.rows.Next() {
		return false
	}
	var ns int64
	if err := r.rows.Scan(&r.cur.Watts, &r.cur.SensorID, &ns); err != nil {
		r.err = fmt.Errorf("scan graph row: %w", err)
		return false
	}
	r.cur.Bucket = time.Unix(0, ns).UTC()
	return true
}

func (r *sqlRows) Row() model.Row { return r.cur }

func (r *sqlRows) Err() error {
	if r.err != nil {
		return r.err
	}
	return r.rows.Err()
}

func (r *sqlRows) Close() error { return r.rows.Close() }

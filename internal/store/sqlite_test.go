package store

import (
	"errors"
	"io"
	"math"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"energyweb/internal/model"
	"energyweb/internal/resolution"
)

type recordingObserver struct {
	names []string
	errs  int
}

func (o *recordingObserver) ObserveQuery(name string, _ time.Duration, err error) {
	o.names = append(o.names, name)
	if err != nil {
		o.errs++
	}
}

func newMockSQLite(t *testing.T) (*SQLite, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	log := logrus.New()
	log.SetOutput(io.Discard)
	s, err := NewSQLite(db, log)
	require.NoError(t, err)
	return s, mock
}

func TestLoadQueries(t *testing.T) {
	queries, err := loadQueries()
	require.NoError(t, err)
	for _, name := range []string{
		"create_schema", "upsert_sensor_group", "upsert_sensor", "select_sensor_groups",
		"select_sensors", "insert_reading", "latest_reading_time", "reading_sensors",
		"latest_average", "readings_since", "insert_average", "graph_rows_closed",
		"graph_rows_half_open",
	} {
		assert.NotEmpty(t, queries[name], name)
	}
	assert.Contains(t, queries["graph_rows_closed"], "ORDER BY pa.trunc_reading_time, s.sensor_group_id, s.id")
}

func TestParseNamedQueries(t *testing.T) {
	content := `-- header comment

-- name: first
SELECT 1
  -- inline comment
FROM t

-- name: second
SELECT 2
`
	q := parseNamedQueries(content)
	assert.Equal(t, map[string]string{"first": "SELECT 1\nFROM t", "second": "SELECT 2"}, q)
	assert.False(t, validQueryName("bad-name"))
	assert.True(t, validQueryName("graph_rows_closed"))
}

func TestSQLite_GraphRowsClosed(t *testing.T) {
	s, mock := newMockSQLite(t)
	obs := &recordingObserver{}
	s.SetObserver(obs)

	start := time.Date(2011, 3, 1, 0, 0, 0, 0, time.UTC)
	end := start.Add(time.Hour)

	mock.ExpectQuery(s.Query("graph_rows_closed")).
		WithArgs("minute*10", start.UnixNano(), end.UnixNano()).
		WillReturnRows(sqlmock.NewRows([]string{"watts", "id", "trunc_reading_time"}).
			AddRow(100.5, 1, start.UnixNano()).
			AddRow(200.0, 2, start.UnixNano())).
		RowsWillBeClosed()

	rows, err := s.GraphRows(ctx, Query{Resolution: resolution.Minute10, Start: start, End: end})
	require.NoError(t, err)
	got := collect(t, rows)

	assert.Equal(t, []model.Row{
		{Watts: 100.5, SensorID: 1, Bucket: start},
		{Watts: 200.0, SensorID: 2, Bucket: start},
	}, got)
	assert.Equal(t, []string{"graph_rows_closed"}, obs.names)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLite_GraphRowsHalfOpenAndOpenEnded(t *testing.T) {
	s, mock := newMockSQLite(t)
	start := time.Date(2011, 3, 1, 0, 0, 0, 0, time.UTC)
	end := start.Add(time.Hour)
	cols := []string{"watts", "id", "trunc_reading_time"}

	mock.ExpectQuery(s.Query("graph_rows_half_open")).
		WithArgs("hour", start.UnixNano(), end.UnixNano()).
		WillReturnRows(sqlmock.NewRows(cols))
	mock.ExpectQuery(s.Query("graph_rows_closed")).
		WithArgs("second*10", start.UnixNano(), int64(math.MaxInt64)).
		WillReturnRows(sqlmock.NewRows(cols))

	rows, err := s.GraphRows(ctx, Query{Resolution: resolution.Hour, Start: start, End: end, HalfOpen: true})
	require.NoError(t, err)
	assert.Empty(t, collect(t, rows))

	rows, err = s.GraphRows(ctx, Query{Resolution: resolution.Second10, Start: start})
	require.NoError(t, err)
	assert.Empty(t, collect(t, rows))

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLite_GraphRowsMidIterationFailure(t *testing.T) {
	s, mock := newMockSQLite(t)
	start := time.Date(2011, 3, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery(s.Query("graph_rows_closed")).
		WillReturnRows(sqlmock.NewRows([]string{"watts", "id", "trunc_reading_time"}).
			AddRow(1.0, 1, start.UnixNano()).
			AddRow(2.0, 2, start.UnixNano()).
			RowError(1, errors.New("connection reset")))

	rows, err := s.GraphRows(ctx, Query{Resolution: resolution.Hour, Start: start})
	require.NoError(t, err)
	defer rows.Close()

	require.True(t, rows.Next())
	assert.False(t, rows.Next())
	assert.EqualError(t, rows.Err(), "connection reset")
}

func TestSQLite_GraphRowsQueryError(t *testing.T) {
	s, mock := newMockSQLite(t)
	obs := &recordingObserver{}
	s.SetObserver(obs)

	mock.ExpectQuery(s.Query("graph_rows_closed")).WillReturnError(errors.New("database is locked"))

	_, err := s.GraphRows(ctx, Query{Resolution: resolution.Hour})
	assert.ErrorContains(t, err, "database is locked")
	assert.Equal(t, 1, obs.errs)
}

func TestSQLite_SensorsAndGroups(t *testing.T) {
	s, mock := newMockSQLite(t)

	mock.ExpectQuery(s.Query("select_sensor_groups")).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "color", "scope"}).
			AddRow(1, "Dorm A", "00ff00", "residential"))
	mock.ExpectQuery(s.Query("select_sensors")).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "ip", "port", "sensor_group_id", "factor", "three_phase"}).
			AddRow(3, "dorm main", "10.0.0.3", 4001, 1, 1.5, true))

	groups, err := s.SensorGroups(ctx)
	require.NoError(t, err)
	assert.Equal(t, []model.SensorGroup{{ID: 1, Name: "Dorm A", Color: "00ff00", Scope: model.ScopeResidential}}, groups)

	sensors, err := s.Sensors(ctx)
	require.NoError(t, err)
	assert.Equal(t, []model.Sensor{{ID: 3, Name: "dorm main", IP: "10.0.0.3", Port: 4001, GroupID: 1, Factor: 1.5, ThreePhase: true}}, sensors)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLite_Provision(t *testing.T) {
	s, mock := newMockSQLite(t)

	mock.ExpectBegin()
	mock.ExpectExec(s.Query("upsert_sensor_group")).
		WithArgs(1, "Dorm A", "00ff00", "residential").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(s.Query("upsert_sensor")).
		WithArgs(3, "dorm main", "", 0, 1, 1.0, false).
		WillReturnResult(sqlmock.NewResult(3, 1))
	mock.ExpectCommit()

	err := s.Provision(ctx,
		[]model.SensorGroup{{ID: 1, Name: "Dorm A", Color: "00ff00", Scope: model.ScopeResidential}},
		[]model.Sensor{{ID: 3, Name: "dorm main", GroupID: 1, Factor: 1.0}})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLite_LatestReadingTime(t *testing.T) {
	s, mock := newMockSQLite(t)
	ts := time.Date(2011, 3, 1, 12, 0, 0, 0, time.UTC)

	mock.ExpectQuery(s.Query("latest_reading_time")).
		WillReturnRows(sqlmock.NewRows([]string{"max"}).AddRow(nil))
	mock.ExpectQuery(s.Query("latest_reading_time")).
		WillReturnRows(sqlmock.NewRows([]string{"max"}).AddRow(ts.UnixNano()))

	latest, err := s.LatestReadingTime(ctx)
	require.NoError(t, err)
	assert.True(t, latest.IsZero())

	latest, err = s.LatestReadingTime(ctx)
	require.NoError(t, err)
	assert.Equal(t, ts, latest)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLite_RollUp(t *testing.T) {
	s, mock := newMockSQLite(t)
	base := time.Date(2011, 3, 1, 12, 0, 0, 0, time.UTC)
	t1 := base.Add(time.Minute)
	t2 := base.Add(2 * time.Minute)
	open := base.Add(time.Hour)

	mock.ExpectQuery(s.Query("reading_sensors")).
		WillReturnRows(sqlmock.NewRows([]string{"sensor_id"}).AddRow(1))
	mock.ExpectQuery(s.Query("latest_average")).
		WithArgs(1, "hour").
		WillReturnRows(sqlmock.NewRows([]string{"max"}).AddRow(nil))
	mock.ExpectQuery(s.Query("readings_since")).
		WithArgs(1, 0).
		WillReturnRows(sqlmock.NewRows([]string{"sensor_id", "reading_time", "awatthr", "bwatthr", "cwatthr"}).
			AddRow(1, t1.UnixNano(), 100, 0, 0).
			AddRow(1, t2.UnixNano(), 200, 0, 0).
			AddRow(1, open.UnixNano(), 999, 0, 0))
	mock.ExpectBegin()
	mock.ExpectExec(s.Query("insert_average")).
		WithArgs(t1.UnixNano(), t2.UnixNano(), base.UnixNano(), 1, "hour", 2, 150.0).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	n, err := s.RollUp(ctx, resolution.Hour, open)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLite_AddReadings(t *testing.T) {
	s, mock := newMockSQLite(t)
	ts := time.Date(2011, 3, 1, 12, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	prep := mock.ExpectPrepare(s.Query("insert_reading"))
	prep.ExpectExec().WithArgs(1, ts.UnixNano(), 1, 2, 3).WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	n, err := s.AddReadings(ctx, []model.RawReading{{SensorID: 1, ReadingTime: ts, AWattHr: 1, BWattHr: 2, CWattHr: 3}})
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

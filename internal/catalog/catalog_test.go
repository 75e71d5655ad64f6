package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"energyweb/internal/model"
)

func testGroups() []model.SensorGroup {
	return []model.SensorGroup{
		{ID: 2, Name: "Clark Hall", Color: "ff0000", Scope: model.ScopeAcademic},
		{ID: 1, Name: "Dorm A", Color: "00ff00", Scope: model.ScopeResidential},
		{ID: 3, Name: "Empty", Color: "0000ff", Scope: model.ScopeAcademic},
	}
}

func testSensors() []model.Sensor {
	return []model.Sensor{
		{ID: 5, Name: "Clark east", GroupID: 2},
		{ID: 2, Name: "Dorm A main", GroupID: 1},
		{ID: 4, Name: "Clark west", GroupID: 2},
		{ID: 1, Name: "Dorm A aux", GroupID: 1},
	}
}

func TestNew_Ordering(t *testing.T) {
	c, err := New(testGroups(), testSensors())
	require.NoError(t, err)

	groups := c.Groups()
	require.Len(t, groups, 2, "groups without sensors are dropped")
	assert.Equal(t, 1, groups[0].ID)
	assert.Equal(t, 2, groups[1].ID)
	assert.Equal(t, []int{1, 2}, groups[0].SensorIDs())
	assert.Equal(t, []int{4, 5}, groups[1].SensorIDs())

	assert.Equal(t, []int{1, 2, 4, 5}, c.SensorIDs())
	assert.Equal(t, map[int][]int{1: {1, 2}, 2: {4, 5}}, c.SensorIDsByGroup())
}

func TestNew_Errors(t *testing.T) {
	_, err := New(testGroups(), []model.Sensor{{ID: 1, GroupID: 99}})
	assert.ErrorIs(t, err, ErrUnknownBuilding)

	_, err = New(testGroups(), []model.Sensor{{ID: 1, GroupID: 1}, {ID: 1, GroupID: 2}})
	assert.Error(t, err)

	_, err = New([]model.SensorGroup{{ID: 1}, {ID: 1}}, nil)
	assert.Error(t, err)

	_, err = New([]model.SensorGroup{{ID: 1, Scope: "industrial"}}, nil)
	assert.Error(t, err)
}

func TestLookups(t *testing.T) {
	c, err := New(testGroups(), testSensors())
	require.NoError(t, err)

	g, err := c.ByName("clark hall")
	require.NoError(t, err)
	assert.Equal(t, 2, g.ID)

	_, err = c.ByName("nowhere")
	assert.ErrorIs(t, err, ErrUnknownBuilding)

	g, err = c.Group(1)
	require.NoError(t, err)
	assert.Equal(t, "Dorm A", g.Name)

	_, err = c.Group(3)
	assert.ErrorIs(t, err, ErrUnknownBuilding)

	academic := c.ByScope(model.ScopeAcademic)
	require.Len(t, academic, 1)
	assert.Equal(t, 2, academic[0].ID)

	s, ok := c.Sensor(4)
	require.True(t, ok)
	assert.Equal(t, "Clark west", s.Name)
}

func TestGroup_MarshalJSON(t *testing.T) {
	c, err := New(testGroups(), testSensors())
	require.NoError(t, err)

	g, err := c.Group(1)
	require.NoError(t, err)

	data, err := json.Marshal(g)
	require.NoError(t, err)
	assert.JSONEq(t, `[1, "Dorm A", "00ff00", [[1, "Dorm A aux"], [2, "Dorm A main"]]]`, string(data))
}

type fakeSource struct {
	groups  []model.SensorGroup
	sensors []model.Sensor
	err     error
}

func (f *fakeSource) SensorGroups(context.Context) ([]model.SensorGroup, error) {
	return f.groups, f.err
}

func (f *fakeSource) Sensors(context.Context) ([]model.Sensor, error) {
	return f.sensors, f.err
}

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func TestLoader_Reload(t *testing.T) {
	src := &fakeSource{groups: testGroups(), sensors: testSensors()}
	l := NewLoader(src, quietLogger())
	assert.Nil(t, l.Current())

	c, err := l.Reload(context.Background())
	require.NoError(t, err)
	assert.Same(t, c, l.Current())

	// A failing reload keeps the previous catalog.
	src.err = errors.New("db down")
	_, err = l.Reload(context.Background())
	assert.Error(t, err)
	assert.Same(t, c, l.Current())
}

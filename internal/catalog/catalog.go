// Package catalog builds the building (sensor group) hierarchy that every
// aggregation pass walks. A Catalog is immutable once built; Loader swaps in a
// fresh one on Reload.
package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"

	"energyweb/internal/model"
)

// ErrUnknownBuilding is returned by lookups for a group that does not exist.
var ErrUnknownBuilding = errors.New("unknown building")

// Group is a building together with its member sensors in ascending id order.
type Group struct {
	model.SensorGroup
	Sensors []model.Sensor
}

// SensorIDs returns the member ids in iteration order.
func (g Group) SensorIDs() []int {
	ids := make([]int, len(g.Sensors))
	for i, s := range g.Sensors {
		ids[i] = s.ID
	}
	return ids
}

// MarshalJSON renders the group the way the graph pages consume it:
// [id, name, color, [[sensor id, sensor name], ...]].
func (g Group) MarshalJSON() ([]byte, error) {
	members := make([][2]any, len(g.Sensors))
	for i, s := range g.Sensors {
		members[i] = [2]any{s.ID, s.Name}
	}
	return json.Marshal([]any{g.ID, g.Name, g.Color, members})
}

type Catalog struct {
	groups    []Group
	index     map[int]int // group id -> position in groups
	sensors   map[int]model.Sensor
	sensorIDs []int
}

// New builds a catalog. Groups are ordered by ascending id and sensors within
// a group by ascending id. Groups without sensors are left out.
func New(groups []model.SensorGroup, sensors []model.Sensor) (*Catalog, error) {
	byID := make(map[int]model.SensorGroup, len(groups))
	for _, g := range groups {
		if _, dup := byID[g.ID]; dup {
			return nil, fmt.Errorf("duplicate sensor group %d", g.ID)
		}
		if g.Scope != "" && !g.Scope.Valid() {
			return nil, fmt.Errorf("sensor group %d: unknown scope %q", g.ID, g.Scope)
		}
		byID[g.ID] = g
	}

	c := &Catalog{
		index:   make(map[int]int),
		sensors: make(map[int]model.Sensor, len(sensors)),
	}

	members := make(map[int][]model.Sensor)
	for _, s := range sensors {
		if _, dup := c.sensors[s.ID]; dup {
			return nil, fmt.Errorf("duplicate sensor %d", s.ID)
		}
		if _, ok := byID[s.GroupID]; !ok {
			return nil, fmt.Errorf("sensor %d: %w %d", s.ID, ErrUnknownBuilding, s.GroupID)
		}
		c.sensors[s.ID] = s
		c.sensorIDs = append(c.sensorIDs, s.ID)
		members[s.GroupID] = append(members[s.GroupID], s)
	}
	sort.Ints(c.sensorIDs)

	groupIDs := make([]int, 0, len(members))
	for id := range members {
		groupIDs = append(groupIDs, id)
	}
	sort.Ints(groupIDs)

	for _, id := range groupIDs {
		ms := members[id]
		sort.Slice(ms, func(i, j int) bool { return ms[i].ID < ms[j].ID })
		c.index[id] = len(c.groups)
		c.groups = append(c.groups, Group{SensorGroup: byID[id], Sensors: ms})
	}
	return c, nil
}

// Current returns c, so a fixed catalog can stand in for a Loader.
func (c *Catalog) Current() *Catalog {
	return c
}

// Groups returns every building in ascending id order.
func (c *Catalog) Groups() []Group {
	return c.groups
}

func (c *Catalog) Group(id int) (Group, error) {
	i, ok := c.index[id]
	if !ok {
		return Group{}, fmt.Errorf("%w: %d", ErrUnknownBuilding, id)
	}
	return c.groups[i], nil
}

// SensorIDs returns every sensor id in ascending order.
func (c *Catalog) SensorIDs() []int {
	return c.sensorIDs
}

// SensorIDsByGroup maps each group id to its ordered member ids.
func (c *Catalog) SensorIDsByGroup() map[int][]int {
	out := make(map[int][]int, len(c.groups))
	for _, g := range c.groups {
		out[g.ID] = g.SensorIDs()
	}
	return out
}

func (c *Catalog) Sensor(id int) (model.Sensor, bool) {
	s, ok := c.sensors[id]
	return s, ok
}

// ByScope returns the buildings tagged with scope, in catalog order.
func (c *Catalog) ByScope(scope model.Scope) []Group {
	var out []Group
	for _, g := range c.groups {
		if g.Scope == scope {
			out = append(out, g)
		}
	}
	return out
}

// ByName finds a building by case-insensitive display name.
func (c *Catalog) ByName(name string) (Group, error) {
	want := strings.ToLower(name)
	for _, g := range c.groups {
		if strings.ToLower(g.Name) == want {
			return g, nil
		}
	}
	return Group{}, fmt.Errorf("%w: %q", ErrUnknownBuilding, name)
}

// Source provides the provisioning records a catalog is built from.
type Source interface {
	SensorGroups(ctx context.Context) ([]model.SensorGroup, error)
	Sensors(ctx context.Context) ([]model.Sensor, error)
}

// Provider hands out the catalog to use for one request.
type Provider interface {
	Current() *Catalog
}

// Loader keeps the current catalog. Readers see the previous catalog until a
// Reload completes.
type Loader struct {
	src Source
	log logrus.FieldLogger

	mu      sync.RWMutex
	current *Catalog
}

func NewLoader(src Source, log logrus.FieldLogger) *Loader {
	return &Loader{src: src, log: log}
}

// Current returns the last loaded catalog, or nil before the first Reload.
func (l *Loader) Current() *Catalog {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.current
}

// Reload fetches the provisioning records and replaces the current catalog.
// On failure the previous catalog stays in place.
func (l *Loader) Reload(ctx context.Context) (*Catalog, error) {
	groups, err := l.src.SensorGroups(ctx)
	if err != nil {
		return nil, fmt.Errorf("load sensor groups: %w", err)
	}
	sensors, err := l.src.Sensors(ctx)
	if err != nil {
		return nil, fmt.Errorf("load sensors: %w", err)
	}
	c, err := New(groups, sensors)
	if err != nil {
		return nil, err
	}

	l.mu.Lock()
	l.current = c
	l.mu.Unlock()

	l.log.WithFields(logrus.Fields{
		"groups":  len(c.groups),
		"sensors": len(c.sensorIDs),
	}).Info("Catalog loaded")
	return c, nil
}

package ingest

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"

	"energyweb/internal/model"
)

// ParseCatalog reads the sensor provisioning file: one row per sensor,
// repeating its building's columns.
//
//	sensor_group_id,sensor_group,color,scope,sensor_id,sensor,ip,port,factor,three_phase
//	1,Dorm A,ff0000,residential,1,Main,10.0.0.5,4001,1,true
//
// Unlike readings, a malformed provisioning row fails the whole file.
func ParseCatalog(r io.Reader) ([]model.SensorGroup, []model.Sensor, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return nil, nil, fmt.Errorf("reading CSV header: %w", err)
	}
	index, err := headerIndex(header, "sensor_group_id", "sensor_group", "sensor_id")
	if err != nil {
		return nil, nil, err
	}

	var (
		groups  []model.SensorGroup
		seen    = make(map[int]model.SensorGroup)
		sensors []model.Sensor
	)
	lineNum := 1
	for {
		lineNum++
		fields, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, nil, fmt.Errorf("reading CSV line %d: %w", lineNum, err)
		}
		rec := record{fields: fields, index: index}

		g, err := parseGroup(rec)
		if err != nil {
			return nil, nil, fmt.Errorf("line %d: %w", lineNum, err)
		}
		if prev, ok := seen[g.ID]; ok {
			if prev != g {
				return nil, nil, fmt.Errorf("line %d: sensor group %d redefined", lineNum, g.ID)
			}
		} else {
			seen[g.ID] = g
			groups = append(groups, g)
		}

		s, err := parseSensor(rec, g.ID)
		if err != nil {
			return nil, nil, fmt.Errorf("line %d: %w", lineNum, err)
		}
		sensors = append(sensors, s)
	}
	return groups, sensors, nil
}

func parseGroup(rec record) (model.SensorGroup, error) {
	id, err := strconv.Atoi(rec.get("sensor_group_id"))
	if err != nil {
		return model.SensorGroup{}, fmt.Errorf("parsing sensor_group_id %q", rec.get("sensor_group_id"))
	}
	name := rec.get("sensor_group")
	if name == "" {
		return model.SensorGroup{}, fmt.Errorf("sensor group %d has no name", id)
	}
	scope := model.Scope(rec.get("scope"))
	if scope != "" && !scope.Valid() {
		return model.SensorGroup{}, fmt.Errorf("sensor group %d: unknown scope %q", id, scope)
	}
	return model.SensorGroup{ID: id, Name: name, Color: rec.get("color"), Scope: scope}, nil
}

func parseSensor(rec record, groupID int) (model.Sensor, error) {
	s := model.Sensor{GroupID: groupID, Name: rec.get("sensor"), IP: rec.get("ip"), Factor: 1}

	var err error
	if s.ID, err = strconv.Atoi(rec.get("sensor_id")); err != nil {
		return model.Sensor{}, fmt.Errorf("parsing sensor_id %q", rec.get("sensor_id"))
	}
	if v := rec.get("port"); v != "" {
		if s.Port, err = strconv.Atoi(v); err != nil {
			return model.Sensor{}, fmt.Errorf("sensor %d: parsing port %q", s.ID, v)
		}
	}
	if v := rec.get("factor"); v != "" {
		if s.Factor, err = strconv.ParseFloat(v, 64); err != nil {
			return model.Sensor{}, fmt.Errorf("sensor %d: parsing factor %q", s.ID, v)
		}
	}
	if v := rec.get("three_phase"); v != "" {
		if s.ThreePhase, err = strconv.ParseBool(v); err != nil {
			return model.Sensor{}, fmt.Errorf("sensor %d: parsing three_phase %q", s.ID, v)
		}
	}
	return s, nil
}

package ws

import (
	"encoding/json"

	"energyweb/internal/catalog"
	"energyweb/internal/live"
)

// Envelope wraps all WebSocket messages with a type discriminator.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Message type constants
const (
	// Client -> Server
	TypeLiveStart = "live:start"
	TypeLiveStop  = "live:stop"
	TypeLiveReset = "live:reset"

	// Server -> Client
	TypeLiveState     = "live:state"
	TypeGraphPoints   = "graph:points"
	TypeCatalogLoaded = "catalog:loaded"
)

// Server -> Client messages

type LiveStatePayload struct {
	Running     bool    `json:"running"`
	LastRecord  int64   `json:"last_record,omitempty"`
	IntervalSec float64 `json:"interval_sec"`
}

type CatalogPayload struct {
	SensorGroups []catalog.Group `json:"sensor_groups"`
}

// graph:points carries a dataset.PointDump unchanged, so browsers parse it
// like the polled /graph/{start}/data.json response.

func NewEnvelope(msgType string, payload any) ([]byte, error) {
	var raw json.RawMessage
	if payload != nil {
		var err error
		raw, err = json.Marshal(payload)
		if err != nil {
			return nil, err
		}
	}
	return json.Marshal(Envelope{Type: msgType, Payload: raw})
}

func LiveStateFromEngine(s live.State) LiveStatePayload {
	p := LiveStatePayload{
		Running:     s.Running,
		IntervalSec: s.Interval.Seconds(),
	}
	if !s.LastRecord.IsZero() {
		p.LastRecord = s.LastRecord.UnixMilli()
	}
	return p
}

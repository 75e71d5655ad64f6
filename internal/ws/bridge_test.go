package ws

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/guregu/null.v4"

	"energyweb/internal/dataset"
	"energyweb/internal/live"
	"energyweb/internal/model"
)

var startTime = time.Date(2011, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestBridge() (*Bridge, *Client) {
	hub := NewHub(quietLogger())
	client := &Client{hub: hub, send: make(chan []byte, 256)}
	hub.Register(client)
	bridge := NewBridge(hub, quietLogger())
	return bridge, client
}

func receiveEnvelope(t *testing.T, c *Client) Envelope {
	t.Helper()
	msg := <-c.send
	var env Envelope
	require.NoError(t, json.Unmarshal(msg, &env))
	return env
}

func TestBridge_OnState(t *testing.T) {
	bridge, client := newTestBridge()

	bridge.OnState(live.State{
		Running:    true,
		LastRecord: startTime,
		Interval:   10 * time.Second,
	})

	env := receiveEnvelope(t, client)
	assert.Equal(t, TypeLiveState, env.Type)

	var p LiveStatePayload
	require.NoError(t, json.Unmarshal(env.Payload, &p))
	assert.True(t, p.Running)
	assert.Equal(t, startTime.UnixMilli(), p.LastRecord)
	assert.Equal(t, 10.0, p.IntervalSec)
}

func TestBridge_OnPoints(t *testing.T) {
	bridge, client := newTestBridge()

	x := startTime.UnixMilli()
	bridge.OnPoints(&dataset.PointDump{
		XYPairs: map[int][]model.Point{
			1: {{X: x, Y: null.FloatFrom(1.5)}, {X: x + 10000, Y: null.Float{}}},
		},
		DesiredFirstRecord: x,
		LastRecord:         x + 10000,
		DataURL:            "/graph/1298980810000/data.json?junk=1",
	})

	env := receiveEnvelope(t, client)
	assert.Equal(t, TypeGraphPoints, env.Type)

	var p struct {
		NoResults  bool                     `json:"no_results"`
		XYPairs    map[string][][2]*float64 `json:"sg_xy_pairs"`
		LastRecord int64                    `json:"last_record"`
		DataURL    string                   `json:"data_url"`
	}
	require.NoError(t, json.Unmarshal(env.Payload, &p))
	assert.False(t, p.NoResults)
	assert.Equal(t, x+10000, p.LastRecord)
	require.Len(t, p.XYPairs["1"], 2)
	assert.InDelta(t, 1.5, *p.XYPairs["1"][0][1], 1e-9)
	assert.Nil(t, p.XYPairs["1"][1][1])
	assert.Equal(t, "/graph/1298980810000/data.json?junk=1", p.DataURL)
}

func TestBridge_NoClients(t *testing.T) {
	bridge := NewBridge(NewHub(quietLogger()), quietLogger())
	bridge.OnState(live.State{Running: true})
}

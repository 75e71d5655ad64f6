package ws

import (
	"github.com/sirupsen/logrus"

	"energyweb/internal/dataset"
	"energyweb/internal/live"
)

// Bridge implements live.Callback and broadcasts events to the WebSocket hub.
type Bridge struct {
	hub *Hub
	log logrus.FieldLogger
}

func NewBridge(hub *Hub, log logrus.FieldLogger) *Bridge {
	return &Bridge{hub: hub, log: log}
}

func (b *Bridge) OnState(s live.State) {
	msg, err := NewEnvelope(TypeLiveState, LiveStateFromEngine(s))
	if err != nil {
		b.log.WithError(err).Error("Marshaling live state")
		return
	}
	b.hub.Broadcast(msg)
}

func (b *Bridge) OnPoints(d *dataset.PointDump) {
	msg, err := NewEnvelope(TypeGraphPoints, d)
	if err != nil {
		b.log.WithError(err).Error("Marshaling graph points")
		return
	}
	b.hub.Broadcast(msg)
}

var _ live.Callback = (*Bridge)(nil)

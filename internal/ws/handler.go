package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"energyweb/internal/catalog"
	"energyweb/internal/live"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Handler manages WebSocket connections and routes messages to the live feed.
type Handler struct {
	hub      *Hub
	engine   *live.Engine
	src      live.Source
	catalogs catalog.Provider
	log      logrus.FieldLogger
}

// NewHandler serves the live feed. src backfills a new client with the
// current dynamic window before pushed updates arrive.
func NewHandler(hub *Hub, engine *live.Engine, src live.Source, catalogs catalog.Provider, log logrus.FieldLogger) *Handler {
	return &Handler{hub: hub, engine: engine, src: src, catalogs: catalogs, log: log}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.WithError(err).Warn("WebSocket upgrade failed")
		return
	}

	client := newClient(h.hub, conn)
	h.hub.Register(client)
	go client.writePump()

	h.sendCatalog(client)
	h.sendState(client)
	h.sendHistory(r.Context(), client)

	h.readPump(client)
}

func (h *Handler) readPump(c *Client) {
	defer func() {
		h.hub.Unregister(c)
		c.conn.Close()
	}()

	for {
		_, msg, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.log.WithError(err).WithField("client", c.id).Warn("WebSocket read error")
			}
			return
		}

		h.handleMessage(c, msg)
	}
}

func (h *Handler) handleMessage(c *Client, msg []byte) {
	var env Envelope
	if err := json.Unmarshal(msg, &env); err != nil {
		h.log.WithError(err).WithField("client", c.id).Warn("Invalid message")
		return
	}

	switch env.Type {
	case TypeLiveStart:
		h.engine.Start()

	case TypeLiveStop:
		h.engine.Stop()

	case TypeLiveReset:
		h.engine.Reset()

	default:
		h.log.WithFields(logrus.Fields{"client": c.id, "type": env.Type}).Warn("Unknown message type")
	}
}

// send queues msg for one client without blocking.
func send(c *Client, msg []byte) {
	select {
	case c.send <- msg:
	default:
	}
}

func (h *Handler) sendCatalog(c *Client) {
	cat := h.catalogs.Current()
	if cat == nil {
		return
	}
	msg, err := NewEnvelope(TypeCatalogLoaded, CatalogPayload{SensorGroups: cat.Groups()})
	if err != nil {
		h.log.WithError(err).Error("Creating catalog:loaded message")
		return
	}
	send(c, msg)
}

func (h *Handler) sendState(c *Client) {
	msg, err := NewEnvelope(TypeLiveState, LiveStateFromEngine(h.engine.State()))
	if err != nil {
		return
	}
	send(c, msg)
}

func (h *Handler) sendHistory(ctx context.Context, c *Client) {
	d, err := h.src.DynamicGraph(ctx, time.Time{})
	if err != nil {
		h.log.WithError(err).WithField("client", c.id).Error("Loading dynamic graph")
		return
	}
	if d.NoResults {
		return
	}
	msg, err := NewEnvelope(TypeGraphPoints, d)
	if err != nil {
		h.log.WithError(err).Error("Creating graph:points message")
		return
	}
	send(c, msg)
}

package feed

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/douxbatter/storefront/utils"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

const writeWait = 5 * time.Second

type Message struct {
	Event string      `json:"event"`
	Data  interface{} `json:"data"`
	At    time.Time   `json:"at"`
}

// conn is the slice of *websocket.Conn the hub needs.
type conn interface {
	SetWriteDeadline(t time.Time) error
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// Hub fans order events out to the admin dashboards that are connected.
type Hub struct {
	mu      sync.Mutex
	clients map[conn]string
}

func NewHub() *Hub {
	return &Hub{clients: make(map[conn]string)}
}

// Register adds a connection; session identifies who opened it in the logs.
func (h *Hub) Register(c *websocket.Conn, session string) {
	h.add(c, session)
}

func (h *Hub) add(c conn, session string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c] = session
	utils.InfoLogger.WithFields(logrus.Fields{
		"session": session,
		"clients": len(h.clients),
	}).Info("Admin feed client connected")
}

// Unregister removes and closes a connection.
func (h *Hub) Unregister(c *websocket.Conn) {
	h.remove(c)
}

func (h *Hub) remove(c conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		c.Close()
	}
}

// Clients is the number of connected dashboards.
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Publish sends an event to every client. Clients that can't keep up are
// dropped.
func (h *Hub) Publish(event string, payload interface{}) {
	data, err := json.Marshal(Message{Event: event, Data: payload, At: time.Now().UTC()})
	if err != nil {
		utils.ErrorLogger.WithField("event", event).WithError(err).Error("Failed to encode feed message")
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	for c, session := range h.clients {
		c.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.WriteMessage(websocket.TextMessage, data); err != nil {
			utils.ErrorLogger.WithFields(logrus.Fields{
				"event":   event,
				"session": session,
			}).WithError(err).Warn("Dropping admin feed client")
			delete(h.clients, c)
			c.Close()
		}
	}
}

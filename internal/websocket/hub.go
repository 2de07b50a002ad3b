package websocket

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/hollis-dev/rollcall/internal/model"
)

// Event is a real-time notification pushed to every connected kiosk display
// when the attendance state changes. Attendance is nil for events that carry
// no record.
type Event struct {
	Type       string                  `json:"type"`
	At         time.Time               `json:"at"`
	Attendance *model.AttendanceRecord `json:"attendance,omitempty"`
}

// NewEvent creates an Event stamped with the current time.
func NewEvent(eventType string, record *model.AttendanceRecord) Event {
	return Event{
		Type:       eventType,
		At:         time.Now().UTC(),
		Attendance: record,
	}
}

// Hub maintains the set of connected kiosk displays and broadcasts events.
type Hub struct {
	mu      sync.RWMutex
	clients map[*Client]struct{}
	logger  *slog.Logger
}

// NewHub creates a new Hub.
func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		clients: make(map[*Client]struct{}),
		logger:  logger,
	}
}

// Register adds a client to the hub.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
}

// Unregister removes a client from the hub and closes its send channel.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
	h.mu.Unlock()
}

// Broadcast sends an event to all connected displays.
func (h *Hub) Broadcast(event Event) {
	data, err := json.Marshal(event)
	if err != nil {
		h.logger.Error("marshal broadcast", "error", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for c := range h.clients {
		select {
		case c.send <- data:
		default:
			// Client buffer full — drop event to avoid blocking
		}
	}
}

// ClientCount returns the number of connected displays.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

package websocket

import (
	"encoding/json"
	"log/slog"
	"sync"
	"sync/atomic"
)

// Event is a backup lifecycle notification pushed to every connected admin
// client. Type is "backup_<operation>_<status>", e.g. "backup_import_completed".
type Event struct {
	Type      string         `json:"type"`
	Operation string         `json:"operation"`
	Status    string         `json:"status"`
	RecordID  int64          `json:"record_id,omitempty"`
	OpID      string         `json:"op_id,omitempty"`
	Detail    map[string]any `json:"detail,omitempty"`
}

// NewEvent creates an Event with Type derived from operation and status.
func NewEvent(operation, status string, recordID int64, detail map[string]any) Event {
	return Event{
		Type:      "backup_" + operation + "_" + status,
		Operation: operation,
		Status:    status,
		RecordID:  recordID,
		Detail:    detail,
	}
}

// WithOp tags the event with the id of the operation that produced it.
func (e Event) WithOp(opID string) Event {
	e.OpID = opID
	return e
}

// Hub maintains the set of active WebSocket clients and fans events out to them.
type Hub struct {
	mu      sync.RWMutex
	clients map[*Client]struct{}
	dropped atomic.Int64
	logger  *slog.Logger
}

// NewHub creates a new Hub.
func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		clients: make(map[*Client]struct{}),
		logger:  logger.With("component", "websocket"),
	}
}

// Register adds a client to the hub.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	n := len(h.clients)
	h.mu.Unlock()
	h.logger.Debug("client connected", "clients", n)
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

// Broadcast sends an event to all connected clients. Clients whose buffer is
// full miss the event.
func (h *Hub) Broadcast(ev Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		h.logger.Error("marshal event", "type", ev.Type, "error", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for c := range h.clients {
		select {
		case c.send <- data:
		default:
			h.dropped.Add(1)
		}
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Dropped returns how many deliveries were skipped because a client was slow.
func (h *Hub) Dropped() int64 {
	return h.dropped.Load()
}

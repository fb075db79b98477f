// Package realtime pushes booking status transitions to WebSocket clients so
// a presentation layer can follow a saga live instead of polling.
package realtime

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"medbook/internal/booking"
)

// StatusUpdate is the wire message broadcast on every state transition.
type StatusUpdate struct {
	RequestID   string         `json:"request_id"`
	Status      booking.Status `json:"status"`
	ReferenceID string         `json:"reference_id,omitempty"`
	FinalPrice  float64        `json:"final_price,omitempty"`
	Error       string         `json:"error,omitempty"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

// Hub manages WebSocket clients and broadcasts booking updates to them.
type Hub struct {
	connections map[*websocket.Conn]struct{}
	Register    chan *websocket.Conn
	Unregister  chan *websocket.Conn
	broadcast   chan []byte
	mu          sync.Mutex
}

// NewHub constructs a Hub.
func NewHub() *Hub {
	return &Hub{
		connections: make(map[*websocket.Conn]struct{}),
		Register:    make(chan *websocket.Conn),
		Unregister:  make(chan *websocket.Conn),
		broadcast:   make(chan []byte, 64),
	}
}

// BroadcastState queues a status update for all connected clients. The saga
// must never block on a slow consumer, so the update is dropped when the
// queue is full.
func (h *Hub) BroadcastState(state booking.State) {
	msg, err := json.Marshal(StatusUpdate{
		RequestID:   state.RequestID,
		Status:      state.Status,
		ReferenceID: state.ReferenceID,
		FinalPrice:  state.FinalPrice,
		Error:       state.Error,
		UpdatedAt:   state.UpdatedAt,
	})
	if err != nil {
		return
	}
	select {
	case h.broadcast <- msg:
	default:
	}
}

// Run processes register/unregister/broadcast events.
func (h *Hub) Run() {
	for {
		select {
		case conn := <-h.Register:
			h.mu.Lock()
			h.connections[conn] = struct{}{}
			h.mu.Unlock()
		case conn := <-h.Unregister:
			h.mu.Lock()
			delete(h.connections, conn)
			h.mu.Unlock()
			conn.Close()
		case msg := <-h.broadcast:
			h.mu.Lock()
			for conn := range h.connections {
				if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
					conn.Close()
					delete(h.connections, conn)
				}
			}
			h.mu.Unlock()
		}
	}
}

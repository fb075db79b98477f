// Package store holds the keyed side-effect stores consumed by the booking
// saga: slot reservations, confirmations and the daily discount quota. The
// in-memory implementations are mutex-guarded maps and do not survive a
// restart; a deployment that needs crash recovery must swap in persistent
// stores.
package store

import (
	"strings"
	"sync"
	"time"
)

// SlotReservation is an appointment slot held for a request.
type SlotReservation struct {
	SlotID     string    `json:"slot_id"`
	ReservedAt time.Time `json:"reserved_at"`
}

// SlotStore keeps one reservation per request id.
type SlotStore struct {
	mu    sync.Mutex
	slots map[string]SlotReservation
	now   func() time.Time
}

// NewSlotStore constructs an empty slot store.
func NewSlotStore() *SlotStore {
	return &SlotStore{
		slots: make(map[string]SlotReservation),
		now:   time.Now,
	}
}

// Reserve holds a slot for the request. Reserving twice for the same request
// returns the existing reservation rather than creating a second one.
func (s *SlotStore) Reserve(requestID string) SlotReservation {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.slots[requestID]; ok {
		return existing
	}

	reservation := SlotReservation{
		SlotID:     "SLOT-" + strings.ToUpper(shortID(requestID)),
		ReservedAt: s.now(),
	}
	s.slots[requestID] = reservation
	return reservation
}

// Reserved reports whether a slot is held for the request.
func (s *SlotStore) Reserved(requestID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.slots[requestID]
	return ok
}

// Release frees the slot held for the request, if any.
func (s *SlotStore) Release(requestID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.slots[requestID]
	delete(s.slots, requestID)
	return ok
}

// Clear drops all reservations. Test and reset support.
func (s *SlotStore) Clear() {
	s.mu.Lock()
	s.slots = make(map[string]SlotReservation)
	s.mu.Unlock()
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

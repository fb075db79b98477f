package store

import (
	"sync"
	"time"
)

// Confirmation is a completed booking confirmation record.
type Confirmation struct {
	ReferenceID string    `json:"reference_id"`
	CreatedAt   time.Time `json:"created_at"`
}

// ConfirmationStore keeps one confirmation per request id.
type ConfirmationStore struct {
	mu            sync.Mutex
	confirmations map[string]Confirmation
	now           func() time.Time
}

// NewConfirmationStore constructs an empty confirmation store.
func NewConfirmationStore() *ConfirmationStore {
	return &ConfirmationStore{
		confirmations: make(map[string]Confirmation),
		now:           time.Now,
	}
}

// Create records a confirmation for the request. Creates are upserts.
func (s *ConfirmationStore) Create(requestID, referenceID string) {
	s.mu.Lock()
	s.confirmations[requestID] = Confirmation{
		ReferenceID: referenceID,
		CreatedAt:   s.now(),
	}
	s.mu.Unlock()
}

// Has reports whether a confirmation exists for the request.
func (s *ConfirmationStore) Has(requestID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.confirmations[requestID]
	return ok
}

// Get returns the confirmation for the request, if any.
func (s *ConfirmationStore) Get(requestID string) (Confirmation, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.confirmations[requestID]
	return c, ok
}

// Delete removes the confirmation for the request.
func (s *ConfirmationStore) Delete(requestID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.confirmations[requestID]
	delete(s.confirmations, requestID)
	return ok
}

// Clear drops all confirmations. Test and reset support.
func (s *ConfirmationStore) Clear() {
	s.mu.Lock()
	s.confirmations = make(map[string]Confirmation)
	s.mu.Unlock()
}

package booking

import (
	"sync"
	"time"

	"medbook/internal/catalog"
)

// Store is the booking state table: one State per request id, mutated only
// through Update so UpdatedAt stays accurate and readers never observe a
// half-applied transition.
type Store struct {
	mu       sync.Mutex
	bookings map[string]State
	now      func() time.Time
}

// NewStore constructs an empty booking state table.
func NewStore() *Store {
	return &Store{
		bookings: make(map[string]State),
		now:      time.Now,
	}
}

// WithClock overrides the clock. Test support.
func (s *Store) WithClock(now func() time.Time) *Store {
	s.now = now
	return s
}

// Save inserts or replaces the state for its request id.
func (s *Store) Save(state State) {
	s.mu.Lock()
	s.bookings[state.RequestID] = clone(state)
	s.mu.Unlock()
}

// Get returns a copy of the state for the request, if any.
func (s *Store) Get(requestID string) (State, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	state, ok := s.bookings[requestID]
	if !ok {
		return State{}, false
	}
	return clone(state), true
}

// Update applies fn to the state for the request under the table lock and
// stamps UpdatedAt. It returns the updated state, or false if no state
// exists for the request.
func (s *Store) Update(requestID string, fn func(*State)) (State, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	state, ok := s.bookings[requestID]
	if !ok {
		return State{}, false
	}

	updated := clone(state)
	fn(&updated)
	updated.UpdatedAt = s.now()
	s.bookings[requestID] = clone(updated)
	return updated, true
}

// All returns a copy of every stored state.
func (s *Store) All() []State {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]State, 0, len(s.bookings))
	for _, state := range s.bookings {
		out = append(out, clone(state))
	}
	return out
}

// Clear drops all states. Test and reset support.
func (s *Store) Clear() {
	s.mu.Lock()
	s.bookings = make(map[string]State)
	s.mu.Unlock()
}

func clone(state State) State {
	out := state
	if state.SelectedServices != nil {
		out.SelectedServices = append([]catalog.Service(nil), state.SelectedServices...)
	}
	if state.CompensationActions != nil {
		out.CompensationActions = append([]CompensationAction(nil), state.CompensationActions...)
	}
	return out
}

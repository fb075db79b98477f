package store

import (
	"context"
	"sync"
)

// QuotaStatus is a point-in-time view of the daily discount quota.
type QuotaStatus struct {
	Date      string `json:"date"`
	Granted   int    `json:"granted"`
	Max       int    `json:"max"`
	Remaining int    `json:"remaining"`
}

// QuotaStore limits how many R1 discounts may be granted per civil date.
// Grant must be a single atomic check-and-increment: two callers racing for
// the last unit must not both succeed.
type QuotaStore interface {
	Grant(ctx context.Context, date string) (bool, error)
	Revoke(ctx context.Context, date string) error
	Status(ctx context.Context, date string) (QuotaStatus, error)
	Reset(ctx context.Context, date string) error
}

// MemoryQuotaStore is a mutex-guarded quota counter keyed by civil date.
// Dates roll over implicitly: a new date key starts at zero grants.
type MemoryQuotaStore struct {
	mu      sync.Mutex
	max     int
	granted map[string]int
}

// NewMemoryQuotaStore constructs a quota store with the given daily maximum.
func NewMemoryQuotaStore(max int) *MemoryQuotaStore {
	return &MemoryQuotaStore{
		max:     max,
		granted: make(map[string]int),
	}
}

// Grant consumes one unit of the date's quota. Returns false when exhausted.
func (s *MemoryQuotaStore) Grant(ctx context.Context, date string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.granted[date] >= s.max {
		return false, nil
	}
	s.granted[date]++
	return true, nil
}

// Revoke returns one unit to the date's quota, never going below zero.
func (s *MemoryQuotaStore) Revoke(ctx context.Context, date string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.granted[date] > 0 {
		s.granted[date]--
	}
	return nil
}

// Status reports granted, max and remaining for the date.
func (s *MemoryQuotaStore) Status(ctx context.Context, date string) (QuotaStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	granted := s.granted[date]
	return QuotaStatus{
		Date:      date,
		Granted:   granted,
		Max:       s.max,
		Remaining: s.max - granted,
	}, nil
}

// Reset clears the date's counter. Test and reset support.
func (s *MemoryQuotaStore) Reset(ctx context.Context, date string) error {
	s.mu.Lock()
	delete(s.granted, date)
	s.mu.Unlock()
	return nil
}

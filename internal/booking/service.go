package booking

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"medbook/internal/events"
	"medbook/internal/observability"
)

// Service is the saga entry point. Initiate returns immediately with the
// pending state; the saga then runs asynchronously and callers poll Status
// for a terminal outcome. There is no cancellation of an in-flight saga.
type Service struct {
	bus      *events.Bus
	bookings *Store
	logger   *slog.Logger
	metrics  *observability.Metrics
	now      func() time.Time
}

// NewService constructs the orchestration entry point.
func NewService(bus *events.Bus, bookings *Store, logger *slog.Logger, metrics *observability.Metrics) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		bus:      bus,
		bookings: bookings,
		logger:   logger,
		metrics:  metrics,
		now:      time.Now,
	}
}

// WithClock overrides the clock. Test support.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Initiate starts a new saga and returns the pending state. A request id
// that already has a saga returns that saga's current state instead of
// starting a second one. An empty request id gets a generated one.
func (s *Service) Initiate(ctx context.Context, req Request) State {
	if req.RequestID == "" {
		req.RequestID = uuid.NewString()
	}
	if existing, ok := s.bookings.Get(req.RequestID); ok {
		s.logger.Warn("duplicate booking initiation ignored", "request_id", req.RequestID)
		return existing
	}

	correlationID := uuid.NewString()
	logger := s.logger.With("request_id", req.RequestID, "correlation_id", correlationID)
	logger.Info("initiating booking workflow", "service_count", len(req.SelectedServices))

	now := s.now()
	state := State{
		RequestID:           req.RequestID,
		User:                req.User,
		SelectedServices:    nil,
		Status:              StatusPending,
		FailAt:              req.FailAt,
		CompensationActions: []CompensationAction{},
		CreatedAt:           now,
		UpdatedAt:           now,
	}
	s.bookings.Save(state)
	s.metrics.SagaStarted()

	event := events.Event{
		ID:            uuid.NewString(),
		Type:          EventBookingInitiated,
		RequestID:     req.RequestID,
		CorrelationID: correlationID,
		Timestamp:     now,
		Payload: InitiatedPayload{
			User:             req.User,
			SelectedServices: req.SelectedServices,
			FailAt:           req.FailAt,
		},
	}

	// The saga chain must outlive the caller's request context.
	sagaCtx := context.WithoutCancel(ctx)
	go func() {
		if err := s.bus.Publish(sagaCtx, event); err != nil {
			logger.Error("saga dispatch failed", "error", err)
		}
	}()

	return state
}

// Status returns the current state of a saga, if any.
func (s *Service) Status(requestID string) (State, bool) {
	return s.bookings.Get(requestID)
}

// History returns the audit event log for a request, in publish order.
func (s *Service) History(requestID string) []events.Event {
	return s.bus.History(requestID)
}

// All returns every booking state. Admin and test support.
func (s *Service) All() []State {
	return s.bookings.All()
}

package booking

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"medbook/internal/catalog"
	"medbook/internal/events"
	"medbook/internal/observability"
	"medbook/internal/pricing"
	"medbook/internal/store"
)

// PriceCalculator is the pricing engine as the saga sees it.
type PriceCalculator interface {
	Calculate(ctx context.Context, gender catalog.Gender, dateOfBirth string, services []catalog.Service, requestID, correlationID string) (pricing.Result, error)
	RevokeR1(ctx context.Context, requestID, correlationID string) error
}

// SlotKeeper holds slot reservations keyed by request id.
type SlotKeeper interface {
	Reserve(requestID string) store.SlotReservation
	Reserved(requestID string) bool
	Release(requestID string) bool
}

// ConfirmationKeeper holds booking confirmations keyed by request id.
type ConfirmationKeeper interface {
	Create(requestID, referenceID string)
	Has(requestID string) bool
	Delete(requestID string) bool
}

// Archiver persists terminal booking states. Best effort; the in-memory
// state table stays authoritative.
type Archiver interface {
	Record(ctx context.Context, state State) error
}

// SagaConfig wires the saga's collaborators. Metrics, OnStatusChange and
// Archive are optional.
type SagaConfig struct {
	Bus           *events.Bus
	Bookings      *Store
	Slots         SlotKeeper
	Confirmations ConfirmationKeeper
	Pricing       PriceCalculator
	Logger        *slog.Logger
	Metrics       *observability.Metrics

	// OnStatusChange fires after every state transition, with the updated
	// state. Used to feed the realtime hub.
	OnStatusChange func(State)

	// Archive receives every terminal state.
	Archive Archiver
}

// Saga owns the event handlers that advance or compensate one booking.
// Constructing it subscribes the handlers on the bus; the bus's sequential
// dispatch then drives each saga as one uninterrupted chain.
type Saga struct {
	cfg SagaConfig
	now func() time.Time
}

// NewSaga registers the saga's handlers on the configured bus.
func NewSaga(cfg SagaConfig) *Saga {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	s := &Saga{cfg: cfg, now: time.Now}

	for _, sub := range []struct {
		eventType string
		handler   events.Handler
	}{
		{EventBookingInitiated, s.handleInitiated},
		{EventUserValidated, s.handleValidated},
		{EventSlotReserved, s.handleReserved},
		{EventPriceCalculated, s.handlePriceCalculated},
		{EventCompensationRequired, s.handleCompensationRequired},
		{EventBookingFailed, s.handleFailed},
	} {
		cfg.Bus.Subscribe(sub.eventType, s.instrument(sub.eventType, sub.handler))
	}
	return s
}

// WithClock overrides the clock. Test support.
func (s *Saga) WithClock(now func() time.Time) *Saga {
	s.now = now
	return s
}

func (s *Saga) instrument(step string, h events.Handler) events.Handler {
	return func(ctx context.Context, e events.Event) error {
		span := s.cfg.Metrics.StartStep(step)
		err := h(ctx, e)
		span.End(err)
		return err
	}
}

func (s *Saga) logger(e events.Event) *slog.Logger {
	return s.cfg.Logger.With("request_id", e.RequestID, "correlation_id", e.CorrelationID)
}

// handleInitiated validates the request. Validation failures carry no side
// effects yet, so they go straight to the failed branch.
func (s *Saga) handleInitiated(ctx context.Context, e events.Event) error {
	logger := s.logger(e)
	payload, ok := e.Payload.(InitiatedPayload)
	if !ok {
		return fmt.Errorf("unexpected payload type %T for %s", e.Payload, e.Type)
	}
	logger.Info("processing booking initiation", "service_count", len(payload.SelectedServices))

	if reason := validate(payload); reason != "" {
		logger.Warn("booking validation failed", "reason", reason)
		return s.publishNext(ctx, e, EventBookingFailed, FailurePayload{Error: reason})
	}

	services := make([]catalog.Service, 0, len(payload.SelectedServices))
	for _, id := range payload.SelectedServices {
		svc, found := catalog.ServiceByID(id)
		if !found {
			reason := fmt.Sprintf("unknown service id: %s", id)
			logger.Warn("booking validation failed", "reason", reason)
			return s.publishNext(ctx, e, EventBookingFailed, FailurePayload{Error: reason})
		}
		services = append(services, svc)
	}

	var ineligible []string
	for _, svc := range services {
		if !svc.OfferedTo(payload.User.Gender) {
			ineligible = append(ineligible, svc.Name)
		}
	}
	if len(ineligible) > 0 {
		reason := fmt.Sprintf("services not available for %s: %s", payload.User.Gender, strings.Join(ineligible, ", "))
		logger.Warn("booking validation failed", "reason", reason)
		return s.publishNext(ctx, e, EventBookingFailed, FailurePayload{Error: reason})
	}

	s.transition(e.RequestID, StatusValidating, func(state *State) {
		state.User = payload.User
		state.SelectedServices = services
		state.FailAt = payload.FailAt
	})

	return s.publishNext(ctx, e, EventUserValidated, ValidatedPayload{User: payload.User, Services: services})
}

// handleValidated reserves the slot, the saga's first compensable side
// effect.
func (s *Saga) handleValidated(ctx context.Context, e events.Event) error {
	logger := s.logger(e)
	state, ok := s.cfg.Bookings.Get(e.RequestID)
	if !ok {
		logger.Error("booking state not found")
		return nil
	}

	s.transition(e.RequestID, StatusReservingSlot, nil)
	reservation := s.cfg.Slots.Reserve(e.RequestID)
	logger.Info("slot reserved", "slot_id", reservation.SlotID)

	if state.FailAt == FailReserveSlot {
		return s.publishNext(ctx, e, EventCompensationRequired, FailurePayload{
			Error: "simulated failure at reserve_slot",
		})
	}

	return s.publishNext(ctx, e, EventSlotReserved, ReservedPayload{Reservation: reservation})
}

// handleReserved runs the pricing engine. Quota exhaustion and computation
// errors are fatal and compensable; a degraded holiday lookup is only a
// warning folded into the state.
func (s *Saga) handleReserved(ctx context.Context, e events.Event) error {
	logger := s.logger(e)
	state, ok := s.cfg.Bookings.Get(e.RequestID)
	if !ok || state.User.Name == "" || len(state.SelectedServices) == 0 {
		logger.Error("invalid state for price calculation")
		return s.publishNext(ctx, e, EventBookingFailed, FailurePayload{
			Error: "invalid state for price calculation",
		})
	}

	s.transition(e.RequestID, StatusCalculatingPrice, nil)

	result, err := s.cfg.Pricing.Calculate(ctx, state.User.Gender, state.User.DateOfBirth, state.SelectedServices, e.RequestID, e.CorrelationID)
	if err != nil {
		logger.Error("price calculation failed", "error", err)
		return s.publishNext(ctx, e, EventCompensationRequired, FailurePayload{
			Error: fmt.Sprintf("price calculation failed: %v", err),
		})
	}

	if result.R1QuotaExhausted {
		return s.publishNext(ctx, e, EventCompensationRequired, FailurePayload{
			Error:   "daily discount quota reached, please try again tomorrow",
			Pricing: &result,
		})
	}

	s.transition(e.RequestID, StatusProcessing, func(state *State) {
		state.BasePrice = result.BasePrice
		state.R1DiscountApplied = result.R1Applied
		state.R2DiscountApplied = result.R2Applied
		state.FinalPrice = result.FinalPrice
		state.HolidayWarning = result.HolidayWarning
	})

	if state.FailAt == FailAfterPrice {
		return s.publishNext(ctx, e, EventCompensationRequired, FailurePayload{
			Error:   "simulated failure at after_price",
			Pricing: &result,
		})
	}

	return s.publishNext(ctx, e, EventPriceCalculated, PricePayload{Pricing: result})
}

// handlePriceCalculated mints the reference id, creates the confirmation and
// completes the saga.
func (s *Saga) handlePriceCalculated(ctx context.Context, e events.Event) error {
	logger := s.logger(e)
	state, ok := s.cfg.Bookings.Get(e.RequestID)
	if !ok {
		logger.Error("booking state not found")
		return nil
	}

	referenceID := s.mintReference(e.RequestID)
	s.cfg.Confirmations.Create(e.RequestID, referenceID)
	s.transition(e.RequestID, StatusProcessing, func(state *State) {
		state.ReferenceID = referenceID
	})
	logger.Info("booking confirmation created", "reference_id", referenceID)

	if state.FailAt == FailCompleteBooking {
		return s.publishNext(ctx, e, EventCompensationRequired, FailurePayload{
			Error: "simulated failure at complete_booking",
		})
	}

	completed := s.transition(e.RequestID, StatusCompleted, nil)
	s.cfg.Metrics.SagaCompleted()
	s.archive(ctx, completed)
	logger.Info("booking completed", "reference_id", referenceID, "final_price", completed.FinalPrice)

	return s.publishNext(ctx, e, EventBookingCompleted, CompletedPayload{
		ReferenceID: referenceID,
		FinalPrice:  completed.FinalPrice,
	})
}

// handleCompensationRequired undoes completed side effects in a fixed order.
// Each action is attempted and logged independently; one failing never stops
// the next. The saga then terminates failed with the triggering error.
func (s *Saga) handleCompensationRequired(ctx context.Context, e events.Event) error {
	logger := s.logger(e)
	state, ok := s.cfg.Bookings.Get(e.RequestID)
	if !ok {
		logger.Error("booking state not found for compensation")
		return nil
	}

	logger.Info("starting compensation")
	s.transition(e.RequestID, StatusCompensating, nil)
	s.cfg.Metrics.CompensationRun()

	var actions []CompensationAction

	if s.cfg.Confirmations.Has(e.RequestID) {
		var err error
		if !s.cfg.Confirmations.Delete(e.RequestID) {
			err = fmt.Errorf("confirmation not found for %s", e.RequestID)
		}
		actions = append(actions, s.action(logger, ActionDeleteConfirmation, err))
	}

	if s.cfg.Slots.Reserved(e.RequestID) {
		var err error
		if !s.cfg.Slots.Release(e.RequestID) {
			err = fmt.Errorf("reservation not found for %s", e.RequestID)
		}
		actions = append(actions, s.action(logger, ActionReleaseSlot, err))
	}

	if state.R1DiscountApplied {
		err := s.cfg.Pricing.RevokeR1(ctx, e.RequestID, e.CorrelationID)
		actions = append(actions, s.action(logger, ActionRevokeR1Quota, err))
	}

	reason := "booking failed"
	if payload, ok := e.Payload.(FailurePayload); ok && payload.Error != "" {
		reason = payload.Error
	}

	failed := s.transition(e.RequestID, StatusFailed, func(state *State) {
		state.Error = reason
		state.ReferenceID = ""
		state.CompensationActions = append(state.CompensationActions, actions...)
	})
	s.cfg.Metrics.SagaFailed()
	s.archive(ctx, failed)
	logger.Info("compensation completed", "actions", len(actions), "error", reason)

	return s.publishNext(ctx, e, EventCompensationCompleted, CompensationCompletedPayload{Actions: actions})
}

// handleFailed terminates validation-only failures. If side effects exist
// after all, a defensive check redirects into the compensation branch.
func (s *Saga) handleFailed(ctx context.Context, e events.Event) error {
	logger := s.logger(e)
	reason := "booking failed"
	if payload, ok := e.Payload.(FailurePayload); ok && payload.Error != "" {
		reason = payload.Error
	}
	logger.Info("booking failed", "error", reason)

	state, found := s.cfg.Bookings.Get(e.RequestID)
	if found && (state.R1DiscountApplied || state.ReferenceID != "" ||
		s.cfg.Slots.Reserved(e.RequestID) || s.cfg.Confirmations.Has(e.RequestID)) {
		return s.publishNext(ctx, e, EventCompensationRequired, FailurePayload{Error: reason})
	}
	if !found {
		logger.Error("booking state not found")
		return nil
	}

	failed := s.transition(e.RequestID, StatusFailed, func(state *State) {
		state.Error = reason
	})
	s.cfg.Metrics.SagaFailed()
	s.archive(ctx, failed)
	return nil
}

// transition applies the status change plus mutate under the table lock and
// notifies the status listener.
func (s *Saga) transition(requestID string, status Status, mutate func(*State)) State {
	updated, ok := s.cfg.Bookings.Update(requestID, func(state *State) {
		if mutate != nil {
			mutate(state)
		}
		state.Status = status
	})
	if ok && s.cfg.OnStatusChange != nil {
		s.cfg.OnStatusChange(updated)
	}
	return updated
}

func (s *Saga) action(logger *slog.Logger, name string, err error) CompensationAction {
	action := CompensationAction{
		Action:    name,
		Status:    "completed",
		Timestamp: s.now(),
	}
	if err != nil {
		action.Status = "failed"
		action.Error = err.Error()
		logger.Error("compensation action failed", "action", name, "error", err)
	} else {
		logger.Info("compensation action completed", "action", name)
	}
	s.cfg.Metrics.CompensationAction(name, err != nil)
	return action
}

func (s *Saga) archive(ctx context.Context, state State) {
	if s.cfg.Archive == nil || state.RequestID == "" {
		return
	}
	if err := s.cfg.Archive.Record(ctx, state); err != nil {
		s.cfg.Logger.Error("booking archive write failed",
			"request_id", state.RequestID,
			"error", err,
		)
	}
}

func (s *Saga) publishNext(ctx context.Context, prev events.Event, eventType string, payload any) error {
	return s.cfg.Bus.Publish(ctx, events.Event{
		ID:            uuid.NewString(),
		Type:          eventType,
		RequestID:     prev.RequestID,
		CorrelationID: prev.CorrelationID,
		Timestamp:     s.now(),
		Payload:       payload,
	})
}

func (s *Saga) mintReference(requestID string) string {
	short := requestID
	if len(short) > 8 {
		short = short[:8]
	}
	stamp := strconv.FormatInt(s.now().UnixMilli(), 36)
	return "MB-" + strings.ToUpper(short) + "-" + strings.ToUpper(stamp)
}

func validate(payload InitiatedPayload) string {
	switch {
	case payload.User.Name == "":
		return "invalid user data: missing name"
	case payload.User.DateOfBirth == "":
		return "invalid user data: missing date of birth"
	case !payload.User.Gender.Valid():
		return "invalid user data: unknown gender"
	case len(payload.SelectedServices) == 0:
		return "no services selected"
	case !payload.FailAt.Valid():
		return fmt.Sprintf("unknown failure point: %s", payload.FailAt)
	}
	return ""
}

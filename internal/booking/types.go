// Package booking implements the saga that takes a booking request from
// initiation through validation, slot reservation, pricing and confirmation,
// compensating completed side effects when a later step fails.
package booking

import (
	"time"

	"medbook/internal/catalog"
	"medbook/internal/pricing"
	"medbook/internal/store"
)

// Status is the lifecycle state of one booking saga. It moves strictly
// forward except for the compensating branch, which always terminates in
// StatusFailed.
type Status string

const (
	StatusPending          Status = "pending"
	StatusValidating       Status = "validating"
	StatusReservingSlot    Status = "reserving_slot"
	StatusCalculatingPrice Status = "calculating_price"
	StatusProcessing       Status = "processing"
	StatusCompleted        Status = "completed"
	StatusFailed           Status = "failed"
	StatusCompensating     Status = "compensating"
)

// Terminal reports whether the status is a terminal state.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// FailurePoint names a checkpoint at which a fault can be injected to
// deterministically exercise the compensation path.
type FailurePoint string

const (
	FailNone            FailurePoint = ""
	FailReserveSlot     FailurePoint = "reserve_slot"
	FailAfterPrice      FailurePoint = "after_price"
	FailCompleteBooking FailurePoint = "complete_booking"
)

// Valid reports whether the failure point is one of the defined checkpoints.
func (f FailurePoint) Valid() bool {
	switch f {
	case FailNone, FailReserveSlot, FailAfterPrice, FailCompleteBooking:
		return true
	}
	return false
}

// Event types published on the bus, in forward-chain order plus the three
// failure branches.
const (
	EventBookingInitiated      = "booking_initiated"
	EventUserValidated         = "user_validated"
	EventSlotReserved          = "slot_reserved"
	EventPriceCalculated       = "price_calculated"
	EventBookingCompleted      = "booking_completed"
	EventBookingFailed         = "booking_failed"
	EventCompensationRequired  = "compensation_required"
	EventCompensationCompleted = "compensation_completed"
)

// Compensation action names, in the fixed order they are attempted.
const (
	ActionDeleteConfirmation = "delete_booking_confirmation"
	ActionReleaseSlot        = "release_reserved_slot"
	ActionRevokeR1Quota      = "revoke_r1_discount_quota"
)

// User is the person the booking is for.
type User struct {
	Name        string         `json:"name"`
	Gender      catalog.Gender `json:"gender"`
	DateOfBirth string         `json:"date_of_birth"`
}

// Request starts one saga. RequestID is assigned by the caller; FailAt is
// test and demo support for forcing the compensation path.
type Request struct {
	RequestID        string       `json:"request_id"`
	User             User         `json:"user"`
	SelectedServices []string     `json:"selected_services"`
	FailAt           FailurePoint `json:"simulate_failure_at,omitempty"`
}

// CompensationAction records one attempted undo action and its outcome.
type CompensationAction struct {
	Action    string    `json:"action"`
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Error     string    `json:"error,omitempty"`
}

// State is the authoritative record of one saga, mutated only through the
// booking store's update operation.
type State struct {
	RequestID           string               `json:"request_id"`
	User                User                 `json:"user"`
	SelectedServices    []catalog.Service    `json:"selected_services"`
	BasePrice           float64              `json:"base_price"`
	R1DiscountApplied   bool                 `json:"r1_discount_applied"`
	R2DiscountApplied   bool                 `json:"r2_discount_applied"`
	FinalPrice          float64              `json:"final_price"`
	Status              Status               `json:"status"`
	FailAt              FailurePoint         `json:"simulate_failure_at,omitempty"`
	ReferenceID         string               `json:"reference_id,omitempty"`
	Error               string               `json:"error,omitempty"`
	HolidayWarning      string               `json:"holiday_warning,omitempty"`
	CompensationActions []CompensationAction `json:"compensation_actions"`
	CreatedAt           time.Time            `json:"created_at"`
	UpdatedAt           time.Time            `json:"updated_at"`
}

// Event payloads. The bus carries them as-is; handlers recover them by type
// assertion, falling back to booking state where a payload is absent.

// InitiatedPayload carries the raw request into the validation handler.
type InitiatedPayload struct {
	User             User         `json:"user"`
	SelectedServices []string     `json:"selected_services"`
	FailAt           FailurePoint `json:"simulate_failure_at,omitempty"`
}

// ValidatedPayload carries the resolved services forward.
type ValidatedPayload struct {
	User     User              `json:"user"`
	Services []catalog.Service `json:"services"`
}

// ReservedPayload carries the slot reservation forward.
type ReservedPayload struct {
	Reservation store.SlotReservation `json:"reservation"`
}

// PricePayload carries the pricing outcome forward.
type PricePayload struct {
	Pricing pricing.Result `json:"pricing_result"`
}

// CompletedPayload announces a confirmed booking.
type CompletedPayload struct {
	ReferenceID string  `json:"reference_id"`
	FinalPrice  float64 `json:"final_price"`
}

// FailurePayload carries the triggering error on the failure branches.
type FailurePayload struct {
	Error   string          `json:"error"`
	Pricing *pricing.Result `json:"pricing_result,omitempty"`
}

// CompensationCompletedPayload carries the per-action undo log.
type CompensationCompletedPayload struct {
	Actions []CompensationAction `json:"compensation_actions"`
}

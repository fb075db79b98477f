// Package pricing computes the booking price: base price plus two stacked
// discounts. R1 draws on a shared, date-scoped quota and R2 on an external
// holiday signal. Quota exhaustion is a hard failure for the caller; a
// degraded holiday lookup is only a warning.
package pricing

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"medbook/internal/catalog"
	"medbook/internal/civil"
	"medbook/internal/holiday"
	"medbook/internal/store"
)

const (
	r1Rate = 0.12
	r2Rate = 0.03

	highValueThreshold = 1000
)

// HolidayChecker is the external holiday signal. Implementations never
// return an error; failures fold into the Result's warning.
type HolidayChecker interface {
	CheckToday(ctx context.Context) holiday.Result
}

// Result is the outcome of one price calculation. It is folded into the
// booking state by the calling handler and not persisted on its own.
type Result struct {
	BasePrice        float64 `json:"base_price"`
	R1Applied        bool    `json:"r1_discount_applied"`
	R1Amount         float64 `json:"r1_discount_amount"`
	R2Applied        bool    `json:"r2_discount_applied"`
	R2Amount         float64 `json:"r2_discount_amount"`
	FinalPrice       float64 `json:"final_price"`
	R1QuotaExhausted bool    `json:"r1_quota_exhausted"`
	HolidayWarning   string  `json:"holiday_warning,omitempty"`
}

// Engine computes prices against a shared quota and holiday signal.
type Engine struct {
	quota   store.QuotaStore
	holiday HolidayChecker
	logger  *slog.Logger
	now     func() time.Time
}

// NewEngine constructs a pricing engine.
func NewEngine(quota store.QuotaStore, holidays HolidayChecker, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		quota:   quota,
		holiday: holidays,
		logger:  logger,
		now:     time.Now,
	}
}

// WithClock overrides the clock. Test support.
func (e *Engine) WithClock(now func() time.Time) *Engine {
	e.now = now
	return e
}

// Calculate computes the price for the resolved services. The ids are for
// traceability only. The caller decides pass/fail solely on
// Result.R1QuotaExhausted; a holiday warning never aborts the saga.
func (e *Engine) Calculate(ctx context.Context, gender catalog.Gender, dateOfBirth string, services []catalog.Service, requestID, correlationID string) (Result, error) {
	logger := e.logger.With("request_id", requestID, "correlation_id", correlationID)

	var result Result
	for _, s := range services {
		result.BasePrice += s.BasePrice
	}
	logger.Info("calculating price", "base_price", result.BasePrice, "service_count", len(services))

	now := e.now()
	isFemale := gender == catalog.Female
	isBirthday := civil.IsBirthday(dateOfBirth, now)
	isHighValue := result.BasePrice > highValueThreshold

	if (isFemale && isBirthday) || isHighValue {
		logger.Info("request qualifies for r1 discount",
			"is_female", isFemale,
			"is_birthday", isBirthday,
			"is_high_value", isHighValue,
		)

		granted, err := e.quota.Grant(ctx, civil.Date(now))
		if err != nil {
			return Result{}, fmt.Errorf("grant r1 quota: %w", err)
		}
		if granted {
			result.R1Applied = true
			result.R1Amount = result.BasePrice * r1Rate
			logger.Info("r1 discount granted", "r1_amount", result.R1Amount)
		} else {
			result.R1QuotaExhausted = true
			logger.Warn("r1 discount quota exhausted")
		}
	}

	holidayCheck := e.holiday.CheckToday(ctx)
	if holidayCheck.IsHoliday {
		result.R2Applied = true
		// R2 stacks on the post-R1 amount, not on the base price.
		result.R2Amount = (result.BasePrice - result.R1Amount) * r2Rate
		logger.Info("r2 holiday discount applied",
			"holiday", holidayCheck.Name,
			"r2_amount", result.R2Amount,
		)
	}
	if holidayCheck.Warning != "" {
		result.HolidayWarning = holidayCheck.Warning
		logger.Warn("holiday check degraded", "warning", holidayCheck.Warning)
	}

	result.FinalPrice = result.BasePrice - result.R1Amount - result.R2Amount
	logger.Info("price calculation completed",
		"base_price", result.BasePrice,
		"r1_applied", result.R1Applied,
		"r2_applied", result.R2Applied,
		"final_price", result.FinalPrice,
	)
	return result, nil
}

// RevokeR1 returns one unit to today's quota. Used by compensation after a
// saga that was granted the discount fails.
func (e *Engine) RevokeR1(ctx context.Context, requestID, correlationID string) error {
	e.logger.Info("revoking r1 discount quota",
		"request_id", requestID,
		"correlation_id", correlationID,
	)
	return e.quota.Revoke(ctx, civil.Date(e.now()))
}

// QuotaStatus reports today's quota usage.
func (e *Engine) QuotaStatus(ctx context.Context) (store.QuotaStatus, error) {
	return e.quota.Status(ctx, civil.Date(e.now()))
}

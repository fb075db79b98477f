package pricing

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"medbook/internal/catalog"
	"medbook/internal/civil"
	"medbook/internal/holiday"
	"medbook/internal/store"
)

func testLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

type stubHoliday struct {
	result holiday.Result
}

func (s stubHoliday) CheckToday(ctx context.Context) holiday.Result { return s.result }

type failingQuota struct{}

func (failingQuota) Grant(ctx context.Context, date string) (bool, error) {
	return false, errors.New("quota backend down")
}
func (failingQuota) Revoke(ctx context.Context, date string) error { return nil }
func (failingQuota) Status(ctx context.Context, date string) (store.QuotaStatus, error) {
	return store.QuotaStatus{}, nil
}
func (failingQuota) Reset(ctx context.Context, date string) error { return nil }

var (
	testNow = time.Date(2026, 8, 29, 12, 0, 0, 0, civil.Zone)

	cheapServices = []catalog.Service{
		{ID: "common-002", BasePrice: 400},
		{ID: "common-001", BasePrice: 500},
	}
	expensiveServices = []catalog.Service{
		{ID: "gyn-003", BasePrice: 1200},
		{ID: "gyn-001", BasePrice: 800},
	}
)

func newEngine(quota store.QuotaStore, h holiday.Result) *Engine {
	return NewEngine(quota, stubHoliday{result: h}, testLogger()).
		WithClock(func() time.Time { return testNow })
}

func TestCalculate_NoDiscounts(t *testing.T) {
	engine := newEngine(store.NewMemoryQuotaStore(100), holiday.Result{})

	result, err := engine.Calculate(context.Background(), catalog.Male, "1990-01-15", cheapServices, "req-1", "corr-1")
	if err != nil {
		t.Fatalf("calculate: %v", err)
	}

	if result.R1Applied || result.R2Applied || result.R1QuotaExhausted {
		t.Fatalf("no discount expected: %+v", result)
	}
	if result.FinalPrice != result.BasePrice || result.BasePrice != 900 {
		t.Fatalf("final price must equal base price: %+v", result)
	}
}

func TestCalculate_HighValueR1(t *testing.T) {
	quota := store.NewMemoryQuotaStore(100)
	engine := newEngine(quota, holiday.Result{})

	result, err := engine.Calculate(context.Background(), catalog.Male, "1990-01-15", expensiveServices, "req-1", "corr-1")
	if err != nil {
		t.Fatalf("calculate: %v", err)
	}

	if !result.R1Applied {
		t.Fatalf("expected r1 discount for base price > 1000")
	}
	if result.R1Amount != 2000*0.12 {
		t.Fatalf("r1 amount must be 12%% of base price, got %v", result.R1Amount)
	}
	if result.FinalPrice != 2000-240 {
		t.Fatalf("unexpected final price: %v", result.FinalPrice)
	}

	status, _ := quota.Status(context.Background(), civil.Date(testNow))
	if status.Granted != 1 {
		t.Fatalf("expected one quota grant, got %d", status.Granted)
	}
}

func TestCalculate_BirthdayR1RegardlessOfPrice(t *testing.T) {
	engine := newEngine(store.NewMemoryQuotaStore(100), holiday.Result{})

	result, err := engine.Calculate(context.Background(), catalog.Female, "1995-08-29", cheapServices, "req-1", "corr-1")
	if err != nil {
		t.Fatalf("calculate: %v", err)
	}

	if !result.R1Applied {
		t.Fatalf("female birthday must qualify for r1 regardless of base price")
	}
	if result.R1Amount != 900*0.12 {
		t.Fatalf("unexpected r1 amount: %v", result.R1Amount)
	}
}

func TestCalculate_MaleBirthdayDoesNotQualify(t *testing.T) {
	engine := newEngine(store.NewMemoryQuotaStore(100), holiday.Result{})

	result, err := engine.Calculate(context.Background(), catalog.Male, "1990-08-29", cheapServices, "req-1", "corr-1")
	if err != nil {
		t.Fatalf("calculate: %v", err)
	}
	if result.R1Applied {
		t.Fatalf("male birthday below threshold must not qualify for r1")
	}
}

func TestCalculate_QuotaExhausted(t *testing.T) {
	quota := store.NewMemoryQuotaStore(0)
	engine := newEngine(quota, holiday.Result{})

	result, err := engine.Calculate(context.Background(), catalog.Male, "1990-01-15", expensiveServices, "req-1", "corr-1")
	if err != nil {
		t.Fatalf("calculate: %v", err)
	}

	if !result.R1QuotaExhausted {
		t.Fatalf("expected quota exhaustion flag")
	}
	if result.R1Applied || result.R1Amount != 0 {
		t.Fatalf("no discount may apply when quota is exhausted: %+v", result)
	}
}

func TestCalculate_R2StacksOnPostR1Amount(t *testing.T) {
	engine := newEngine(store.NewMemoryQuotaStore(100), holiday.Result{IsHoliday: true, Name: "Diwali"})

	result, err := engine.Calculate(context.Background(), catalog.Male, "1990-01-15", expensiveServices, "req-1", "corr-1")
	if err != nil {
		t.Fatalf("calculate: %v", err)
	}

	wantR1 := 2000 * 0.12
	wantR2 := (2000 - wantR1) * 0.03
	if !result.R2Applied || result.R2Amount != wantR2 {
		t.Fatalf("r2 must be 3%% of post-r1 amount: %+v", result)
	}
	if result.FinalPrice != 2000-wantR1-wantR2 {
		t.Fatalf("unexpected final price: %v", result.FinalPrice)
	}
}

func TestCalculate_HolidayWarningIsNonFatal(t *testing.T) {
	engine := newEngine(store.NewMemoryQuotaStore(100), holiday.Result{Warning: "holiday API unavailable, no holiday found in fallback data"})

	result, err := engine.Calculate(context.Background(), catalog.Male, "1990-01-15", cheapServices, "req-1", "corr-1")
	if err != nil {
		t.Fatalf("warning must not fail the calculation: %v", err)
	}
	if result.HolidayWarning == "" {
		t.Fatalf("warning must surface in the result")
	}
	if result.R2Applied {
		t.Fatalf("no holiday means no r2 discount")
	}
}

func TestCalculate_QuotaBackendErrorIsFatal(t *testing.T) {
	engine := newEngine(failingQuota{}, holiday.Result{})

	if _, err := engine.Calculate(context.Background(), catalog.Male, "1990-01-15", expensiveServices, "req-1", "corr-1"); err == nil {
		t.Fatalf("quota backend failure must be fatal")
	}
}

func TestRevokeR1_ReturnsQuotaUnit(t *testing.T) {
	quota := store.NewMemoryQuotaStore(100)
	engine := newEngine(quota, holiday.Result{})

	if _, err := engine.Calculate(context.Background(), catalog.Male, "1990-01-15", expensiveServices, "req-1", "corr-1"); err != nil {
		t.Fatalf("calculate: %v", err)
	}
	if err := engine.RevokeR1(context.Background(), "req-1", "corr-1"); err != nil {
		t.Fatalf("revoke: %v", err)
	}

	status, _ := quota.Status(context.Background(), civil.Date(testNow))
	if status.Granted != 0 {
		t.Fatalf("expected quota back at zero, got %d", status.Granted)
	}
}

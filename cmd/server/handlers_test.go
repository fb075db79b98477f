package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"medbook/internal/booking"
	"medbook/internal/catalog"
	"medbook/internal/events"
	"medbook/internal/holiday"
	"medbook/internal/observability"
	"medbook/internal/pricing"
	"medbook/internal/store"
)

func newTestDeps() serverDeps {
	logger := slog.New(slog.DiscardHandler)

	bus := events.NewBus(logger)
	bookings := booking.NewStore()
	quota := store.NewMemoryQuotaStore(100)
	engine := pricing.NewEngine(quota, noHoliday{}, logger)

	booking.NewSaga(booking.SagaConfig{
		Bus:           bus,
		Bookings:      bookings,
		Slots:         store.NewSlotStore(),
		Confirmations: store.NewConfirmationStore(),
		Pricing:       engine,
		Logger:        logger,
	})

	return serverDeps{
		bookings: booking.NewService(bus, bookings, logger, nil),
		pricing:  engine,
		metrics:  observability.NewMetrics(),
		logger:   logger,
	}
}

type noHoliday struct{}

func (noHoliday) CheckToday(ctx context.Context) holiday.Result { return holiday.Result{} }

func TestHandleInitiate_AcceptsAndCompletes(t *testing.T) {
	deps := newTestDeps()
	srv := httptest.NewServer(newMux(deps))
	t.Cleanup(srv.Close)

	body := `{
		"request_id": "req-http-1",
		"user": {"name": "Ravi", "gender": "male", "date_of_birth": "1990-01-15"},
		"selected_services": ["common-001", "common-002"]
	}`
	resp, err := http.Post(srv.URL+"/bookings", "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("unexpected status: %d", resp.StatusCode)
	}

	var pending booking.State
	if err := json.NewDecoder(resp.Body).Decode(&pending); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if pending.Status != booking.StatusPending {
		t.Fatalf("initiate must return pending, got %s", pending.Status)
	}

	deadline := time.Now().Add(2 * time.Second)
	for {
		getResp, err := http.Get(srv.URL + "/bookings/req-http-1")
		if err != nil {
			t.Fatalf("get: %v", err)
		}
		var state booking.State
		if err := json.NewDecoder(getResp.Body).Decode(&state); err != nil {
			t.Fatalf("decode: %v", err)
		}
		getResp.Body.Close()
		if state.Status.Terminal() {
			if state.Status != booking.StatusCompleted {
				t.Fatalf("expected completed, got %s (%s)", state.Status, state.Error)
			}
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("saga did not reach a terminal status")
		}
		time.Sleep(5 * time.Millisecond)
	}

	evResp, err := http.Get(srv.URL + "/bookings/req-http-1/events")
	if err != nil {
		t.Fatalf("get events: %v", err)
	}
	defer evResp.Body.Close()
	var evs []events.Event
	if err := json.NewDecoder(evResp.Body).Decode(&evs); err != nil {
		t.Fatalf("decode events: %v", err)
	}
	if len(evs) != 5 {
		t.Fatalf("expected full event chain, got %d events", len(evs))
	}
}

func TestHandleInitiate_RejectsBadBody(t *testing.T) {
	deps := newTestDeps()
	srv := httptest.NewServer(newMux(deps))
	t.Cleanup(srv.Close)

	resp, err := http.Post(srv.URL+"/bookings", "application/json", strings.NewReader("{nope"))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("unexpected status: %d", resp.StatusCode)
	}
}

func TestHandleStatus_NotFound(t *testing.T) {
	deps := newTestDeps()
	srv := httptest.NewServer(newMux(deps))
	t.Cleanup(srv.Close)

	resp, err := http.Get(srv.URL + "/bookings/missing")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("unexpected status: %d", resp.StatusCode)
	}
}

func TestHandleServices_FiltersByGender(t *testing.T) {
	deps := newTestDeps()
	srv := httptest.NewServer(newMux(deps))
	t.Cleanup(srv.Close)

	resp, err := http.Get(srv.URL + "/services?gender=female")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()

	var services []catalog.Service
	if err := json.NewDecoder(resp.Body).Decode(&services); err != nil {
		t.Fatalf("decode: %v", err)
	}
	for _, svc := range services {
		if !svc.OfferedTo(catalog.Female) {
			t.Fatalf("service %s not offered to female", svc.ID)
		}
	}

	bad, err := http.Get(srv.URL + "/services?gender=martian")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer bad.Body.Close()
	if bad.StatusCode != http.StatusBadRequest {
		t.Fatalf("unexpected status: %d", bad.StatusCode)
	}
}

func TestHandleQuota_ReportsUsage(t *testing.T) {
	deps := newTestDeps()
	srv := httptest.NewServer(newMux(deps))
	t.Cleanup(srv.Close)

	resp, err := http.Get(srv.URL + "/quota")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()

	var status store.QuotaStatus
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if status.Max != 100 || status.Remaining != 100 {
		t.Fatalf("unexpected quota status: %+v", status)
	}
}

package holiday

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"medbook/internal/civil"
)

func testLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

type stubFetcher struct {
	holidays []Holiday
	err      error
	calls    int
}

func (s *stubFetcher) FetchYear(ctx context.Context, year int) ([]Holiday, error) {
	s.calls++
	return s.holidays, s.err
}

func TestCheckToday_RemoteHit(t *testing.T) {
	now := time.Date(2026, 8, 15, 12, 0, 0, 0, civil.Zone)
	fetcher := &stubFetcher{holidays: []Holiday{{Date: "2026-08-15", Name: "Independence Day"}}}
	client := NewClient(fetcher, testLogger()).WithClock(fixedClock(now))

	got := client.CheckToday(context.Background())
	if !got.IsHoliday || got.Name != "Independence Day" {
		t.Fatalf("unexpected result: %+v", got)
	}
	if got.Warning != "" {
		t.Fatalf("remote hit must not carry a warning: %q", got.Warning)
	}
}

func TestCheckToday_RemoteMiss(t *testing.T) {
	now := time.Date(2026, 8, 29, 12, 0, 0, 0, civil.Zone)
	fetcher := &stubFetcher{holidays: []Holiday{{Date: "2026-10-02", Name: "Gandhi Jayanti"}}}
	client := NewClient(fetcher, testLogger()).WithClock(fixedClock(now))

	got := client.CheckToday(context.Background())
	if got.IsHoliday || got.Warning != "" {
		t.Fatalf("unexpected result: %+v", got)
	}
}

func TestCheckToday_FallbackHit(t *testing.T) {
	now := time.Date(2026, 8, 15, 12, 0, 0, 0, civil.Zone)
	fetcher := &stubFetcher{err: errors.New("api down")}
	client := NewClient(fetcher, testLogger()).WithClock(fixedClock(now))

	got := client.CheckToday(context.Background())
	if !got.IsHoliday || got.Name != "Independence Day" {
		t.Fatalf("expected fallback hit, got %+v", got)
	}
	if got.Warning != warnUsedFallback {
		t.Fatalf("expected fallback warning, got %q", got.Warning)
	}
}

func TestCheckToday_FallbackMiss(t *testing.T) {
	now := time.Date(2026, 8, 29, 12, 0, 0, 0, civil.Zone)
	fetcher := &stubFetcher{err: errors.New("api down")}
	client := NewClient(fetcher, testLogger()).WithClock(fixedClock(now))

	got := client.CheckToday(context.Background())
	if got.IsHoliday {
		t.Fatalf("fallback miss must report not a holiday")
	}
	if got.Warning != warnNoFallback {
		t.Fatalf("expected no-fallback warning, got %q", got.Warning)
	}
}

func TestCheckToday_NilFetcherUsesFallback(t *testing.T) {
	now := time.Date(2026, 1, 26, 12, 0, 0, 0, civil.Zone)
	client := NewClient(nil, testLogger()).WithClock(fixedClock(now))

	got := client.CheckToday(context.Background())
	if !got.IsHoliday || got.Name != "Republic Day" {
		t.Fatalf("expected fallback hit, got %+v", got)
	}
}

func TestAPIFetcher_ParsesResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("api_key") != "k" || r.URL.Query().Get("country") != "IN" {
			t.Errorf("missing query params: %s", r.URL.RawQuery)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"response":{"holidays":[{"name":"Diwali","date":{"iso":"2026-11-08"}}]}}`))
	}))
	t.Cleanup(srv.Close)

	fetcher := NewAPIFetcher(srv.URL, "k", "IN", time.Second)
	holidays, err := fetcher.FetchYear(context.Background(), 2026)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(holidays) != 1 || holidays[0].Date != "2026-11-08" || holidays[0].Name != "Diwali" {
		t.Fatalf("unexpected holidays: %+v", holidays)
	}
}

func TestAPIFetcher_NonOKStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	t.Cleanup(srv.Close)

	fetcher := NewAPIFetcher(srv.URL, "k", "IN", time.Second)
	if _, err := fetcher.FetchYear(context.Background(), 2026); err == nil {
		t.Fatalf("expected error on bad status")
	}
}

func TestAPIFetcher_TimeoutDegrades(t *testing.T) {
	block := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-block
	}))
	t.Cleanup(func() {
		close(block)
		srv.Close()
	})

	fetcher := NewAPIFetcher(srv.URL, "k", "IN", 50*time.Millisecond)
	if _, err := fetcher.FetchYear(context.Background(), 2026); err == nil {
		t.Fatalf("expected timeout error")
	}

	// The client folds the timeout into the fallback path.
	now := time.Date(2026, 8, 15, 12, 0, 0, 0, civil.Zone)
	client := NewClient(fetcher, testLogger()).WithClock(fixedClock(now))
	got := client.CheckToday(context.Background())
	if !got.IsHoliday || got.Warning != warnUsedFallback {
		t.Fatalf("expected fallback after timeout, got %+v", got)
	}
}

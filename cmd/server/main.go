package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"medbook/cmd/server/config"
	"medbook/internal/booking"
	"medbook/internal/events"
	"medbook/internal/holiday"
	"medbook/internal/observability"
	"medbook/internal/pricing"
	"medbook/internal/realtime"
	"medbook/internal/store"

	_ "github.com/jackc/pgx/v5/stdlib"
)

func main() {
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		log.Fatalf("server error: %v", err)
	}
}

func run(ctx context.Context) error {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	httpCfg, err := config.LoadHTTP()
	if err != nil {
		return err
	}
	pricingCfg, err := config.LoadPricing()
	if err != nil {
		return err
	}
	holidayCfg, err := config.LoadHoliday()
	if err != nil {
		return err
	}

	quota, cleanupQuota, err := buildQuotaStore(ctx, pricingCfg.MaxR1Discounts, logger)
	if err != nil {
		return err
	}
	defer cleanupQuota()

	archive, cleanupArchive := buildArchive(ctx, logger)
	defer cleanupArchive()

	metrics := observability.NewMetrics()
	holidays := buildHolidayClient(holidayCfg, logger)
	engine := pricing.NewEngine(quota, holidays, logger)

	hub := realtime.NewHub()
	go hub.Run()

	bus := events.NewBus(logger)
	bookings := booking.NewStore()
	booking.NewSaga(booking.SagaConfig{
		Bus:            bus,
		Bookings:       bookings,
		Slots:          store.NewSlotStore(),
		Confirmations:  store.NewConfirmationStore(),
		Pricing:        engine,
		Logger:         logger,
		Metrics:        metrics,
		OnStatusChange: hub.BroadcastState,
		Archive:        archive,
	})
	service := booking.NewService(bus, bookings, logger, metrics)

	limiter := newTokenBucketLimiter(httpCfg.RateLimitInterval, httpCfg.RateLimitBurst, metrics.AddRateLimitWait)
	mux := newMux(serverDeps{
		bookings: service,
		pricing:  engine,
		hub:      hub,
		metrics:  metrics,
		limiter:  limiter,
		logger:   logger,
	})

	server := &http.Server{
		Addr:    httpCfg.Addr,
		Handler: mux,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening", "addr", httpCfg.Addr)
		errCh <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), httpCfg.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("shutdown", "error", err)
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

// buildHolidayClient wires the holiday signal. Without a configured API URL
// the client relies on the static fallback table alone.
func buildHolidayClient(cfg config.HolidayConfig, logger *slog.Logger) *holiday.Client {
	if cfg.URL == "" {
		logger.Info("holiday API not configured, using fallback table only")
		return holiday.NewClient(nil, logger)
	}

	fetcher := holiday.NewReliableFetcher(
		holiday.NewAPIFetcher(cfg.URL, cfg.APIKey, cfg.Country, cfg.Timeout),
		holiday.NewCircuitBreaker(holiday.CircuitBreakerConfig{}),
		holiday.RetryPolicy{
			MaxAttempts: cfg.RetryAttempts,
			BaseDelay:   200 * time.Millisecond,
			MaxDelay:    2 * time.Second,
		},
	)
	return holiday.NewClient(fetcher, logger)
}

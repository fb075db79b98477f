package main

import (
	"context"
	"database/sql"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"medbook/cmd/server/config"
	"medbook/internal/booking"
	bookingdb "medbook/internal/db/booking"
	"medbook/internal/store"
)

var openArchiveDB = func(driver, dsn string) (*sql.DB, error) {
	return sql.Open(driver, dsn)
}

// buildQuotaStore wires the daily discount quota from config. Redis when
// REDIS_URL is set and reachable, the in-memory store otherwise.
func buildQuotaStore(ctx context.Context, maxGrants int, logger *slog.Logger) (store.QuotaStore, func(), error) {
	cfg, err := config.LoadRedis()
	if err != nil {
		return nil, nil, err
	}

	if cfg.URL == "" {
		logger.Info("using in-memory quota store", "max_grants", maxGrants)
		return store.NewMemoryQuotaStore(maxGrants), func() {}, nil
	}

	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, nil, err
	}
	client := redis.NewClient(opts)

	pingCtx := ctx
	if cfg.PingTimeout > 0 {
		var cancel context.CancelFunc
		pingCtx, cancel = context.WithTimeout(pingCtx, cfg.PingTimeout)
		defer cancel()
	}
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, nil, err
	}

	logger.Info("using redis quota store", "max_grants", maxGrants)
	cleanup := func() {
		if err := client.Close(); err != nil {
			logger.Error("close redis", "error", err)
		}
	}
	return store.NewRedisQuotaStore(client, maxGrants), cleanup, nil
}

// buildArchive wires the Postgres booking archive. An empty DATABASE_URL or
// an init failure falls back to no archive; the in-memory state table stays
// authoritative either way.
func buildArchive(ctx context.Context, logger *slog.Logger) (booking.Archiver, func()) {
	dsn := strings.TrimSpace(os.Getenv("DATABASE_URL"))
	if dsn == "" {
		return nil, func() {}
	}

	db, err := openArchiveDB("pgx", dsn)
	if err != nil {
		logger.Warn("postgres open failed, booking archive disabled", "error", err)
		return nil, func() {}
	}

	setupCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	archive, err := bookingdb.NewArchiveStoreWithSchema(setupCtx, db)
	if err != nil {
		logger.Warn("postgres init failed, booking archive disabled", "error", err)
		_ = db.Close()
		return nil, func() {}
	}

	logger.Info("postgres booking archive enabled")
	cleanup := func() {
		if err := db.Close(); err != nil {
			logger.Error("close postgres", "error", err)
		}
	}
	return archive, cleanup
}

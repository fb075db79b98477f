// Package bookingdb persists terminal booking states and their compensation
// logs in Postgres. The in-memory booking table stays authoritative; the
// archive is a best-effort record for reporting and post-mortems.
package bookingdb

import (
	"context"
	"database/sql"

	"medbook/internal/booking"
)

// ArchiveStore persists terminal bookings in Postgres.
type ArchiveStore struct {
	db *sql.DB
}

// NewArchiveStore constructs an ArchiveStore backed by Postgres.
func NewArchiveStore(db *sql.DB) *ArchiveStore {
	return &ArchiveStore{db: db}
}

// NewArchiveStoreWithSchema initializes the schema then returns the store.
func NewArchiveStoreWithSchema(ctx context.Context, db *sql.DB) (*ArchiveStore, error) {
	store := NewArchiveStore(db)
	if err := store.InitSchema(ctx); err != nil {
		return nil, err
	}
	return store, nil
}

// InitSchema creates the archive tables if they do not exist.
func (s *ArchiveStore) InitSchema(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS bookings (
			request_id TEXT PRIMARY KEY,
			user_name TEXT NOT NULL,
			gender TEXT NOT NULL,
			status TEXT NOT NULL,
			base_price DOUBLE PRECISION NOT NULL,
			final_price DOUBLE PRECISION NOT NULL,
			r1_discount_applied BOOLEAN NOT NULL,
			r2_discount_applied BOOLEAN NOT NULL,
			reference_id TEXT,
			error TEXT,
			created_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS booking_compensation_actions (
			id BIGSERIAL PRIMARY KEY,
			request_id TEXT NOT NULL,
			action TEXT NOT NULL,
			status TEXT NOT NULL,
			error TEXT,
			created_at TIMESTAMPTZ NOT NULL,
			FOREIGN KEY (request_id) REFERENCES bookings(request_id) ON DELETE CASCADE
		)`,
	}

	for _, stmt := range statements {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}

	return nil
}

// Record upserts the booking row and replaces its compensation action rows.
// Safe to call more than once for the same request.
func (s *ArchiveStore) Record(ctx context.Context, state booking.State) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO bookings (
			request_id, user_name, gender, status, base_price, final_price,
			r1_discount_applied, r2_discount_applied, reference_id, error,
			created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (request_id) DO UPDATE SET
			status = EXCLUDED.status,
			base_price = EXCLUDED.base_price,
			final_price = EXCLUDED.final_price,
			r1_discount_applied = EXCLUDED.r1_discount_applied,
			r2_discount_applied = EXCLUDED.r2_discount_applied,
			reference_id = EXCLUDED.reference_id,
			error = EXCLUDED.error,
			updated_at = EXCLUDED.updated_at`,
		state.RequestID, state.User.Name, string(state.User.Gender), string(state.Status),
		state.BasePrice, state.FinalPrice,
		state.R1DiscountApplied, state.R2DiscountApplied,
		state.ReferenceID, state.Error,
		state.CreatedAt, state.UpdatedAt,
	)
	if err != nil {
		return err
	}

	if _, err := s.db.ExecContext(ctx, `
		DELETE FROM booking_compensation_actions WHERE request_id = $1`,
		state.RequestID,
	); err != nil {
		return err
	}

	for _, action := range state.CompensationActions {
		if _, err := s.db.ExecContext(ctx, `
			INSERT INTO booking_compensation_actions (request_id, action, status, error, created_at)
			VALUES ($1, $2, $3, $4, $5)`,
			state.RequestID, action.Action, action.Status, action.Error, action.Timestamp,
		); err != nil {
			return err
		}
	}

	return nil
}

// CountByStatus reports how many archived bookings hold each status.
func (s *ArchiveStore) CountByStatus(ctx context.Context) (map[string]int64, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT status, COUNT(*) FROM bookings GROUP BY status`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[string]int64)
	for rows.Next() {
		var status string
		var count int64
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		counts[status] = count
	}
	return counts, rows.Err()
}

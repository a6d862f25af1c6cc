package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS calendars (
		id         UUID PRIMARY KEY,
		doctor     TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS slots (
		id          UUID NOT NULL,
		calendar_id UUID NOT NULL REFERENCES calendars(id) ON DELETE CASCADE,
		start_time  TIMESTAMPTZ NOT NULL,
		duration_ns BIGINT NOT NULL CHECK (duration_ns > 0),
		status      TEXT NOT NULL CHECK (status IN ('free', 'confirmed')),
		occupant    UUID,
		PRIMARY KEY (calendar_id, id),
		CHECK ((status = 'confirmed') = (occupant IS NOT NULL))
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS slots_calendar_start_idx ON slots (calendar_id, start_time)`,
	`CREATE TABLE IF NOT EXISTS requests (
		id             UUID PRIMARY KEY,
		calendar_id    UUID NOT NULL REFERENCES calendars(id) ON DELETE CASCADE,
		patient        TEXT NOT NULL,
		contact        TEXT NOT NULL DEFAULT '',
		reason         TEXT NOT NULL DEFAULT '',
		desired_start  TIMESTAMPTZ NOT NULL,
		priority       TEXT NOT NULL,
		flexibility_ns BIGINT NOT NULL CHECK (flexibility_ns >= 0),
		seq            BIGINT NOT NULL,
		submitted_at   TIMESTAMPTZ NOT NULL,
		status         TEXT NOT NULL CHECK (status IN ('pending', 'confirmed', 'rejected', 'cancelled')),
		slot_id        UUID,
		offset_ns      BIGINT NOT NULL DEFAULT 0,
		reject_reason  TEXT,
		updated_at     TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS requests_confirmed_slot_idx
		ON requests (calendar_id, slot_id) WHERE status = 'confirmed'`,
	`CREATE TABLE IF NOT EXISTS event_logs (
		id          BIGSERIAL PRIMARY KEY,
		event_type  TEXT NOT NULL,
		calendar_id UUID NOT NULL,
		request_id  UUID,
		payload     JSONB,
		created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
}

// Migrate creates the tables used by the snapshot repository.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	for i, stmt := range schema {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("migration %d: %w", i, err)
		}
	}
	return nil
}

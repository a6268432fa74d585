package store

import (
	"context"
	"database/sql"
	"fmt"
)

// Schema creates the tables used by the Postgres backend. The ALTER statements
// upgrade databases created before workers carried a version and complaints
// carried a worker id.
var Schema = []string{
	`CREATE TABLE IF NOT EXISTS categories (
		name TEXT PRIMARY KEY
	)`,
	`CREATE TABLE IF NOT EXISTS field_workers (
		id              BIGSERIAL PRIMARY KEY,
		name            TEXT NOT NULL CHECK (btrim(name) <> ''),
		phone_number    TEXT NOT NULL CHECK (phone_number ~ '^[0-9]{10}$'),
		master_category TEXT NOT NULL REFERENCES categories (name),
		work_status     BOOLEAN NOT NULL DEFAULT TRUE
	)`,
	`ALTER TABLE field_workers ADD COLUMN IF NOT EXISTS version BIGINT NOT NULL DEFAULT 0`,
	`CREATE TABLE IF NOT EXISTS complaints (
		id                    BIGSERIAL PRIMARY KEY,
		phone_number          TEXT NOT NULL,
		category              TEXT NOT NULL,
		subcategory           TEXT,
		address               TEXT NOT NULL DEFAULT '',
		description           TEXT NOT NULL DEFAULT '',
		status                TEXT NOT NULL DEFAULT 'pending'
			CHECK (status IN ('pending', 'in_progress', 'not_completed', 'completed')),
		created_at            TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at            TIMESTAMPTZ NOT NULL DEFAULT now(),
		field_worker_assigned TEXT,
		deadline_date         TIMESTAMPTZ
	)`,
	`ALTER TABLE complaints ADD COLUMN IF NOT EXISTS completed_at TIMESTAMPTZ`,
	`ALTER TABLE complaints ADD COLUMN IF NOT EXISTS field_worker_id BIGINT`,
	`CREATE INDEX IF NOT EXISTS complaints_created_idx ON complaints (created_at DESC, id DESC)`,
	`CREATE INDEX IF NOT EXISTS complaints_open_worker_idx ON complaints (field_worker_id) WHERE status = 'in_progress'`,
}

// EnsureSchema applies Schema in order.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	for i, stmt := range Schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("schema statement %d: %w", i, err)
		}
	}
	return nil
}

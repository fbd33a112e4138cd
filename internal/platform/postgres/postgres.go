// Package postgres opens the shared *sql.DB used by the ledger and audit stores.
package postgres

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" driver
	_ "github.com/lib/pq"              // registers the "postgres" driver

	"idcheck/internal/platform/config"
)

// Open connects using the configured driver and verifies the connection.
// Returns nil, nil when no URL is configured.
func Open(ctx context.Context, cfg config.DatabaseConfig) (*sql.DB, error) {
	if cfg.URL == "" {
		return nil, nil
	}
	driver := cfg.Driver
	if driver == "" {
		driver = "postgres"
	}

	db, err := sql.Open(driver, cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driver, err)
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLife)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return db, nil
}

// Schema creates the tables used by this service. Statements are idempotent.
const Schema = `
CREATE TABLE IF NOT EXISTS verifications (
	id           UUID PRIMARY KEY,
	kind         TEXT NOT NULL,
	subject_hash TEXT NOT NULL,
	masked       TEXT NOT NULL DEFAULT '',
	valid        BOOLEAN NOT NULL,
	checksum     SMALLINT NOT NULL,
	request_id   TEXT NOT NULL DEFAULT '',
	checked_at   TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS verifications_checked_at_idx ON verifications (checked_at DESC);
CREATE INDEX IF NOT EXISTS verifications_subject_hash_idx ON verifications (subject_hash);

CREATE TABLE IF NOT EXISTS audit_outbox (
	id             UUID PRIMARY KEY,
	event_type     TEXT NOT NULL,
	aggregate_id   TEXT NOT NULL,
	payload        JSONB NOT NULL,
	created_at     TIMESTAMPTZ NOT NULL,
	published_at   TIMESTAMPTZ
);
CREATE INDEX IF NOT EXISTS audit_outbox_unpublished_idx ON audit_outbox (created_at) WHERE published_at IS NULL;
`

// Migrate applies Schema.
func Migrate(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

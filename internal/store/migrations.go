package store

import (
	"context"
	"fmt"
)

// schema is applied idempotently at startup.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS timeclock_events (
		id          TEXT PRIMARY KEY,
		student_id  TEXT NOT NULL,
		occurred_at TIMESTAMPTZ NOT NULL,
		action      TEXT NOT NULL DEFAULT '',
		source      TEXT NOT NULL DEFAULT '',
		created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_timeclock_events_occurred_at ON timeclock_events(occurred_at)`,

	`CREATE TABLE IF NOT EXISTS sessions (
		id          TEXT PRIMARY KEY,
		student_id  TEXT NOT NULL,
		date_key    TEXT NOT NULL,
		clock_in    TIMESTAMPTZ NOT NULL,
		clock_out   TIMESTAMPTZ NOT NULL,
		gross_ms    BIGINT NOT NULL CHECK (gross_ms >= 0),
		break_ms    BIGINT NOT NULL CHECK (break_ms >= 0),
		net_ms      BIGINT NOT NULL CHECK (net_ms >= 0),
		break_count INTEGER NOT NULL DEFAULT 0,
		updated_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_sessions_date_key ON sessions(date_key)`,

	`CREATE TABLE IF NOT EXISTS warnings (
		id          TEXT PRIMARY KEY,
		student_id  TEXT NOT NULL,
		date_key    TEXT NOT NULL,
		issue       TEXT NOT NULL,
		anchor_at   TIMESTAMPTZ NOT NULL,
		updated_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_warnings_date_key ON warnings(date_key)`,

	`CREATE TABLE IF NOT EXISTS pay_periods (
		id          TEXT PRIMARY KEY,
		start_date  TIMESTAMPTZ,
		end_date    TIMESTAMPTZ,
		hourly_rate DOUBLE PRECISION,
		display     TEXT NOT NULL DEFAULT '',
		created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,

	`CREATE TABLE IF NOT EXISTS reward_purchases (
		id          TEXT PRIMARY KEY,
		student_id  TEXT NOT NULL,
		reward_id   TEXT NOT NULL DEFAULT '',
		reward_name TEXT NOT NULL DEFAULT '',
		cost        DOUBLE PRECISION NOT NULL DEFAULT 0,
		status      TEXT NOT NULL DEFAULT 'approved',
		created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_reward_purchases_status_created ON reward_purchases(status, created_at)`,

	`CREATE TABLE IF NOT EXISTS payroll (
		id                TEXT PRIMARY KEY,
		student_id        TEXT NOT NULL,
		period_id         TEXT NOT NULL,
		period_end        TIMESTAMPTZ,
		net_hours         DOUBLE PRECISION NOT NULL,
		paid_hours        DOUBLE PRECISION NOT NULL,
		gross_pay         DOUBLE PRECISION NOT NULL,
		warning_count     INTEGER NOT NULL DEFAULT 0,
		warning_deduction DOUBLE PRECISION NOT NULL DEFAULT 0,
		reward_deduction  DOUBLE PRECISION NOT NULL DEFAULT 0,
		deductions        DOUBLE PRECISION NOT NULL DEFAULT 0,
		net_pay           DOUBLE PRECISION NOT NULL,
		reward_items      JSONB NOT NULL DEFAULT '[]'::jsonb,
		updated_at        TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_payroll_student ON payroll(student_id)`,
	`CREATE INDEX IF NOT EXISTS idx_payroll_period ON payroll(period_id)`,
}

// Migrate creates any missing tables and indexes.
func (d *DB) Migrate(ctx context.Context) error {
	for i, stmt := range schema {
		if _, err := d.Client.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migration step %d: %w", i+1, err)
		}
	}
	return nil
}

package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS students (
		id            TEXT PRIMARY KEY,
		first_name    TEXT NOT NULL DEFAULT '',
		last_name     TEXT NOT NULL DEFAULT '',
		email         TEXT NOT NULL DEFAULT '',
		instrument    TEXT NOT NULL DEFAULT '',
		grade         TEXT NOT NULL DEFAULT '',
		teacher_ids   TEXT[] NOT NULL DEFAULT '{}',
		orchestra_ids TEXT[] NOT NULL DEFAULT '{}',
		is_active     BOOLEAN NOT NULL DEFAULT TRUE,
		created_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
		deleted_at    TIMESTAMPTZ
	)`,
	`CREATE TABLE IF NOT EXISTS teachers (
		id          TEXT PRIMARY KEY,
		name        TEXT NOT NULL DEFAULT '',
		student_ids TEXT[] NOT NULL DEFAULT '{}',
		is_active   BOOLEAN NOT NULL DEFAULT TRUE
	)`,
	`CREATE TABLE IF NOT EXISTS orchestras (
		id         TEXT PRIMARY KEY,
		name       TEXT NOT NULL DEFAULT '',
		member_ids TEXT[] NOT NULL DEFAULT '{}',
		is_active  BOOLEAN NOT NULL DEFAULT TRUE
	)`,
	`CREATE TABLE IF NOT EXISTS rehearsals (
		id           TEXT PRIMARY KEY,
		title        TEXT NOT NULL DEFAULT '',
		attendee_ids TEXT[] NOT NULL DEFAULT '{}',
		is_active    BOOLEAN NOT NULL DEFAULT TRUE
	)`,
	`CREATE TABLE IF NOT EXISTS theory_lessons (
		id          TEXT PRIMARY KEY,
		title       TEXT NOT NULL DEFAULT '',
		student_ids TEXT[] NOT NULL DEFAULT '{}',
		is_active   BOOLEAN NOT NULL DEFAULT TRUE
	)`,
	`CREATE TABLE IF NOT EXISTS lesson_slots (
		id         TEXT PRIMARY KEY,
		title      TEXT NOT NULL DEFAULT '',
		student_id TEXT,
		is_active  BOOLEAN NOT NULL DEFAULT TRUE
	)`,
	`CREATE TABLE IF NOT EXISTS exam_records (
		id          TEXT PRIMARY KEY,
		title       TEXT NOT NULL DEFAULT '',
		student_id  TEXT,
		is_active   BOOLEAN NOT NULL DEFAULT TRUE,
		archived_at TIMESTAMPTZ
	)`,
	`CREATE TABLE IF NOT EXISTS deletion_audits (
		id                 UUID PRIMARY KEY,
		entity_id          TEXT NOT NULL,
		deletion_type      TEXT NOT NULL,
		reason             TEXT NOT NULL DEFAULT '',
		snapshot           JSONB,
		cascade_operations JSONB NOT NULL DEFAULT '[]',
		status             TEXT NOT NULL,
		error              TEXT NOT NULL DEFAULT '',
		performed_by       TEXT NOT NULL DEFAULT '',
		created_at         TIMESTAMPTZ NOT NULL,
		restored_at        TIMESTAMPTZ,
		restored_by        TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE INDEX IF NOT EXISTS deletion_audits_entity_idx ON deletion_audits (entity_id, created_at DESC)`,
	`CREATE TABLE IF NOT EXISTS cascade_jobs (
		id           UUID PRIMARY KEY,
		type         TEXT NOT NULL,
		priority     TEXT NOT NULL,
		state        TEXT NOT NULL,
		payload      JSONB NOT NULL,
		result       JSONB,
		error        TEXT NOT NULL DEFAULT '',
		requested_by TEXT NOT NULL DEFAULT '',
		created_at   TIMESTAMPTZ NOT NULL,
		started_at   TIMESTAMPTZ,
		completed_at TIMESTAMPTZ
	)`,
	`CREATE INDEX IF NOT EXISTS cascade_jobs_state_idx ON cascade_jobs (state)`,
}

// Migrate creates the tables used by the service if they do not exist.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	for _, stmt := range schema {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("postgres: migrate: %w", err)
		}
	}
	return nil
}

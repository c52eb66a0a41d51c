package store

import (
	"context"
	"fmt"
)

const createTableSQL = `CREATE TABLE IF NOT EXISTS profile_analyses (
    id         UUID PRIMARY KEY,
    provider   TEXT NOT NULL,
    name       TEXT NOT NULL,
    stage      TEXT NOT NULL DEFAULT '',
    traits     JSONB NOT NULL DEFAULT '{}'::jsonb,
    archetype  TEXT NOT NULL,
    analysis   TEXT NOT NULL DEFAULT '',
    known      BOOLEAN NOT NULL DEFAULT FALSE,
    fallback   BOOLEAN NOT NULL DEFAULT FALSE,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`

const createCreatedAtIndexSQL = `CREATE INDEX IF NOT EXISTS idx_profile_analyses_created_at
    ON profile_analyses (created_at DESC)`

var requiredColumns = []string{
	"id", "provider", "name", "stage", "traits",
	"archetype", "analysis", "known", "fallback", "created_at",
}

// Open returns a store over db after preparing its table: created when
// autoMigrate is set, otherwise only checked.
func Open(ctx context.Context, db Querier, autoMigrate bool) (*AnalysisStore, error) {
	s := New(db)
	var err error
	if autoMigrate {
		err = s.EnsureSchema(ctx)
	} else {
		err = s.ValidateSchema(ctx)
	}
	if err != nil {
		return nil, err
	}
	return s, nil
}

// EnsureSchema creates the table and index when missing.
func (s *AnalysisStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, createTableSQL); err != nil {
		return fmt.Errorf("store: create profile_analyses: %w", err)
	}
	if _, err := s.db.Exec(ctx, createCreatedAtIndexSQL); err != nil {
		return fmt.Errorf("store: create created_at index: %w", err)
	}
	return nil
}

// ValidateSchema checks that an externally migrated table has every column
// the store writes.
func (s *AnalysisStore) ValidateSchema(ctx context.Context) error {
	for _, column := range requiredColumns {
		ok, err := s.columnExists(ctx, "profile_analyses", column)
		if err != nil {
			return fmt.Errorf("store: check profile_analyses.%s: %w", column, err)
		}
		if !ok {
			return fmt.Errorf("store: required column profile_analyses.%s is missing; set DB_AUTO_MIGRATE=true or run migrations", column)
		}
	}
	return nil
}

func (s *AnalysisStore) columnExists(ctx context.Context, table, column string) (bool, error) {
	var exists bool
	err := s.db.QueryRow(
		ctx,
		`SELECT EXISTS (
		   SELECT 1
		   FROM information_schema.columns
		   WHERE table_schema = current_schema()
		     AND lower(table_name) = lower($1)
		     AND lower(column_name) = lower($2)
		 )`,
		table,
		column,
	).Scan(&exists)
	if err != nil {
		return false, err
	}
	return exists, nil
}

// Package store records completed profile analyses in PostgreSQL.
package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Querier is satisfied by *pgxpool.Pool and pgx.Tx.
type Querier interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type AnalysisRecord struct {
	ID        string
	Provider  string
	Name      string
	Stage     string
	Traits    map[string]string
	Archetype string
	Analysis  string
	// Known is true when Archetype is in the fixed catalogue.
	Known bool
	// Fallback is true when the model output could not be parsed.
	Fallback  bool
	CreatedAt time.Time
}

type AnalysisStore struct {
	db Querier
}

func New(db Querier) *AnalysisStore {
	return &AnalysisStore{db: db}
}

// Insert stores rec under a new id and returns the id.
func (s *AnalysisStore) Insert(ctx context.Context, rec AnalysisRecord) (string, error) {
	traits := rec.Traits
	if traits == nil {
		traits = map[string]string{}
	}
	traitsJSON, err := json.Marshal(traits)
	if err != nil {
		return "", fmt.Errorf("store: encode traits: %w", err)
	}

	id := uuid.NewString()
	_, err = s.db.Exec(ctx, `INSERT INTO profile_analyses
		(id, provider, name, stage, traits, archetype, analysis, known, fallback)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		id, rec.Provider, rec.Name, rec.Stage, traitsJSON, rec.Archetype, rec.Analysis, rec.Known, rec.Fallback,
	)
	if err != nil {
		return "", fmt.Errorf("store: insert analysis: %w", err)
	}
	return id, nil
}

// ListRecent returns up to limit records, newest first.
func (s *AnalysisStore) ListRecent(ctx context.Context, limit int) ([]AnalysisRecord, error) {
	if limit <= 0 {
		return []AnalysisRecord{}, nil
	}

	rows, err := s.db.Query(ctx, `SELECT id::text, provider, name, stage, traits, archetype, analysis, known, fallback, created_at
		FROM profile_analyses
		ORDER BY created_at DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("store: list analyses: %w", err)
	}
	defer rows.Close()

	records := []AnalysisRecord{}
	for rows.Next() {
		var (
			rec        AnalysisRecord
			traitsJSON []byte
		)
		if err := rows.Scan(
			&rec.ID, &rec.Provider, &rec.Name, &rec.Stage, &traitsJSON,
			&rec.Archetype, &rec.Analysis, &rec.Known, &rec.Fallback, &rec.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("store: scan analysis: %w", err)
		}
		if len(traitsJSON) > 0 {
			if err := json.Unmarshal(traitsJSON, &rec.Traits); err != nil {
				return nil, fmt.Errorf("store: decode traits for %s: %w", rec.ID, err)
			}
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: iterate analyses: %w", err)
	}
	return records, nil
}

// DeleteBefore removes records created before cutoff and returns how many
// were deleted.
func (s *AnalysisStore) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := s.db.Exec(ctx, `DELETE FROM profile_analyses WHERE created_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("store: delete analyses: %w", err)
	}
	return tag.RowsAffected(), nil
}

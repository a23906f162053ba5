package storage

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/your-org/faceid/internal/config"
	"github.com/your-org/faceid/internal/models"
)

// PostgresStore is the identity event audit log. It is never consulted for
// identity decisions.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, cfg config.DatabaseConfig) (*PostgresStore, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}
	poolCfg.MaxConns = int32(cfg.MaxConns)

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) Close() {
	s.pool.Close()
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

const schema = `
CREATE TABLE IF NOT EXISTS identity_events (
	id                UUID PRIMARY KEY,
	type              TEXT NOT NULL,
	group_id          TEXT NOT NULL,
	person_id         TEXT NOT NULL DEFAULT '',
	is_new_person     BOOLEAN NOT NULL DEFAULT FALSE,
	is_temp_user      BOOLEAN NOT NULL DEFAULT FALSE,
	recognition_type  TEXT NOT NULL DEFAULT '',
	confidence        DOUBLE PRECISION NOT NULL DEFAULT 0,
	source_person_ids TEXT[] NOT NULL DEFAULT '{}',
	samples_moved     INTEGER NOT NULL DEFAULT 0,
	timestamp         TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS identity_events_group_ts ON identity_events (group_id, timestamp DESC);
`

// EnsureSchema creates the audit table if it doesn't exist.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

// RecordEvent inserts an event. Redelivered events are ignored by id.
func (s *PostgresStore) RecordEvent(ctx context.Context, ev models.IdentityEvent) error {
	sources := ev.SourcePersonIDs
	if sources == nil {
		sources = []string{}
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO identity_events (id, type, group_id, person_id, is_new_person, is_temp_user, recognition_type, confidence, source_person_ids, samples_moved, timestamp)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		 ON CONFLICT (id) DO NOTHING`,
		ev.ID, string(ev.Type), ev.GroupID, ev.PersonID, ev.IsNewPerson, ev.IsTempUser,
		string(ev.RecognitionType), ev.Confidence, sources, ev.SamplesMoved, ev.Timestamp)
	if err != nil {
		return fmt.Errorf("record event: %w", err)
	}
	return nil
}

// ListEvents returns a page of a group's events, newest first, and the
// group's total event count.
func (s *PostgresStore) ListEvents(ctx context.Context, groupID string, limit, offset int) ([]models.IdentityEvent, int, error) {
	if limit <= 0 {
		limit = 50
	}
	if limit > 500 {
		limit = 500
	}
	if offset < 0 {
		offset = 0
	}

	var total int
	if err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM identity_events WHERE group_id = $1`, groupID,
	).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count events: %w", err)
	}

	rows, err := s.pool.Query(ctx,
		`SELECT id, type, group_id, person_id, is_new_person, is_temp_user, recognition_type, confidence, source_person_ids, samples_moved, timestamp
		 FROM identity_events WHERE group_id = $1 ORDER BY timestamp DESC LIMIT $2 OFFSET $3`,
		groupID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("query events: %w", err)
	}

	events, err := pgx.CollectRows(rows, pgx.RowToStructByName[models.IdentityEvent])
	if err != nil {
		return nil, 0, fmt.Errorf("scan event: %w", err)
	}
	return events, total, nil
}

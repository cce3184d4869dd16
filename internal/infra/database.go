package infra

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// NewPostgresPool connects to PostgreSQL and makes sure the voting schema
// exists before returning the pool.
func NewPostgresPool(ctx context.Context, url string) (*pgxpool.Pool, error) {
	if url == "" {
		return nil, fmt.Errorf("database url is required")
	}

	cfg, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, fmt.Errorf("parse postgres config: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	if err := EnsurePostgresSchema(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}

	return pool, nil
}

// postgresSchema is idempotent. votes.user_id is unique so the database
// itself refuses a second ledger row for the same voter.
var postgresSchema = []string{
	`CREATE TABLE IF NOT EXISTS users (
        id            UUID PRIMARY KEY,
        name          TEXT NOT NULL,
        age           INTEGER NOT NULL CHECK (age > 0),
        email         TEXT NOT NULL UNIQUE,
        mobile        TEXT NOT NULL UNIQUE,
        national_id   TEXT NOT NULL UNIQUE,
        address       TEXT NOT NULL,
        password_hash BYTEA NOT NULL,
        role          TEXT NOT NULL CHECK (role IN ('voter', 'admin')),
        is_blocked    BOOLEAN NOT NULL DEFAULT FALSE,
        is_voted      BOOLEAN NOT NULL DEFAULT FALSE,
        created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW(),
        updated_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
    )`,
	`CREATE TABLE IF NOT EXISTS candidates (
        id         UUID PRIMARY KEY,
        name       TEXT NOT NULL,
        party      TEXT NOT NULL,
        age        INTEGER NOT NULL CHECK (age > 0),
        vote_count BIGINT NOT NULL DEFAULT 0 CHECK (vote_count >= 0),
        created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
        updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
    )`,
	`CREATE TABLE IF NOT EXISTS votes (
        id           TEXT PRIMARY KEY,
        candidate_id UUID NOT NULL REFERENCES candidates (id) ON DELETE CASCADE,
        user_id      UUID NOT NULL UNIQUE REFERENCES users (id),
        voted_at     TIMESTAMPTZ NOT NULL
    )`,
	`CREATE INDEX IF NOT EXISTS votes_candidate_idx ON votes (candidate_id, voted_at)`,
}

// EnsurePostgresSchema creates the users, candidates and votes tables.
func EnsurePostgresSchema(ctx context.Context, pool *pgxpool.Pool) error {
	for _, stmt := range postgresSchema {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}
	return nil
}

// internal/common/database/postgres.go
package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"tourism-retrieval/internal/common/config"

	_ "github.com/lib/pq"
)

// schemaStatements create the source catalog and learning log tables.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS tourism_sources (
		name        TEXT PRIMARY KEY,
		base_url    TEXT NOT NULL,
		reliability TEXT NOT NULL,
		region      TEXT NOT NULL,
		categories  TEXT[] NOT NULL DEFAULT '{}',
		official    BOOLEAN NOT NULL DEFAULT FALSE,
		kind        TEXT NOT NULL DEFAULT 'web_search'
	)`,
	`CREATE TABLE IF NOT EXISTS learning_interactions (
		id             TEXT PRIMARY KEY,
		question       TEXT NOT NULL,
		answer         TEXT NOT NULL,
		sources        TEXT[] NOT NULL DEFAULT '{}',
		confidence     DOUBLE PRECISION NOT NULL,
		feedback       TEXT,
		correct_answer TEXT,
		category       TEXT NOT NULL,
		user_id        TEXT,
		session_id     TEXT,
		created_at     TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS learning_interactions_created_at_idx ON learning_interactions (created_at)`,
	`CREATE TABLE IF NOT EXISTS knowledge_gaps (
		id                 TEXT PRIMARY KEY,
		category           TEXT NOT NULL,
		question           TEXT NOT NULL,
		frequency          INTEGER NOT NULL,
		current_confidence DOUBLE PRECISION NOT NULL,
		suggested_sources  TEXT[] NOT NULL DEFAULT '{}',
		priority           TEXT NOT NULL,
		created_at         TIMESTAMPTZ NOT NULL,
		last_seen          TIMESTAMPTZ NOT NULL
	)`,
}

type PostgresClient struct {
	DB *sql.DB
}

func NewPostgres(cfg config.PostgresConfig) (*PostgresClient, error) {
	db, err := sql.Open("postgres", cfg.GetDSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxConnections)
	db.SetMaxIdleConns(cfg.MaxIdle)
	db.SetConnMaxLifetime(5 * time.Minute)
	db.SetConnMaxIdleTime(5 * time.Minute)

	return &PostgresClient{DB: db}, nil
}

// NewPostgresFromDB wraps an existing handle.
func NewPostgresFromDB(db *sql.DB) *PostgresClient {
	return &PostgresClient{DB: db}
}

func (c *PostgresClient) Ping(ctx context.Context) error {
	return c.DB.PingContext(ctx)
}

func (c *PostgresClient) Close() error {
	if c.DB != nil {
		return c.DB.Close()
	}
	return nil
}

// Migrate creates any missing tables inside one transaction.
func (c *PostgresClient) Migrate(ctx context.Context) error {
	tx, err := c.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin migration: %w", err)
	}
	for _, stmt := range schemaStatements {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("apply migration: %w", err)
		}
	}
	return tx.Commit()
}

func (c *PostgresClient) GetDB() *sql.DB {
	return c.DB
}

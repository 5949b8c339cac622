package pathstore

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	_ "github.com/lib/pq"
	"github.com/rs/zerolog/log"
	"github.com/sqlc-dev/pqtype"
)

const createArchiveTable = `
CREATE TABLE IF NOT EXISTS saved_paths (
	id            UUID PRIMARY KEY,
	file_name     TEXT NOT NULL,
	connection_id TEXT NOT NULL,
	points        JSONB,
	point_count   INTEGER NOT NULL,
	received_at   TIMESTAMPTZ NOT NULL,
	saved_at      TIMESTAMPTZ NOT NULL
)`

const insertArchivedPath = `
INSERT INTO saved_paths (id, file_name, connection_id, points, point_count, received_at, saved_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)`

// PostgresArchive mirrors saved paths into a Postgres table. The file on
// disk stays the record of truth; the archive is best effort.
type PostgresArchive struct {
	db *sql.DB
}

// NewPostgresArchive wraps an open database handle
func NewPostgresArchive(db *sql.DB) *PostgresArchive {
	return &PostgresArchive{db: db}
}

// OpenPostgresArchive connects, pings and ensures the archive table exists
func OpenPostgresArchive(ctx context.Context, dsn string) (*PostgresArchive, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to create database connection: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	archive := NewPostgresArchive(db)
	if err := archive.EnsureSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return archive, nil
}

// EnsureSchema creates the archive table if it is missing
func (a *PostgresArchive) EnsureSchema(ctx context.Context) error {
	if _, err := a.db.ExecContext(ctx, createArchiveTable); err != nil {
		return fmt.Errorf("failed to create saved_paths table: %w", err)
	}
	return nil
}

func (a *PostgresArchive) Name() string {
	return "postgres"
}

func (a *PostgresArchive) Publish(ctx context.Context, saved SavedPath) error {
	raw, err := saved.Payload()
	if err != nil {
		return err
	}
	points := saved.PointCount()

	_, err = a.db.ExecContext(ctx, insertArchivedPath,
		uuid.New(),
		saved.FileName,
		saved.ConnectionID,
		pqtype.NullRawMessage{RawMessage: raw, Valid: points > 0},
		points,
		saved.ReceivedAt,
		saved.SavedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to archive path %s: %w", saved.FileName, err)
	}
	return nil
}

// Ping checks the database link for health reporting
func (a *PostgresArchive) Ping(ctx context.Context) error {
	return a.db.PingContext(ctx)
}

func (a *PostgresArchive) Close() {
	if err := a.db.Close(); err != nil {
		log.Error().Err(err).Msg("failed to close archive database")
	}
}

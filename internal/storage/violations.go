package storage

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"
	"github.com/rs/zerolog/log"

	"kitchen-worker-go/internal/config"
	"kitchen-worker-go/internal/models"
)

const violationsSchema = `
CREATE TABLE IF NOT EXISTS kitchen_violations (
	id             SERIAL PRIMARY KEY,
	channel_id     TEXT NOT NULL,
	channel_name   TEXT NOT NULL,
	timestamp      TIMESTAMPTZ NOT NULL,
	violation_type TEXT NOT NULL,
	details        TEXT NOT NULL,
	media_path     TEXT NOT NULL UNIQUE
)`

// ViolationStore persists raised violations to Postgres.
type ViolationStore struct {
	db *sql.DB
}

func NewViolationStore(cfg *config.Config) (*ViolationStore, error) {
	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	log.Info().Msg("Database connection established")

	return &ViolationStore{db: db}, nil
}

// EnsureSchema creates the violations table when it does not exist.
func (s *ViolationStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, violationsSchema); err != nil {
		return fmt.Errorf("ensure violations schema: %w", err)
	}
	return nil
}

// Insert writes one violation record. Records without a media path are
// rejected by the caller before reaching the store.
func (s *ViolationStore) Insert(ctx context.Context, rec models.ViolationRecord) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin violation insert: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO kitchen_violations
			(channel_id, channel_name, timestamp, violation_type, details, media_path)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		rec.ChannelID, rec.ChannelName, rec.Timestamp, string(rec.Kind), rec.Details, rec.MediaPath,
	)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("insert violation: %w", err)
	}

	return tx.Commit()
}

func (s *ViolationStore) Close() error {
	return s.db.Close()
}

package store

import (
	"context"
	"fmt"
)

// The interviews and interview_files tables are owned by the import stage;
// only the tables this service writes are created here.
var migrations = []string{
	`CREATE TABLE IF NOT EXISTS transcript_quick_qc (
		id UUID PRIMARY KEY,
		transcript_path TEXT NOT NULL UNIQUE,
		speaker_metrics JSONB NOT NULL,
		turn_data JSONB NOT NULL,
		process_time DOUBLE PRECISION,
		timestamp TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS logs (
		log_id SERIAL PRIMARY KEY,
		log_module TEXT NOT NULL,
		log_message TEXT NOT NULL,
		log_timestamp TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	)`,
}

// Migrate creates the tables written by this service.
func (s *Store) Migrate(ctx context.Context) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, stmt := range migrations {
		if _, err := tx.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

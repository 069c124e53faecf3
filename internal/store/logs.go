package store

import (
	"context"
	"fmt"
)

// WriteLog appends a module message to the pipeline's logs table.
func (s *Store) WriteLog(ctx context.Context, module, message string) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO logs (log_module, log_message)
		VALUES ($1, $2)`,
		module, message,
	)
	if err != nil {
		return fmt.Errorf("write log: %w", err)
	}
	return nil
}

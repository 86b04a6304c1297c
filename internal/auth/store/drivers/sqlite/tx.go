package sqlite

import (
	"context"
	"database/sql"
)

// WithTx executes fn within a transaction, automatically handling
// commit/rollback. fn must only use tx; the pool holds a single connection
// so touching s.db from inside fn would block forever.
func (s *Store) WithTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	// Ensure rollback is called if we panic or return early with error
	defer func() {
		_ = tx.Rollback() // safe to call even after commit
	}()

	if err := fn(tx); err != nil {
		return err // rollback happens in defer
	}

	return tx.Commit()
}

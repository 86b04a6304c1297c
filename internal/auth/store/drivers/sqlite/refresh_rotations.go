package sqlite

import (
	"context"
	"time"

	"github.com/tinmegali/authserver/internal/auth/store"
)

type refreshRotationsRepo struct {
	s *Store
}

// ConsumeRefreshToken relies on the jti primary key: the insert that loses a
// race affects no rows.
func (r *refreshRotationsRepo) ConsumeRefreshToken(ctx context.Context, jti, clientID string, expiresAt, now time.Time) error {
	res, err := r.s.db.ExecContext(ctx, `
INSERT INTO refresh_rotations (jti, client_id, consumed_at, expires_at)
VALUES (?, ?, ?, ?)
ON CONFLICT (jti) DO NOTHING`,
		jti, clientID, millis(now), millis(expiresAt))
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return store.ErrAlreadyConsumed
	}
	return nil
}

func (r *refreshRotationsRepo) DeleteExpiredRefreshRotations(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.s.db.ExecContext(ctx, `DELETE FROM refresh_rotations WHERE expires_at <= ?`, millis(now))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

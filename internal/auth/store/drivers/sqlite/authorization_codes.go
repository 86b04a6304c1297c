package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/tinmegali/authserver/internal/auth/domain"
	"github.com/tinmegali/authserver/internal/auth/store"
)

type authorizationCodesRepo struct {
	s *Store
}

const selectAuthorizationCode = `
SELECT id, code_hash, client_id, redirect_uri, username, authorities, attributes, scopes, expires_at, used_at, created_at
FROM authorization_codes
WHERE code_hash = ?`

func (r *authorizationCodesRepo) CreateAuthorizationCode(ctx context.Context, code domain.AuthorizationCode) error {
	attrs, err := encodeAttributes(code.Principal.Attributes)
	if err != nil {
		return fmt.Errorf("sqlite: encode attributes: %w", err)
	}

	res, err := r.s.db.ExecContext(ctx, `
INSERT INTO authorization_codes (id, code_hash, client_id, redirect_uri, username, authorities, attributes, scopes, expires_at, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT DO NOTHING`,
		code.ID,
		code.CodeHash,
		code.ClientID,
		code.RedirectURI,
		code.Principal.Username,
		joinList(code.Principal.Authorities),
		attrs,
		joinList(code.Scopes),
		millis(code.ExpiresAt),
		millis(code.CreatedAt),
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return store.ErrAlreadyExists
	}
	return nil
}

// RedeemAuthorizationCode flips used_at with a conditional UPDATE so that
// only one caller ever sees a row affected. The row is then read back inside
// the same transaction.
func (r *authorizationCodesRepo) RedeemAuthorizationCode(ctx context.Context, codeHash string, now time.Time) (domain.AuthorizationCode, error) {
	var out domain.AuthorizationCode
	err := r.s.WithTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
UPDATE authorization_codes SET used_at = ?
WHERE code_hash = ? AND used_at IS NULL AND expires_at > ?`,
			millis(now), codeHash, millis(now))
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}

		code, err := scanAuthorizationCode(tx.QueryRowContext(ctx, selectAuthorizationCode, codeHash))
		if err != nil {
			return mapNotFound(err)
		}
		if n == 1 {
			out = code
			return nil
		}
		if code.UsedAt != nil {
			return store.ErrAlreadyConsumed
		}
		// Present, unused and not updated: expired.
		return store.ErrNotFound
	})
	if err != nil {
		return domain.AuthorizationCode{}, err
	}
	return out, nil
}

func (r *authorizationCodesRepo) DeleteExpiredAuthorizationCodes(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.s.db.ExecContext(ctx, `DELETE FROM authorization_codes WHERE expires_at <= ?`, millis(now))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func scanAuthorizationCode(row *sql.Row) (domain.AuthorizationCode, error) {
	var (
		c           domain.AuthorizationCode
		authorities string
		attributes  string
		scopes      string
		expiresAt   int64
		usedAt      sql.NullInt64
		createdAt   int64
	)
	if err := row.Scan(
		&c.ID,
		&c.CodeHash,
		&c.ClientID,
		&c.RedirectURI,
		&c.Principal.Username,
		&authorities,
		&attributes,
		&scopes,
		&expiresAt,
		&usedAt,
		&createdAt,
	); err != nil {
		return domain.AuthorizationCode{}, err
	}

	attrs, err := decodeAttributes(attributes)
	if err != nil {
		return domain.AuthorizationCode{}, fmt.Errorf("sqlite: decode attributes: %w", err)
	}
	c.Principal.Authorities = splitList(authorities)
	c.Principal.Attributes = attrs
	c.Scopes = splitList(scopes)
	c.ExpiresAt = fromMillis(expiresAt)
	c.UsedAt = mapNullTimePtr(usedAt)
	c.CreatedAt = fromMillis(createdAt)
	return c, nil
}

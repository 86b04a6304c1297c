package domain

import "time"

// AuthorizationCode is a pending authorization_code grant. The code itself
// is never stored, only its fingerprint.
type AuthorizationCode struct {
	ID          string
	CodeHash    string
	ClientID    string
	RedirectURI string
	Principal   Principal
	Scopes      []string
	ExpiresAt   time.Time
	UsedAt      *time.Time
	CreatedAt   time.Time
}

// IsExpired reports whether the code can no longer be redeemed at now.
func (c AuthorizationCode) IsExpired(now time.Time) bool {
	return !now.Before(c.ExpiresAt)
}

package jwtx

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Verifier validates a JWT and gives back the claims if it is legit.
type Verifier interface {
	Verify(token string) (ClaimSet, error)
}

var (
	ErrMalformed   = errors.New("jwtx: malformed token")
	ErrAlgMismatch = errors.New("jwtx: algorithm mismatch")
	ErrUnknownKID  = errors.New("jwtx: unknown kid")
	ErrInvalidSig  = errors.New("jwtx: invalid signature")

	ErrIssuer       = errors.New("jwtx: issuer mismatch")
	ErrExpired      = errors.New("jwtx: token expired")
	ErrNotYetValid  = errors.New("jwtx: token not yet valid")
	ErrInvalidClaim = errors.New("jwtx: invalid claims")
)

// KeySetVerifier checks tokens against the keys in a KeySet. Exactly one
// algorithm is accepted, "exp" is required and a token is valid only while
// now < exp.
type KeySetVerifier struct {
	keys   *KeySet
	alg    string
	issuer string
	now    func() time.Time
}

// VerifierOption customises a KeySetVerifier.
type VerifierOption func(*KeySetVerifier)

// WithClock replaces time.Now, mostly so tests can sit on an exact expiry.
func WithClock(now func() time.Time) VerifierOption {
	return func(v *KeySetVerifier) { v.now = now }
}

// NewVerifier creates a verifier for tokens signed with alg. An empty
// issuer disables the "iss" check.
func NewVerifier(keys *KeySet, alg, issuer string, opts ...VerifierOption) *KeySetVerifier {
	v := &KeySetVerifier{keys: keys, alg: alg, issuer: issuer, now: time.Now}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Verify validates the JWT string and returns its claims. Every failure
// wraps exactly one of the package sentinels.
func (v *KeySetVerifier) Verify(tokenStr string) (ClaimSet, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{v.alg}),
		jwt.WithStrictDecoding(),
		jwt.WithExpirationRequired(),
		jwt.WithJSONNumber(),
		jwt.WithTimeFunc(v.now),
	}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}
	parser := jwt.NewParser(opts...)

	token, err := parser.ParseWithClaims(tokenStr, jwt.MapClaims{}, v.keyFunc)
	if err != nil {
		return nil, v.classify(token, err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return nil, ErrInvalidClaim
	}
	return ClaimSet(claims), nil
}

func (v *KeySetVerifier) keyFunc(t *jwt.Token) (any, error) {
	// Need the kid to know which key to use
	kid, _ := t.Header["kid"].(string)
	if kid == "" {
		return nil, fmt.Errorf("%w: missing kid", ErrUnknownKID)
	}
	key, err := v.keys.Get(kid)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrUnknownKID, kid)
	}
	return key, nil
}

// classify maps parser errors onto the package sentinels.
func (v *KeySetVerifier) classify(token *jwt.Token, err error) error {
	if token != nil && token.Header != nil {
		if alg, ok := token.Header["alg"].(string); ok && alg != v.alg {
			return fmt.Errorf("%w: got %q", ErrAlgMismatch, alg)
		}
	}

	switch {
	case errors.Is(err, ErrUnknownKID):
		return ErrUnknownKID
	case errors.Is(err, jwt.ErrTokenMalformed):
		return fmt.Errorf("%w: %w", ErrMalformed, err)
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return ErrInvalidSig
	case errors.Is(err, jwt.ErrTokenExpired):
		return ErrExpired
	case errors.Is(err, jwt.ErrTokenNotValidYet), errors.Is(err, jwt.ErrTokenUsedBeforeIssued):
		return ErrNotYetValid
	case errors.Is(err, jwt.ErrTokenInvalidIssuer):
		return ErrIssuer
	case errors.Is(err, jwt.ErrTokenInvalidClaims), errors.Is(err, jwt.ErrTokenRequiredClaimMissing):
		return fmt.Errorf("%w: %w", ErrInvalidClaim, err)
	default:
		return fmt.Errorf("%w: %w", ErrMalformed, err)
	}
}

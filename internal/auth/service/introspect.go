package service

import (
	"context"
	"log/slog"

	"github.com/tinmegali/authserver/internal/auth/metrics"
	"github.com/tinmegali/authserver/pkg/jwtx"
	"github.com/tinmegali/authserver/pkg/slogx"
)

// IntrospectionService serves the token_key and check_token operations.
// The access policy is always evaluated before the codec is touched.
type IntrospectionService struct {
	Codec   TokenCodec
	Policy  AccessPolicy
	Metrics *metrics.Metrics
}

// TokenKey returns the public verification material.
func (s *IntrospectionService) TokenKey(ctx context.Context, caller Caller) (jwtx.TokenKey, error) {
	if err := s.Policy.Authorize(EndpointTokenKey, caller); err != nil {
		s.observe(ctx, EndpointTokenKey, caller, err)
		return jwtx.TokenKey{}, err
	}

	tk, err := s.Codec.TokenKey()
	if err != nil {
		ae := ErrKeyUnavailable.Wrap(err)
		s.observe(ctx, EndpointTokenKey, caller, ae)
		return jwtx.TokenKey{}, ae
	}
	s.observe(ctx, EndpointTokenKey, caller, nil)
	return tk, nil
}

// CheckToken decodes an access token and returns its claims. Refresh tokens
// are not valid input.
func (s *IntrospectionService) CheckToken(ctx context.Context, caller Caller, token string) (jwtx.ClaimSet, error) {
	claims, err := s.checkToken(caller, token)
	s.observe(ctx, EndpointCheckToken, caller, err)
	return claims, err
}

func (s *IntrospectionService) checkToken(caller Caller, token string) (jwtx.ClaimSet, error) {
	if err := s.Policy.Authorize(EndpointCheckToken, caller); err != nil {
		return nil, err
	}
	if token == "" {
		return nil, ErrInvalidRequest.WithDescription("token is required")
	}

	claims, err := s.Codec.Decode(token)
	if err != nil {
		return nil, ErrInvalidToken.Wrap(err)
	}
	if claims.IsRefresh() {
		return nil, ErrInvalidToken.WithDescription("refresh tokens cannot be introspected")
	}
	return claims, nil
}

func (s *IntrospectionService) observe(ctx context.Context, endpoint Endpoint, caller Caller, err error) {
	outcome := "ok"
	if err != nil {
		outcome = ErrorCode(err)
	}
	s.Metrics.Introspection(string(endpoint), outcome)

	if err != nil {
		slogx.FromContext(ctx).Info("introspection rejected",
			slog.String("endpoint", string(endpoint)),
			slog.String("client_id", caller.ClientID),
			slog.String("error", outcome),
		)
	}
}

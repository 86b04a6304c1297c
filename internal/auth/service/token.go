package service

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"time"

	"github.com/tinmegali/authserver/internal/auth/domain"
	"github.com/tinmegali/authserver/internal/auth/metrics"
	"github.com/tinmegali/authserver/internal/auth/store"
	"github.com/tinmegali/authserver/pkg/cryptox"
	"github.com/tinmegali/authserver/pkg/idx"
	"github.com/tinmegali/authserver/pkg/jwtx"
	"github.com/tinmegali/authserver/pkg/slogx"
)

// DefaultCollaboratorTimeout bounds every call to an authenticator, store or
// session resolver when TokenService.CollaboratorTimeout is unset.
const DefaultCollaboratorTimeout = 3 * time.Second

// ClientRegistry is the read side of the client table.
type ClientRegistry interface {
	Lookup(id string) (domain.ClientPolicy, error)
	VerifySecret(id, secret string) bool
}

// TokenCodec signs and verifies tokens. *jwtx.Codec implements it.
type TokenCodec interface {
	Encode(claims jwtx.ClaimSet) (string, error)
	Decode(token string) (jwtx.ClaimSet, error)
	TokenKey() (jwtx.TokenKey, error)
}

// Authenticator checks resource owner credentials for the password grant.
// Any error other than a context error is treated as bad credentials.
type Authenticator interface {
	Authenticate(ctx context.Context, username, password, otp string) (domain.Principal, error)
}

// AuthenticatorFunc adapts a function to Authenticator.
type AuthenticatorFunc func(ctx context.Context, username, password, otp string) (domain.Principal, error)

func (f AuthenticatorFunc) Authenticate(ctx context.Context, username, password, otp string) (domain.Principal, error) {
	return f(ctx, username, password, otp)
}

// ErrUnknownSession is returned by session resolvers for sessions they do
// not recognise.
var ErrUnknownSession = errors.New("service: unknown session")

// SessionResolver maps an already established user session to its principal
// for the implicit grant. Session management itself lives elsewhere.
type SessionResolver interface {
	ResolveSession(ctx context.Context, session string) (domain.Principal, error)
}

// SessionResolverFunc adapts a function to SessionResolver.
type SessionResolverFunc func(ctx context.Context, session string) (domain.Principal, error)

func (f SessionResolverFunc) ResolveSession(ctx context.Context, session string) (domain.Principal, error) {
	return f(ctx, session)
}

// TokenService issues access and refresh tokens. Optional collaborators may
// be nil: the grants that need them are then rejected with invalid_grant.
type TokenService struct {
	Clients       ClientRegistry
	Codec         TokenCodec
	Authenticator Authenticator
	Codes         store.AuthorizationCodes
	Sessions      SessionResolver
	Rotations     store.RefreshRotations

	// Enhancer replaces the default NamespaceEnhancer(Namespace) pipeline.
	Enhancer  Enhancer
	Namespace string

	Issuer              string
	RefreshPolicy       domain.RefreshPolicy
	CollaboratorTimeout time.Duration
	CodeTTL             time.Duration

	Metrics *metrics.Metrics
	Now     func() time.Time
}

// grantInput is the outcome of the grant-specific part of Issue.
type grantInput struct {
	principal domain.Principal
	requested []string

	// refresh_token grant only
	presented       string
	presentedClaims jwtx.ClaimSet
}

// Issue runs a token request to completion. Every failure is an *AuthError;
// nothing is signed unless every check passed.
func (s *TokenService) Issue(ctx context.Context, req domain.TokenRequest) (*domain.TokenGrant, error) {
	l := slogx.FromContext(ctx).With(
		slog.String("client_id", req.ClientID),
		slog.String("grant_type", req.GrantType),
	)

	grant, err := s.issue(ctx, req)
	if err != nil {
		ae := AsAuthError(err)
		switch ae.Code {
		case ErrServerError.Code, ErrKeyUnavailable.Code, ErrTemporarilyUnavailable.Code:
			l.Error("token request failed", slog.String("error", ae.Code), slog.Any("cause", ae.Err))
		default:
			l.Info("token request rejected", slog.String("error", ae.Code))
		}
		s.Metrics.TokenFailed(metricGrant(req.GrantType), ae.Code)
		return nil, ae
	}

	l.Info("token issued",
		slog.String("jti", grant.Access.ID()),
		slog.Bool("refresh", grant.Refresh != nil),
	)
	s.Metrics.TokenIssued(metricGrant(req.GrantType), grant.Refresh != nil)
	return grant, nil
}

func (s *TokenService) issue(ctx context.Context, req domain.TokenRequest) (*domain.TokenGrant, error) {
	now := s.now()

	// 1-2. Client authentication.
	if req.ClientID == "" {
		return nil, ErrInvalidClient.WithDescription("client_id is required")
	}
	policy, err := s.Clients.Lookup(req.ClientID)
	if err != nil {
		return nil, ErrInvalidClient.Wrap(err)
	}
	if policy.RequiresSecret() && !s.Clients.VerifySecret(policy.ID, req.ClientSecret) {
		return nil, ErrInvalidClient
	}

	// 3. Grant permission, before any principal work.
	if req.GrantType == "" {
		return nil, ErrInvalidRequest.WithDescription("grant_type is required")
	}
	grant := domain.GrantType(req.GrantType)
	if !grant.IsKnown() {
		return nil, ErrUnsupportedGrantType
	}
	if !policy.Allows(grant) {
		return nil, ErrUnauthorizedClient
	}

	// 4. Principal.
	var in grantInput
	switch grant {
	case domain.GrantClientCredentials:
		in = grantInput{
			principal: domain.Principal{Username: policy.ID, Authorities: slices.Clone(policy.Authorities)},
			requested: req.Scopes,
		}
	case domain.GrantPassword:
		in, err = s.passwordGrant(ctx, req)
	case domain.GrantAuthorizationCode:
		in, err = s.authorizationCodeGrant(ctx, policy, req, now)
	case domain.GrantImplicit:
		in, err = s.implicitGrant(ctx, req)
	case domain.GrantRefreshToken:
		in, err = s.refreshGrant(req, policy)
	}
	if err != nil {
		return nil, err
	}

	// 5. Scopes.
	scopes, err := resolveScopes(in.requested, policy.Scopes)
	if err != nil {
		return nil, err
	}

	// Rotation is the last check so a rejected request never burns the
	// presented refresh token.
	reuse := grant == domain.GrantRefreshToken && s.refreshPolicy() == domain.RefreshReuse
	if grant == domain.GrantRefreshToken && !reuse {
		if err := s.consumeRefresh(ctx, in.presentedClaims, policy.ID, now); err != nil {
			return nil, err
		}
	}

	// 6-7. Access token.
	enhance := s.enhancer()
	base := s.baseClaims(policy, in.principal, scopes, now)
	access, err := s.sign(enhance(base, in.principal))
	if err != nil {
		return nil, err
	}

	out := &domain.TokenGrant{
		Access: domain.AccessToken{
			Value:     access.value,
			Claims:    access.claims,
			ExpiresAt: access.claims.ExpiresAt(),
		},
		Scope: scopes,
	}

	// 8. Refresh token.
	switch {
	case reuse:
		out.Refresh = &domain.RefreshToken{
			Value:     in.presented,
			Claims:    in.presentedClaims,
			ExpiresAt: in.presentedClaims.ExpiresAt(),
		}
	case issuesRefresh(grant) && policy.SupportsRefresh():
		rb := base.Clone()
		rb[jwtx.ClaimID] = idx.NewAt(now).String()
		rb[jwtx.ClaimExpiresAt] = now.Add(policy.RefreshTokenValidity).Unix()
		rb[jwtx.ClaimAccessTokenID] = base.ID()
		refresh, err := s.sign(enhance(rb, in.principal))
		if err != nil {
			return nil, err
		}
		out.Refresh = &domain.RefreshToken{
			Value:     refresh.value,
			Claims:    refresh.claims,
			ExpiresAt: refresh.claims.ExpiresAt(),
		}
	}

	return out, nil
}

func (s *TokenService) passwordGrant(ctx context.Context, req domain.TokenRequest) (grantInput, error) {
	if req.Username == "" || req.Password == "" {
		return grantInput{}, ErrInvalidRequest.WithDescription("username and password are required")
	}
	if s.Authenticator == nil {
		return grantInput{}, ErrInvalidGrant
	}

	cctx, cancel := s.collaborator(ctx)
	defer cancel()
	p, err := s.Authenticator.Authenticate(cctx, req.Username, req.Password, req.OTP)
	if err != nil {
		return grantInput{}, collaboratorError(err, ErrInvalidGrant)
	}
	return grantInput{principal: p, requested: req.Scopes}, nil
}

func (s *TokenService) authorizationCodeGrant(ctx context.Context, policy domain.ClientPolicy, req domain.TokenRequest, now time.Time) (grantInput, error) {
	if req.Code == "" {
		return grantInput{}, ErrInvalidRequest.WithDescription("code is required")
	}
	if s.Codes == nil {
		return grantInput{}, ErrInvalidGrant
	}

	cctx, cancel := s.collaborator(ctx)
	defer cancel()
	code, err := s.Codes.RedeemAuthorizationCode(cctx, cryptox.CodeFingerprint(req.Code), now)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) || errors.Is(err, store.ErrAlreadyConsumed) {
			return grantInput{}, ErrInvalidGrant.Wrap(err)
		}
		return grantInput{}, collaboratorError(err, ErrServerError)
	}

	// The code is spent either way; a mismatch must not leave it usable.
	if code.ClientID != policy.ID || code.RedirectURI != req.RedirectURI {
		return grantInput{}, ErrInvalidGrant
	}

	requested := req.Scopes
	if len(requested) == 0 {
		requested = code.Scopes
	}
	return grantInput{principal: code.Principal, requested: requested}, nil
}

func (s *TokenService) implicitGrant(ctx context.Context, req domain.TokenRequest) (grantInput, error) {
	if req.Session == "" || s.Sessions == nil {
		return grantInput{}, ErrInvalidGrant
	}

	cctx, cancel := s.collaborator(ctx)
	defer cancel()
	p, err := s.Sessions.ResolveSession(cctx, req.Session)
	if err != nil {
		return grantInput{}, collaboratorError(err, ErrInvalidGrant)
	}
	return grantInput{principal: p, requested: req.Scopes}, nil
}

func (s *TokenService) refreshGrant(req domain.TokenRequest, policy domain.ClientPolicy) (grantInput, error) {
	if req.RefreshToken == "" {
		return grantInput{}, ErrInvalidRequest.WithDescription("refresh_token is required")
	}

	claims, err := s.Codec.Decode(req.RefreshToken)
	if err != nil {
		return grantInput{}, ErrInvalidGrant.Wrap(err)
	}
	if !claims.IsRefresh() || claims.ID() == "" {
		return grantInput{}, ErrInvalidGrant.WithDescription("not a refresh token")
	}
	if claims.ClientID() != policy.ID {
		return grantInput{}, ErrInvalidGrant
	}

	original := claims.Scope()
	requested := req.Scopes
	if len(requested) == 0 {
		requested = original
	}
	for _, sc := range requested {
		if !slices.Contains(original, sc) {
			return grantInput{}, ErrInvalidScope.WithDescription("scope exceeds the original grant")
		}
	}

	return grantInput{
		principal:       principalFromClaims(claims, s.namespace()),
		requested:       requested,
		presented:       req.RefreshToken,
		presentedClaims: claims,
	}, nil
}

func (s *TokenService) consumeRefresh(ctx context.Context, claims jwtx.ClaimSet, clientID string, now time.Time) error {
	if s.Rotations == nil {
		return ErrServerError.WithDescription("refresh rotation is not configured")
	}

	cctx, cancel := s.collaborator(ctx)
	defer cancel()
	err := s.Rotations.ConsumeRefreshToken(cctx, claims.ID(), clientID, claims.ExpiresAt(), now)
	if err == nil {
		return nil
	}
	if errors.Is(err, store.ErrAlreadyConsumed) {
		return ErrInvalidGrant.Wrap(err)
	}
	return collaboratorError(err, ErrServerError)
}

// IssueAuthorizationCode records a pending authorization_code grant for an
// already authenticated principal and returns the code to hand back to the
// client.
func (s *TokenService) IssueAuthorizationCode(ctx context.Context, clientID, redirectURI string, p domain.Principal, scopes []string) (string, error) {
	policy, err := s.Clients.Lookup(clientID)
	if err != nil {
		return "", ErrInvalidClient.Wrap(err)
	}
	if !policy.Allows(domain.GrantAuthorizationCode) {
		return "", ErrUnauthorizedClient
	}
	if !policy.AllowsRedirect(redirectURI) {
		return "", ErrInvalidRequest.WithDescription("redirect_uri is not registered")
	}
	if s.Codes == nil {
		return "", ErrServerError.WithDescription("authorization codes are not configured")
	}
	granted, err := resolveScopes(scopes, policy.Scopes)
	if err != nil {
		return "", err
	}

	code, fingerprint, err := cryptox.NewAuthorizationCode()
	if err != nil {
		return "", ErrServerError.Wrap(err)
	}

	now := s.now()
	ttl := s.CodeTTL
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}

	cctx, cancel := s.collaborator(ctx)
	defer cancel()
	err = s.Codes.CreateAuthorizationCode(cctx, domain.AuthorizationCode{
		ID:          idx.NewAt(now).String(),
		CodeHash:    fingerprint,
		ClientID:    policy.ID,
		RedirectURI: redirectURI,
		Principal:   p.Clone(),
		Scopes:      granted,
		ExpiresAt:   now.Add(ttl),
		CreatedAt:   now,
	})
	if err != nil {
		return "", collaboratorError(err, ErrServerError)
	}
	return code, nil
}

func (s *TokenService) baseClaims(policy domain.ClientPolicy, p domain.Principal, scopes []string, now time.Time) jwtx.ClaimSet {
	claims := jwtx.ClaimSet{
		jwtx.ClaimSubject:   p.Username,
		jwtx.ClaimScope:     slices.Clone(scopes),
		jwtx.ClaimClientID:  policy.ID,
		jwtx.ClaimExpiresAt: now.Add(policy.AccessTokenValidity).Unix(),
		jwtx.ClaimIssuedAt:  now.Unix(),
		jwtx.ClaimID:        idx.NewAt(now).String(),
	}
	if len(policy.ResourceIDs) > 0 {
		claims[jwtx.ClaimAudience] = slices.Clone(policy.ResourceIDs)
	}
	if s.Issuer != "" {
		claims[jwtx.ClaimIssuer] = s.Issuer
	}
	return claims
}

type signed struct {
	value  string
	claims jwtx.ClaimSet
}

func (s *TokenService) sign(claims jwtx.ClaimSet) (signed, error) {
	value, err := s.Codec.Encode(claims)
	if err != nil {
		if errors.Is(err, jwtx.ErrKeyUnavailable) {
			return signed{}, ErrKeyUnavailable.Wrap(err)
		}
		return signed{}, ErrServerError.Wrap(err)
	}
	return signed{value: value, claims: claims}, nil
}

// resolveScopes de-duplicates requested in order and checks every entry
// against allowed. An empty request grants everything allowed.
func resolveScopes(requested, allowed []string) ([]string, error) {
	if len(requested) == 0 {
		return slices.Clone(allowed), nil
	}
	out := make([]string, 0, len(requested))
	for _, sc := range requested {
		if slices.Contains(out, sc) {
			continue
		}
		if !slices.Contains(allowed, sc) {
			return nil, ErrInvalidScope.WithDescription("scope " + sc + " is not allowed for this client")
		}
		out = append(out, sc)
	}
	return out, nil
}

// issuesRefresh reports whether grant may come with a refresh token at all.
func issuesRefresh(grant domain.GrantType) bool {
	switch grant {
	case domain.GrantPassword, domain.GrantAuthorizationCode, domain.GrantClientCredentials, domain.GrantRefreshToken:
		return true
	default:
		return false
	}
}

func collaboratorError(err error, fallback *AuthError) *AuthError {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return ErrTemporarilyUnavailable.Wrap(err)
	}
	return fallback.Wrap(err)
}

func (s *TokenService) collaborator(ctx context.Context) (context.Context, context.CancelFunc) {
	timeout := s.CollaboratorTimeout
	if timeout <= 0 {
		timeout = DefaultCollaboratorTimeout
	}
	return context.WithTimeout(ctx, timeout)
}

func (s *TokenService) enhancer() Enhancer {
	if s.Enhancer != nil {
		return Chain(s.Enhancer)
	}
	return Chain(NamespaceEnhancer(s.namespace()))
}

func (s *TokenService) namespace() string {
	if s.Namespace == "" {
		return DefaultNamespace
	}
	return s.Namespace
}

func (s *TokenService) refreshPolicy() domain.RefreshPolicy {
	if s.RefreshPolicy == "" {
		return domain.RefreshRotate
	}
	return s.RefreshPolicy
}

func (s *TokenService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// metricGrant keeps label cardinality bounded.
func metricGrant(g string) string {
	if domain.GrantType(g).IsKnown() {
		return g
	}
	return "unknown"
}

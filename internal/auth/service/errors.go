package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/tinmegali/authserver/pkg/authsdk"
)

// ErrorCodeKeyUnavailable is reported when no signing key could be used. The
// transport surfaces it as server_error.
const ErrorCodeKeyUnavailable = "key_unavailable"

// AuthError is the only error type the services return. Code is an OAuth2
// error code; Err is the underlying cause, which is logged but never sent
// to clients.
type AuthError struct {
	Code        string
	Description string
	Err         error
}

func (e *AuthError) Error() string {
	if e.Description == "" {
		return e.Code
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Description)
}

func (e *AuthError) Unwrap() error { return e.Err }

// Is matches any *AuthError with the same code.
func (e *AuthError) Is(target error) bool {
	t, ok := target.(*AuthError)
	return ok && t.Code == e.Code
}

// WithDescription returns a copy with a different client-facing description.
func (e *AuthError) WithDescription(desc string) *AuthError {
	c := *e
	c.Description = desc
	return &c
}

// Wrap returns a copy carrying cause.
func (e *AuthError) Wrap(cause error) *AuthError {
	c := *e
	c.Err = cause
	return &c
}

// OAuth2 converts the error to its wire form.
func (e *AuthError) OAuth2() *authsdk.OAuth2Error {
	return authsdk.NewOAuth2Error(e.Code, e.Description)
}

var (
	ErrInvalidRequest         = &AuthError{Code: authsdk.ErrorCodeInvalidRequest}
	ErrInvalidClient          = &AuthError{Code: authsdk.ErrorCodeInvalidClient}
	ErrUnauthorizedClient     = &AuthError{Code: authsdk.ErrorCodeUnauthorizedClient}
	ErrUnsupportedGrantType   = &AuthError{Code: authsdk.ErrorCodeUnsupportedGrantType}
	ErrInvalidGrant           = &AuthError{Code: authsdk.ErrorCodeInvalidGrant}
	ErrInvalidScope           = &AuthError{Code: authsdk.ErrorCodeInvalidScope}
	ErrAccessDenied           = &AuthError{Code: authsdk.ErrorCodeAccessDenied}
	ErrInvalidToken           = &AuthError{Code: authsdk.ErrorCodeInvalidToken}
	ErrKeyUnavailable         = &AuthError{Code: ErrorCodeKeyUnavailable}
	ErrTemporarilyUnavailable = &AuthError{Code: authsdk.ErrorCodeTemporarilyUnavailable}
	ErrServerError            = &AuthError{Code: authsdk.ErrorCodeServerError}
)

// AsAuthError returns err as an *AuthError. Anything else becomes
// server_error, except deadline errors which become temporarily_unavailable.
func AsAuthError(err error) *AuthError {
	if err == nil {
		return nil
	}
	var ae *AuthError
	if errors.As(err, &ae) {
		return ae
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrTemporarilyUnavailable.Wrap(err)
	}
	return ErrServerError.Wrap(err)
}

// ErrorCode returns the OAuth2 code for err, for metrics and logs.
func ErrorCode(err error) string {
	if err == nil {
		return ""
	}
	return AsAuthError(err).Code
}

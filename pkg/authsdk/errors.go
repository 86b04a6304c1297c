package authsdk

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/tinmegali/authserver/pkg/httpx"
)

// OAuth2 error codes (RFC 6749 section 5.2, RFC 6750, RFC 7662).
const (
	ErrorCodeInvalidRequest         = "invalid_request"
	ErrorCodeInvalidClient          = "invalid_client"
	ErrorCodeInvalidGrant           = "invalid_grant"
	ErrorCodeUnauthorizedClient     = "unauthorized_client"
	ErrorCodeUnsupportedGrantType   = "unsupported_grant_type"
	ErrorCodeInvalidScope           = "invalid_scope"
	ErrorCodeInvalidToken           = "invalid_token"
	ErrorCodeAccessDenied           = "access_denied"
	ErrorCodeServerError            = "server_error"
	ErrorCodeTemporarilyUnavailable = "temporarily_unavailable"
)

// OAuth2Error represents a standard OAuth2 error response per RFC 6749.
// The server writes it and the SDK client returns it.
type OAuth2Error struct {
	// StatusCode is the HTTP status code for this error
	StatusCode int `json:"-"`

	// Code is the OAuth2 error code (e.g., "invalid_request", "invalid_grant")
	Code string `json:"error"`

	// Description is a human-readable description of the error
	Description string `json:"error_description,omitempty"`
}

func (e *OAuth2Error) Error() string {
	if e.Description == "" {
		return e.Code
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Description)
}

// Is matches any *OAuth2Error with the same code, so callers can write
// errors.Is(err, authsdk.ErrInvalidGrant).
func (e *OAuth2Error) Is(target error) bool {
	t, ok := target.(*OAuth2Error)
	return ok && t.Code == e.Code
}

// WithDescription returns a copy with a different description.
func (e *OAuth2Error) WithDescription(desc string) *OAuth2Error {
	c := *e
	c.Description = desc
	return &c
}

// WriteError writes this OAuth2Error to an HTTP response writer.
func (e *OAuth2Error) WriteError(w http.ResponseWriter) {
	httpx.NoCache(w)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(e.StatusCode)
	_ = json.NewEncoder(w).Encode(e)
}

var (
	// ErrInvalidRequest: a parameter is missing, repeated or malformed.
	ErrInvalidRequest = &OAuth2Error{
		StatusCode:  http.StatusBadRequest,
		Code:        ErrorCodeInvalidRequest,
		Description: "the request is malformed or missing required parameters",
	}

	// ErrInvalidClient: client authentication failed.
	ErrInvalidClient = &OAuth2Error{
		StatusCode:  http.StatusUnauthorized,
		Code:        ErrorCodeInvalidClient,
		Description: "client authentication failed",
	}

	// ErrInvalidGrant: the code, credentials or refresh token are invalid,
	// expired, already used or were issued to another client.
	ErrInvalidGrant = &OAuth2Error{
		StatusCode:  http.StatusBadRequest,
		Code:        ErrorCodeInvalidGrant,
		Description: "the authorization grant is invalid",
	}

	// ErrUnauthorizedClient: the client may not use this grant type.
	ErrUnauthorizedClient = &OAuth2Error{
		StatusCode:  http.StatusBadRequest,
		Code:        ErrorCodeUnauthorizedClient,
		Description: "the client is not authorized to use this grant type",
	}

	ErrUnsupportedGrantType = &OAuth2Error{
		StatusCode:  http.StatusBadRequest,
		Code:        ErrorCodeUnsupportedGrantType,
		Description: "grant type not supported",
	}

	ErrInvalidScope = &OAuth2Error{
		StatusCode:  http.StatusBadRequest,
		Code:        ErrorCodeInvalidScope,
		Description: "requested scope is invalid",
	}

	ErrInvalidToken = &OAuth2Error{
		StatusCode:  http.StatusBadRequest,
		Code:        ErrorCodeInvalidToken,
		Description: "the token is invalid or expired",
	}

	ErrAccessDenied = &OAuth2Error{
		StatusCode:  http.StatusForbidden,
		Code:        ErrorCodeAccessDenied,
		Description: "access denied",
	}

	ErrServerError = &OAuth2Error{
		StatusCode:  http.StatusInternalServerError,
		Code:        ErrorCodeServerError,
		Description: "internal server error",
	}

	ErrTemporarilyUnavailable = &OAuth2Error{
		StatusCode:  http.StatusServiceUnavailable,
		Code:        ErrorCodeTemporarilyUnavailable,
		Description: "the server is temporarily unable to handle the request",
	}

	ErrMethodNotAllowed = &OAuth2Error{
		StatusCode:  http.StatusMethodNotAllowed,
		Code:        ErrorCodeInvalidRequest,
		Description: "method not allowed",
	}

	ErrInvalidContentType = &OAuth2Error{
		StatusCode:  http.StatusBadRequest,
		Code:        ErrorCodeInvalidRequest,
		Description: "content-type must be application/x-www-form-urlencoded",
	}
)

var byCode = map[string]*OAuth2Error{
	ErrorCodeInvalidRequest:         ErrInvalidRequest,
	ErrorCodeInvalidClient:          ErrInvalidClient,
	ErrorCodeInvalidGrant:           ErrInvalidGrant,
	ErrorCodeUnauthorizedClient:     ErrUnauthorizedClient,
	ErrorCodeUnsupportedGrantType:   ErrUnsupportedGrantType,
	ErrorCodeInvalidScope:           ErrInvalidScope,
	ErrorCodeInvalidToken:           ErrInvalidToken,
	ErrorCodeAccessDenied:           ErrAccessDenied,
	ErrorCodeServerError:            ErrServerError,
	ErrorCodeTemporarilyUnavailable: ErrTemporarilyUnavailable,
}

// NewOAuth2Error builds an error for code with the standard status. An
// empty description keeps the default one. Unknown codes become server_error.
func NewOAuth2Error(code, description string) *OAuth2Error {
	base, ok := byCode[code]
	if !ok {
		base = ErrServerError
	}
	if description == "" {
		return base.WithDescription(base.Description)
	}
	return base.WithDescription(description)
}

// parseErrorResponse turns a non-2xx response into an *OAuth2Error.
func parseErrorResponse(resp *http.Response, body []byte) error {
	var errResp ErrorResponse
	if err := json.Unmarshal(body, &errResp); err == nil && errResp.Error != "" {
		return &OAuth2Error{
			StatusCode:  resp.StatusCode,
			Code:        errResp.Error,
			Description: errResp.ErrorDescription,
		}
	}

	return &OAuth2Error{
		StatusCode:  resp.StatusCode,
		Code:        ErrorCodeServerError,
		Description: fmt.Sprintf("HTTP %d: %s", resp.StatusCode, http.StatusText(resp.StatusCode)),
	}
}

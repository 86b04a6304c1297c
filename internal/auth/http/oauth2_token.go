package http

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/tinmegali/authserver/internal/auth/domain"
	"github.com/tinmegali/authserver/internal/auth/service"
	"github.com/tinmegali/authserver/pkg/authsdk"
	"github.com/tinmegali/authserver/pkg/httpx"
)

// TokenHandler serves POST /oauth/token
// Accepts application/x-www-form-urlencoded per the RFC 6749 framework.
type TokenHandler struct {
	TokenService *service.TokenService
}

// ServeHTTP godoc
//
//	@Summary		OAuth2 Token Endpoint
//	@Description	Issues access and refresh tokens for the client_credentials, password, authorization_code and refresh_token grants.
//	@Description	Client credentials may be sent with HTTP Basic or as client_id/client_secret form fields, not both.
//	@Tags			OAuth2
//	@Accept			application/x-www-form-urlencoded
//	@Produce		json
//	@Param			grant_type		formData	string					true	"Grant type"	Enums(client_credentials, password, authorization_code, refresh_token)
//	@Param			client_id		formData	string					false	"Client identifier (when not using Basic)"
//	@Param			client_secret	formData	string					false	"Client secret (when not using Basic)"
//	@Param			scope			formData	string					false	"Space-delimited list of scopes"
//	@Param			username		formData	string					false	"Resource owner username (password grant)"
//	@Param			password		formData	string					false	"Resource owner password (password grant)"
//	@Param			otp				formData	string					false	"TOTP code when the account has a second factor (password grant)"
//	@Param			code			formData	string					false	"Authorization code (authorization_code grant)"
//	@Param			redirect_uri	formData	string					false	"Redirect URI the code was issued for (authorization_code grant)"
//	@Param			refresh_token	formData	string					false	"Refresh token (refresh_token grant)"
//	@Success		200				{object}	authsdk.TokenResponse	"access_token, token_type, expires_in, refresh_token, scope"
//	@Failure		400				{object}	authsdk.ErrorResponse	"error, error_description"
//	@Failure		401				{object}	authsdk.ErrorResponse	"error, error_description"
//	@Failure		500				{object}	authsdk.ErrorResponse	"error, error_description"
//	@Failure		503				{object}	authsdk.ErrorResponse	"error, error_description"
//	@Header			200				{string}	Cache-Control			"no-store"
//	@Header			200				{string}	Pragma					"no-cache"
//	@Router			/oauth/token [post].
func (h *TokenHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	// 1. Ensure the right content-type
	if !httpx.IsFormRequest(r) {
		authsdk.ErrInvalidContentType.WriteError(w)
		return
	}

	// 2. Parse the form body
	if err := r.ParseForm(); err != nil {
		writeError(w, service.ErrInvalidRequest.WithDescription("malformed form body"), false)
		return
	}

	// 3. Client credentials, from the Basic header or the form
	creds, err := httpx.ClientCredentialsFromRequest(r)
	if err != nil {
		if errors.Is(err, httpx.ErrAmbiguousClientAuth) {
			writeError(w, service.ErrInvalidRequest.WithDescription("client credentials sent twice"), false)
			return
		}
		writeError(w, err, false)
		return
	}

	form := r.PostForm
	req := domain.TokenRequest{
		GrantType:    strings.TrimSpace(form.Get("grant_type")),
		ClientID:     creds.ID,
		ClientSecret: creds.Secret,
		Scopes:       httpx.ParseSpaceDelimitedFields(form.Get("scope")),
		Username:     form.Get("username"),
		Password:     form.Get("password"),
		OTP:          strings.TrimSpace(form.Get("otp")),
		Code:         strings.TrimSpace(form.Get("code")),
		RedirectURI:  strings.TrimSpace(form.Get("redirect_uri")),
		RefreshToken: strings.TrimSpace(form.Get("refresh_token")),
	}

	// 4. Issue
	grant, err := h.TokenService.Issue(r.Context(), req)
	if err != nil {
		writeError(w, err, creds.Basic)
		return
	}

	response := authsdk.TokenResponse{
		AccessToken: grant.Access.Value,
		TokenType:   domain.TokenTypeBearer,
		ExpiresIn:   grant.ExpiresIn(h.now()),
		Scope:       strings.Join(grant.Scope, " "),
		Jti:         grant.Access.ID(),
	}
	if grant.Refresh != nil {
		response.RefreshToken = grant.Refresh.Value
	}

	httpx.WriteJSON(w, http.StatusOK, response)
}

func (h *TokenHandler) now() time.Time {
	if h.TokenService.Now != nil {
		return h.TokenService.Now()
	}
	return time.Now()
}

package http

import (
	"net/http"

	"github.com/tinmegali/authserver/internal/auth/service"
	"github.com/tinmegali/authserver/pkg/authsdk"
	"github.com/tinmegali/authserver/pkg/httpx"
)

// CheckTokenHandler serves POST /oauth/check_token. A valid access token
// comes back as its claims plus "active": true; anything else is an
// invalid_token error.
type CheckTokenHandler struct {
	IntrospectionService *service.IntrospectionService
	Clients              service.ClientRegistry
}

// ServeHTTP godoc
//
//	@Summary		Check Token
//	@Description	Decodes an access token and returns its claims with "active": true. Refresh tokens are rejected.
//	@Description	Requires a client with ROLE_TRUSTED_CLIENT.
//	@Tags			OAuth2
//	@Accept			application/x-www-form-urlencoded
//	@Produce		json
//	@Param			token	formData	string					true	"The access token to decode"
//	@Success		200		{object}	map[string]any			"token claims plus active"
//	@Failure		400		{object}	authsdk.ErrorResponse	"error, error_description"
//	@Failure		401		{object}	authsdk.ErrorResponse	"error, error_description"
//	@Failure		403		{object}	authsdk.ErrorResponse	"error, error_description"
//	@Header			200		{string}	Cache-Control			"no-store"
//	@Header			200		{string}	Pragma					"no-cache"
//	@Router			/oauth/check_token [post].
func (h *CheckTokenHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
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

	// 3. Authenticate the caller; the policy decides before any decoding
	caller, basic, err := callerFromRequest(r, h.Clients)
	if err != nil {
		writeError(w, err, basic)
		return
	}

	claims, err := h.IntrospectionService.CheckToken(r.Context(), caller, r.PostForm.Get("token"))
	if err != nil {
		writeError(w, err, basic)
		return
	}

	out := claims.Clone()
	out["active"] = true
	httpx.WriteJSON(w, http.StatusOK, out)
}

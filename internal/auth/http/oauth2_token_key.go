package http

import (
	"net/http"

	"github.com/tinmegali/authserver/internal/auth/service"
	"github.com/tinmegali/authserver/pkg/authsdk"
	"github.com/tinmegali/authserver/pkg/httpx"
	"github.com/tinmegali/authserver/pkg/jwtx"
)

// TokenKeyHandler serves the public verification key, both in the
// token_key shape and as a JWKS. Both are gated by the access policy.
type TokenKeyHandler struct {
	IntrospectionService *service.IntrospectionService
	Clients              service.ClientRegistry
}

// ServeHTTP godoc
//
//	@Summary		Get Token Key
//	@Description	Returns the algorithm, key id and PEM public key used to sign tokens. HS256 deployments return no value.
//	@Description	Anonymous callers and clients with ROLE_TRUSTED_CLIENT are allowed.
//	@Tags			OAuth2
//	@Produce		json
//	@Success		200	{object}	authsdk.TokenKeyResponse	"alg, kid, value, keys"
//	@Failure		401	{object}	authsdk.ErrorResponse		"error, error_description"
//	@Failure		403	{object}	authsdk.ErrorResponse		"error, error_description"
//	@Failure		500	{object}	authsdk.ErrorResponse		"error, error_description"
//	@Router			/oauth/token_key [get].
func (h *TokenKeyHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	tk, ok := h.tokenKey(w, r)
	if !ok {
		return
	}
	httpx.WriteJSON(w, http.StatusOK, authsdk.TokenKeyResponse(tk))
}

// ServeJWKS godoc
//
//	@Summary		Get JWKS
//	@Description	Returns the JSON Web Key Set used to verify JWTs. Same access rule as /oauth/token_key.
//	@Tags			well-known
//	@Produce		json
//	@Success		200	{object}	authsdk.JWKSResponse	"The JSON Web Key Set"
//	@Failure		401	{object}	authsdk.ErrorResponse	"error, error_description"
//	@Failure		403	{object}	authsdk.ErrorResponse	"error, error_description"
//	@Router			/.well-known/jwks.json [get].
func (h *TokenKeyHandler) ServeJWKS(w http.ResponseWriter, r *http.Request) {
	tk, ok := h.tokenKey(w, r)
	if !ok {
		return
	}
	keys := tk.Keys
	if keys == nil {
		keys = []jwtx.JWK{}
	}
	httpx.WriteJSON(w, http.StatusOK, authsdk.JWKSResponse{Keys: keys})
}

func (h *TokenKeyHandler) tokenKey(w http.ResponseWriter, r *http.Request) (jwtx.TokenKey, bool) {
	caller, basic, err := callerFromRequest(r, h.Clients)
	if err != nil {
		writeError(w, err, basic)
		return jwtx.TokenKey{}, false
	}

	tk, err := h.IntrospectionService.TokenKey(r.Context(), caller)
	if err != nil {
		writeError(w, err, basic)
		return jwtx.TokenKey{}, false
	}
	return tk, true
}

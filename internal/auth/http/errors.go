package http

import (
	"net/http"

	"github.com/tinmegali/authserver/internal/auth/service"
	"github.com/tinmegali/authserver/pkg/authsdk"
)

// writeError maps a service error onto its OAuth2 wire form. Descriptions of
// 5xx errors are replaced by the generic ones so internal detail never
// reaches the client. basic adds the WWW-Authenticate challenge RFC 6749
// requires when a Basic-authenticated client fails authentication.
func writeError(w http.ResponseWriter, err error, basic bool) {
	ae := service.AsAuthError(err)

	oe := ae.OAuth2()
	if oe.StatusCode >= http.StatusInternalServerError {
		oe = authsdk.NewOAuth2Error(oe.Code, "")
	}
	if oe.StatusCode == http.StatusUnauthorized && basic {
		w.Header().Set("WWW-Authenticate", `Basic realm="oauth2"`)
	}
	oe.WriteError(w)
}

package httpx

import (
	"errors"
	"net/http"
	"net/url"
)

// ErrAmbiguousClientAuth is returned when a request authenticates the client
// both with a Basic header and with form parameters.
var ErrAmbiguousClientAuth = errors.New("httpx: client credentials in both header and body")

// ClientCredentials is how a request identified its client.
type ClientCredentials struct {
	ID     string
	Secret string
	// Basic is true when the credentials came from the Authorization header.
	Basic bool
}

// Present reports whether the request carried any client identification.
func (c ClientCredentials) Present() bool { return c.ID != "" }

// ClientCredentialsFromRequest reads HTTP Basic client credentials, falling
// back to the client_id and client_secret form fields. Basic values are
// form-url-decoded as RFC 6749 section 2.3.1 requires. The form must already
// be parsed.
func ClientCredentialsFromRequest(r *http.Request) (ClientCredentials, error) {
	user, pass, ok := r.BasicAuth()
	formID := r.PostForm.Get("client_id")
	formSecret := r.PostForm.Get("client_secret")

	if !ok {
		return ClientCredentials{ID: formID, Secret: formSecret}, nil
	}
	if formSecret != "" || (formID != "" && formID != decodeOrRaw(user)) {
		return ClientCredentials{}, ErrAmbiguousClientAuth
	}
	return ClientCredentials{ID: decodeOrRaw(user), Secret: decodeOrRaw(pass), Basic: true}, nil
}

func decodeOrRaw(s string) string {
	if v, err := url.QueryUnescape(s); err == nil {
		return v
	}
	return s
}

package authsdk

import (
	"net/http"
	"net/url"
	"strings"
	"time"
)

// SDKClient talks to the authorization server on behalf of one OAuth2 client.
// Client credentials are sent with HTTP Basic, form-url-encoded first as
// RFC 6749 section 2.3.1 requires.
type SDKClient struct {
	BaseURL    string
	HTTPClient *http.Client

	ClientID     string
	ClientSecret string
}

// NewSDKClient creates a client for baseURL. Without credentials it calls
// the introspection endpoints anonymously.
func NewSDKClient(baseURL, clientID, clientSecret string) *SDKClient {
	return &SDKClient{
		BaseURL: strings.TrimSuffix(baseURL, "/"),
		HTTPClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		ClientID:     clientID,
		ClientSecret: clientSecret,
	}
}

// authenticate sets client credentials on req. A public client (no secret)
// identifies itself with the client_id form field instead.
func (c *SDKClient) authenticate(req *http.Request) {
	if c.ClientID == "" || c.ClientSecret == "" {
		return
	}
	req.SetBasicAuth(url.QueryEscape(c.ClientID), url.QueryEscape(c.ClientSecret))
}

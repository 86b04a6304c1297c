package authsdk

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/tinmegali/authserver/pkg/httpx"
)

// ClientCredentialsGrant requests a token for the client itself.
func (c *SDKClient) ClientCredentialsGrant(ctx context.Context, scopes []string) (*TokenResponse, error) {
	data := url.Values{"grant_type": {"client_credentials"}}
	setScope(data, scopes)
	return c.requestToken(ctx, data)
}

// PasswordGrant exchanges resource owner credentials for tokens. otp may be
// empty for accounts without a second factor.
func (c *SDKClient) PasswordGrant(ctx context.Context, username, password, otp string, scopes []string) (*TokenResponse, error) {
	data := url.Values{
		"grant_type": {"password"},
		"username":   {username},
		"password":   {password},
	}
	if otp != "" {
		data.Set("otp", otp)
	}
	setScope(data, scopes)
	return c.requestToken(ctx, data)
}

// AuthorizationCodeGrant redeems an authorization code.
func (c *SDKClient) AuthorizationCodeGrant(ctx context.Context, code, redirectURI string) (*TokenResponse, error) {
	data := url.Values{
		"grant_type":   {"authorization_code"},
		"code":         {code},
		"redirect_uri": {redirectURI},
	}
	return c.requestToken(ctx, data)
}

// RefreshGrant exchanges a refresh token. scopes may narrow the original grant.
func (c *SDKClient) RefreshGrant(ctx context.Context, refreshToken string, scopes []string) (*TokenResponse, error) {
	data := url.Values{
		"grant_type":    {"refresh_token"},
		"refresh_token": {refreshToken},
	}
	setScope(data, scopes)
	return c.requestToken(ctx, data)
}

func setScope(data url.Values, scopes []string) {
	if len(scopes) > 0 {
		data.Set("scope", strings.Join(scopes, " "))
	}
}

func (c *SDKClient) requestToken(ctx context.Context, data url.Values) (*TokenResponse, error) {
	if c.ClientSecret == "" && c.ClientID != "" {
		data.Set("client_id", c.ClientID)
	}

	resp, err := c.doRequest(ctx, http.MethodPost, "/oauth/token", strings.NewReader(data.Encode()),
		map[string]string{"Content-Type": httpx.FormContentType})
	if err != nil {
		return nil, err
	}

	var tokenResp TokenResponse
	if err := decodeJSON(resp, &tokenResp, http.StatusOK); err != nil {
		return nil, err
	}
	return &tokenResp, nil
}

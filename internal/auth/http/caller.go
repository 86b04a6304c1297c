package http

import (
	"errors"
	"net/http"

	"github.com/tinmegali/authserver/internal/auth/service"
	"github.com/tinmegali/authserver/pkg/httpx"
)

// callerFromRequest authenticates the client calling a guarded endpoint.
// No credentials means an anonymous caller. Public clients cannot prove who
// they are, so they are rejected rather than treated as authenticated.
// The form must already be parsed for POST requests.
func callerFromRequest(r *http.Request, clients service.ClientRegistry) (service.Caller, bool, error) {
	creds, err := httpx.ClientCredentialsFromRequest(r)
	if err != nil {
		if errors.Is(err, httpx.ErrAmbiguousClientAuth) {
			return service.Caller{}, false, service.ErrInvalidRequest.WithDescription("client credentials sent twice")
		}
		return service.Caller{}, false, service.ErrInvalidRequest.Wrap(err)
	}
	if !creds.Present() {
		return service.AnonymousCaller, false, nil
	}

	policy, err := clients.Lookup(creds.ID)
	if err != nil {
		return service.Caller{}, creds.Basic, service.ErrInvalidClient.Wrap(err)
	}
	if !policy.RequiresSecret() || !clients.VerifySecret(policy.ID, creds.Secret) {
		return service.Caller{}, creds.Basic, service.ErrInvalidClient
	}

	return service.Caller{ClientID: policy.ID, Authorities: policy.Authorities}, creds.Basic, nil
}

package http

import (
	"context"
	"net/http"
	"time"

	"github.com/tinmegali/authserver/pkg/authsdk"
	"github.com/tinmegali/authserver/pkg/httpx"
)

// Pinger is the store side of readiness.
type Pinger interface {
	Ping(ctx context.Context) error
}

// KeyReadiness is the signer side of readiness. *jwtx.Codec implements it.
type KeyReadiness interface {
	IsReady() bool
}

// ReadyzHandler godoc
//
//	@Summary		Readiness Check Endpoint
//	@Description	Readiness probe endpoint returning service health status and checks for critical dependencies
//	@Description	Includes uptime, version, and the status of the code store and the signing key
//	@Tags			Health
//	@Produce		json
//	@Success		200	{object}	authsdk.HealthResponse	"status, uptime, version, checks"
//	@Failure		503	{object}	authsdk.HealthResponse	"status, uptime, version, checks - service not ready"
//	@Router			/readyz [get].
func ReadyzHandler(
	startTime time.Time,
	version string,
	st Pinger,
	keys KeyReadiness,
) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		checks := &authsdk.HealthChecks{
			Store:  "ok",
			Signer: "ok",
		}
		overallStatus := "ok"
		statusCode := http.StatusOK

		// Check store connectivity
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := st.Ping(ctx); err != nil {
			checks.Store = "error: unreachable"
			overallStatus = "unavailable"
			statusCode = http.StatusServiceUnavailable
		}

		// Check the signing key is loaded
		if !keys.IsReady() {
			checks.Signer = "error: no keys loaded"
			overallStatus = "unavailable"
			statusCode = http.StatusServiceUnavailable
		}

		response := authsdk.HealthResponse{
			Status:  overallStatus,
			Uptime:  time.Since(startTime).Round(time.Second).String(),
			Version: version,
			Checks:  checks,
		}
		httpx.WriteJSON(w, statusCode, response)
	}
}

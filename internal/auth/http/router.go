package http

import (
	"log/slog"
	"net/http"
	"time"

	httpSwagger "github.com/swaggo/http-swagger"

	_ "github.com/tinmegali/authserver/api/auth" // Swagger docs
	"github.com/tinmegali/authserver/internal/auth/metrics"
	"github.com/tinmegali/authserver/internal/auth/service"
	"github.com/tinmegali/authserver/pkg/httpx"
	"github.com/tinmegali/authserver/pkg/slogx"
)

// Router holds shared dependencies for HTTP handlers.
type Router struct {
	Mux         *http.ServeMux
	middlewares []httpx.Middleware

	keys         KeyReadiness
	store        Pinger
	buildVersion string
	startTime    time.Time
	logger       *slog.Logger
	limits       httpx.RateLimits
	metrics      *metrics.Metrics

	Clients              service.ClientRegistry
	TokenService         *service.TokenService
	IntrospectionService *service.IntrospectionService
}

func NewRouter(
	keys KeyReadiness,
	st Pinger,
	buildVersion string,
	limits httpx.RateLimits,
	m *metrics.Metrics,
	logger *slog.Logger,
) *Router {
	r := &Router{
		Mux:          http.NewServeMux(),
		keys:         keys,
		store:        st,
		buildVersion: buildVersion,
		startTime:    time.Now(),
		logger:       logger,
		limits:       limits,
		metrics:      m,
	}

	// Set default middleware chain
	r.middlewares = []httpx.Middleware{
		slogx.HTTPMiddleware(r.logger),
	}

	return r
}

func (r *Router) ApplyRoutes() {
	r.registerOAuth2()
	r.registerSystem()

	r.Mux.Handle("/swagger/", httpSwagger.Handler())
}

// ServeHTTP implements http.Handler for Router and applies the global middleware chain.
//
//	@title			Authorization Server Token API
//	@version		0.1.0
//	@description	OAuth2 token issuance with JWT access and refresh tokens.
//	@description
//	@description				Tokens are signed with RS256, ES256, EdDSA or HS256. Public keys are published at /oauth/token_key and /.well-known/jwks.json.
//
//	@license.name				MIT
//	@license.url				https://opensource.org/licenses/MIT
//
//	@host						localhost:8080
//	@BasePath					/
//
//	@schemes					http https
//
//	@securityDefinitions.basic	BasicAuth
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	httpx.Chain(r.Mux, r.middlewares...).ServeHTTP(w, req)
}

func (r *Router) registerOAuth2() {
	// POST /oauth/token - strict rate limit by IP and client_id (covers all grant types)
	tokenHandler := &TokenHandler{TokenService: r.TokenService}
	r.Mux.Handle("POST /oauth/token",
		httpx.Chain(tokenHandler,
			r.metrics.Middleware("/oauth/token"),
			httpx.RateLimitByIPAndClient(r.limits.Strict, r.knownClient),
		),
	)

	keyHandler := &TokenKeyHandler{
		IntrospectionService: r.IntrospectionService,
		Clients:              r.Clients,
	}

	// GET /oauth/token_key and /.well-known/jwks.json - same key, same gate
	r.Mux.Handle("GET /oauth/token_key",
		httpx.Chain(keyHandler,
			r.metrics.Middleware("/oauth/token_key"),
			httpx.RateLimitByIP(r.limits.Moderate),
		),
	)
	r.Mux.Handle("GET /.well-known/jwks.json",
		httpx.Chain(http.HandlerFunc(keyHandler.ServeJWKS),
			r.metrics.Middleware("/.well-known/jwks.json"),
			httpx.RateLimitByIP(r.limits.Moderate),
		),
	)

	// POST /oauth/check_token - moderate rate limit by IP and client_id
	checkHandler := &CheckTokenHandler{
		IntrospectionService: r.IntrospectionService,
		Clients:              r.Clients,
	}
	r.Mux.Handle("POST /oauth/check_token",
		httpx.Chain(checkHandler,
			r.metrics.Middleware("/oauth/check_token"),
			httpx.RateLimitByIPAndClient(r.limits.Moderate, r.knownClient),
		),
	)
}

// knownClient reports whether id is registered. Rate limit buckets are only
// split per client for registered ids.
func (r *Router) knownClient(id string) bool {
	if r.Clients == nil {
		return false
	}
	_, err := r.Clients.Lookup(id)
	return err == nil
}

func (r *Router) registerSystem() {
	// Health check endpoints - lenient rate limits (monitoring systems may poll frequently)
	r.Mux.Handle("GET /livez",
		httpx.Chain(LivezHandler(r.startTime, r.buildVersion),
			httpx.RateLimitByIP(r.limits.Lenient),
		),
	)
	r.Mux.Handle("GET /readyz",
		httpx.Chain(ReadyzHandler(r.startTime, r.buildVersion, r.store, r.keys),
			httpx.RateLimitByIP(r.limits.Lenient),
		),
	)

	if r.metrics != nil {
		r.Mux.Handle("GET /metrics",
			httpx.Chain(r.metrics.Handler(),
				httpx.RateLimitByIP(r.limits.Lenient),
			),
		)
	}
}

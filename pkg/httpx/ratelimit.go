package httpx

import (
	"net"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/tinmegali/authserver/pkg/slogx"
	"golang.org/x/time/rate"
)

// RateLimitConfig defines the rate limiting parameters.
type RateLimitConfig struct {
	// RequestsPerWindow is the number of requests allowed in the time window
	RequestsPerWindow int
	// Window is the time window for rate limiting
	Window time.Duration
	// Burst allows for temporary bursts above the rate limit
	Burst int
}

// Disabled reports whether the config turns limiting off.
func (c RateLimitConfig) Disabled() bool {
	return c.RequestsPerWindow <= 0 || c.Window <= 0
}

// RateLimits groups the profiles used by the router.
type RateLimits struct {
	// Strict guards the token endpoint against credential guessing.
	Strict RateLimitConfig
	// Moderate guards the introspection endpoints.
	Moderate RateLimitConfig
	// Lenient covers health checks and metrics.
	Lenient RateLimitConfig
}

// DefaultRateLimits are the profiles used when nothing is configured.
func DefaultRateLimits() RateLimits {
	return RateLimits{
		Strict:   RateLimitConfig{RequestsPerWindow: 30, Window: time.Minute, Burst: 10},
		Moderate: RateLimitConfig{RequestsPerWindow: 120, Window: time.Minute, Burst: 30},
		Lenient:  RateLimitConfig{RequestsPerWindow: 600, Window: time.Minute, Burst: 100},
	}
}

// RateLimitsFromEnv applies RATELIMIT_{STRICT,MODERATE,LENIENT}_{REQUESTS,WINDOW_SEC,BURST}
// overrides on top of DefaultRateLimits.
func RateLimitsFromEnv() RateLimits {
	d := DefaultRateLimits()
	return RateLimits{
		Strict:   ParseRateLimitFromEnv("STRICT", d.Strict),
		Moderate: ParseRateLimitFromEnv("MODERATE", d.Moderate),
		Lenient:  ParseRateLimitFromEnv("LENIENT", d.Lenient),
	}
}

// ParseRateLimitFromEnv reads RATELIMIT_{prefix}_REQUESTS, _WINDOW_SEC and
// _BURST. Invalid values keep the default. REQUESTS=0 disables the profile.
func ParseRateLimitFromEnv(prefix string, def RateLimitConfig) RateLimitConfig {
	cfg := def
	if n, ok := envInt("RATELIMIT_" + prefix + "_REQUESTS"); ok && n >= 0 {
		cfg.RequestsPerWindow = n
	}
	if n, ok := envInt("RATELIMIT_" + prefix + "_WINDOW_SEC"); ok && n > 0 {
		cfg.Window = time.Duration(n) * time.Second
	}
	if n, ok := envInt("RATELIMIT_" + prefix + "_BURST"); ok && n > 0 {
		cfg.Burst = n
	}
	return cfg
}

func envInt(key string) (int, bool) {
	v := os.Getenv(key)
	if v == "" {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	return n, err == nil
}

// KeyExtractor picks the bucket a request is counted against.
type KeyExtractor func(*http.Request) string

// IPKeyExtractor extracts the client IP address from the request.
// It honours X-Forwarded-For and X-Real-IP for proxied requests.
func IPKeyExtractor(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}

// ClientIDKeyExtractor returns the client_id from Basic auth or the form.
func ClientIDKeyExtractor(r *http.Request) string {
	if user, _, ok := r.BasicAuth(); ok {
		return decodeOrRaw(user)
	}
	if err := r.ParseForm(); err != nil {
		return ""
	}
	return r.PostForm.Get("client_id")
}

// KnownClientIDKeyExtractor returns the presented client_id only when known
// accepts it. An unregistered id yields no key, so made-up ids cannot mint
// fresh buckets.
func KnownClientIDKeyExtractor(known func(clientID string) bool) KeyExtractor {
	return func(r *http.Request) string {
		id := ClientIDKeyExtractor(r)
		if id == "" || known == nil || !known(id) {
			return ""
		}
		return id
	}
}

// CompositeKeyExtractor joins the non-empty keys of several extractors.
func CompositeKeyExtractor(sep string, extractors ...KeyExtractor) KeyExtractor {
	return func(r *http.Request) string {
		parts := make([]string, 0, len(extractors))
		for _, extractor := range extractors {
			if key := extractor(r); key != "" {
				parts = append(parts, key)
			}
		}
		return strings.Join(parts, sep)
	}
}

// RateLimiter keeps one token bucket per key.
type RateLimiter struct {
	cfg      RateLimitConfig
	limit    rate.Limit
	limiters sync.Map // map[string]*rate.Limiter

	mu          sync.Mutex
	lastCleanup time.Time
}

// NewRateLimiter creates a limiter for cfg.
func NewRateLimiter(cfg RateLimitConfig) *RateLimiter {
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}
	cfg.Burst = burst
	return &RateLimiter{
		cfg:         cfg,
		limit:       rate.Limit(float64(cfg.RequestsPerWindow) / cfg.Window.Seconds()),
		lastCleanup: time.Now(),
	}
}

// Allow spends one token from the key's bucket. When the bucket is empty it
// returns false and how long until the next token.
func (rl *RateLimiter) Allow(key string) (bool, time.Duration) {
	limiter := rl.limiterFor(key)
	if limiter.Allow() {
		return true, 0
	}
	r := limiter.Reserve()
	delay := r.Delay()
	r.Cancel()
	return false, delay
}

func (rl *RateLimiter) limiterFor(key string) *rate.Limiter {
	if l, ok := rl.limiters.Load(key); ok {
		return l.(*rate.Limiter)
	}
	actual, _ := rl.limiters.LoadOrStore(key, rate.NewLimiter(rl.limit, rl.cfg.Burst))
	rl.maybeCleanup()
	return actual.(*rate.Limiter)
}

// maybeCleanup drops buckets that have refilled completely, at most every
// five minutes, so ephemeral keys do not accumulate.
func (rl *RateLimiter) maybeCleanup() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	if time.Since(rl.lastCleanup) < 5*time.Minute {
		return
	}
	rl.lastCleanup = time.Now()

	rl.limiters.Range(func(key, value any) bool {
		if value.(*rate.Limiter).Tokens() >= float64(rl.cfg.Burst) {
			rl.limiters.Delete(key)
		}
		return true
	})
}

// RateLimitMiddleware limits requests per key. A disabled config returns a
// pass-through middleware.
func RateLimitMiddleware(cfg RateLimitConfig, keyFn KeyExtractor) Middleware {
	if cfg.Disabled() {
		return func(next http.Handler) http.Handler { return next }
	}
	rl := NewRateLimiter(cfg)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			log := slogx.FromContext(r.Context())

			key := keyFn(r)
			if key == "" {
				log.Warn("rate limit: unable to extract key, allowing request")
				next.ServeHTTP(w, r)
				return
			}

			ok, delay := rl.Allow(key)
			if !ok {
				retryAfter := max(int(delay.Seconds()), 1)
				w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
				w.Header().Set("X-RateLimit-Limit", strconv.Itoa(cfg.RequestsPerWindow))
				w.Header().Set("X-RateLimit-Window", cfg.Window.String())

				log.Warn("rate limit exceeded", "endpoint", r.URL.Path, "retry_after", retryAfter)

				WriteJSON(w, http.StatusTooManyRequests, map[string]string{
					"error":             "temporarily_unavailable",
					"error_description": "too many requests, try again later",
				})
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// RateLimitByIP limits by client IP only.
func RateLimitByIP(cfg RateLimitConfig) Middleware {
	return RateLimitMiddleware(cfg, IPKeyExtractor)
}

// RateLimitByIPAndClient limits by client IP plus the presented client_id,
// so one noisy client cannot starve others behind the same address. Only
// ids that known accepts get their own bucket; any other request counts
// against its IP alone.
func RateLimitByIPAndClient(cfg RateLimitConfig, known func(clientID string) bool) Middleware {
	return RateLimitMiddleware(cfg, CompositeKeyExtractor(":", IPKeyExtractor, KnownClientIDKeyExtractor(known)))
}

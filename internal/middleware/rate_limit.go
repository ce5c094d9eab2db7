package middleware

import (
	"net/http"
	"time"

	pkghttp "github.com/BradenHooton/voice-membership/pkg/http"
	"github.com/go-chi/httprate"
)

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	Requests int
	Window   time.Duration
}

// LoginRateLimit bounds credential guessing from one address across all
// accounts; the per-account lockout covers guessing against one account.
func LoginRateLimit() RateLimitConfig {
	return RateLimitConfig{Requests: 10, Window: time.Minute}
}

// PasswordResetRateLimit bounds reset-email requests per address.
func PasswordResetRateLimit() RateLimitConfig {
	return RateLimitConfig{Requests: 5, Window: 15 * time.Minute}
}

// RegistrationRateLimit bounds wizard submissions per address.
func RegistrationRateLimit() RateLimitConfig {
	return RateLimitConfig{Requests: 30, Window: time.Minute}
}

// RateLimitByIP creates a middleware that rate limits requests by client IP
func RateLimitByIP(config RateLimitConfig, ipConfig *pkghttp.IPConfig) func(next http.Handler) http.Handler {
	return httprate.Limit(
		config.Requests,
		config.Window,
		httprate.WithKeyFuncs(func(r *http.Request) (string, error) {
			return pkghttp.ExtractClientIP(r, ipConfig), nil
		}),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			pkghttp.WriteTooManyRequests(w, "Too many requests, please try again later")
		}),
	)
}

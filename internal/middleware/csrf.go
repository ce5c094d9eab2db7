package middleware

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/BradenHooton/voice-membership/internal/auth"
	pkghttp "github.com/BradenHooton/voice-membership/pkg/http"
)

const csrfFormField = "_csrf"

// EnsureCSRFCookie issues a csrf_token cookie to clients that do not have
// one yet, so the next form they render can echo it back.
func EnsureCSRFCookie(cookies auth.CookieConfig, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if auth.CookieValue(r, auth.CSRFTokenCookie) == "" {
				token, err := auth.GenerateCSRFToken()
				if err != nil {
					logger.Error("failed to generate csrf token", slog.Any("error", err))
				} else {
					auth.SetCSRFTokenCookie(w, token, 12*time.Hour, cookies)
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

// CSRFProtection enforces the double-submit cookie check on state-changing
// requests. The token may come from the X-CSRF-Token header or the _csrf
// form field. Requests authenticated with a bearer header are exempt since
// browsers never attach that header on their own.
func CSRFProtection(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !isStateChangingMethod(r.Method) || r.Header.Get("Authorization") != "" {
				next.ServeHTTP(w, r)
				return
			}

			submitted := r.Header.Get("X-CSRF-Token")
			if submitted == "" && pkghttp.IsFormPost(r) {
				submitted = r.PostFormValue(csrfFormField)
			}

			if !auth.CSRFTokensMatch(auth.CookieValue(r, auth.CSRFTokenCookie), submitted) {
				logger.Warn("csrf token validation failed",
					slog.String("method", r.Method),
					slog.String("path", r.URL.Path))
				pkghttp.WriteForbidden(w, "CSRF token missing or invalid")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// isStateChangingMethod checks if the HTTP method modifies state
func isStateChangingMethod(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodPatch:
		return true
	default:
		return false
	}
}

package middleware

import "net/http"

// SecurityHeadersConfig holds security headers configuration
type SecurityHeadersConfig struct {
	Env string
}

var staticSecurityHeaders = map[string]string{
	"X-Frame-Options":              "DENY",
	"X-Content-Type-Options":       "nosniff",
	"Referrer-Policy":              "strict-origin-when-cross-origin",
	"Cross-Origin-Opener-Policy":   "same-origin",
	"X-DNS-Prefetch-Control":       "off",
	"Permissions-Policy":           "camera=(), geolocation=(), microphone=(), usb=()",
}

// Pages pull Font Awesome icons for the benefit list from cdnjs.
const (
	productionCSP = "default-src 'self'; script-src 'self'; " +
		"style-src 'self' 'unsafe-inline' https://cdnjs.cloudflare.com; " +
		"font-src 'self' https://cdnjs.cloudflare.com; img-src 'self' data:; " +
		"connect-src 'self'; frame-ancestors 'none'; base-uri 'self'; form-action 'self'"
	developmentCSP = "default-src 'self' http: https: ws:; script-src 'self' 'unsafe-inline' 'unsafe-eval' http: https:; " +
		"style-src 'self' 'unsafe-inline' http: https:; font-src 'self' data: http: https:; img-src 'self' data: http: https:; " +
		"connect-src 'self' http: https: ws: wss:; frame-ancestors 'self'; base-uri 'self'; form-action 'self'"
)

// SecurityHeaders returns a middleware that adds security headers to all responses
func SecurityHeaders(config SecurityHeadersConfig) func(http.Handler) http.Handler {
	production := config.Env == "production"

	csp := developmentCSP
	if production {
		csp = productionCSP
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			for k, v := range staticSecurityHeaders {
				h.Set(k, v)
			}
			h.Set("Content-Security-Policy", csp)

			if production && (r.TLS != nil || r.Header.Get("X-Forwarded-Proto") == "https") {
				h.Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
			}

			next.ServeHTTP(w, r)
		})
	}
}

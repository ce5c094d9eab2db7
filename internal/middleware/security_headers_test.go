package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func serveWithHeaders(env string, req *http.Request) *httptest.ResponseRecorder {
	handler := SecurityHeaders(SecurityHeadersConfig{Env: env})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	return w
}

func TestSecurityHeaders_Static(t *testing.T) {
	w := serveWithHeaders("production", httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, "DENY", w.Header().Get("X-Frame-Options"))
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "strict-origin-when-cross-origin", w.Header().Get("Referrer-Policy"))
	assert.NotEmpty(t, w.Header().Get("Permissions-Policy"))
}

func TestSecurityHeaders_CSPByEnvironment(t *testing.T) {
	prod := serveWithHeaders("production", httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Contains(t, prod.Header().Get("Content-Security-Policy"), "frame-ancestors 'none'")
	assert.NotContains(t, prod.Header().Get("Content-Security-Policy"), "unsafe-eval")

	dev := serveWithHeaders("development", httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Contains(t, dev.Header().Get("Content-Security-Policy"), "unsafe-eval")
}

func TestSecurityHeaders_HSTSOnlyForProductionHTTPS(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Forwarded-Proto", "https")

	assert.NotEmpty(t, serveWithHeaders("production", req).Header().Get("Strict-Transport-Security"))
	assert.Empty(t, serveWithHeaders("development", req).Header().Get("Strict-Transport-Security"))
	assert.Empty(t, serveWithHeaders("production", httptest.NewRequest(http.MethodGet, "/", nil)).Header().Get("Strict-Transport-Security"))
}

package http_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	pkghttp "github.com/BradenHooton/voice-membership/pkg/http"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeError(t *testing.T, w *httptest.ResponseRecorder) pkghttp.ErrorResponse {
	t.Helper()
	var resp pkghttp.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func TestErrorWriters(t *testing.T) {
	tests := []struct {
		name   string
		write  func(http.ResponseWriter, string)
		status int
		code   string
	}{
		{"bad request", pkghttp.WriteBadRequest, http.StatusBadRequest, "bad_request"},
		{"unauthorized", pkghttp.WriteUnauthorized, http.StatusUnauthorized, "unauthorized"},
		{"forbidden", pkghttp.WriteForbidden, http.StatusForbidden, "forbidden"},
		{"not found", pkghttp.WriteNotFound, http.StatusNotFound, "not_found"},
		{"conflict", pkghttp.WriteConflict, http.StatusConflict, "conflict"},
		{"too many requests", pkghttp.WriteTooManyRequests, http.StatusTooManyRequests, "rate_limit_exceeded"},
		{"internal", pkghttp.WriteInternalError, http.StatusInternalServerError, "internal_error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			tt.write(w, "some message")

			assert.Equal(t, tt.status, w.Code)
			assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

			resp := decodeError(t, w)
			assert.Equal(t, tt.code, resp.Error)
			assert.Equal(t, "some message", resp.Message)
			assert.Empty(t, resp.Details)
		})
	}
}

func TestWriteErrorWithDetails(t *testing.T) {
	w := httptest.NewRecorder()
	pkghttp.WriteErrorWithDetails(w, 400, "test_error", "Test message", "Additional details")

	resp := decodeError(t, w)
	assert.Equal(t, "Additional details", resp.Details)
}

func TestWriteFieldErrors(t *testing.T) {
	w := httptest.NewRecorder()
	pkghttp.WriteFieldErrors(w, "Please correct the highlighted fields", map[string]string{
		"email": "Email already exists",
	})

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	resp := decodeError(t, w)
	assert.Equal(t, "validation_failed", resp.Error)
	assert.Equal(t, "Email already exists", resp.Fields["email"])
}

func TestSeeOther(t *testing.T) {
	r := httptest.NewRequest(http.MethodPost, "/login", nil)
	w := httptest.NewRecorder()

	pkghttp.SeeOther(w, r, "/login", url.Values{"locked": {"true"}, "minutes": {"30"}})

	assert.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, "/login?locked=true&minutes=30", w.Header().Get("Location"))
}

func TestSeeOther_NoQuery(t *testing.T) {
	r := httptest.NewRequest(http.MethodPost, "/register/step1", nil)
	w := httptest.NewRecorder()

	pkghttp.SeeOther(w, r, "/register/step2", nil)

	assert.Equal(t, "/register/step2", w.Header().Get("Location"))
}

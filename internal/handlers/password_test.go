package handlers_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/BradenHooton/voice-membership/internal/handlers"
	"github.com/BradenHooton/voice-membership/internal/models"
	"github.com/BradenHooton/voice-membership/internal/services"
	pkgauth "github.com/BradenHooton/voice-membership/pkg/auth"
	"github.com/stretchr/testify/assert"
)

const resetBaseURL = "https://members.example.org"

func TestPasswordHandler_ForgotPassword(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"known address", nil},
		{"unknown address", models.ErrNotFound},
		{"mail failure", errors.New("smtp timeout")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotEmail, gotBase string
			h := handlers.NewPasswordHandler(&handlers.MockPasswordResetService{
				RequestResetFunc: func(ctx context.Context, email, baseURL string) error {
					gotEmail, gotBase = email, baseURL
					return tt.err
				},
			}, resetBaseURL, handlers.DiscardLogger())

			w := httptest.NewRecorder()
			h.ForgotPassword(w, handlers.NewFormRequest("/forgot-password", url.Values{"email": {"ada@example.com"}}))

			handlers.AssertRedirect(t, w, "/forgot-password?sent=true")
			assert.Equal(t, "ada@example.com", gotEmail)
			assert.Equal(t, resetBaseURL, gotBase)
		})
	}
}

func TestPasswordHandler_ResetPasswordPage(t *testing.T) {
	t.Run("valid link", func(t *testing.T) {
		h := handlers.NewPasswordHandler(&handlers.MockPasswordResetService{
			ValidateTokenFunc: func(ctx context.Context, token string) (*models.PasswordResetToken, error) {
				return &models.PasswordResetToken{UserID: "user-1", ExpiresAt: time.Now().Add(time.Hour)}, nil
			},
		}, resetBaseURL, handlers.DiscardLogger())

		w := httptest.NewRecorder()
		h.ResetPasswordPage(w, httptest.NewRequest(http.MethodGet, "/reset-password?token=abc", nil))

		var view handlers.ResetPageView
		handlers.AssertJSONResponse(t, w, http.StatusOK, &view)
		assert.True(t, view.Valid)
		assert.Equal(t, "abc", view.Token)
	})

	t.Run("expired or used link", func(t *testing.T) {
		h := handlers.NewPasswordHandler(&handlers.MockPasswordResetService{}, resetBaseURL, handlers.DiscardLogger())

		w := httptest.NewRecorder()
		h.ResetPasswordPage(w, httptest.NewRequest(http.MethodGet, "/reset-password?token=old", nil))

		var view handlers.ResetPageView
		handlers.AssertJSONResponse(t, w, http.StatusOK, &view)
		assert.False(t, view.Valid)
		assert.Empty(t, view.Token)
		assert.Equal(t, services.InvalidResetLinkMsg, view.Message)
	})
}

func TestPasswordHandler_ResetPassword(t *testing.T) {
	form := url.Values{"token": {"abc"}, "password": {"N3w-Passw0rd!"}, "confirmPassword": {"N3w-Passw0rd!"}}

	t.Run("success", func(t *testing.T) {
		var gotToken, gotPassword string
		h := handlers.NewPasswordHandler(&handlers.MockPasswordResetService{
			ResetPasswordFunc: func(ctx context.Context, token, password, confirm string) error {
				gotToken, gotPassword = token, password
				return nil
			},
		}, resetBaseURL, handlers.DiscardLogger())

		w := httptest.NewRecorder()
		h.ResetPassword(w, handlers.NewFormRequest("/reset-password", form))

		handlers.AssertRedirect(t, w, "/login?reset=true")
		assert.Equal(t, "abc", gotToken)
		assert.Equal(t, "N3w-Passw0rd!", gotPassword)
	})

	tests := []struct {
		name      string
		err       error
		wantField string
	}{
		{"weak password", &pkgauth.PasswordValidationError{Errors: []string{"too short"}}, "password"},
		{"mismatch", models.ErrPasswordMismatch, "confirmPassword"},
		{"invalid token", models.ErrInvalidToken, "token"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := handlers.NewPasswordHandler(&handlers.MockPasswordResetService{
				ResetPasswordFunc: func(ctx context.Context, token, password, confirm string) error {
					return tt.err
				},
			}, resetBaseURL, handlers.DiscardLogger())

			w := httptest.NewRecorder()
			h.ResetPassword(w, handlers.NewFormRequest("/reset-password", form))

			fields := handlers.AssertFieldErrors(t, w)
			assert.Contains(t, fields, tt.wantField)
		})
	}
}

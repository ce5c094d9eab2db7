package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/BradenHooton/voice-membership/internal/models"
	"github.com/BradenHooton/voice-membership/internal/services"
	pkgauth "github.com/BradenHooton/voice-membership/pkg/auth"
	pkghttp "github.com/BradenHooton/voice-membership/pkg/http"
)

// PasswordResetServiceInterface issues and redeems reset links.
type PasswordResetServiceInterface interface {
	RequestReset(ctx context.Context, email, baseURL string) error
	ValidateToken(ctx context.Context, token string) (*models.PasswordResetToken, error)
	ResetPassword(ctx context.Context, token, password, confirm string) error
}

const forgotPasswordPath = "/forgot-password"

type PasswordHandler struct {
	service PasswordResetServiceInterface
	baseURL string
	logger  *slog.Logger
}

func NewPasswordHandler(service PasswordResetServiceInterface, baseURL string, logger *slog.Logger) *PasswordHandler {
	return &PasswordHandler{service: service, baseURL: baseURL, logger: logger}
}

type ForgotPasswordRequest struct {
	Email string `form:"email" json:"email"`
}

type ResetPasswordRequest struct {
	Token           string `form:"token" json:"token"`
	Password        string `form:"password" json:"password"`
	ConfirmPassword string `form:"confirmPassword" json:"confirmPassword"`
}

// ResetPageView is the reset form for a link that checked out.
type ResetPageView struct {
	Token   string `json:"token"`
	Valid   bool   `json:"valid"`
	Message string `json:"message,omitempty"`
}

// ForgotPassword handles POST /forgot-password. The answer is the same
// whether or not the address belongs to an account.
func (h *PasswordHandler) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req ForgotPasswordRequest
	if err := bindRequest(r, &req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}

	if err := h.service.RequestReset(r.Context(), req.Email, h.baseURL); err != nil {
		h.logger.Error("failed to process password reset request", slog.Any("error", err))
	}

	pkghttp.SeeOther(w, r, forgotPasswordPath, pkghttp.Flag("sent", "true"))
}

// ResetPasswordPage handles GET /reset-password?token=
func (h *PasswordHandler) ResetPasswordPage(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")

	view := ResetPageView{Token: token, Valid: true}
	if _, err := h.service.ValidateToken(r.Context(), token); err != nil {
		if !errors.Is(err, models.ErrInvalidToken) {
			h.logger.Error("failed to validate reset token", slog.Any("error", err))
		}
		view = ResetPageView{Message: services.InvalidResetLinkMsg}
	}

	pkghttp.WriteJSON(w, http.StatusOK, view)
}

// ResetPassword handles POST /reset-password
func (h *PasswordHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var req ResetPasswordRequest
	if err := bindRequest(r, &req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}

	err := h.service.ResetPassword(r.Context(), req.Token, req.Password, req.ConfirmPassword)
	var policyErr *pkgauth.PasswordValidationError
	switch {
	case err == nil:
		pkghttp.SeeOther(w, r, services.LoginPath, pkghttp.Flag("reset", "true"))
	case errors.As(err, &policyErr):
		pkghttp.WriteFieldErrors(w, policyErr.Error(), map[string]string{"password": policyErr.Error()})
	case errors.Is(err, models.ErrPasswordMismatch):
		pkghttp.WriteFieldErrors(w, services.PasswordMismatchMsg, map[string]string{"confirmPassword": services.PasswordMismatchMsg})
	case errors.Is(err, models.ErrInvalidToken):
		pkghttp.WriteFieldErrors(w, services.InvalidResetLinkMsg, map[string]string{"token": services.InvalidResetLinkMsg})
	default:
		h.logger.Error("failed to reset password", slog.Any("error", err))
		pkghttp.WriteInternalError(w, "An unexpected error occurred. Please try again later.")
	}
}

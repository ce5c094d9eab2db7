package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"

	"github.com/BradenHooton/voice-membership/internal/auth"
	"github.com/BradenHooton/voice-membership/internal/models"
	"github.com/BradenHooton/voice-membership/internal/services"
	pkghttp "github.com/BradenHooton/voice-membership/pkg/http"
)

// AuthServiceInterface defines the interface for auth business logic
type AuthServiceInterface interface {
	Login(ctx context.Context, email, password, ipAddress string) (*services.LoginResult, error)
	Logout(ctx context.Context, claims *models.TokenClaims) error
	Refresh(ctx context.Context, refreshToken string) (*models.TokenPair, error)
}

// AuthHandler handles authentication-related HTTP requests
type AuthHandler struct {
	service  AuthServiceInterface
	tm       *auth.TokenManager
	cookies  auth.CookieConfig
	ipConfig *pkghttp.IPConfig
	logger   *slog.Logger
}

func NewAuthHandler(service AuthServiceInterface, tm *auth.TokenManager, cookies auth.CookieConfig, ipConfig *pkghttp.IPConfig, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{
		service:  service,
		tm:       tm,
		cookies:  cookies,
		ipConfig: ipConfig,
		logger:   logger,
	}
}

// LoginRequest is the login form. Browsers post the address as "username".
type LoginRequest struct {
	Email    string `form:"username" json:"email"`
	Password string `form:"password" json:"password"`
}

// RefreshRequest carries a refresh token for clients that do not use cookies.
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// LoginPageView echoes the query flags the login page reacts to.
type LoginPageView struct {
	Error      bool `json:"error"`
	Locked     bool `json:"locked"`
	Minutes    int  `json:"minutes,omitempty"`
	Remaining  int  `json:"remaining,omitempty"`
	Logout     bool `json:"logout"`
	Registered bool `json:"registered"`
}

// LoginPage handles GET /login
func (h *AuthHandler) LoginPage(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	minutes, _ := strconv.Atoi(q.Get("minutes"))
	remaining, _ := strconv.Atoi(q.Get("remaining"))

	pkghttp.WriteJSON(w, http.StatusOK, LoginPageView{
		Error:      q.Get("error") == "true",
		Locked:     q.Get("locked") == "true",
		Minutes:    minutes,
		Remaining:  remaining,
		Logout:     q.Get("logout") == "true",
		Registered: q.Get("registered") == "true",
	})
}

// Login handles POST /login. Every outcome is a redirect: the member or
// admin home on success, the login page with flags otherwise.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := bindRequest(r, &req); err != nil {
		pkghttp.SeeOther(w, r, services.LoginPath, pkghttp.Flag("error", "true"))
		return
	}

	result, err := h.service.Login(r.Context(), req.Email, req.Password, pkghttp.ExtractClientIP(r, h.ipConfig))
	if err != nil {
		pkghttp.SeeOther(w, r, services.LoginPath, loginFailureQuery(err))
		return
	}

	auth.SetSessionCookies(w, result.Tokens, h.tm, h.cookies)
	pkghttp.SeeOther(w, r, result.Redirect, nil)
}

func loginFailureQuery(err error) url.Values {
	var loginErr *services.LoginError
	if !errors.As(err, &loginErr) {
		return pkghttp.Flag("error", "true")
	}

	if loginErr.Locked {
		return url.Values{
			"locked":  {"true"},
			"minutes": {strconv.Itoa(loginErr.MinutesRemaining)},
		}
	}

	return url.Values{
		"error":     {"true"},
		"remaining": {strconv.Itoa(loginErr.AttemptsRemaining)},
	}
}

// Logout handles POST /logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if claims := auth.GetUserFromContext(r); claims != nil {
		if err := h.service.Logout(r.Context(), claims); err != nil {
			h.logger.Error("failed to revoke token on logout", slog.String("user_id", claims.UserID), slog.Any("error", err))
		}
	}

	auth.ClearSessionCookies(w, h.cookies)
	pkghttp.SeeOther(w, r, services.LoginPath, pkghttp.Flag("logout", "true"))
}

// Refresh handles POST /auth/refresh
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	token := auth.CookieValue(r, auth.RefreshTokenCookie)
	if token == "" {
		var req RefreshRequest
		if err := bindRequest(r, &req); err != nil {
			pkghttp.WriteBadRequest(w, "Invalid request body")
			return
		}
		token = req.RefreshToken
	}
	if token == "" {
		pkghttp.WriteUnauthorized(w, "Refresh token required")
		return
	}

	pair, err := h.service.Refresh(r.Context(), token)
	if err != nil {
		auth.ClearSessionCookies(w, h.cookies)
		if errors.Is(err, models.ErrAccountLocked) {
			pkghttp.WriteForbidden(w, "Account is temporarily locked")
			return
		}
		pkghttp.WriteUnauthorized(w, "Invalid or expired refresh token")
		return
	}

	auth.SetSessionCookies(w, pair, h.tm, h.cookies)
	pkghttp.WriteJSON(w, http.StatusOK, map[string]int{
		"expires_in": int(h.tm.AccessTokenExpiry().Seconds()),
	})
}

// currentUserID returns the authenticated caller, answering 401 when the
// request carries no claims.
func currentUserID(w http.ResponseWriter, r *http.Request) (string, bool) {
	claims := auth.GetUserFromContext(r)
	if claims == nil || claims.UserID == "" {
		pkghttp.WriteUnauthorized(w, "Authentication required")
		return "", false
	}
	return claims.UserID, true
}

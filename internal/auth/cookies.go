package auth

import (
	"net/http"
	"time"

	"github.com/BradenHooton/voice-membership/internal/models"
)

const (
	AccessTokenCookie         = "access_token"
	RefreshTokenCookie        = "refresh_token"
	CSRFTokenCookie           = "csrf_token"
	RegistrationSessionCookie = "registration_session"
)

// CookieConfig holds cookie configuration settings
type CookieConfig struct {
	Domain string // Empty string = current host only
	Secure bool   // HTTPS only
}

func (c CookieConfig) cookie(name, value string, maxAge time.Duration, httpOnly bool) *http.Cookie {
	ck := &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		Domain:   c.Domain,
		HttpOnly: httpOnly,
		Secure:   c.Secure,
		SameSite: http.SameSiteLaxMode,
	}

	if maxAge < 0 {
		ck.MaxAge = -1
	} else {
		ck.MaxAge = int(maxAge.Seconds())
		ck.Expires = time.Now().Add(maxAge)
	}

	return ck
}

// SetSessionCookies stores both tokens in httpOnly cookies.
func SetSessionCookies(w http.ResponseWriter, pair *models.TokenPair, tm *TokenManager, config CookieConfig) {
	http.SetCookie(w, config.cookie(AccessTokenCookie, pair.AccessToken, tm.AccessTokenExpiry(), true))
	http.SetCookie(w, config.cookie(RefreshTokenCookie, pair.RefreshToken, tm.RefreshTokenExpiry(), true))
}

func ClearSessionCookies(w http.ResponseWriter, config CookieConfig) {
	http.SetCookie(w, config.cookie(AccessTokenCookie, "", -1, true))
	http.SetCookie(w, config.cookie(RefreshTokenCookie, "", -1, true))
}

// SetCSRFTokenCookie sets a readable cookie that the page echoes back in
// the X-CSRF-Token header or the _csrf form field.
func SetCSRFTokenCookie(w http.ResponseWriter, token string, maxAge time.Duration, config CookieConfig) {
	http.SetCookie(w, config.cookie(CSRFTokenCookie, token, maxAge, false))
}

func SetRegistrationCookie(w http.ResponseWriter, sessionID string, maxAge time.Duration, config CookieConfig) {
	http.SetCookie(w, config.cookie(RegistrationSessionCookie, sessionID, maxAge, true))
}

func ClearRegistrationCookie(w http.ResponseWriter, config CookieConfig) {
	http.SetCookie(w, config.cookie(RegistrationSessionCookie, "", -1, true))
}

// CookieValue returns the named cookie's value or "".
func CookieValue(r *http.Request, name string) string {
	c, err := r.Cookie(name)
	if err != nil {
		return ""
	}
	return c.Value
}

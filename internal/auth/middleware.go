package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/BradenHooton/voice-membership/internal/models"
	pkghttp "github.com/BradenHooton/voice-membership/pkg/http"
)

// contextKey is a custom type for context keys
type contextKey string

const (
	// UserContextKey is the key for storing user claims in context
	UserContextKey contextKey = "user"
)

// TokenRevocationChecker reports whether a token ID was revoked at logout.
type TokenRevocationChecker interface {
	IsTokenRevoked(ctx context.Context, jti string) (bool, error)
}

// UserRepository interface for fetching user data
type UserRepository interface {
	GetByID(ctx context.Context, id string) (*models.User, error)
}

// accessToken reads the bearer header first, then the access cookie.
func accessToken(r *http.Request) string {
	if header := r.Header.Get("Authorization"); header != "" {
		scheme, token, ok := strings.Cut(header, " ")
		if ok && strings.EqualFold(scheme, "Bearer") {
			return strings.TrimSpace(token)
		}
		return ""
	}
	return CookieValue(r, AccessTokenCookie)
}

func authenticate(r *http.Request, tm *TokenManager, revocation TokenRevocationChecker) (*models.TokenClaims, error) {
	token := accessToken(r)
	if token == "" {
		return nil, models.ErrUnauthorized
	}

	claims, err := tm.Validate(r.Context(), token, models.TokenTypeAccess)
	if err != nil {
		return nil, err
	}

	if revocation != nil && claims.ID != "" {
		revoked, err := revocation.IsTokenRevoked(r.Context(), claims.ID)
		if err != nil {
			return nil, err
		}
		if revoked {
			return nil, models.ErrInvalidToken
		}
	}

	return claims, nil
}

// wantsPage reports whether the caller is a browser navigating to a page,
// which gets a redirect to the login form rather than a JSON 401.
func wantsPage(r *http.Request) bool {
	return r.Method == http.MethodGet &&
		r.Header.Get("Authorization") == "" &&
		strings.Contains(r.Header.Get("Accept"), "text/html")
}

// Middleware rejects requests without a valid, unrevoked access token and
// puts the claims into the request context.
func Middleware(tm *TokenManager, revocation TokenRevocationChecker) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, err := authenticate(r, tm, revocation)
			if err != nil {
				if wantsPage(r) {
					http.Redirect(w, r, "/login", http.StatusSeeOther)
					return
				}
				pkghttp.WriteUnauthorized(w, "Authentication required")
				return
			}

			ctx := context.WithValue(r.Context(), UserContextKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// OptionalMiddleware attaches claims when a valid token is present and
// otherwise lets the request through anonymously.
func OptionalMiddleware(tm *TokenManager, revocation TokenRevocationChecker) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if claims, err := authenticate(r, tm, revocation); err == nil {
				r = r.WithContext(context.WithValue(r.Context(), UserContextKey, claims))
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireRole checks the caller's current role in the database, so a
// demotion takes effect before the token expires.
func RequireRole(userRepo UserRepository, role string) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims := GetUserFromContext(r)
			if claims == nil {
				pkghttp.WriteUnauthorized(w, "Authentication required")
				return
			}

			user, err := userRepo.GetByID(r.Context(), claims.UserID)
			if err != nil {
				if errors.Is(err, models.ErrNotFound) {
					pkghttp.WriteUnauthorized(w, "Authentication required")
					return
				}
				pkghttp.WriteInternalError(w, "Unable to verify permissions")
				return
			}

			if user.Role != role {
				pkghttp.WriteForbidden(w, "Insufficient permissions")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// GetUserFromContext extracts user claims from request context
func GetUserFromContext(r *http.Request) *models.TokenClaims {
	claims, ok := r.Context().Value(UserContextKey).(*models.TokenClaims)
	if !ok {
		return nil
	}
	return claims
}

// WithClaims returns a copy of r carrying claims, used by tests and by
// handlers that authenticate a user mid-request.
func WithClaims(r *http.Request, claims *models.TokenClaims) *http.Request {
	return r.WithContext(context.WithValue(r.Context(), UserContextKey, claims))
}

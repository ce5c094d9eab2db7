package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/BradenHooton/voice-membership/internal/models"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// UserTokenKeyFetcher looks up the per-user secret mixed into every
// signing key. Rotating a user's TokenKey invalidates all of their tokens.
type UserTokenKeyFetcher interface {
	GetByID(ctx context.Context, id string) (*models.User, error)
}

// TokenManager handles JWT token generation and validation
type TokenManager struct {
	secret             string
	accessTokenExpiry  time.Duration
	refreshTokenExpiry time.Duration
	users              UserTokenKeyFetcher
}

func NewTokenManager(secret string, accessExpiry, refreshExpiry time.Duration, users UserTokenKeyFetcher) *TokenManager {
	return &TokenManager{
		secret:             secret,
		accessTokenExpiry:  accessExpiry,
		refreshTokenExpiry: refreshExpiry,
		users:              users,
	}
}

func (tm *TokenManager) AccessTokenExpiry() time.Duration  { return tm.accessTokenExpiry }
func (tm *TokenManager) RefreshTokenExpiry() time.Duration { return tm.refreshTokenExpiry }

func (tm *TokenManager) signingKey(tokenKey string) []byte {
	return []byte(tm.secret + tokenKey)
}

// Issue creates an access and a refresh token for user.
func (tm *TokenManager) Issue(user *models.User) (*models.TokenPair, error) {
	access, err := tm.sign(user, models.TokenTypeAccess, tm.accessTokenExpiry)
	if err != nil {
		return nil, fmt.Errorf("failed to sign access token: %w", err)
	}

	refresh, err := tm.sign(user, models.TokenTypeRefresh, tm.refreshTokenExpiry)
	if err != nil {
		return nil, fmt.Errorf("failed to sign refresh token: %w", err)
	}

	return &models.TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

func (tm *TokenManager) sign(user *models.User, tokenType string, ttl time.Duration) (string, error) {
	now := time.Now()

	claims := &models.TokenClaims{
		Type:   tokenType,
		UserID: user.ID,
		Email:  user.Email,
		Role:   user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.New().String(),
			Subject:   user.ID,
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(tm.signingKey(user.TokenKey))
}

// Validate verifies the signature against the user's current TokenKey and
// checks that the token has the expected type.
func (tm *TokenManager) Validate(ctx context.Context, tokenString, wantType string) (*models.TokenClaims, error) {
	claims := &models.TokenClaims{}

	_, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}

		tc, ok := token.Claims.(*models.TokenClaims)
		if !ok || tc.UserID == "" {
			return nil, models.ErrInvalidToken
		}

		user, err := tm.users.GetByID(ctx, tc.UserID)
		if err != nil {
			return nil, err
		}

		return tm.signingKey(user.TokenKey), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, models.ErrTokenExpired
		}
		return nil, fmt.Errorf("%w: %v", models.ErrInvalidToken, err)
	}

	if claims.Type != wantType {
		return nil, fmt.Errorf("%w: expected %s token", models.ErrInvalidToken, wantType)
	}

	return claims, nil
}

package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/BradenHooton/voice-membership/internal/auth"
	"github.com/BradenHooton/voice-membership/internal/metrics"
	"github.com/BradenHooton/voice-membership/internal/models"
	pkgauth "github.com/BradenHooton/voice-membership/pkg/auth"
	pkglogger "github.com/BradenHooton/voice-membership/pkg/logger"
)

// UserRepository is the read side of the account store shared by the
// auth, profile and admin services.
type UserRepository interface {
	GetByID(ctx context.Context, id string) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
}

// TokenRevocationRepository defines the interface for token revocation operations
type TokenRevocationRepository interface {
	RevokeToken(ctx context.Context, jti, userID string, expiresAt time.Time) error
	IsTokenRevoked(ctx context.Context, jti string) (bool, error)
}

// Lockout is the part of LockoutService the login flow consults.
type Lockout interface {
	IsLocked(ctx context.Context, email string) (bool, error)
	RecordFailedAttempt(ctx context.Context, email string) error
	ResetOnSuccess(ctx context.Context, email string) error
	RemainingLockoutMinutes(ctx context.Context, email string) (int, error)
	RemainingAttempts(ctx context.Context, email string) (int, error)
}

// Post-login destinations.
const (
	AdminHomePath  = "/admin/dashboard"
	MemberHomePath = "/profile"
)

// LoginError describes a rejected login in the terms the login page shows:
// either the minutes left on a lock or the attempts left before one.
type LoginError struct {
	Locked            bool
	MinutesRemaining  int
	AttemptsRemaining int
}

func (e *LoginError) Error() string {
	if e.Locked {
		return fmt.Sprintf("account locked for %d more minutes", e.MinutesRemaining)
	}
	return "invalid credentials"
}

func (e *LoginError) Unwrap() error {
	if e.Locked {
		return models.ErrAccountLocked
	}
	return models.ErrUnauthorized
}

// LoginResult is a successful login.
type LoginResult struct {
	User     *models.User
	Tokens   *models.TokenPair
	Redirect string
}

// AuthService handles authentication business logic
type AuthService struct {
	repo        UserRepository
	revokeRepo  TokenRevocationRepository
	lockout     Lockout
	tm          *auth.TokenManager
	timingDelay *auth.TimingDelay
	logger      *slog.Logger
	auditLogger *pkglogger.AuditLogger
}

func NewAuthService(repo UserRepository, revokeRepo TokenRevocationRepository, lockout Lockout, tm *auth.TokenManager, timingDelay *auth.TimingDelay, logger *slog.Logger, auditLogger *pkglogger.AuditLogger) *AuthService {
	return &AuthService{
		repo:        repo,
		revokeRepo:  revokeRepo,
		lockout:     lockout,
		tm:          tm,
		timingDelay: timingDelay,
		logger:      logger,
		auditLogger: auditLogger,
	}
}

// dummyPasswordHash is compared against when the email is unknown so that
// the response time does not reveal whether the account exists.
var dummyPasswordHash = sync.OnceValue(func() string {
	hash, err := pkgauth.HashPassword("Dummy-Password-1!")
	if err != nil {
		return ""
	}
	return hash
})

func (s *AuthService) wait(ctx context.Context, start time.Time) {
	if s.timingDelay != nil {
		s.timingDelay.WaitFrom(ctx, start)
	}
}

// Login checks the lockout tracker, verifies the password and, on success,
// resets the tracker and issues a token pair. A rejected login returns a
// *LoginError.
func (s *AuthService) Login(ctx context.Context, email, password, ipAddress string) (*LoginResult, error) {
	start := time.Now()
	email = models.NormalizeEmail(email)
	if email == "" {
		return nil, models.ErrBadRequest
	}

	audit := pkglogger.AuditEvent{EventType: pkglogger.EventLogin, Email: email, IPAddress: ipAddress}

	locked, err := s.lockout.IsLocked(ctx, email)
	if err != nil {
		s.logger.Error("failed to check account lock", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}
	if locked {
		defer s.wait(ctx, start)
		return nil, s.lockedError(ctx, email, audit)
	}

	user, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		if !errors.Is(err, models.ErrNotFound) {
			s.logger.Error("failed to get user by email", slog.Any("error", err))
			return nil, models.ErrInternalServer
		}
		_ = pkgauth.ComparePassword(dummyPasswordHash(), password)
		s.wait(ctx, start)
		return nil, s.failedError(ctx, email, audit)
	}

	if err := pkgauth.ComparePassword(user.PasswordHash, password); err != nil {
		if err := s.lockout.RecordFailedAttempt(ctx, email); err != nil {
			s.logger.Error("failed to record failed login", slog.String("user_id", user.ID), slog.Any("error", err))
		}
		defer s.wait(ctx, start)

		audit.UserID = user.ID
		locked, err := s.lockout.IsLocked(ctx, email)
		if err == nil && locked {
			return nil, s.lockedError(ctx, email, audit)
		}
		return nil, s.failedError(ctx, email, audit)
	}

	if err := s.lockout.ResetOnSuccess(ctx, email); err != nil {
		s.logger.Error("failed to reset lockout state", slog.String("user_id", user.ID), slog.Any("error", err))
	}

	tokens, err := s.tm.Issue(user)
	if err != nil {
		s.logger.Error("failed to issue tokens", slog.String("user_id", user.ID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	metrics.LoginAttemptsTotal.WithLabelValues(metrics.LoginSuccess).Inc()
	audit.UserID, audit.Success = user.ID, true
	s.auditLogger.LogAuthAttempt(ctx, audit)

	redirect := MemberHomePath
	if user.IsAdmin() {
		redirect = AdminHomePath
	}

	return &LoginResult{User: user, Tokens: tokens, Redirect: redirect}, nil
}

func (s *AuthService) lockedError(ctx context.Context, email string, audit pkglogger.AuditEvent) error {
	minutes, err := s.lockout.RemainingLockoutMinutes(ctx, email)
	if err != nil {
		s.logger.Error("failed to read remaining lockout", slog.Any("error", err))
	}

	metrics.LoginAttemptsTotal.WithLabelValues(metrics.LoginLocked).Inc()
	audit.FailureReason = "account_locked"
	s.auditLogger.LogAuthAttempt(ctx, audit)

	return &LoginError{Locked: true, MinutesRemaining: minutes}
}

func (s *AuthService) failedError(ctx context.Context, email string, audit pkglogger.AuditEvent) error {
	remaining, err := s.lockout.RemainingAttempts(ctx, email)
	if err != nil {
		s.logger.Error("failed to read remaining attempts", slog.Any("error", err))
	}

	metrics.LoginAttemptsTotal.WithLabelValues(metrics.LoginFailure).Inc()
	audit.FailureReason = "invalid_credentials"
	s.auditLogger.LogAuthAttempt(ctx, audit)

	return &LoginError{AttemptsRemaining: remaining}
}

// EstablishSession issues tokens for an account whose identity was already
// verified, such as a just-completed registration.
func (s *AuthService) EstablishSession(ctx context.Context, user *models.User) (*models.TokenPair, error) {
	tokens, err := s.tm.Issue(user)
	if err != nil {
		return nil, fmt.Errorf("failed to issue tokens: %w", err)
	}

	s.auditLogger.LogAuthAttempt(ctx, pkglogger.AuditEvent{
		EventType: pkglogger.EventLogin,
		UserID:    user.ID,
		Success:   true,
	})

	return tokens, nil
}

// Logout revokes the access token the request was authenticated with.
func (s *AuthService) Logout(ctx context.Context, claims *models.TokenClaims) error {
	if claims == nil {
		return models.ErrUnauthorized
	}

	var expiresAt time.Time
	if claims.ExpiresAt != nil {
		expiresAt = claims.ExpiresAt.Time
	}

	if err := s.revokeRepo.RevokeToken(ctx, claims.ID, claims.UserID, expiresAt); err != nil {
		s.logger.Error("failed to revoke token", slog.String("jti", claims.ID), slog.Any("error", err))
		return models.ErrInternalServer
	}

	s.logger.Info("user logged out", slog.String("user_id", claims.UserID))
	s.auditLogger.LogAccountAction(ctx, pkglogger.EventLogout, claims.UserID, nil)
	return nil
}

// Refresh exchanges a refresh token for a new pair. The presented refresh
// token is revoked so it cannot be replayed.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*models.TokenPair, error) {
	if refreshToken == "" {
		return nil, models.ErrUnauthorized
	}

	claims, err := s.tm.Validate(ctx, refreshToken, models.TokenTypeRefresh)
	if err != nil {
		s.logger.Info("refresh token validation failed", slog.Any("error", err))
		return nil, models.ErrUnauthorized
	}

	revoked, err := s.revokeRepo.IsTokenRevoked(ctx, claims.ID)
	if err != nil {
		s.logger.Error("failed to check token revocation", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}
	if revoked {
		return nil, models.ErrUnauthorized
	}

	user, err := s.repo.GetByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, models.ErrUnauthorized
		}
		s.logger.Error("failed to get user for token refresh", slog.String("user_id", claims.UserID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	if user.Lockout.Locked {
		return nil, models.ErrAccountLocked
	}

	if err := s.revokeRepo.RevokeToken(ctx, claims.ID, claims.UserID, claims.ExpiresAt.Time); err != nil {
		s.logger.Error("failed to revoke used refresh token", slog.String("jti", claims.ID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	tokens, err := s.tm.Issue(user)
	if err != nil {
		s.logger.Error("failed to issue tokens", slog.String("user_id", user.ID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	return tokens, nil
}

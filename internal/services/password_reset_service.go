package services

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/BradenHooton/voice-membership/internal/metrics"
	"github.com/BradenHooton/voice-membership/internal/models"
	pkgauth "github.com/BradenHooton/voice-membership/pkg/auth"
	pkglogger "github.com/BradenHooton/voice-membership/pkg/logger"
)

// PasswordResetRepository stores hashed reset tokens.
type PasswordResetRepository interface {
	Create(ctx context.Context, userID, tokenHash string, expiresAt time.Time) (*models.PasswordResetToken, error)
	GetByTokenHash(ctx context.Context, tokenHash string) (*models.PasswordResetToken, error)
	MarkAsUsed(ctx context.Context, tokenHash string) error
}

// PasswordUserRepository finds accounts and stores new password hashes.
type PasswordUserRepository interface {
	UserRepository
	UpdatePassword(ctx context.Context, id, passwordHash string) error
}

const (
	resetTokenBytes     = 32
	InvalidResetLinkMsg = "Invalid or expired reset link."
	PasswordMismatchMsg = "Passwords do not match."
)

// PasswordResetService issues single-use reset links and applies the new
// password. Tokens are stored only as sha256 hashes with an expiry.
type PasswordResetService struct {
	tokens      PasswordResetRepository
	users       PasswordUserRepository
	mailer      Mailer
	tokenTTL    time.Duration
	logger      *slog.Logger
	auditLogger *pkglogger.AuditLogger
	now         func() time.Time
}

func NewPasswordResetService(tokens PasswordResetRepository, users PasswordUserRepository, mailer Mailer, tokenTTL time.Duration, logger *slog.Logger, auditLogger *pkglogger.AuditLogger) *PasswordResetService {
	return &PasswordResetService{
		tokens:      tokens,
		users:       users,
		mailer:      mailer,
		tokenTTL:    tokenTTL,
		logger:      logger,
		auditLogger: auditLogger,
		now:         time.Now,
	}
}

func hashResetToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

func generateResetToken() (string, error) {
	b := make([]byte, resetTokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate reset token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// RequestReset emails a reset link to a known address. Unknown addresses
// get the same nil result so the response does not reveal which emails
// are registered.
func (s *PasswordResetService) RequestReset(ctx context.Context, email, baseURL string) error {
	metrics.PasswordResetRequestsTotal.Inc()

	user, err := s.users.GetByEmail(ctx, models.NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			s.logger.Info("password reset requested for unknown email")
			return nil
		}
		return fmt.Errorf("failed to look up account: %w", err)
	}

	token, err := generateResetToken()
	if err != nil {
		return err
	}

	expiresAt := s.now().Add(s.tokenTTL)
	if _, err := s.tokens.Create(ctx, user.ID, hashResetToken(token), expiresAt); err != nil {
		return err
	}

	link := fmt.Sprintf("%s/reset-password?token=%s", baseURL, url.QueryEscape(token))
	if err := s.mailer.SendPasswordReset(ctx, user.Email, link, expiresAt); err != nil {
		s.logger.Warn("failed to send password reset email", slog.String("user_id", user.ID), slog.Any("error", err))
	}

	s.auditLogger.LogAccountAction(ctx, pkglogger.EventPasswordReset, user.ID, map[string]string{"stage": "requested"})
	return nil
}

// ValidateToken returns the stored token when it is unused and unexpired.
func (s *PasswordResetService) ValidateToken(ctx context.Context, token string) (*models.PasswordResetToken, error) {
	if token == "" {
		return nil, models.ErrInvalidToken
	}

	stored, err := s.tokens.GetByTokenHash(ctx, hashResetToken(token))
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, models.ErrInvalidToken
		}
		return nil, fmt.Errorf("failed to load reset token: %w", err)
	}

	if !stored.IsValid(s.now()) {
		return nil, models.ErrInvalidToken
	}

	return stored, nil
}

// ResetPassword consumes the token and stores the new password. The
// account's sessions are invalidated and any lockout is cleared.
func (s *PasswordResetService) ResetPassword(ctx context.Context, token, password, confirm string) error {
	stored, err := s.ValidateToken(ctx, token)
	if err != nil {
		return err
	}

	if password != confirm {
		return models.ErrPasswordMismatch
	}
	if err := pkgauth.ValidatePassword(password); err != nil {
		return err
	}

	hash, err := pkgauth.HashPassword(password)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	if err := s.tokens.MarkAsUsed(ctx, stored.TokenHash); err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return models.ErrInvalidToken
		}
		return err
	}

	if err := s.users.UpdatePassword(ctx, stored.UserID, hash); err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}

	s.logger.Info("password reset completed", slog.String("user_id", stored.UserID))
	s.auditLogger.LogAccountAction(ctx, pkglogger.EventPasswordReset, stored.UserID, map[string]string{"stage": "completed"})
	return nil
}

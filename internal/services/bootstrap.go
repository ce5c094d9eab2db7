package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/BradenHooton/voice-membership/internal/models"
	pkgauth "github.com/BradenHooton/voice-membership/pkg/auth"
	pkglogger "github.com/BradenHooton/voice-membership/pkg/logger"
)

// AdminBootstrapRepository creates or promotes the configured admin.
type AdminBootstrapRepository interface {
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	Create(ctx context.Context, user *models.User) (*models.User, error)
	UpdateRole(ctx context.Context, id, role string) error
}

// EnsureAdminUser makes sure an admin account exists for email. An existing
// account keeps its password and is promoted if needed. Empty credentials
// skip the bootstrap.
func EnsureAdminUser(ctx context.Context, repo AdminBootstrapRepository, email, password string, logger *slog.Logger) error {
	email = models.NormalizeEmail(email)
	if email == "" || password == "" {
		logger.Info("no ADMIN_EMAIL or ADMIN_PASSWORD set, skipping admin user creation")
		return nil
	}

	existing, err := repo.GetByEmail(ctx, email)
	switch {
	case err == nil:
		if existing.IsAdmin() {
			logger.Info("admin user already exists")
			return nil
		}
		if err := repo.UpdateRole(ctx, existing.ID, models.RoleAdmin); err != nil {
			return fmt.Errorf("failed to promote admin user: %w", err)
		}
		logger.Info("existing user promoted to admin", slog.String("user_id", existing.ID))
		return nil
	case !errors.Is(err, models.ErrNotFound):
		return fmt.Errorf("failed to check if admin exists: %w", err)
	}

	hash, err := pkgauth.HashPassword(password)
	if err != nil {
		return fmt.Errorf("failed to hash admin password: %w", err)
	}

	admin, err := repo.Create(ctx, &models.User{
		FirstName:    "Admin",
		LastName:     "User",
		Email:        email,
		PasswordHash: hash,
		Role:         models.RoleAdmin,
	})
	if err != nil {
		return fmt.Errorf("failed to create admin user: %w", err)
	}

	logger.Info("admin user created",
		slog.String("user_id", admin.ID),
		slog.String("email", pkglogger.SanitizedEmail(email)))
	return nil
}

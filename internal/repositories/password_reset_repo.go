package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/BradenHooton/voice-membership/internal/database"
	"github.com/BradenHooton/voice-membership/internal/models"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PasswordResetRepository is the durable store behind reset links:
// token hash to user, with an expiry.
type PasswordResetRepository struct {
	pool *pgxpool.Pool
}

func NewPasswordResetRepository(db *database.DB) *PasswordResetRepository {
	return &PasswordResetRepository{pool: db.Pool}
}

func scanResetTokenRow(row rowScanner) (*models.PasswordResetToken, error) {
	var token models.PasswordResetToken

	err := row.Scan(&token.TokenHash, &token.UserID, &token.ExpiresAt, &token.UsedAt, &token.CreatedAt)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}

	return &token, nil
}

// Create stores a new token. Earlier unused tokens for the same user are
// invalidated so only the latest link works.
func (r *PasswordResetRepository) Create(ctx context.Context, userID, tokenHash string, expiresAt time.Time) (*models.PasswordResetToken, error) {
	if _, err := r.pool.Exec(ctx,
		`UPDATE password_reset_tokens SET used_at = NOW() WHERE user_id = $1 AND used_at IS NULL`, userID); err != nil {
		return nil, fmt.Errorf("failed to invalidate previous reset tokens: %w", err)
	}

	query := `
		INSERT INTO password_reset_tokens (token_hash, user_id, expires_at)
		VALUES ($1, $2, $3)
		RETURNING token_hash, user_id, expires_at, used_at, created_at
	`

	token, err := scanResetTokenRow(r.pool.QueryRow(ctx, query, tokenHash, userID, expiresAt))
	if err != nil {
		return nil, fmt.Errorf("failed to create password reset token: %w", err)
	}

	return token, nil
}

func (r *PasswordResetRepository) GetByTokenHash(ctx context.Context, tokenHash string) (*models.PasswordResetToken, error) {
	query := `
		SELECT token_hash, user_id, expires_at, used_at, created_at
		FROM password_reset_tokens
		WHERE token_hash = $1
	`

	return scanResetTokenRow(r.pool.QueryRow(ctx, query, tokenHash))
}

// MarkAsUsed consumes the token. A token that was already used or has
// expired reports models.ErrNotFound.
func (r *PasswordResetRepository) MarkAsUsed(ctx context.Context, tokenHash string) error {
	query := `
		UPDATE password_reset_tokens
		SET used_at = NOW()
		WHERE token_hash = $1 AND used_at IS NULL AND expires_at > NOW()
	`

	result, err := r.pool.Exec(ctx, query, tokenHash)
	if err != nil {
		return fmt.Errorf("failed to mark token as used: %w", err)
	}

	if result.RowsAffected() == 0 {
		return models.ErrNotFound
	}

	return nil
}

// CleanupExpired deletes tokens that expired or were used more than a day ago.
func (r *PasswordResetRepository) CleanupExpired(ctx context.Context) (int64, error) {
	query := `
		DELETE FROM password_reset_tokens
		WHERE expires_at < NOW() - INTERVAL '1 day'
		   OR used_at < NOW() - INTERVAL '1 day'
	`

	result, err := r.pool.Exec(ctx, query)
	if err != nil {
		return 0, fmt.Errorf("failed to cleanup expired reset tokens: %w", err)
	}

	return result.RowsAffected(), nil
}

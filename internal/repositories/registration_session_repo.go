package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/BradenHooton/voice-membership/internal/database"
	"github.com/jackc/pgx/v5/pgxpool"
)

// RegistrationSessionRepository stores the serialized wizard state of
// signups in progress. Rows past expires_at read as missing.
type RegistrationSessionRepository struct {
	pool *pgxpool.Pool
	ttl  time.Duration
}

func NewRegistrationSessionRepository(db *database.DB, ttl time.Duration) *RegistrationSessionRepository {
	return &RegistrationSessionRepository{pool: db.Pool, ttl: ttl}
}

func (r *RegistrationSessionRepository) Get(ctx context.Context, id string) ([]byte, error) {
	var state []byte

	err := r.pool.QueryRow(ctx,
		`SELECT state FROM registration_sessions WHERE id = $1 AND expires_at > NOW()`, id).Scan(&state)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}

	return state, nil
}

// Put upserts the state and slides the expiry forward.
func (r *RegistrationSessionRepository) Put(ctx context.Context, id string, state []byte) error {
	query := `
		INSERT INTO registration_sessions (id, state, expires_at, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (id) DO UPDATE SET state = EXCLUDED.state, expires_at = EXCLUDED.expires_at, updated_at = NOW()
	`

	if _, err := r.pool.Exec(ctx, query, id, state, time.Now().Add(r.ttl)); err != nil {
		return database.MapPostgresError(err)
	}

	return nil
}

func (r *RegistrationSessionRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.pool.Exec(ctx, `DELETE FROM registration_sessions WHERE id = $1`, id); err != nil {
		return database.MapPostgresError(err)
	}
	return nil
}

func (r *RegistrationSessionRepository) CleanupExpired(ctx context.Context) (int64, error) {
	result, err := r.pool.Exec(ctx, `DELETE FROM registration_sessions WHERE expires_at < NOW()`)
	if err != nil {
		return 0, fmt.Errorf("failed to cleanup registration sessions: %w", err)
	}

	return result.RowsAffected(), nil
}


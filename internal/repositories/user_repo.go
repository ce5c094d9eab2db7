package repositories

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/BradenHooton/voice-membership/internal/database"
	"github.com/BradenHooton/voice-membership/internal/models"
	"github.com/BradenHooton/voice-membership/pkg/auth"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const userColumns = `id, first_name, middle_name, last_name, email, password_hash, phone,
	address, city, province, postal_code, role, token_key,
	membership_id, membership_start_date, membership_expiry_date,
	failed_login_attempts, account_locked, lockout_time, created_at, updated_at`

type UserRepository struct {
	pool *pgxpool.Pool
}

func NewUserRepository(db *database.DB) *UserRepository {
	return &UserRepository{pool: db.Pool}
}

// rowScanner interface for scanning rows (supports both single row and multiple rows)
type rowScanner interface {
	Scan(dest ...interface{}) error
}

// scanUserRow populates a User model from a database row
func scanUserRow(scanner rowScanner) (*models.User, error) {
	var user models.User

	err := scanner.Scan(
		&user.ID, &user.FirstName, &user.MiddleName, &user.LastName, &user.Email, &user.PasswordHash, &user.Phone,
		&user.Address, &user.City, &user.Province, &user.PostalCode, &user.Role, &user.TokenKey,
		&user.MembershipID, &user.MembershipStartDate, &user.MembershipExpiryDate,
		&user.Lockout.FailedAttempts, &user.Lockout.Locked, &user.Lockout.LockoutTime,
		&user.CreatedAt, &user.UpdatedAt,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}

	return &user, nil
}

// scanUserRows iterates through rows and scans each into User models
func scanUserRows(rows pgx.Rows) ([]*models.User, error) {
	defer rows.Close()

	users := make([]*models.User, 0)

	for rows.Next() {
		user, err := scanUserRow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, user)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return users, nil
}

func (r *UserRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`

	return scanUserRow(r.pool.QueryRow(ctx, query, id))
}

// GetByEmail matches case-insensitively.
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE LOWER(email) = LOWER($1)`

	return scanUserRow(r.pool.QueryRow(ctx, query, strings.TrimSpace(email)))
}

func (r *UserRepository) EmailExists(ctx context.Context, email string) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM users WHERE LOWER(email) = LOWER($1))`

	var exists bool
	if err := r.pool.QueryRow(ctx, query, strings.TrimSpace(email)).Scan(&exists); err != nil {
		return false, database.MapPostgresError(err)
	}

	return exists, nil
}

// Create inserts a standalone user (admin bootstrap). Wizard signups go
// through RegistrationRepository so that children and cart land in the same
// transaction.
func (r *UserRepository) Create(ctx context.Context, user *models.User) (*models.User, error) {
	return insertUser(ctx, r.pool, user)
}

func insertUser(ctx context.Context, q database.Querier, user *models.User) (*models.User, error) {
	user.ID = uuid.New().String()

	tokenKey, err := auth.GenerateTokenKey()
	if err != nil {
		return nil, fmt.Errorf("failed to generate token key: %w", err)
	}
	user.TokenKey = tokenKey

	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now()
	}
	user.UpdatedAt = user.CreatedAt

	if user.Role == "" {
		user.Role = models.RoleUser
	}

	query := `
		INSERT INTO users (id, first_name, middle_name, last_name, email, password_hash, phone,
			address, city, province, postal_code, role, token_key,
			membership_id, membership_start_date, membership_expiry_date, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
		RETURNING ` + userColumns

	return scanUserRow(q.QueryRow(ctx, query,
		user.ID, user.FirstName, user.MiddleName, user.LastName, strings.TrimSpace(user.Email), user.PasswordHash, user.Phone,
		user.Address, user.City, user.Province, user.PostalCode, user.Role, user.TokenKey,
		user.MembershipID, user.MembershipStartDate, user.MembershipExpiryDate, user.CreatedAt, user.UpdatedAt,
	))
}

// UpdateProfile writes the fields a member can edit on their own profile.
func (r *UserRepository) UpdateProfile(ctx context.Context, user *models.User) (*models.User, error) {
	query := `
		UPDATE users SET first_name = $1, middle_name = $2, last_name = $3, email = $4, phone = $5,
			address = $6, city = $7, province = $8, postal_code = $9, updated_at = NOW()
		WHERE id = $10
		RETURNING ` + userColumns

	return scanUserRow(r.pool.QueryRow(ctx, query,
		user.FirstName, user.MiddleName, user.LastName, strings.TrimSpace(user.Email), user.Phone,
		user.Address, user.City, user.Province, user.PostalCode, user.ID,
	))
}

// UpdatePassword stores a new hash, rotates the token key so existing
// sessions stop validating, and clears any lockout.
func (r *UserRepository) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	tokenKey, err := auth.GenerateTokenKey()
	if err != nil {
		return fmt.Errorf("failed to generate token key: %w", err)
	}

	query := `
		UPDATE users SET password_hash = $1, token_key = $2,
			failed_login_attempts = 0, account_locked = FALSE, lockout_time = NULL, updated_at = NOW()
		WHERE id = $3
	`

	result, err := r.pool.Exec(ctx, query, passwordHash, tokenKey, id)
	if err != nil {
		return database.MapPostgresError(err)
	}
	if result.RowsAffected() == 0 {
		return models.ErrNotFound
	}

	return nil
}

// UpdateRole is used by the admin bootstrap.
func (r *UserRepository) UpdateRole(ctx context.Context, id, role string) error {
	result, err := r.pool.Exec(ctx, `UPDATE users SET role = $1, updated_at = NOW() WHERE id = $2`, role, id)
	if err != nil {
		return database.MapPostgresError(err)
	}
	if result.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}

// CompareAndSwapLockout writes next only if the stored lockout columns still
// equal prev. It returns models.ErrConflict when another writer got there
// first and models.ErrNotFound when the user is gone.
func (r *UserRepository) CompareAndSwapLockout(ctx context.Context, id string, prev, next models.LockoutState) error {
	query := `
		UPDATE users SET failed_login_attempts = $1, account_locked = $2, lockout_time = $3, updated_at = NOW()
		WHERE id = $4 AND failed_login_attempts = $5 AND account_locked = $6
	`

	result, err := r.pool.Exec(ctx, query,
		next.FailedAttempts, next.Locked, next.LockoutTime,
		id, prev.FailedAttempts, prev.Locked,
	)
	if err != nil {
		return database.MapPostgresError(err)
	}

	if result.RowsAffected() == 0 {
		if _, err := r.GetByID(ctx, id); err != nil {
			return err
		}
		return models.ErrConflict
	}

	return nil
}

// ResetLockout clears the lockout columns unconditionally.
func (r *UserRepository) ResetLockout(ctx context.Context, id string) error {
	query := `
		UPDATE users SET failed_login_attempts = 0, account_locked = FALSE, lockout_time = NULL, updated_at = NOW()
		WHERE id = $1
	`

	result, err := r.pool.Exec(ctx, query, id)
	if err != nil {
		return database.MapPostgresError(err)
	}
	if result.RowsAffected() == 0 {
		return models.ErrNotFound
	}

	return nil
}

// Count returns the number of accounts, admins included.
func (r *UserRepository) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM users`).Scan(&n); err != nil {
		return 0, database.MapPostgresError(err)
	}
	return n, nil
}

// Search lists users matching every non-zero criterion of the filter,
// newest first.
func (r *UserRepository) Search(ctx context.Context, f models.UserFilter) ([]*models.User, error) {
	query, args := buildUserSearch(f)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query users: %w", err)
	}

	return scanUserRows(rows)
}

func buildUserSearch(f models.UserFilter) (string, []any) {
	var (
		where []string
		args  []any
	)

	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}
	contains := func(column, term string) string {
		return column + " ILIKE '%' || " + arg(term) + " || '%'"
	}
	anyChild := func(conds ...string) string {
		return "EXISTS (SELECT 1 FROM children c WHERE c.user_id = users.id AND " + strings.Join(conds, " AND ") + ")"
	}

	if s := strings.TrimSpace(f.Address); s != "" {
		p := arg(s)
		where = append(where, "(address ILIKE '%' || "+p+" || '%' OR postal_code ILIKE '%' || "+p+" || '%')")
	}
	if s := strings.TrimSpace(f.City); s != "" {
		where = append(where, contains("city", s))
	}
	if s := strings.TrimSpace(f.Province); s != "" {
		where = append(where, contains("province", s))
	}

	// Each child criterion is satisfied by any one child on its own.
	if f.ChildMinAge != nil || f.ChildMaxAge != nil {
		conds := []string{"c.age IS NOT NULL"}
		if f.ChildMinAge != nil {
			conds = append(conds, "c.age >= "+arg(*f.ChildMinAge))
		}
		if f.ChildMaxAge != nil {
			conds = append(conds, "c.age <= "+arg(*f.ChildMaxAge))
		}
		where = append(where, anyChild(conds...))
	}
	if s := strings.TrimSpace(f.HearingLossType); s != "" {
		where = append(where, anyChild("LOWER(c.hearing_loss_type) = LOWER("+arg(s)+")"))
	}
	if s := strings.TrimSpace(f.EquipmentType); s != "" {
		where = append(where, anyChild("LOWER(c.equipment_type) = LOWER("+arg(s)+")"))
	}

	if f.RegisteredFrom != nil {
		where = append(where, "created_at >= "+arg(*f.RegisteredFrom))
	}
	if f.RegisteredTo != nil {
		// End date is inclusive: anything up to the following midnight.
		where = append(where, "created_at < "+arg(f.RegisteredTo.AddDate(0, 0, 1)))
	}

	query := `SELECT ` + userColumns + ` FROM users`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at DESC"

	return query, args
}

package repositories

import (
	"context"
	"fmt"

	"github.com/BradenHooton/voice-membership/internal/database"
	"github.com/BradenHooton/voice-membership/internal/models"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const membershipColumns = `id, name, description, price_cents, features, is_free, display_order, active`

// MembershipRepository covers the catalog: tiers, benefits and landing
// page copy.
type MembershipRepository struct {
	pool *pgxpool.Pool
}

func NewMembershipRepository(db *database.DB) *MembershipRepository {
	return &MembershipRepository{pool: db.Pool}
}

func scanMembershipRow(row rowScanner) (*models.Membership, error) {
	var m models.Membership

	err := row.Scan(&m.ID, &m.Name, &m.Description, &m.PriceCents, &m.Features, &m.IsFree, &m.DisplayOrder, &m.Active)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}

	return &m, nil
}

func scanMembershipRows(rows pgx.Rows) ([]*models.Membership, error) {
	defer rows.Close()

	memberships := make([]*models.Membership, 0)

	for rows.Next() {
		m, err := scanMembershipRow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan membership: %w", err)
		}
		memberships = append(memberships, m)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating membership rows: %w", err)
	}

	return memberships, nil
}

func (r *MembershipRepository) GetByID(ctx context.Context, id int64) (*models.Membership, error) {
	return scanMembershipRow(r.pool.QueryRow(ctx, `SELECT `+membershipColumns+` FROM memberships WHERE id = $1`, id))
}

func (r *MembershipRepository) ListActive(ctx context.Context) ([]*models.Membership, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+membershipColumns+` FROM memberships WHERE active ORDER BY display_order, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query memberships: %w", err)
	}

	return scanMembershipRows(rows)
}

// CreateIfMissing inserts m unless a tier with the same name exists.
// It reports whether a row was inserted.
func (r *MembershipRepository) CreateIfMissing(ctx context.Context, m *models.Membership) (bool, error) {
	query := `
		INSERT INTO memberships (name, description, price_cents, features, is_free, display_order, active)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (name) DO NOTHING
	`

	result, err := r.pool.Exec(ctx, query, m.Name, m.Description, m.PriceCents, m.Features, m.IsFree, m.DisplayOrder, m.Active)
	if err != nil {
		return false, database.MapPostgresError(err)
	}

	return result.RowsAffected() > 0, nil
}

func (r *MembershipRepository) ListActiveBenefits(ctx context.Context) ([]*models.MembershipBenefit, error) {
	query := `
		SELECT id, title, description, icon, display_order, active
		FROM membership_benefits WHERE active ORDER BY display_order, id
	`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query benefits: %w", err)
	}
	defer rows.Close()

	benefits := make([]*models.MembershipBenefit, 0)
	for rows.Next() {
		var b models.MembershipBenefit
		if err := rows.Scan(&b.ID, &b.Title, &b.Description, &b.Icon, &b.DisplayOrder, &b.Active); err != nil {
			return nil, fmt.Errorf("failed to scan benefit: %w", err)
		}
		benefits = append(benefits, &b)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating benefit rows: %w", err)
	}

	return benefits, nil
}

func (r *MembershipRepository) CreateBenefitIfMissing(ctx context.Context, b *models.MembershipBenefit) (bool, error) {
	query := `
		INSERT INTO membership_benefits (title, description, icon, display_order, active)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (title) DO NOTHING
	`

	result, err := r.pool.Exec(ctx, query, b.Title, b.Description, b.Icon, b.DisplayOrder, b.Active)
	if err != nil {
		return false, database.MapPostgresError(err)
	}

	return result.RowsAffected() > 0, nil
}

func (r *MembershipRepository) GetContent(ctx context.Context, key string) (*models.LandingPageContent, error) {
	var c models.LandingPageContent

	err := r.pool.QueryRow(ctx, `SELECT key, value, active FROM landing_page_content WHERE key = $1 AND active`, key).
		Scan(&c.Key, &c.Value, &c.Active)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}

	return &c, nil
}

func (r *MembershipRepository) SetContentIfMissing(ctx context.Context, c *models.LandingPageContent) (bool, error) {
	query := `
		INSERT INTO landing_page_content (key, value, active)
		VALUES ($1, $2, $3)
		ON CONFLICT (key) DO NOTHING
	`

	result, err := r.pool.Exec(ctx, query, c.Key, c.Value, c.Active)
	if err != nil {
		return false, database.MapPostgresError(err)
	}

	return result.RowsAffected() > 0, nil
}

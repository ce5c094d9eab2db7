package repositories

import (
	"context"
	"fmt"

	"github.com/BradenHooton/voice-membership/internal/database"
	"github.com/BradenHooton/voice-membership/internal/models"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const childColumns = `id, user_id, name, age, date_of_birth, hearing_loss_type, equipment_type, siblings_names, chapter_location`

type ChildRepository struct {
	pool *pgxpool.Pool
}

func NewChildRepository(db *database.DB) *ChildRepository {
	return &ChildRepository{pool: db.Pool}
}

func scanChildRow(row rowScanner) (*models.Child, error) {
	var c models.Child

	err := row.Scan(
		&c.ID, &c.UserID, &c.Name, &c.Age, &c.DateOfBirth,
		&c.HearingLossType, &c.EquipmentType, &c.SiblingsNames, &c.ChapterLocation,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}

	return &c, nil
}

func scanChildRows(rows pgx.Rows) ([]*models.Child, error) {
	defer rows.Close()

	children := make([]*models.Child, 0)

	for rows.Next() {
		c, err := scanChildRow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan child: %w", err)
		}
		children = append(children, c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating child rows: %w", err)
	}

	return children, nil
}

func insertChild(ctx context.Context, q database.Querier, c *models.Child) (*models.Child, error) {
	query := `
		INSERT INTO children (user_id, name, age, date_of_birth, hearing_loss_type, equipment_type, siblings_names, chapter_location)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING ` + childColumns

	return scanChildRow(q.QueryRow(ctx, query,
		c.UserID, c.Name, c.Age, c.DateOfBirth,
		c.HearingLossType, c.EquipmentType, c.SiblingsNames, c.ChapterLocation,
	))
}

func (r *ChildRepository) Create(ctx context.Context, c *models.Child) (*models.Child, error) {
	return insertChild(ctx, r.pool, c)
}

func (r *ChildRepository) ListByUserID(ctx context.Context, userID string) ([]*models.Child, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+childColumns+` FROM children WHERE user_id = $1 ORDER BY id`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query children: %w", err)
	}

	return scanChildRows(rows)
}

// ListByUserIDs returns the children of every listed user, grouped by user.
func (r *ChildRepository) ListByUserIDs(ctx context.Context, userIDs []string) (map[string][]*models.Child, error) {
	grouped := make(map[string][]*models.Child, len(userIDs))
	if len(userIDs) == 0 {
		return grouped, nil
	}

	rows, err := r.pool.Query(ctx, `SELECT `+childColumns+` FROM children WHERE user_id = ANY($1) ORDER BY user_id, id`, userIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to query children: %w", err)
	}

	children, err := scanChildRows(rows)
	if err != nil {
		return nil, err
	}

	for _, c := range children {
		grouped[c.UserID] = append(grouped[c.UserID], c)
	}

	return grouped, nil
}

// GetOwned returns the child only when it belongs to userID.
func (r *ChildRepository) GetOwned(ctx context.Context, userID string, id int64) (*models.Child, error) {
	return scanChildRow(r.pool.QueryRow(ctx, `SELECT `+childColumns+` FROM children WHERE id = $1 AND user_id = $2`, id, userID))
}

func (r *ChildRepository) Update(ctx context.Context, c *models.Child) (*models.Child, error) {
	query := `
		UPDATE children SET name = $1, age = $2, date_of_birth = $3, hearing_loss_type = $4,
			equipment_type = $5, siblings_names = $6, chapter_location = $7
		WHERE id = $8 AND user_id = $9
		RETURNING ` + childColumns

	return scanChildRow(r.pool.QueryRow(ctx, query,
		c.Name, c.Age, c.DateOfBirth, c.HearingLossType,
		c.EquipmentType, c.SiblingsNames, c.ChapterLocation,
		c.ID, c.UserID,
	))
}

func (r *ChildRepository) Delete(ctx context.Context, userID string, id int64) error {
	result, err := r.pool.Exec(ctx, `DELETE FROM children WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return database.MapPostgresError(err)
	}

	if result.RowsAffected() == 0 {
		return models.ErrNotFound
	}

	return nil
}

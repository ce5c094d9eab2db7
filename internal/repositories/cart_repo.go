package repositories

import (
	"context"
	"fmt"

	"github.com/BradenHooton/voice-membership/internal/database"
	"github.com/BradenHooton/voice-membership/internal/models"
	"github.com/jackc/pgx/v5"
)

type CartRepository struct {
	db *database.DB
}

func NewCartRepository(db *database.DB) *CartRepository {
	return &CartRepository{db: db}
}

func ensureCart(ctx context.Context, q database.Querier, userID string) (int64, error) {
	query := `
		INSERT INTO carts (user_id) VALUES ($1)
		ON CONFLICT (user_id) DO UPDATE SET updated_at = NOW()
		RETURNING id
	`

	var id int64
	if err := q.QueryRow(ctx, query, userID).Scan(&id); err != nil {
		return 0, database.MapPostgresError(err)
	}

	return id, nil
}

func insertCartItem(ctx context.Context, q database.Querier, cartID int64, item *models.CartItem) error {
	query := `
		INSERT INTO cart_items (cart_id, membership_id, quantity, unit_price_cents, total_price_cents)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`

	item.CartID = cartID
	err := q.QueryRow(ctx, query, cartID, item.MembershipID, item.Quantity, item.UnitPriceCents, item.TotalPriceCents).
		Scan(&item.ID)
	return database.MapPostgresError(err)
}

// GetByUserID loads the cart with its items.
func (r *CartRepository) GetByUserID(ctx context.Context, userID string) (*models.Cart, error) {
	var cart models.Cart

	err := r.db.Pool.QueryRow(ctx, `SELECT id, user_id, created_at, updated_at FROM carts WHERE user_id = $1`, userID).
		Scan(&cart.ID, &cart.UserID, &cart.CreatedAt, &cart.UpdatedAt)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}

	rows, err := r.db.Pool.Query(ctx, `
		SELECT id, cart_id, membership_id, quantity, unit_price_cents, total_price_cents
		FROM cart_items WHERE cart_id = $1 ORDER BY id`, cart.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to query cart items: %w", err)
	}
	defer rows.Close()

	cart.Items = make([]*models.CartItem, 0)
	for rows.Next() {
		var item models.CartItem
		if err := rows.Scan(&item.ID, &item.CartID, &item.MembershipID, &item.Quantity, &item.UnitPriceCents, &item.TotalPriceCents); err != nil {
			return nil, fmt.Errorf("failed to scan cart item: %w", err)
		}
		cart.Items = append(cart.Items, &item)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating cart item rows: %w", err)
	}

	return &cart, nil
}

// ChangeMembership relinks the user's membership in one transaction. The
// cart is emptied and change.CartItem, when non-nil, becomes its only line.
func (r *CartRepository) ChangeMembership(ctx context.Context, change models.MembershipChange) error {
	return r.db.WithTransaction(ctx, func(tx pgx.Tx) error {
		result, err := tx.Exec(ctx, `
			UPDATE users SET membership_id = $1, membership_start_date = $2, membership_expiry_date = $3, updated_at = NOW()
			WHERE id = $4`,
			change.MembershipID, change.StartDate, change.ExpiryDate, change.UserID)
		if err != nil {
			return database.MapPostgresError(err)
		}
		if result.RowsAffected() == 0 {
			return models.ErrNotFound
		}

		cartID, err := ensureCart(ctx, tx, change.UserID)
		if err != nil {
			return fmt.Errorf("failed to ensure cart: %w", err)
		}

		if _, err := tx.Exec(ctx, `DELETE FROM cart_items WHERE cart_id = $1`, cartID); err != nil {
			return database.MapPostgresError(err)
		}

		if change.CartItem != nil {
			if err := insertCartItem(ctx, tx, cartID, change.CartItem); err != nil {
				return fmt.Errorf("failed to create cart item: %w", err)
			}
		}

		return nil
	})
}

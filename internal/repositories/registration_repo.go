package repositories

import (
	"context"
	"fmt"

	"github.com/BradenHooton/voice-membership/internal/database"
	"github.com/BradenHooton/voice-membership/internal/models"
	"github.com/jackc/pgx/v5"
)

// RegistrationRepository persists a completed signup.
type RegistrationRepository struct {
	db *database.DB
}

func NewRegistrationRepository(db *database.DB) *RegistrationRepository {
	return &RegistrationRepository{db: db}
}

// CreateAccount inserts the user, the children, the cart and the optional
// cart item atomically. Nothing is written if any insert fails.
func (r *RegistrationRepository) CreateAccount(ctx context.Context, account *models.NewAccount) (*models.User, error) {
	var created *models.User

	err := r.db.WithTransaction(ctx, func(tx pgx.Tx) error {
		user, err := insertUser(ctx, tx, account.User)
		if err != nil {
			return fmt.Errorf("failed to create user: %w", err)
		}

		for _, child := range account.Children {
			child.UserID = user.ID
			if _, err := insertChild(ctx, tx, child); err != nil {
				return fmt.Errorf("failed to create child: %w", err)
			}
		}

		cartID, err := ensureCart(ctx, tx, user.ID)
		if err != nil {
			return fmt.Errorf("failed to create cart: %w", err)
		}

		if account.CartItem != nil {
			if err := insertCartItem(ctx, tx, cartID, account.CartItem); err != nil {
				return fmt.Errorf("failed to create cart item: %w", err)
			}
		}

		created = user
		return nil
	})
	if err != nil {
		return nil, err
	}

	return created, nil
}

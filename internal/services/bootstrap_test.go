package services

import (
	"context"
	"testing"

	"github.com/BradenHooton/voice-membership/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnsureAdminUser_SkipsWithoutCredentials(t *testing.T) {
	repo := &MockUserRepository{
		GetByEmailFunc: func(ctx context.Context, email string) (*models.User, error) {
			t.Fatal("repository must not be consulted")
			return nil, nil
		},
	}

	require.NoError(t, EnsureAdminUser(context.Background(), repo, "", "secret", testLogger()))
	require.NoError(t, EnsureAdminUser(context.Background(), repo, "admin@example.com", "", testLogger()))
}

func TestEnsureAdminUser_PromotesExistingMember(t *testing.T) {
	member := NewTestUser("user-1", "admin@example.com")

	var promoted, role string
	repo := &MockUserRepository{
		GetByEmailFunc: func(ctx context.Context, email string) (*models.User, error) { return member, nil },
		UpdateRoleFunc: func(ctx context.Context, id, r string) error {
			promoted, role = id, r
			return nil
		},
	}

	require.NoError(t, EnsureAdminUser(context.Background(), repo, "Admin@Example.com", "ignored", testLogger()))
	assert.Equal(t, "user-1", promoted)
	assert.Equal(t, models.RoleAdmin, role)
}

func TestEnsureAdminUser_ExistingAdminUntouched(t *testing.T) {
	admin := NewTestUser("admin-1", "admin@example.com")
	admin.Role = models.RoleAdmin

	repo := &MockUserRepository{
		GetByEmailFunc: func(ctx context.Context, email string) (*models.User, error) { return admin, nil },
		UpdateRoleFunc: func(ctx context.Context, id, r string) error {
			t.Fatal("admin must not be rewritten")
			return nil
		},
	}

	require.NoError(t, EnsureAdminUser(context.Background(), repo, "admin@example.com", "ignored", testLogger()))
}

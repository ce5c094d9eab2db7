package services

import (
	"bytes"
	"context"
	"testing"

	"github.com/BradenHooton/voice-membership/internal/export"
	"github.com/BradenHooton/voice-membership/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func newAdminFixture() (*AdminService, *MockUserRepository, *MockUnlocker) {
	admin := NewTestUser("admin-1", "admin@example.com")
	admin.FirstName, admin.LastName, admin.Role = "Admin", "User", models.RoleAdmin

	member := NewTestUser("user-1", "member@example.com")
	member.MembershipID = int64Ptr(2)
	member.Lockout = models.LockoutState{FailedAttempts: 5, Locked: true}

	users := &MockUserRepository{
		GetByIDFunc: func(ctx context.Context, id string) (*models.User, error) {
			switch id {
			case admin.ID:
				return admin, nil
			case member.ID:
				return member, nil
			}
			return nil, models.ErrNotFound
		},
		SearchFunc: func(ctx context.Context, f models.UserFilter) ([]*models.User, error) {
			if f.City != "" && f.City != "Vancouver" {
				return []*models.User{}, nil
			}
			return []*models.User{member}, nil
		},
		CountFunc: func(ctx context.Context) (int64, error) { return 2, nil },
	}
	children := &MockChildRepository{
		ListByUserIDFunc: func(ctx context.Context, userID string) ([]*models.Child, error) {
			return []*models.Child{{ID: 1, UserID: userID, Name: "Sam"}}, nil
		},
		ListByUserIDsFunc: func(ctx context.Context, userIDs []string) (map[string][]*models.Child, error) {
			out := map[string][]*models.Child{}
			for _, id := range userIDs {
				out[id] = []*models.Child{{ID: 1, UserID: id, Name: "Sam"}, {ID: 2, UserID: id, Name: "Alex"}}
			}
			return out, nil
		},
	}
	unlocker := &MockUnlocker{}

	return NewAdminService(users, children, testCatalog(), unlocker, testLogger()), users, unlocker
}

func TestAdminService_Dashboard(t *testing.T) {
	svc, _, _ := newAdminFixture()

	resp, err := svc.Dashboard(context.Background(), "admin-1", models.UserFilter{})
	require.NoError(t, err)
	assert.Equal(t, "Admin User", resp.AdminName)
	assert.Equal(t, int64(2), resp.TotalUsers)
	require.Len(t, resp.Users, 1)
	assert.Equal(t, 2, resp.Users[0].ChildrenCount)
	assert.True(t, resp.Users[0].Locked)

	resp, err = svc.Dashboard(context.Background(), "admin-1", models.UserFilter{City: "Calgary"})
	require.NoError(t, err)
	assert.Empty(t, resp.Users)
}

func TestAdminService_GetUserDetails(t *testing.T) {
	svc, _, _ := newAdminFixture()

	details, err := svc.GetUserDetails(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Len(t, details.Children, 1)
	require.NotNil(t, details.Membership)
	assert.Equal(t, "Premium", details.Membership.Name)

	_, err = svc.GetUserDetails(context.Background(), "missing")
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestAdminService_ExportUsers(t *testing.T) {
	svc, _, _ := newAdminFixture()

	var buf bytes.Buffer
	require.NoError(t, svc.ExportUsers(context.Background(), models.UserFilter{}, &buf))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	users, err := f.GetRows(export.UsersSheet)
	require.NoError(t, err)
	require.Len(t, users, 2)
	assert.Equal(t, "user-1", users[1][0])

	children, err := f.GetRows(export.ChildrenSheet)
	require.NoError(t, err)
	assert.Len(t, children, 3)
}

func TestAdminService_UnlockUser(t *testing.T) {
	svc, _, unlocker := newAdminFixture()

	var unlocked string
	unlocker.UnlockFunc = func(ctx context.Context, userID string) error {
		unlocked = userID
		return nil
	}

	require.NoError(t, svc.UnlockUser(context.Background(), "user-1"))
	assert.Equal(t, "user-1", unlocked)
}

package services

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/BradenHooton/voice-membership/internal/export"
	"github.com/BradenHooton/voice-membership/internal/models"
)

// AdminUserRepository is the subset of UserRepository methods needed by AdminService.
type AdminUserRepository interface {
	GetByID(ctx context.Context, id string) (*models.User, error)
	Search(ctx context.Context, f models.UserFilter) ([]*models.User, error)
	Count(ctx context.Context) (int64, error)
}

// AdminChildRepository loads children for one or many accounts.
type AdminChildRepository interface {
	ListByUserID(ctx context.Context, userID string) ([]*models.Child, error)
	ListByUserIDs(ctx context.Context, userIDs []string) (map[string][]*models.Child, error)
}

// Unlocker releases a locked account.
type Unlocker interface {
	Unlock(ctx context.Context, userID string) error
}

// UserSummary is one row of the dashboard listing.
type UserSummary struct {
	*models.User
	ChildrenCount int  `json:"children_count"`
	Locked        bool `json:"account_locked"`
}

// DashboardResponse is the filtered admin listing.
type DashboardResponse struct {
	AdminName  string         `json:"adminName"`
	AdminEmail string         `json:"adminEmail"`
	TotalUsers int64          `json:"totalUsers"`
	Users      []*UserSummary `json:"users"`
}

// AdminService backs the admin dashboard, user detail, export and unlock.
type AdminService struct {
	users       AdminUserRepository
	children    AdminChildRepository
	memberships MembershipCatalog
	lockout     Unlocker
	logger      *slog.Logger
}

func NewAdminService(users AdminUserRepository, children AdminChildRepository, memberships MembershipCatalog, lockout Unlocker, logger *slog.Logger) *AdminService {
	return &AdminService{
		users:       users,
		children:    children,
		memberships: memberships,
		lockout:     lockout,
		logger:      logger,
	}
}

// Dashboard lists users matching f alongside the overall account count.
func (s *AdminService) Dashboard(ctx context.Context, adminID string, f models.UserFilter) (*DashboardResponse, error) {
	admin, err := s.users.GetByID(ctx, adminID)
	if err != nil {
		return nil, err
	}

	total, err := s.users.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count users: %w", err)
	}

	users, children, err := s.search(ctx, f)
	if err != nil {
		return nil, err
	}

	rows := make([]*UserSummary, 0, len(users))
	for _, u := range users {
		rows = append(rows, &UserSummary{User: u, ChildrenCount: len(children[u.ID]), Locked: u.Lockout.Locked})
	}

	return &DashboardResponse{
		AdminName:  admin.FullName(),
		AdminEmail: admin.Email,
		TotalUsers: total,
		Users:      rows,
	}, nil
}

// SearchUsers returns the users matching every criterion set in f.
func (s *AdminService) SearchUsers(ctx context.Context, f models.UserFilter) ([]*models.User, error) {
	users, err := s.users.Search(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("failed to search users: %w", err)
	}
	return users, nil
}

func (s *AdminService) search(ctx context.Context, f models.UserFilter) ([]*models.User, map[string][]*models.Child, error) {
	users, err := s.SearchUsers(ctx, f)
	if err != nil {
		return nil, nil, err
	}

	ids := make([]string, len(users))
	for i, u := range users {
		ids[i] = u.ID
	}

	children, err := s.children.ListByUserIDs(ctx, ids)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load children: %w", err)
	}

	return users, children, nil
}

func (s *AdminService) GetUserDetails(ctx context.Context, id string) (*models.UserDetails, error) {
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	children, err := s.children.ListByUserID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load children: %w", err)
	}

	details := &models.UserDetails{User: user, Children: children}
	if user.MembershipID != nil {
		m, err := s.memberships.Get(ctx, *user.MembershipID)
		if err != nil {
			s.logger.Warn("user references a missing membership",
				slog.String("user_id", id),
				slog.Int64("membership_id", *user.MembershipID),
				slog.Any("error", err))
		} else {
			details.Membership = m
		}
	}

	return details, nil
}

// ExportUsers writes the filtered listing as an xlsx workbook to w.
func (s *AdminService) ExportUsers(ctx context.Context, f models.UserFilter, w io.Writer) error {
	users, children, err := s.search(ctx, f)
	if err != nil {
		return err
	}

	if err := export.WriteUsersWorkbook(w, users, children); err != nil {
		return fmt.Errorf("failed to export users: %w", err)
	}

	s.logger.Info("users exported", slog.Int("count", len(users)))
	return nil
}

func (s *AdminService) UnlockUser(ctx context.Context, id string) error {
	return s.lockout.Unlock(ctx, id)
}

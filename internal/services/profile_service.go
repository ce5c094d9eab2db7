package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/BradenHooton/voice-membership/internal/models"
	pkglogger "github.com/BradenHooton/voice-membership/pkg/logger"
)

// ProfileUserRepository covers the account reads and writes of the profile
// page.
type ProfileUserRepository interface {
	UserRepository
	UpdateProfile(ctx context.Context, user *models.User) (*models.User, error)
}

// ChildRepository defines the child profile operations scoped to an owner.
type ChildRepository interface {
	Create(ctx context.Context, c *models.Child) (*models.Child, error)
	ListByUserID(ctx context.Context, userID string) ([]*models.Child, error)
	GetOwned(ctx context.Context, userID string, id int64) (*models.Child, error)
	Update(ctx context.Context, c *models.Child) (*models.Child, error)
	Delete(ctx context.Context, userID string, id int64) error
}

// MembershipStatusReader labels an account's tier.
type MembershipStatusReader interface {
	Status(ctx context.Context, user *models.User) (*MembershipStatus, error)
}

const (
	notProvided  = "Not provided"
	childDOBForm = "2006-01-02"
)

// UpdateProfileInput is the profile edit form.
type UpdateProfileInput struct {
	FirstName  string `form:"firstName" json:"firstName" validate:"required,max=100"`
	MiddleName string `form:"middleName" json:"middleName" validate:"max=100"`
	LastName   string `form:"lastName" json:"lastName" validate:"required,max=100"`
	Email      string `form:"email" json:"email" validate:"required,email,max=255"`
	Phone      string `form:"phone" json:"phone" validate:"required,ca_phone"`
	Address    string `form:"address" json:"address" validate:"max=255"`
	City       string `form:"city" json:"city" validate:"max=100"`
	Province   string `form:"province" json:"province" validate:"max=100"`
	PostalCode string `form:"postalCode" json:"postalCode" validate:"omitempty,ca_postal"`
}

// ChildInput is one child row as submitted by a form. Age and date of birth
// are optional.
type ChildInput struct {
	Name            string `form:"name" json:"name" validate:"max=100"`
	Age             string `form:"age" json:"age" validate:"omitempty,number"`
	DateOfBirth     string `form:"dateOfBirth" json:"dateOfBirth" validate:"omitempty,datetime=2006-01-02"`
	HearingLossType string `form:"hearingLossType" json:"hearingLossType" validate:"max=100"`
	EquipmentType   string `form:"equipmentType" json:"equipmentType" validate:"max=100"`
	SiblingsNames   string `form:"siblingsNames" json:"siblingsNames" validate:"max=255"`
	ChapterLocation string `form:"chapterLocation" json:"chapterLocation" validate:"max=100"`
}

// Child converts the row, rejecting malformed numbers and dates with
// models.ErrBadRequest.
func (in ChildInput) Child() (models.Child, error) {
	c := models.Child{
		Name:            strings.TrimSpace(in.Name),
		HearingLossType: strings.TrimSpace(in.HearingLossType),
		EquipmentType:   strings.TrimSpace(in.EquipmentType),
		SiblingsNames:   strings.TrimSpace(in.SiblingsNames),
		ChapterLocation: strings.TrimSpace(in.ChapterLocation),
	}

	if s := strings.TrimSpace(in.Age); s != "" {
		age, err := strconv.Atoi(s)
		if err != nil || age < 0 || age > 30 {
			return models.Child{}, fmt.Errorf("%w: invalid age %q", models.ErrBadRequest, s)
		}
		c.Age = &age
	}

	if s := strings.TrimSpace(in.DateOfBirth); s != "" {
		dob, err := time.Parse(childDOBForm, s)
		if err != nil {
			return models.Child{}, fmt.Errorf("%w: invalid date of birth %q", models.ErrBadRequest, s)
		}
		c.DateOfBirth = &dob
	}

	return c, nil
}

// ProfileView is the member's profile page.
type ProfileView struct {
	User        *models.User      `json:"user"`
	Name        string            `json:"userName"`
	Email       string            `json:"userEmail"`
	Phone       string            `json:"userPhone"`
	Address     string            `json:"userAddress"`
	PostalCode  string            `json:"userPostalCode"`
	MemberSince string            `json:"memberSince"`
	Children    []*models.Child   `json:"children"`
	Membership  *MembershipStatus `json:"membership"`
}

func orNotProvided(s string) string {
	if strings.TrimSpace(s) == "" {
		return notProvided
	}
	return s
}

// ProfileService serves a member's own account and child profiles.
type ProfileService struct {
	users       ProfileUserRepository
	children    ChildRepository
	memberships MembershipStatusReader
	logger      *slog.Logger
	auditLogger *pkglogger.AuditLogger
}

func NewProfileService(users ProfileUserRepository, children ChildRepository, memberships MembershipStatusReader, logger *slog.Logger, auditLogger *pkglogger.AuditLogger) *ProfileService {
	return &ProfileService{
		users:       users,
		children:    children,
		memberships: memberships,
		logger:      logger,
		auditLogger: auditLogger,
	}
}

func (s *ProfileService) GetProfile(ctx context.Context, userID string) (*ProfileView, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	children, err := s.children.ListByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list children: %w", err)
	}

	status, err := s.memberships.Status(ctx, user)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve membership: %w", err)
	}

	memberSince := "Recently"
	if !user.CreatedAt.IsZero() {
		memberSince = user.CreatedAt.Format(membershipDateForm)
	}

	return &ProfileView{
		User:        user,
		Name:        user.FullName(),
		Email:       user.Email,
		Phone:       orNotProvided(user.Phone),
		Address:     orNotProvided(user.Address),
		PostalCode:  orNotProvided(user.PostalCode),
		MemberSince: memberSince,
		Children:    children,
		Membership:  status,
	}, nil
}

// UpdateProfile saves the edit form. Moving to an email another account
// already uses is refused with models.ErrEmailExists.
func (s *ProfileService) UpdateProfile(ctx context.Context, userID string, in UpdateProfileInput) (*models.User, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	email := models.NormalizeEmail(in.Email)
	if email != models.NormalizeEmail(user.Email) {
		other, err := s.users.GetByEmail(ctx, email)
		switch {
		case err == nil && other.ID != userID:
			return nil, models.ErrEmailExists
		case err != nil && !errors.Is(err, models.ErrNotFound):
			return nil, fmt.Errorf("failed to check email: %w", err)
		}
	}

	user.FirstName = strings.TrimSpace(in.FirstName)
	user.MiddleName = strings.TrimSpace(in.MiddleName)
	user.LastName = strings.TrimSpace(in.LastName)
	user.Email = email
	user.Phone = strings.TrimSpace(in.Phone)
	user.Address = strings.TrimSpace(in.Address)
	user.City = strings.TrimSpace(in.City)
	user.Province = strings.TrimSpace(in.Province)
	user.PostalCode = strings.ToUpper(strings.TrimSpace(in.PostalCode))

	updated, err := s.users.UpdateProfile(ctx, user)
	if err != nil {
		if errors.Is(err, models.ErrConflict) {
			return nil, models.ErrEmailExists
		}
		return nil, fmt.Errorf("failed to update profile: %w", err)
	}

	s.auditLogger.LogAccountAction(ctx, pkglogger.EventProfileUpdated, userID, nil)
	return updated, nil
}

func (s *ProfileService) AddChild(ctx context.Context, userID string, in ChildInput) (*models.Child, error) {
	c, err := in.Child()
	if err != nil {
		return nil, err
	}
	if c.Name == "" {
		return nil, fmt.Errorf("%w: child name is required", models.ErrBadRequest)
	}

	c.UserID = userID
	return s.children.Create(ctx, &c)
}

// UpdateChild edits a child the caller owns. Children of other accounts
// read as models.ErrNotFound.
func (s *ProfileService) UpdateChild(ctx context.Context, userID string, childID int64, in ChildInput) (*models.Child, error) {
	if _, err := s.children.GetOwned(ctx, userID, childID); err != nil {
		return nil, err
	}

	c, err := in.Child()
	if err != nil {
		return nil, err
	}
	if c.Name == "" {
		return nil, fmt.Errorf("%w: child name is required", models.ErrBadRequest)
	}

	c.ID, c.UserID = childID, userID
	return s.children.Update(ctx, &c)
}

func (s *ProfileService) DeleteChild(ctx context.Context, userID string, childID int64) error {
	return s.children.Delete(ctx, userID, childID)
}

package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/BradenHooton/voice-membership/internal/events"
	"github.com/BradenHooton/voice-membership/internal/metrics"
	"github.com/BradenHooton/voice-membership/internal/models"
	pkglogger "github.com/BradenHooton/voice-membership/pkg/logger"
	"github.com/hashicorp/golang-lru/v2/expirable"
)

// MembershipRepository reads the tier catalog.
type MembershipRepository interface {
	GetByID(ctx context.Context, id int64) (*models.Membership, error)
	ListActive(ctx context.Context) ([]*models.Membership, error)
}

// MembershipChanger relinks an account to another tier and rewrites its
// cart in one transaction.
type MembershipChanger interface {
	ChangeMembership(ctx context.Context, change models.MembershipChange) error
}

// Cancellation messages shown on the profile page.
const (
	CancelUserNotFound      = "User not found"
	CancelNoActive          = "No active membership to cancel"
	CancelFreeNotAllowed    = "Free memberships cannot be cancelled. You can only upgrade to a paid membership."
	cancelSucceededTemplate = "Successfully cancelled %s membership"
)

// Membership status labels.
const (
	StatusPaid         = "Paid"
	StatusFree         = "Free"
	StatusNone         = "None"
	NoMembershipYet    = "No Membership Yet"
	NoExpiry           = "No expiry"
	membershipDateForm = "January 02, 2006"
)

const (
	catalogCacheSize = 64
	catalogCacheTTL  = 5 * time.Minute
	activeCatalogKey = "active"
)

// MembershipStatus summarizes an account's tier for the profile page.
type MembershipStatus struct {
	Status       string             `json:"membershipStatus"`
	Type         string             `json:"membershipType"`
	ExpiryDate   string             `json:"membershipExpiryDate"`
	ShowBenefits bool               `json:"showBenefits"`
	Benefit      string             `json:"membershipBenefit,omitempty"`
	Membership   *models.Membership `json:"membership,omitempty"`
}

// CancellationResult is what the cancel page reports back.
type CancellationResult struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// UpgradeOptions lists the paid tiers a free member can move to.
type UpgradeOptions struct {
	Current *models.Membership   `json:"currentMembership"`
	Options []*models.Membership `json:"paidMemberships"`
}

// MembershipService owns the tier catalog and the upgrade and
// cancellation flows.
type MembershipService struct {
	repo        MembershipRepository
	users       UserRepository
	changer     MembershipChanger
	mailer      Mailer
	publisher   events.Publisher
	logger      *slog.Logger
	auditLogger *pkglogger.AuditLogger
	byID        *expirable.LRU[int64, *models.Membership]
	lists       *expirable.LRU[string, []*models.Membership]
	now         func() time.Time
}

func NewMembershipService(repo MembershipRepository, users UserRepository, changer MembershipChanger, mailer Mailer, publisher events.Publisher, logger *slog.Logger, auditLogger *pkglogger.AuditLogger) *MembershipService {
	return &MembershipService{
		repo:        repo,
		users:       users,
		changer:     changer,
		mailer:      mailer,
		publisher:   publisher,
		logger:      logger,
		auditLogger: auditLogger,
		byID:        expirable.NewLRU[int64, *models.Membership](catalogCacheSize, nil, catalogCacheTTL),
		lists:       expirable.NewLRU[string, []*models.Membership](1, nil, catalogCacheTTL),
		now:         time.Now,
	}
}

// ListActive returns the active tiers in display order.
func (s *MembershipService) ListActive(ctx context.Context) ([]*models.Membership, error) {
	if list, ok := s.lists.Get(activeCatalogKey); ok {
		return list, nil
	}

	list, err := s.repo.ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list memberships: %w", err)
	}

	s.lists.Add(activeCatalogKey, list)
	return list, nil
}

// Get resolves a tier by id, active or not.
func (s *MembershipService) Get(ctx context.Context, id int64) (*models.Membership, error) {
	if m, ok := s.byID.Get(id); ok {
		return m, nil
	}

	m, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	s.byID.Add(id, m)
	return m, nil
}

// InvalidateCache drops cached catalog entries after the catalog changes.
func (s *MembershipService) InvalidateCache() {
	s.byID.Purge()
	s.lists.Purge()
}

func (s *MembershipService) paidTiers(ctx context.Context) ([]*models.Membership, error) {
	all, err := s.ListActive(ctx)
	if err != nil {
		return nil, err
	}

	paid := make([]*models.Membership, 0, len(all))
	for _, m := range all {
		if !m.IsFree {
			paid = append(paid, m)
		}
	}
	return paid, nil
}

// CurrentMembership returns the user's tier, or nil when the account has
// none.
func (s *MembershipService) CurrentMembership(ctx context.Context, userID string) (*models.Membership, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.membershipOf(ctx, user)
}

func (s *MembershipService) membershipOf(ctx context.Context, user *models.User) (*models.Membership, error) {
	if user.MembershipID == nil {
		return nil, nil
	}

	m, err := s.Get(ctx, *user.MembershipID)
	if errors.Is(err, models.ErrNotFound) {
		return nil, nil
	}
	return m, err
}

// Status describes the user's tier the way the profile page labels it.
func (s *MembershipService) Status(ctx context.Context, user *models.User) (*MembershipStatus, error) {
	m, err := s.membershipOf(ctx, user)
	if err != nil {
		return nil, err
	}

	switch {
	case m == nil:
		return &MembershipStatus{Status: StatusNone, Type: NoMembershipYet, ExpiryDate: "-"}, nil
	case m.IsFree:
		benefit := m.Description
		if benefit == "" {
			benefit = "-"
		}
		return &MembershipStatus{Status: StatusFree, Type: m.Name, ExpiryDate: NoExpiry, ShowBenefits: true, Benefit: benefit, Membership: m}, nil
	default:
		expiry := "-"
		if user.MembershipExpiryDate != nil {
			expiry = user.MembershipExpiryDate.Format(membershipDateForm)
		}
		return &MembershipStatus{Status: StatusPaid, Type: m.Name, ExpiryDate: expiry, Membership: m}, nil
	}
}

// UpgradeOptions lists paid tiers for a free member. Paid members and
// accounts without a tier are not eligible.
func (s *MembershipService) UpgradeOptions(ctx context.Context, userID string) (*UpgradeOptions, error) {
	current, err := s.CurrentMembership(ctx, userID)
	if err != nil {
		return nil, err
	}
	if current == nil || !current.IsFree {
		return nil, models.ErrNotEligibleForUpgrade
	}

	paid, err := s.paidTiers(ctx)
	if err != nil {
		return nil, err
	}

	return &UpgradeOptions{Current: current, Options: paid}, nil
}

// SelectUpgrade validates the chosen tier and returns it for the checkout
// page.
func (s *MembershipService) SelectUpgrade(ctx context.Context, userID string, membershipID int64) (*models.Membership, error) {
	current, err := s.CurrentMembership(ctx, userID)
	if err != nil {
		return nil, err
	}
	if current == nil || !current.IsFree {
		return nil, models.ErrNotEligibleForUpgrade
	}

	target, err := s.Get(ctx, membershipID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, models.ErrInvalidMembership
		}
		return nil, err
	}
	if target.IsFree || !target.Active {
		return nil, models.ErrInvalidMembership
	}

	return target, nil
}

// CompleteUpgrade moves a free member onto a paid tier for one year.
func (s *MembershipService) CompleteUpgrade(ctx context.Context, userID string, membershipID int64, payment models.PaymentDetails) (*models.Membership, error) {
	target, err := s.SelectUpgrade(ctx, userID, membershipID)
	if err != nil {
		return nil, err
	}
	if !payment.Complete() {
		return nil, models.ErrPaymentIncomplete
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	start := s.now()
	expiry := start.AddDate(1, 0, 0)
	err = s.changer.ChangeMembership(ctx, models.MembershipChange{
		UserID:       userID,
		MembershipID: &target.ID,
		StartDate:    &start,
		ExpiryDate:   &expiry,
		CartItem:     models.NewCartItem(target),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to upgrade membership: %w", err)
	}

	metrics.MembershipChangesTotal.WithLabelValues("upgrade").Inc()
	s.auditLogger.LogAccountAction(ctx, pkglogger.EventMembership, userID, map[string]string{
		"change":     "upgrade",
		"membership": target.Name,
	})
	events.Emit(ctx, s.publisher, s.logger, events.New(events.MembershipUpgraded, userID, map[string]string{
		"membership":  target.Name,
		"expiry_date": expiry.UTC().Format(time.RFC3339),
	}))

	receipt := UpgradeReceipt{
		Name:           user.FullName(),
		MembershipName: target.Name,
		Price:          target.PriceDisplay(),
		ExpiryDate:     expiry,
	}
	if err := s.mailer.SendUpgradeConfirmation(ctx, user.Email, receipt); err != nil {
		s.logger.Warn("failed to send upgrade confirmation", slog.String("user_id", userID), slog.Any("error", err))
	}

	return target, nil
}

// CanCancel reports whether the user holds a paid tier.
func (s *MembershipService) CanCancel(ctx context.Context, userID string) (bool, error) {
	current, err := s.CurrentMembership(ctx, userID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return current != nil && !current.IsFree, nil
}

// Cancel drops a paid tier. The account falls back to the first active free
// tier, or to no tier when none exists. Refusals are reported in the result,
// not as errors.
func (s *MembershipService) Cancel(ctx context.Context, userID string) (*CancellationResult, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return &CancellationResult{Message: CancelUserNotFound}, nil
		}
		return nil, err
	}

	current, err := s.membershipOf(ctx, user)
	if err != nil {
		return nil, err
	}
	if current == nil {
		return &CancellationResult{Message: CancelNoActive}, nil
	}
	if current.IsFree {
		return &CancellationResult{Message: CancelFreeNotAllowed}, nil
	}

	change := models.MembershipChange{UserID: userID}
	if free, err := s.firstFreeTier(ctx); err != nil {
		return nil, err
	} else if free != nil {
		start := s.now()
		change.MembershipID = &free.ID
		change.StartDate = &start
	}

	if err := s.changer.ChangeMembership(ctx, change); err != nil {
		return nil, fmt.Errorf("failed to cancel membership: %w", err)
	}

	metrics.MembershipChangesTotal.WithLabelValues("cancel").Inc()
	s.auditLogger.LogAccountAction(ctx, pkglogger.EventMembership, userID, map[string]string{
		"change":     "cancel",
		"membership": current.Name,
	})
	events.Emit(ctx, s.publisher, s.logger, events.New(events.MembershipCancelled, userID, map[string]string{
		"membership": current.Name,
	}))

	return &CancellationResult{Success: true, Message: fmt.Sprintf(cancelSucceededTemplate, current.Name)}, nil
}

func (s *MembershipService) firstFreeTier(ctx context.Context) (*models.Membership, error) {
	all, err := s.ListActive(ctx)
	if err != nil {
		return nil, err
	}
	for _, m := range all {
		if m.IsFree {
			return m, nil
		}
	}
	return nil, nil
}

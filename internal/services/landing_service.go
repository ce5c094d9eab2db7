package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/BradenHooton/voice-membership/internal/models"
)

// LandingRepository reads and seeds the public catalog and page content.
type LandingRepository interface {
	ListActive(ctx context.Context) ([]*models.Membership, error)
	CreateIfMissing(ctx context.Context, m *models.Membership) (bool, error)
	ListActiveBenefits(ctx context.Context) ([]*models.MembershipBenefit, error)
	CreateBenefitIfMissing(ctx context.Context, b *models.MembershipBenefit) (bool, error)
	GetContent(ctx context.Context, key string) (*models.LandingPageContent, error)
	SetContentIfMissing(ctx context.Context, c *models.LandingPageContent) (bool, error)
}

// CatalogCache is dropped after seeding changes the catalog.
type CatalogCache interface {
	InvalidateCache()
}

const DefaultTagline = "Empowering families of children who are Deaf and Hard of Hearing"

var (
	defaultMemberships = []models.Membership{
		{
			Name:         "Free",
			Description:  "Get started with VOICE community",
			Features:     "Basic access\nCommunity forum access\nWeekly newsletters\nNo voting rights",
			IsFree:       true,
			DisplayOrder: 1,
			Active:       true,
		},
		{
			Name:        "Premium",
			Description: "Support VOICE and unlock premium benefits",
			PriceCents:  2000,
			Features: "Membership with full voting right\n" +
				"Includes two adults and any minor dependents in the same household\n" +
				"Exclusive webinars\n" +
				"Updated on events and kept informed",
			DisplayOrder: 2,
			Active:       true,
		},
	}

	defaultBenefits = []models.MembershipBenefit{
		{Title: "Community Network", Description: "Connect with like-minded professionals and innovators", Icon: "fa-users", DisplayOrder: 1, Active: true},
		{Title: "Exclusive Content", Description: "Access to premium articles, webinars, and resources", Icon: "fa-book", DisplayOrder: 2, Active: true},
		{Title: "Career Opportunities", Description: "Find jobs, internships, and collaboration opportunities", Icon: "fa-briefcase", DisplayOrder: 3, Active: true},
		{Title: "Skill Development", Description: "Participate in workshops and training programs", Icon: "fa-graduation-cap", DisplayOrder: 4, Active: true},
		{Title: "24/7 Support", Description: "Get help when you need it from our support team", Icon: "fa-headset", DisplayOrder: 5, Active: true},
	}
)

// LandingPageData is the public landing page.
type LandingPageData struct {
	Tagline        string                      `json:"tagline"`
	Memberships    []*models.Membership        `json:"memberships"`
	Benefits       []*models.MembershipBenefit `json:"benefits"`
	IsUserLoggedIn bool                        `json:"isUserLoggedIn"`
}

// LandingService serves the landing page and seeds its default content.
type LandingService struct {
	repo   LandingRepository
	cache  CatalogCache
	logger *slog.Logger
}

func NewLandingService(repo LandingRepository, cache CatalogCache, logger *slog.Logger) *LandingService {
	return &LandingService{repo: repo, cache: cache, logger: logger}
}

func (s *LandingService) PageData(ctx context.Context, loggedIn bool) (*LandingPageData, error) {
	memberships, err := s.repo.ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list memberships: %w", err)
	}

	benefits, err := s.repo.ListActiveBenefits(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list benefits: %w", err)
	}

	tagline := DefaultTagline
	content, err := s.repo.GetContent(ctx, models.LandingKeyTagline)
	switch {
	case err == nil && content.Active:
		tagline = content.Value
	case err != nil && !errors.Is(err, models.ErrNotFound):
		return nil, fmt.Errorf("failed to load tagline: %w", err)
	}

	return &LandingPageData{
		Tagline:        tagline,
		Memberships:    memberships,
		Benefits:       benefits,
		IsUserLoggedIn: loggedIn,
	}, nil
}

// Initialize seeds the default tiers, benefits and tagline. Existing rows
// are left untouched, so it is safe to run on every start.
func (s *LandingService) Initialize(ctx context.Context) error {
	created := 0

	for i := range defaultMemberships {
		m := defaultMemberships[i]
		ok, err := s.repo.CreateIfMissing(ctx, &m)
		if err != nil {
			return fmt.Errorf("failed to seed membership %q: %w", m.Name, err)
		}
		if ok {
			created++
		}
	}

	for i := range defaultBenefits {
		b := defaultBenefits[i]
		ok, err := s.repo.CreateBenefitIfMissing(ctx, &b)
		if err != nil {
			return fmt.Errorf("failed to seed benefit %q: %w", b.Title, err)
		}
		if ok {
			created++
		}
	}

	ok, err := s.repo.SetContentIfMissing(ctx, &models.LandingPageContent{
		Key:    models.LandingKeyTagline,
		Value:  DefaultTagline,
		Active: true,
	})
	if err != nil {
		return fmt.Errorf("failed to seed tagline: %w", err)
	}
	if ok {
		created++
	}

	if created > 0 {
		if s.cache != nil {
			s.cache.InvalidateCache()
		}
		s.logger.Info("landing page data initialized", slog.Int("rows_created", created))
	}

	return nil
}

package services

import (
	"context"
	"errors"
	"testing"

	"github.com/BradenHooton/voice-membership/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLandingService_InitializeIsIdempotent(t *testing.T) {
	repo := &MockLandingRepository{}
	cache := &MockCatalogCache{}
	svc := NewLandingService(repo, cache, testLogger())

	require.NoError(t, svc.Initialize(context.Background()))
	require.Len(t, repo.Memberships, 2)
	assert.Len(t, repo.Benefits, 5)
	assert.Equal(t, DefaultTagline, repo.Content[models.LandingKeyTagline].Value)
	assert.Equal(t, 1, cache.Invalidations)

	free, premium := repo.Memberships[0], repo.Memberships[1]
	assert.True(t, free.IsFree)
	assert.Equal(t, 1, free.DisplayOrder)
	assert.Equal(t, int64(2000), premium.PriceCents)
	assert.Equal(t, "$20.00", premium.PriceDisplay())

	require.NoError(t, svc.Initialize(context.Background()))
	assert.Len(t, repo.Memberships, 2)
	assert.Len(t, repo.Benefits, 5)
	assert.Equal(t, 1, cache.Invalidations, "nothing new, nothing to invalidate")
}

func TestLandingService_PageData(t *testing.T) {
	repo := &MockLandingRepository{
		Memberships: []*models.Membership{freeTier(), premiumTier()},
		Content: map[string]*models.LandingPageContent{
			models.LandingKeyTagline: {Key: models.LandingKeyTagline, Value: "Custom tagline", Active: true},
		},
	}
	svc := NewLandingService(repo, nil, testLogger())

	data, err := svc.PageData(context.Background(), true)
	require.NoError(t, err)
	assert.Equal(t, "Custom tagline", data.Tagline)
	assert.Len(t, data.Memberships, 2)
	assert.True(t, data.IsUserLoggedIn)

	repo.Content[models.LandingKeyTagline].Active = false
	data, err = svc.PageData(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, DefaultTagline, data.Tagline)
}

func TestLandingService_PageDataError(t *testing.T) {
	repo := &MockLandingRepository{ListErr: errors.New("db down")}
	svc := NewLandingService(repo, nil, testLogger())

	_, err := svc.PageData(context.Background(), false)
	assert.Error(t, err)
}

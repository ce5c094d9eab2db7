package handlers_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/BradenHooton/voice-membership/internal/handlers"
	"github.com/BradenHooton/voice-membership/internal/models"
	"github.com/BradenHooton/voice-membership/internal/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var premium = &models.Membership{ID: 2, Name: "Premium", PriceCents: 2000, Active: true}

func TestMembershipHandler_UpgradeOptions(t *testing.T) {
	t.Run("paid member", func(t *testing.T) {
		h := handlers.NewMembershipHandler(&handlers.MockMembershipService{}, handlers.DiscardLogger())
		w := httptest.NewRecorder()
		h.UpgradeOptions(w, memberRequest(httptest.NewRequest(http.MethodGet, "/profile/upgrade-membership", nil)))
		handlers.AssertRedirect(t, w, "/profile?error=not_eligible_for_upgrade")
	})

	t.Run("load failure", func(t *testing.T) {
		h := handlers.NewMembershipHandler(&handlers.MockMembershipService{
			UpgradeOptionsFunc: func(ctx context.Context, userID string) (*services.UpgradeOptions, error) {
				return nil, errors.New("db down")
			},
		}, handlers.DiscardLogger())
		w := httptest.NewRecorder()
		h.UpgradeOptions(w, memberRequest(httptest.NewRequest(http.MethodGet, "/profile/upgrade-membership", nil)))
		handlers.AssertRedirect(t, w, "/profile?error=upgrade_load_failed")
	})

	t.Run("free member", func(t *testing.T) {
		h := handlers.NewMembershipHandler(&handlers.MockMembershipService{
			UpgradeOptionsFunc: func(ctx context.Context, userID string) (*services.UpgradeOptions, error) {
				return &services.UpgradeOptions{Options: []*models.Membership{premium}}, nil
			},
		}, handlers.DiscardLogger())
		w := httptest.NewRecorder()
		h.UpgradeOptions(w, memberRequest(httptest.NewRequest(http.MethodGet, "/profile/upgrade-membership", nil)))

		var opts services.UpgradeOptions
		handlers.AssertJSONResponse(t, w, http.StatusOK, &opts)
		require.Len(t, opts.Options, 1)
		assert.Equal(t, "Premium", opts.Options[0].Name)
	})
}

func TestMembershipHandler_SelectUpgrade(t *testing.T) {
	t.Run("free or unknown tier", func(t *testing.T) {
		h := handlers.NewMembershipHandler(&handlers.MockMembershipService{}, handlers.DiscardLogger())
		w := httptest.NewRecorder()
		h.SelectUpgrade(w, memberRequest(handlers.NewFormRequest("/profile/upgrade-membership/select", url.Values{"membershipId": {"1"}})))
		handlers.AssertRedirect(t, w, "/profile/upgrade-membership?error=invalid_membership")
	})

	t.Run("non numeric id", func(t *testing.T) {
		h := handlers.NewMembershipHandler(&handlers.MockMembershipService{}, handlers.DiscardLogger())
		w := httptest.NewRecorder()
		h.SelectUpgrade(w, memberRequest(handlers.NewFormRequest("/profile/upgrade-membership/select", url.Values{"membershipId": {"gold"}})))
		handlers.AssertRedirect(t, w, "/profile/upgrade-membership?error=invalid_membership")
	})

	t.Run("paid tier", func(t *testing.T) {
		h := handlers.NewMembershipHandler(&handlers.MockMembershipService{
			SelectUpgradeFunc: func(ctx context.Context, userID string, id int64) (*models.Membership, error) {
				return premium, nil
			},
		}, handlers.DiscardLogger())
		w := httptest.NewRecorder()
		h.SelectUpgrade(w, memberRequest(handlers.NewFormRequest("/profile/upgrade-membership/select", url.Values{"membershipId": {"2"}})))

		var view handlers.UpgradeCheckoutView
		handlers.AssertJSONResponse(t, w, http.StatusOK, &view)
		assert.Equal(t, "$20.00", view.TotalPrice)
		assert.Equal(t, int64(2), view.Membership.ID)
	})
}

func TestMembershipHandler_CompleteUpgrade(t *testing.T) {
	payment := url.Values{
		"membershipId":   {"2"},
		"cardNumber":     {"4111111111111111"},
		"cardHolderName": {"Ada Lovelace"},
		"expiryMonth":    {"01"},
		"expiryYear":     {"2031"},
		"cvv":            {"999"},
	}

	t.Run("success", func(t *testing.T) {
		var got models.PaymentDetails
		var gotID int64
		h := handlers.NewMembershipHandler(&handlers.MockMembershipService{
			CompleteUpgradeFunc: func(ctx context.Context, userID string, id int64, p models.PaymentDetails) (*models.Membership, error) {
				gotID, got = id, p
				return premium, nil
			},
		}, handlers.DiscardLogger())

		w := httptest.NewRecorder()
		h.CompleteUpgrade(w, memberRequest(handlers.NewFormRequest("/profile/upgrade-membership/checkout", payment)))

		handlers.AssertRedirect(t, w, "/profile?upgraded=true")
		assert.Equal(t, int64(2), gotID)
		assert.Equal(t, "999", got.CVV)
	})

	t.Run("missing payment fields", func(t *testing.T) {
		h := handlers.NewMembershipHandler(&handlers.MockMembershipService{
			CompleteUpgradeFunc: func(ctx context.Context, userID string, id int64, p models.PaymentDetails) (*models.Membership, error) {
				return nil, models.ErrPaymentIncomplete
			},
		}, handlers.DiscardLogger())

		w := httptest.NewRecorder()
		h.CompleteUpgrade(w, memberRequest(handlers.NewFormRequest("/profile/upgrade-membership/checkout", url.Values{"membershipId": {"2"}})))

		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	})

	t.Run("already paid", func(t *testing.T) {
		h := handlers.NewMembershipHandler(&handlers.MockMembershipService{
			CompleteUpgradeFunc: func(ctx context.Context, userID string, id int64, p models.PaymentDetails) (*models.Membership, error) {
				return nil, models.ErrNotEligibleForUpgrade
			},
		}, handlers.DiscardLogger())

		w := httptest.NewRecorder()
		h.CompleteUpgrade(w, memberRequest(handlers.NewFormRequest("/profile/upgrade-membership/checkout", payment)))

		handlers.AssertRedirect(t, w, "/profile?error=not_eligible_for_upgrade")
	})
}

func TestMembershipHandler_CancelPage(t *testing.T) {
	h := handlers.NewMembershipHandler(&handlers.MockMembershipService{
		CanCancelFunc: func(ctx context.Context, userID string) (bool, error) { return true, nil },
		CurrentMembershipFunc: func(ctx context.Context, userID string) (*models.Membership, error) {
			return premium, nil
		},
	}, handlers.DiscardLogger())

	w := httptest.NewRecorder()
	h.CancelPage(w, memberRequest(httptest.NewRequest(http.MethodGet, "/profile/membership/cancel", nil)))

	var view handlers.CancelPageView
	handlers.AssertJSONResponse(t, w, http.StatusOK, &view)
	assert.True(t, view.CanCancel)
	require.NotNil(t, view.Membership)
	assert.Equal(t, "Premium", view.Membership.Name)
}

func TestMembershipHandler_Cancel(t *testing.T) {
	tests := []struct {
		name         string
		result       *services.CancellationResult
		err          error
		wantLocation string
	}{
		{
			name:         "paid membership",
			result:       &services.CancellationResult{Success: true, Message: "Successfully cancelled Premium membership"},
			wantLocation: "/profile?cancelled=true&message=Successfully+cancelled+Premium+membership",
		},
		{
			name:         "nothing to cancel",
			result:       &services.CancellationResult{Message: services.CancelNoActive},
			wantLocation: "/profile?cancelled=false&message=No+active+membership+to+cancel",
		},
		{
			name:         "failure",
			err:          errors.New("tx aborted"),
			wantLocation: "/profile?error=cancel_failed",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := handlers.NewMembershipHandler(&handlers.MockMembershipService{
				CancelFunc: func(ctx context.Context, userID string) (*services.CancellationResult, error) {
					return tt.result, tt.err
				},
			}, handlers.DiscardLogger())

			w := httptest.NewRecorder()
			h.Cancel(w, memberRequest(handlers.NewFormRequest("/profile/membership/cancel", url.Values{})))

			handlers.AssertRedirect(t, w, tt.wantLocation)
		})
	}
}

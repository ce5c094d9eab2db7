package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/BradenHooton/voice-membership/internal/models"
	"github.com/BradenHooton/voice-membership/internal/services"
	pkghttp "github.com/BradenHooton/voice-membership/pkg/http"
)

// MembershipServiceInterface covers upgrade and cancellation.
type MembershipServiceInterface interface {
	UpgradeOptions(ctx context.Context, userID string) (*services.UpgradeOptions, error)
	SelectUpgrade(ctx context.Context, userID string, membershipID int64) (*models.Membership, error)
	CompleteUpgrade(ctx context.Context, userID string, membershipID int64, payment models.PaymentDetails) (*models.Membership, error)
	CanCancel(ctx context.Context, userID string) (bool, error)
	CurrentMembership(ctx context.Context, userID string) (*models.Membership, error)
	Cancel(ctx context.Context, userID string) (*services.CancellationResult, error)
}

const upgradePath = "/profile/upgrade-membership"

type MembershipHandler struct {
	service MembershipServiceInterface
	logger  *slog.Logger
}

func NewMembershipHandler(service MembershipServiceInterface, logger *slog.Logger) *MembershipHandler {
	return &MembershipHandler{service: service, logger: logger}
}

// UpgradeCheckoutView is the payment page for a chosen paid tier.
type UpgradeCheckoutView struct {
	Membership *models.Membership `json:"selectedMembership"`
	TotalPrice string             `json:"totalPrice"`
}

// CancelPageView is the cancellation confirmation page.
type CancelPageView struct {
	CanCancel  bool               `json:"canCancel"`
	Membership *models.Membership `json:"currentMembership,omitempty"`
}

type upgradeCheckoutForm struct {
	MembershipID   string `form:"membershipId" json:"membershipId"`
	CardNumber     string `form:"cardNumber" json:"cardNumber"`
	CardHolderName string `form:"cardHolderName" json:"cardHolderName"`
	ExpiryMonth    string `form:"expiryMonth" json:"expiryMonth"`
	ExpiryYear     string `form:"expiryYear" json:"expiryYear"`
	CVV            string `form:"cvv" json:"cvv"`
}

func (f upgradeCheckoutForm) payment() models.PaymentDetails {
	return models.PaymentDetails{
		CardNumber:     f.CardNumber,
		CardHolderName: f.CardHolderName,
		ExpiryMonth:    f.ExpiryMonth,
		ExpiryYear:     f.ExpiryYear,
		CVV:            f.CVV,
	}
}

func parseMembershipID(s string) (int64, bool) {
	id, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	return id, err == nil && id > 0
}

// UpgradeOptions handles GET /profile/upgrade-membership
func (h *MembershipHandler) UpgradeOptions(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(w, r)
	if !ok {
		return
	}

	opts, err := h.service.UpgradeOptions(r.Context(), userID)
	if err != nil {
		if errors.Is(err, models.ErrNotEligibleForUpgrade) {
			pkghttp.SeeOther(w, r, profilePath, pkghttp.Flag("error", "not_eligible_for_upgrade"))
			return
		}
		h.logger.Error("failed to load upgrade options", slog.String("user_id", userID), slog.Any("error", err))
		pkghttp.SeeOther(w, r, profilePath, pkghttp.Flag("error", "upgrade_load_failed"))
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, opts)
}

// SelectUpgrade handles POST /profile/upgrade-membership/select and answers
// with the checkout page for the chosen tier.
func (h *MembershipHandler) SelectUpgrade(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(w, r)
	if !ok {
		return
	}

	var choice membershipChoice
	if err := bindRequest(r, &choice); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}
	id, ok := parseMembershipID(choice.MembershipID)
	if !ok {
		pkghttp.SeeOther(w, r, upgradePath, pkghttp.Flag("error", "invalid_membership"))
		return
	}

	m, err := h.service.SelectUpgrade(r.Context(), userID, id)
	if err != nil {
		h.selectFailure(w, r, userID, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, UpgradeCheckoutView{Membership: m, TotalPrice: m.PriceDisplay()})
}

func (h *MembershipHandler) selectFailure(w http.ResponseWriter, r *http.Request, userID string, err error) {
	switch {
	case errors.Is(err, models.ErrNotEligibleForUpgrade):
		pkghttp.SeeOther(w, r, profilePath, pkghttp.Flag("error", "not_eligible_for_upgrade"))
	case errors.Is(err, models.ErrInvalidMembership):
		pkghttp.SeeOther(w, r, upgradePath, pkghttp.Flag("error", "invalid_membership"))
	default:
		h.logger.Error("failed to select upgrade", slog.String("user_id", userID), slog.Any("error", err))
		pkghttp.SeeOther(w, r, upgradePath, pkghttp.Flag("error", "selection_failed"))
	}
}

// CompleteUpgrade handles POST /profile/upgrade-membership/checkout
func (h *MembershipHandler) CompleteUpgrade(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(w, r)
	if !ok {
		return
	}

	var f upgradeCheckoutForm
	if err := bindRequest(r, &f); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}
	id, ok := parseMembershipID(f.MembershipID)
	if !ok {
		pkghttp.SeeOther(w, r, upgradePath, pkghttp.Flag("error", "invalid_membership"))
		return
	}

	if _, err := h.service.CompleteUpgrade(r.Context(), userID, id, f.payment()); err != nil {
		if errors.Is(err, models.ErrPaymentIncomplete) {
			pkghttp.WriteFieldErrors(w, paymentRequiredMsg, nil)
			return
		}
		h.selectFailure(w, r, userID, err)
		return
	}

	pkghttp.SeeOther(w, r, profilePath, pkghttp.Flag("upgraded", "true"))
}

// CancelPage handles GET /profile/membership/cancel
func (h *MembershipHandler) CancelPage(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(w, r)
	if !ok {
		return
	}

	canCancel, err := h.service.CanCancel(r.Context(), userID)
	if err != nil {
		h.logger.Error("failed to check cancellation", slog.String("user_id", userID), slog.Any("error", err))
		pkghttp.WriteInternalError(w, "Failed to load membership")
		return
	}

	current, err := h.service.CurrentMembership(r.Context(), userID)
	if err != nil && !errors.Is(err, models.ErrNotFound) {
		h.logger.Error("failed to load membership", slog.String("user_id", userID), slog.Any("error", err))
		pkghttp.WriteInternalError(w, "Failed to load membership")
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, CancelPageView{CanCancel: canCancel, Membership: current})
}

// Cancel handles POST /profile/membership/cancel. The outcome message is
// carried back to the profile page.
func (h *MembershipHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(w, r)
	if !ok {
		return
	}

	result, err := h.service.Cancel(r.Context(), userID)
	if err != nil {
		h.logger.Error("failed to cancel membership", slog.String("user_id", userID), slog.Any("error", err))
		pkghttp.SeeOther(w, r, profilePath, pkghttp.Flag("error", "cancel_failed"))
		return
	}

	pkghttp.SeeOther(w, r, profilePath, url.Values{
		"cancelled": {strconv.FormatBool(result.Success)},
		"message":   {result.Message},
	})
}

package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/BradenHooton/voice-membership/internal/auth"
	"github.com/BradenHooton/voice-membership/internal/models"
	"github.com/BradenHooton/voice-membership/internal/registration"
	"github.com/BradenHooton/voice-membership/internal/services"
	pkghttp "github.com/BradenHooton/voice-membership/pkg/http"
)

// RegistrationServiceInterface is the signup wizard as the handlers see it.
type RegistrationServiceInterface interface {
	Begin(ctx context.Context, sessionID string) error
	View(ctx context.Context, sessionID string, want registration.Step) (*services.WizardView, error)
	CheckoutView(ctx context.Context, sessionID string) (*services.WizardView, error)
	SubmitUserDetails(ctx context.Context, sessionID string, in services.UserDetailsInput) (string, error)
	AddChildRow(ctx context.Context, sessionID string) error
	SubmitChildren(ctx context.Context, sessionID string, rows []services.ChildInput) error
	SelectMembership(ctx context.Context, sessionID string, membershipID int64) error
	RemoveFromCart(ctx context.Context, sessionID string) error
	Confirm(ctx context.Context, sessionID string) (*services.CompletionResult, error)
	Checkout(ctx context.Context, sessionID string, payment models.PaymentDetails) (*services.CompletionResult, error)
}

const (
	actionAddChild     = "addChild"
	actionRemove       = "remove"
	processingFailed   = "processing_failed"
	paymentRequiredMsg = "All payment fields are required"
)

// RegistrationHandler serves the four wizard steps and checkout. The
// wizard state lives server side under the registration_session cookie.
type RegistrationHandler struct {
	service    RegistrationServiceInterface
	tm         *auth.TokenManager
	cookies    auth.CookieConfig
	sessionTTL time.Duration
	logger     *slog.Logger
}

func NewRegistrationHandler(service RegistrationServiceInterface, tm *auth.TokenManager, cookies auth.CookieConfig, sessionTTL time.Duration, logger *slog.Logger) *RegistrationHandler {
	return &RegistrationHandler{
		service:    service,
		tm:         tm,
		cookies:    cookies,
		sessionTTL: sessionTTL,
		logger:     logger,
	}
}

// childrenForm is the step two submission: one value per row for each
// column, plus the button that was pressed.
type childrenForm struct {
	Action           string   `form:"action" json:"action"`
	Names            []string `form:"childName" json:"childName"`
	Ages             []string `form:"childAge" json:"childAge"`
	DatesOfBirth     []string `form:"childDob" json:"childDob"`
	HearingLossTypes []string `form:"hearingLossType" json:"hearingLossType"`
	EquipmentTypes   []string `form:"equipmentType" json:"equipmentType"`
	SiblingsNames    []string `form:"siblingsNames" json:"siblingsNames"`
	ChapterLocations []string `form:"chapterLocation" json:"chapterLocation"`
}

func at(values []string, i int) string {
	if i < len(values) {
		return values[i]
	}
	return ""
}

func (f childrenForm) rows() []services.ChildInput {
	rows := make([]services.ChildInput, 0, len(f.Names))
	for i, name := range f.Names {
		rows = append(rows, services.ChildInput{
			Name:            name,
			Age:             at(f.Ages, i),
			DateOfBirth:     at(f.DatesOfBirth, i),
			HearingLossType: at(f.HearingLossTypes, i),
			EquipmentType:   at(f.EquipmentTypes, i),
			SiblingsNames:   at(f.SiblingsNames, i),
			ChapterLocation: at(f.ChapterLocations, i),
		})
	}
	return rows
}

type membershipChoice struct {
	MembershipID string `form:"membershipId" json:"membershipId"`
}

type cartForm struct {
	Action string `form:"action" json:"action"`
}

// wizardPage adds the error flag a page was redirected with.
type wizardPage struct {
	*services.WizardView
	Error string `json:"error,omitempty"`
}

func (h *RegistrationHandler) sessionID(r *http.Request) string {
	return auth.CookieValue(r, auth.RegistrationSessionCookie)
}

// fail turns a service error into the response the wizard expects.
func (h *RegistrationHandler) fail(w http.ResponseWriter, r *http.Request, err error) {
	var stepErr *registration.StepError
	switch {
	case errors.As(err, &stepErr):
		pkghttp.SeeOther(w, r, stepErr.Redirect.Path(), nil)
	case errors.Is(err, services.ErrCompletionFailed):
		pkghttp.SeeOther(w, r, registration.StepCart.Path(), pkghttp.Flag("error", processingFailed))
	case errors.Is(err, models.ErrPaymentIncomplete):
		pkghttp.WriteFieldErrors(w, paymentRequiredMsg, nil)
	default:
		h.logger.Error("registration request failed", slog.String("path", r.URL.Path), slog.Any("error", err))
		pkghttp.WriteInternalError(w, "An unexpected error occurred. Please try again later.")
	}
}

func (h *RegistrationHandler) show(w http.ResponseWriter, r *http.Request, step registration.Step) {
	view, err := h.service.View(r.Context(), h.sessionID(r), step)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	pkghttp.WriteJSON(w, http.StatusOK, wizardPage{WizardView: view, Error: r.URL.Query().Get("error")})
}

// ShowUserDetails handles GET /register/step1. Opening the first step
// starts the wizard over.
func (h *RegistrationHandler) ShowUserDetails(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Begin(r.Context(), h.sessionID(r)); err != nil {
		h.fail(w, r, err)
		return
	}
	auth.ClearRegistrationCookie(w, h.cookies)
	pkghttp.WriteJSON(w, http.StatusOK, wizardPage{WizardView: &services.WizardView{Step: registration.StepUserDetails}})
}

// SubmitUserDetails handles POST /register/step1
func (h *RegistrationHandler) SubmitUserDetails(w http.ResponseWriter, r *http.Request) {
	var in services.UserDetailsInput
	if err := bindRequest(r, &in); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}

	fields, err := fieldErrors(ValidateRequest(in))
	if err != nil {
		writeValidationError(w, err)
		return
	}
	if in.Password != in.ConfirmPassword {
		fields["confirmPassword"] = "Passwords do not match"
	}
	if len(fields) > 0 {
		pkghttp.WriteFieldErrors(w, "Please correct the highlighted fields", fields)
		return
	}

	sessionID, err := h.service.SubmitUserDetails(r.Context(), h.sessionID(r), in)
	switch {
	case errors.Is(err, models.ErrPasswordMismatch):
		pkghttp.WriteFieldErrors(w, "Please correct the highlighted fields", map[string]string{"confirmPassword": "Passwords do not match"})
		return
	case errors.Is(err, models.ErrEmailExists):
		pkghttp.WriteFieldErrors(w, "Please correct the highlighted fields", map[string]string{"email": "Email already exists"})
		return
	case err != nil:
		h.fail(w, r, err)
		return
	}

	auth.SetRegistrationCookie(w, sessionID, h.sessionTTL, h.cookies)
	pkghttp.SeeOther(w, r, registration.StepChildren.Path(), nil)
}

// ShowChildren handles GET /register/step2
func (h *RegistrationHandler) ShowChildren(w http.ResponseWriter, r *http.Request) {
	h.show(w, r, registration.StepChildren)
}

// SubmitChildren handles POST /register/step2. action=addChild appends an
// empty row and stays on the step.
func (h *RegistrationHandler) SubmitChildren(w http.ResponseWriter, r *http.Request) {
	var f childrenForm
	if err := bindRequest(r, &f); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}

	if f.Action == actionAddChild {
		if err := h.service.AddChildRow(r.Context(), h.sessionID(r)); err != nil {
			h.fail(w, r, err)
			return
		}
		pkghttp.SeeOther(w, r, registration.StepChildren.Path(), nil)
		return
	}

	if err := h.service.SubmitChildren(r.Context(), h.sessionID(r), f.rows()); err != nil {
		if errors.Is(err, models.ErrBadRequest) {
			pkghttp.WriteFieldErrors(w, "Please correct the child details", map[string]string{"children": err.Error()})
			return
		}
		h.fail(w, r, err)
		return
	}

	pkghttp.SeeOther(w, r, registration.StepMembership.Path(), nil)
}

// ShowMemberships handles GET /register/step3
func (h *RegistrationHandler) ShowMemberships(w http.ResponseWriter, r *http.Request) {
	h.show(w, r, registration.StepMembership)
}

// SelectMembership handles POST /register/step3
func (h *RegistrationHandler) SelectMembership(w http.ResponseWriter, r *http.Request) {
	var choice membershipChoice
	if err := bindRequest(r, &choice); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}

	id, err := strconv.ParseInt(strings.TrimSpace(choice.MembershipID), 10, 64)
	if err != nil {
		pkghttp.SeeOther(w, r, registration.StepMembership.Path(), nil)
		return
	}

	if err := h.service.SelectMembership(r.Context(), h.sessionID(r), id); err != nil {
		h.fail(w, r, err)
		return
	}

	pkghttp.SeeOther(w, r, registration.StepCart.Path(), nil)
}

// ShowCart handles GET /register/step4
func (h *RegistrationHandler) ShowCart(w http.ResponseWriter, r *http.Request) {
	h.show(w, r, registration.StepCart)
}

// ConfirmCart handles POST /register/step4. action=remove empties the cart;
// anything else confirms it.
func (h *RegistrationHandler) ConfirmCart(w http.ResponseWriter, r *http.Request) {
	var f cartForm
	if err := bindRequest(r, &f); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}

	if f.Action == actionRemove {
		if err := h.service.RemoveFromCart(r.Context(), h.sessionID(r)); err != nil {
			h.fail(w, r, err)
			return
		}
		pkghttp.SeeOther(w, r, registration.StepMembership.Path(), nil)
		return
	}

	result, err := h.service.Confirm(r.Context(), h.sessionID(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.finish(w, r, result)
}

// ShowCheckout handles GET /register/checkout
func (h *RegistrationHandler) ShowCheckout(w http.ResponseWriter, r *http.Request) {
	view, err := h.service.CheckoutView(r.Context(), h.sessionID(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	pkghttp.WriteJSON(w, http.StatusOK, wizardPage{WizardView: view, Error: r.URL.Query().Get("error")})
}

// Checkout handles POST /register/checkout
func (h *RegistrationHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	var payment models.PaymentDetails
	if err := bindRequest(r, &payment); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}

	result, err := h.service.Checkout(r.Context(), h.sessionID(r), payment)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.finish(w, r, result)
}

// finish logs the new member in when the service issued tokens and drops
// the wizard cookie. Without tokens the wizard state is still stored, so
// the cookie stays.
func (h *RegistrationHandler) finish(w http.ResponseWriter, r *http.Request, result *services.CompletionResult) {
	if result.Tokens != nil {
		auth.SetSessionCookies(w, result.Tokens, h.tm, h.cookies)
		auth.ClearRegistrationCookie(w, h.cookies)
	}
	pkghttp.SeeOther(w, r, result.Redirect, nil)
}

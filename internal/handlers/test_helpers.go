package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/BradenHooton/voice-membership/internal/auth"
	"github.com/BradenHooton/voice-membership/internal/models"
	"github.com/BradenHooton/voice-membership/internal/registration"
	"github.com/BradenHooton/voice-membership/internal/services"
	pkghttp "github.com/BradenHooton/voice-membership/pkg/http"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
)

// NewTestRequest creates an HTTP request with JSON body for testing
func NewTestRequest(t *testing.T, method, url string, body interface{}) *http.Request {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("failed to encode request body: %v", err)
		}
	}
	req := httptest.NewRequest(method, url, &buf)
	req.Header.Set("Content-Type", "application/json")
	return req
}

// NewFormRequest creates a browser form POST.
func NewFormRequest(target string, form url.Values) *http.Request {
	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}

// WithAuthContext adds user claims to request context for testing authenticated endpoints
func WithAuthContext(req *http.Request, userID, email string) *http.Request {
	return auth.WithClaims(req, &models.TokenClaims{
		UserID: userID,
		Email:  email,
		Role:   models.RoleUser,
		Type:   models.TokenTypeAccess,
	})
}

// WithAdminContext adds admin user claims to request context
func WithAdminContext(req *http.Request, userID, email string) *http.Request {
	return auth.WithClaims(req, &models.TokenClaims{
		UserID: userID,
		Email:  email,
		Role:   models.RoleAdmin,
		Type:   models.TokenTypeAccess,
	})
}

// WithChiRouteContext adds chi URL parameters to request context for testing
func WithChiRouteContext(r *http.Request, params map[string]string) *http.Request {
	rctx := chi.NewRouteContext()
	for key, value := range params {
		rctx.URLParams.Add(key, value)
	}
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

// NewTestTokenManager only serves cookie lifetimes; it cannot validate.
func NewTestTokenManager() *auth.TokenManager {
	return auth.NewTokenManager("test-secret-that-is-at-least-32-bytes!", 15*time.Minute, 24*time.Hour, nil)
}

// DiscardLogger returns a logger that drops every record.
func DiscardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// AssertJSONResponse checks that response has correct status and decodes JSON body
func AssertJSONResponse(t *testing.T, w *httptest.ResponseRecorder, expectedStatus int, target interface{}) {
	assert.Equal(t, expectedStatus, w.Code, "Response status mismatch")

	contentType := w.Header().Get("Content-Type")
	assert.Equal(t, "application/json", contentType, "Content-Type should be application/json")

	if target != nil {
		err := json.Unmarshal(w.Body.Bytes(), target)
		assert.NoError(t, err, "Failed to decode response JSON")
	}
}

// AssertErrorResponse checks that response is a valid error response
func AssertErrorResponse(t *testing.T, w *httptest.ResponseRecorder, expectedStatus int, expectedError string) {
	assert.Equal(t, expectedStatus, w.Code, "Response status mismatch")

	var resp pkghttp.ErrorResponse
	err := json.Unmarshal(w.Body.Bytes(), &resp)
	assert.NoError(t, err, "Failed to decode error response")
	assert.Equal(t, expectedError, resp.Error, "Error code mismatch")
	assert.NotEmpty(t, resp.Message, "Error message should not be empty")
}

// AssertFieldErrors checks a 422 form rejection and returns its fields.
func AssertFieldErrors(t *testing.T, w *httptest.ResponseRecorder) map[string]string {
	t.Helper()
	var resp pkghttp.ErrorResponse
	AssertJSONResponse(t, w, http.StatusUnprocessableEntity, &resp)
	assert.Equal(t, "validation_failed", resp.Error)
	return resp.Fields
}

// AssertRedirect checks a 303 and returns the Location header.
func AssertRedirect(t *testing.T, w *httptest.ResponseRecorder, expected string) {
	t.Helper()
	assert.Equal(t, http.StatusSeeOther, w.Code, "Response status mismatch")
	assert.Equal(t, expected, w.Header().Get("Location"))
}

// ResponseCookie returns the named Set-Cookie from the response, or nil.
func ResponseCookie(w *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, c := range w.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

// MockAuthService implements AuthServiceInterface for testing
type MockAuthService struct {
	LoginFunc   func(ctx context.Context, email, password, ipAddress string) (*services.LoginResult, error)
	LogoutFunc  func(ctx context.Context, claims *models.TokenClaims) error
	RefreshFunc func(ctx context.Context, refreshToken string) (*models.TokenPair, error)
}

func (m *MockAuthService) Login(ctx context.Context, email, password, ipAddress string) (*services.LoginResult, error) {
	if m.LoginFunc == nil {
		return nil, models.ErrUnauthorized
	}
	return m.LoginFunc(ctx, email, password, ipAddress)
}

func (m *MockAuthService) Logout(ctx context.Context, claims *models.TokenClaims) error {
	if m.LogoutFunc == nil {
		return nil
	}
	return m.LogoutFunc(ctx, claims)
}

func (m *MockAuthService) Refresh(ctx context.Context, refreshToken string) (*models.TokenPair, error) {
	if m.RefreshFunc == nil {
		return nil, models.ErrUnauthorized
	}
	return m.RefreshFunc(ctx, refreshToken)
}

// MockRegistrationService implements RegistrationServiceInterface for testing
type MockRegistrationService struct {
	BeginFunc             func(ctx context.Context, sessionID string) error
	ViewFunc              func(ctx context.Context, sessionID string, want registration.Step) (*services.WizardView, error)
	CheckoutViewFunc      func(ctx context.Context, sessionID string) (*services.WizardView, error)
	SubmitUserDetailsFunc func(ctx context.Context, sessionID string, in services.UserDetailsInput) (string, error)
	AddChildRowFunc       func(ctx context.Context, sessionID string) error
	SubmitChildrenFunc    func(ctx context.Context, sessionID string, rows []services.ChildInput) error
	SelectMembershipFunc  func(ctx context.Context, sessionID string, membershipID int64) error
	RemoveFromCartFunc    func(ctx context.Context, sessionID string) error
	ConfirmFunc           func(ctx context.Context, sessionID string) (*services.CompletionResult, error)
	CheckoutFunc          func(ctx context.Context, sessionID string, payment models.PaymentDetails) (*services.CompletionResult, error)
}

func (m *MockRegistrationService) Begin(ctx context.Context, sessionID string) error {
	if m.BeginFunc == nil {
		return nil
	}
	return m.BeginFunc(ctx, sessionID)
}

func (m *MockRegistrationService) View(ctx context.Context, sessionID string, want registration.Step) (*services.WizardView, error) {
	if m.ViewFunc == nil {
		return &services.WizardView{Step: want}, nil
	}
	return m.ViewFunc(ctx, sessionID, want)
}

func (m *MockRegistrationService) CheckoutView(ctx context.Context, sessionID string) (*services.WizardView, error) {
	if m.CheckoutViewFunc == nil {
		return nil, &registration.StepError{Redirect: registration.StepCart}
	}
	return m.CheckoutViewFunc(ctx, sessionID)
}

func (m *MockRegistrationService) SubmitUserDetails(ctx context.Context, sessionID string, in services.UserDetailsInput) (string, error) {
	if m.SubmitUserDetailsFunc == nil {
		return "session-1", nil
	}
	return m.SubmitUserDetailsFunc(ctx, sessionID, in)
}

func (m *MockRegistrationService) AddChildRow(ctx context.Context, sessionID string) error {
	if m.AddChildRowFunc == nil {
		return nil
	}
	return m.AddChildRowFunc(ctx, sessionID)
}

func (m *MockRegistrationService) SubmitChildren(ctx context.Context, sessionID string, rows []services.ChildInput) error {
	if m.SubmitChildrenFunc == nil {
		return nil
	}
	return m.SubmitChildrenFunc(ctx, sessionID, rows)
}

func (m *MockRegistrationService) SelectMembership(ctx context.Context, sessionID string, membershipID int64) error {
	if m.SelectMembershipFunc == nil {
		return nil
	}
	return m.SelectMembershipFunc(ctx, sessionID, membershipID)
}

func (m *MockRegistrationService) RemoveFromCart(ctx context.Context, sessionID string) error {
	if m.RemoveFromCartFunc == nil {
		return nil
	}
	return m.RemoveFromCartFunc(ctx, sessionID)
}

func (m *MockRegistrationService) Confirm(ctx context.Context, sessionID string) (*services.CompletionResult, error) {
	if m.ConfirmFunc == nil {
		return nil, &registration.StepError{Redirect: registration.StepMembership}
	}
	return m.ConfirmFunc(ctx, sessionID)
}

func (m *MockRegistrationService) Checkout(ctx context.Context, sessionID string, payment models.PaymentDetails) (*services.CompletionResult, error) {
	if m.CheckoutFunc == nil {
		return nil, &registration.StepError{Redirect: registration.StepMembership}
	}
	return m.CheckoutFunc(ctx, sessionID, payment)
}

// MockProfileService implements ProfileServiceInterface for testing
type MockProfileService struct {
	GetProfileFunc    func(ctx context.Context, userID string) (*services.ProfileView, error)
	UpdateProfileFunc func(ctx context.Context, userID string, in services.UpdateProfileInput) (*models.User, error)
	AddChildFunc      func(ctx context.Context, userID string, in services.ChildInput) (*models.Child, error)
	UpdateChildFunc   func(ctx context.Context, userID string, childID int64, in services.ChildInput) (*models.Child, error)
	DeleteChildFunc   func(ctx context.Context, userID string, childID int64) error
}

func (m *MockProfileService) GetProfile(ctx context.Context, userID string) (*services.ProfileView, error) {
	if m.GetProfileFunc == nil {
		return nil, models.ErrNotFound
	}
	return m.GetProfileFunc(ctx, userID)
}

func (m *MockProfileService) UpdateProfile(ctx context.Context, userID string, in services.UpdateProfileInput) (*models.User, error) {
	if m.UpdateProfileFunc == nil {
		return &models.User{ID: userID}, nil
	}
	return m.UpdateProfileFunc(ctx, userID, in)
}

func (m *MockProfileService) AddChild(ctx context.Context, userID string, in services.ChildInput) (*models.Child, error) {
	if m.AddChildFunc == nil {
		return &models.Child{ID: 1, UserID: userID, Name: in.Name}, nil
	}
	return m.AddChildFunc(ctx, userID, in)
}

func (m *MockProfileService) UpdateChild(ctx context.Context, userID string, childID int64, in services.ChildInput) (*models.Child, error) {
	if m.UpdateChildFunc == nil {
		return nil, models.ErrNotFound
	}
	return m.UpdateChildFunc(ctx, userID, childID, in)
}

func (m *MockProfileService) DeleteChild(ctx context.Context, userID string, childID int64) error {
	if m.DeleteChildFunc == nil {
		return nil
	}
	return m.DeleteChildFunc(ctx, userID, childID)
}

// MockMembershipService implements MembershipServiceInterface for testing
type MockMembershipService struct {
	UpgradeOptionsFunc    func(ctx context.Context, userID string) (*services.UpgradeOptions, error)
	SelectUpgradeFunc     func(ctx context.Context, userID string, membershipID int64) (*models.Membership, error)
	CompleteUpgradeFunc   func(ctx context.Context, userID string, membershipID int64, payment models.PaymentDetails) (*models.Membership, error)
	CanCancelFunc         func(ctx context.Context, userID string) (bool, error)
	CurrentMembershipFunc func(ctx context.Context, userID string) (*models.Membership, error)
	CancelFunc            func(ctx context.Context, userID string) (*services.CancellationResult, error)
}

func (m *MockMembershipService) UpgradeOptions(ctx context.Context, userID string) (*services.UpgradeOptions, error) {
	if m.UpgradeOptionsFunc == nil {
		return nil, models.ErrNotEligibleForUpgrade
	}
	return m.UpgradeOptionsFunc(ctx, userID)
}

func (m *MockMembershipService) SelectUpgrade(ctx context.Context, userID string, membershipID int64) (*models.Membership, error) {
	if m.SelectUpgradeFunc == nil {
		return nil, models.ErrInvalidMembership
	}
	return m.SelectUpgradeFunc(ctx, userID, membershipID)
}

func (m *MockMembershipService) CompleteUpgrade(ctx context.Context, userID string, membershipID int64, payment models.PaymentDetails) (*models.Membership, error) {
	if m.CompleteUpgradeFunc == nil {
		return nil, models.ErrInvalidMembership
	}
	return m.CompleteUpgradeFunc(ctx, userID, membershipID, payment)
}

func (m *MockMembershipService) CanCancel(ctx context.Context, userID string) (bool, error) {
	if m.CanCancelFunc == nil {
		return false, nil
	}
	return m.CanCancelFunc(ctx, userID)
}

func (m *MockMembershipService) CurrentMembership(ctx context.Context, userID string) (*models.Membership, error) {
	if m.CurrentMembershipFunc == nil {
		return nil, nil
	}
	return m.CurrentMembershipFunc(ctx, userID)
}

func (m *MockMembershipService) Cancel(ctx context.Context, userID string) (*services.CancellationResult, error) {
	if m.CancelFunc == nil {
		return &services.CancellationResult{Message: services.CancelNoActive}, nil
	}
	return m.CancelFunc(ctx, userID)
}

// MockPasswordResetService implements PasswordResetServiceInterface for testing
type MockPasswordResetService struct {
	RequestResetFunc  func(ctx context.Context, email, baseURL string) error
	ValidateTokenFunc func(ctx context.Context, token string) (*models.PasswordResetToken, error)
	ResetPasswordFunc func(ctx context.Context, token, password, confirm string) error
}

func (m *MockPasswordResetService) RequestReset(ctx context.Context, email, baseURL string) error {
	if m.RequestResetFunc == nil {
		return nil
	}
	return m.RequestResetFunc(ctx, email, baseURL)
}

func (m *MockPasswordResetService) ValidateToken(ctx context.Context, token string) (*models.PasswordResetToken, error) {
	if m.ValidateTokenFunc == nil {
		return nil, models.ErrInvalidToken
	}
	return m.ValidateTokenFunc(ctx, token)
}

func (m *MockPasswordResetService) ResetPassword(ctx context.Context, token, password, confirm string) error {
	if m.ResetPasswordFunc == nil {
		return models.ErrInvalidToken
	}
	return m.ResetPasswordFunc(ctx, token, password, confirm)
}

// MockAdminService implements AdminServiceInterface for testing
type MockAdminService struct {
	DashboardFunc      func(ctx context.Context, adminID string, f models.UserFilter) (*services.DashboardResponse, error)
	GetUserDetailsFunc func(ctx context.Context, id string) (*models.UserDetails, error)
	ExportUsersFunc    func(ctx context.Context, f models.UserFilter, w io.Writer) error
	UnlockUserFunc     func(ctx context.Context, id string) error
}

func (m *MockAdminService) Dashboard(ctx context.Context, adminID string, f models.UserFilter) (*services.DashboardResponse, error) {
	if m.DashboardFunc == nil {
		return &services.DashboardResponse{Users: []*services.UserSummary{}}, nil
	}
	return m.DashboardFunc(ctx, adminID, f)
}

func (m *MockAdminService) GetUserDetails(ctx context.Context, id string) (*models.UserDetails, error) {
	if m.GetUserDetailsFunc == nil {
		return nil, models.ErrNotFound
	}
	return m.GetUserDetailsFunc(ctx, id)
}

func (m *MockAdminService) ExportUsers(ctx context.Context, f models.UserFilter, w io.Writer) error {
	if m.ExportUsersFunc == nil {
		return nil
	}
	return m.ExportUsersFunc(ctx, f, w)
}

func (m *MockAdminService) UnlockUser(ctx context.Context, id string) error {
	if m.UnlockUserFunc == nil {
		return nil
	}
	return m.UnlockUserFunc(ctx, id)
}

// MockLandingService implements LandingServiceInterface for testing
type MockLandingService struct {
	PageDataFunc   func(ctx context.Context, loggedIn bool) (*services.LandingPageData, error)
	InitializeFunc func(ctx context.Context) error
}

func (m *MockLandingService) PageData(ctx context.Context, loggedIn bool) (*services.LandingPageData, error) {
	if m.PageDataFunc == nil {
		return &services.LandingPageData{IsUserLoggedIn: loggedIn}, nil
	}
	return m.PageDataFunc(ctx, loggedIn)
}

func (m *MockLandingService) Initialize(ctx context.Context) error {
	if m.InitializeFunc == nil {
		return nil
	}
	return m.InitializeFunc(ctx)
}

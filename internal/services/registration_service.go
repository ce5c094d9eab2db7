package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/BradenHooton/voice-membership/internal/events"
	"github.com/BradenHooton/voice-membership/internal/metrics"
	"github.com/BradenHooton/voice-membership/internal/models"
	"github.com/BradenHooton/voice-membership/internal/registration"
	pkgauth "github.com/BradenHooton/voice-membership/pkg/auth"
	pkglogger "github.com/BradenHooton/voice-membership/pkg/logger"
	"github.com/google/uuid"
)

// RegistrationSessionStore keeps the encoded wizard state between requests.
type RegistrationSessionStore interface {
	Get(ctx context.Context, id string) ([]byte, error)
	Put(ctx context.Context, id string, state []byte) error
	Delete(ctx context.Context, id string) error
}

// AccountCreator persists a completed signup atomically.
type AccountCreator interface {
	CreateAccount(ctx context.Context, account *models.NewAccount) (*models.User, error)
}

// EmailChecker reports whether an email is taken, ignoring case.
type EmailChecker interface {
	EmailExists(ctx context.Context, email string) (bool, error)
}

// MembershipCatalog resolves tiers.
type MembershipCatalog interface {
	Get(ctx context.Context, id int64) (*models.Membership, error)
	ListActive(ctx context.Context) ([]*models.Membership, error)
}

// SessionEstablisher logs a verified account in.
type SessionEstablisher interface {
	EstablishSession(ctx context.Context, user *models.User) (*models.TokenPair, error)
}

// Wizard destinations outside the four steps.
const (
	CheckoutPath = "/register/checkout"
	LoginPath    = "/login"
)

// ErrCompletionFailed means the account could not be persisted. The wizard
// state is kept so the user can retry.
var ErrCompletionFailed = errors.New("registration could not be completed")

// UserDetailsInput is the first wizard step.
type UserDetailsInput struct {
	FirstName       string `form:"firstName" json:"firstName" validate:"required,max=100"`
	MiddleName      string `form:"middleName" json:"middleName" validate:"max=100"`
	LastName        string `form:"lastName" json:"lastName" validate:"required,max=100"`
	Email           string `form:"email" json:"email" validate:"required,email,max=255"`
	Password        string `form:"password" json:"password" validate:"required,strong_password"`
	ConfirmPassword string `form:"confirmPassword" json:"confirmPassword" validate:"required"`
	Phone           string `form:"phone" json:"phone" validate:"required,ca_phone"`
	Address         string `form:"address" json:"address" validate:"max=255"`
	City            string `form:"city" json:"city" validate:"max=100"`
	Province        string `form:"province" json:"province" validate:"max=100"`
	PostalCode      string `form:"postalCode" json:"postalCode" validate:"omitempty,ca_postal"`
}

// WizardView is what a wizard page shows. Fields irrelevant to Step are
// left empty.
type WizardView struct {
	Step        registration.Step    `json:"step"`
	Applicant   *ApplicantView       `json:"user,omitempty"`
	Children    []models.Child       `json:"children,omitempty"`
	Memberships []*models.Membership `json:"memberships,omitempty"`
	Selected    *models.Membership   `json:"selectedMembership,omitempty"`
	Cart        *models.CartItem     `json:"cartItem,omitempty"`
	TotalPrice  string               `json:"totalPrice,omitempty"`
}

// ApplicantView is the applicant without the password hash.
type ApplicantView struct {
	FirstName  string `json:"firstName"`
	MiddleName string `json:"middleName,omitempty"`
	LastName   string `json:"lastName"`
	Email      string `json:"email"`
	Phone      string `json:"phone"`
	Address    string `json:"address,omitempty"`
	City       string `json:"city,omitempty"`
	Province   string `json:"province,omitempty"`
	PostalCode string `json:"postalCode,omitempty"`
}

// CompletionResult tells the handler where the wizard ends up. Tokens is
// nil when the account was created but the automatic login failed.
type CompletionResult struct {
	Redirect string
	User     *models.User
	Tokens   *models.TokenPair
}

// RegistrationService drives the signup wizard: it loads the stored state,
// applies one transition per request and saves the result. Completion
// writes the account in one transaction and logs the new member in.
type RegistrationService struct {
	sessions    RegistrationSessionStore
	accounts    AccountCreator
	emails      EmailChecker
	catalog     MembershipCatalog
	auth        SessionEstablisher
	publisher   events.Publisher
	logger      *slog.Logger
	auditLogger *pkglogger.AuditLogger
	hash        func(string) (string, error)
	now         func() time.Time
}

func NewRegistrationService(sessions RegistrationSessionStore, accounts AccountCreator, emails EmailChecker, catalog MembershipCatalog, auth SessionEstablisher, publisher events.Publisher, logger *slog.Logger, auditLogger *pkglogger.AuditLogger) *RegistrationService {
	return &RegistrationService{
		sessions:    sessions,
		accounts:    accounts,
		emails:      emails,
		catalog:     catalog,
		auth:        auth,
		publisher:   publisher,
		logger:      logger,
		auditLogger: auditLogger,
		hash:        pkgauth.HashPassword,
		now:         time.Now,
	}
}

// Begin starts the wizard over, discarding anything stored for sessionID.
func (s *RegistrationService) Begin(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return nil
	}
	if err := s.sessions.Delete(ctx, sessionID); err != nil {
		return fmt.Errorf("failed to clear registration session: %w", err)
	}
	return nil
}

// Load returns the stored state. A missing, expired or unreadable session
// is the first step.
func (s *RegistrationService) Load(ctx context.Context, sessionID string) (registration.State, error) {
	if sessionID == "" {
		return registration.Start(), nil
	}

	data, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return registration.Start(), nil
		}
		return nil, fmt.Errorf("failed to load registration session: %w", err)
	}

	state, err := registration.Decode(data)
	if err != nil {
		s.logger.Warn("discarding unreadable registration session", slog.Any("error", err))
		return registration.Start(), nil
	}

	return state, nil
}

func (s *RegistrationService) save(ctx context.Context, sessionID string, state registration.State) error {
	data, err := registration.Encode(state)
	if err != nil {
		return err
	}
	if err := s.sessions.Put(ctx, sessionID, data); err != nil {
		return fmt.Errorf("failed to save registration session: %w", err)
	}
	return nil
}

// View renders step want, or returns a *registration.StepError naming the
// step to go to when the state has not reached want.
func (s *RegistrationService) View(ctx context.Context, sessionID string, want registration.Step) (*WizardView, error) {
	state, err := s.Load(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	if got := registration.Resume(state, want); got != want {
		return nil, &registration.StepError{Redirect: got}
	}

	view := &WizardView{Step: want}
	if user, children, ok := stateData(state); ok {
		view.Applicant = applicantView(user)
		view.Children = children
	}

	switch want {
	case registration.StepChildren:
		if len(view.Children) == 0 {
			view.Children = []models.Child{{}}
		}
	case registration.StepMembership:
		view.Memberships, err = s.catalog.ListActive(ctx)
		if err != nil {
			return nil, err
		}
	case registration.StepCart:
		cart := state.(registration.CartStep)
		m, err := s.resolve(ctx, cart.MembershipID)
		if err != nil {
			return nil, err
		}
		view.Selected = m
		view.Cart = models.NewCartItem(m)
		view.TotalPrice = m.PriceDisplay()
	}

	return view, nil
}

// CheckoutView is the payment page for a paid tier in the cart.
func (s *RegistrationService) CheckoutView(ctx context.Context, sessionID string) (*WizardView, error) {
	view, err := s.View(ctx, sessionID, registration.StepCart)
	if err != nil {
		return nil, err
	}
	if view.Selected.IsFree {
		return nil, &registration.StepError{Redirect: registration.StepCart}
	}
	return view, nil
}

func stateData(state registration.State) (registration.Applicant, []models.Child, bool) {
	switch st := state.(type) {
	case registration.ChildrenStep:
		return st.User, st.Children, true
	case registration.MembershipStep:
		return st.User, st.Children, true
	case registration.CartStep:
		return st.User, st.Children, true
	}
	return registration.Applicant{}, nil, false
}

func applicantView(a registration.Applicant) *ApplicantView {
	return &ApplicantView{
		FirstName:  a.FirstName,
		MiddleName: a.MiddleName,
		LastName:   a.LastName,
		Email:      a.Email,
		Phone:      a.Phone,
		Address:    a.Address,
		City:       a.City,
		Province:   a.Province,
		PostalCode: a.PostalCode,
	}
}

// resolve maps an unknown or inactive tier to a StepError sending the user
// back to membership selection.
func (s *RegistrationService) resolve(ctx context.Context, id int64) (*models.Membership, error) {
	m, err := s.catalog.Get(ctx, id)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, &registration.StepError{Redirect: registration.StepMembership}
		}
		return nil, err
	}
	if !m.Active {
		return nil, &registration.StepError{Redirect: registration.StepMembership}
	}
	return m, nil
}

// SubmitUserDetails validates step one and stores the applicant. It returns
// the session ID to keep in the cookie, creating one if needed. Nothing is
// stored when the passwords differ or the email is taken.
func (s *RegistrationService) SubmitUserDetails(ctx context.Context, sessionID string, in UserDetailsInput) (string, error) {
	if in.Password != in.ConfirmPassword {
		return "", models.ErrPasswordMismatch
	}

	email := models.NormalizeEmail(in.Email)
	exists, err := s.emails.EmailExists(ctx, email)
	if err != nil {
		return "", fmt.Errorf("failed to check email: %w", err)
	}
	if exists {
		return "", models.ErrEmailExists
	}

	hash, err := s.hash(in.Password)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}

	state, err := s.Load(ctx, sessionID)
	if err != nil {
		return "", err
	}

	next := registration.SubmitUserDetails(state, registration.Applicant{
		FirstName:    strings.TrimSpace(in.FirstName),
		MiddleName:   strings.TrimSpace(in.MiddleName),
		LastName:     strings.TrimSpace(in.LastName),
		Email:        email,
		PasswordHash: hash,
		Phone:        strings.TrimSpace(in.Phone),
		Address:      strings.TrimSpace(in.Address),
		City:         strings.TrimSpace(in.City),
		Province:     strings.TrimSpace(in.Province),
		PostalCode:   strings.ToUpper(strings.TrimSpace(in.PostalCode)),
	})

	if sessionID == "" {
		sessionID = uuid.New().String()
	}
	if err := s.save(ctx, sessionID, next); err != nil {
		return "", err
	}

	return sessionID, nil
}

// transition loads the state, applies fn and saves the result.
func (s *RegistrationService) transition(ctx context.Context, sessionID string, fn func(registration.State) (registration.State, error)) error {
	state, err := s.Load(ctx, sessionID)
	if err != nil {
		return err
	}

	next, err := fn(state)
	if err != nil {
		return err
	}

	return s.save(ctx, sessionID, next)
}

func (s *RegistrationService) AddChildRow(ctx context.Context, sessionID string) error {
	return s.transition(ctx, sessionID, registration.AddChildRow)
}

// SubmitChildren stores the children step. Rows without a name are
// ignored; malformed ages or dates are rejected with models.ErrBadRequest.
func (s *RegistrationService) SubmitChildren(ctx context.Context, sessionID string, rows []ChildInput) error {
	children := make([]models.Child, 0, len(rows))
	for _, row := range rows {
		if strings.TrimSpace(row.Name) == "" {
			continue
		}
		c, err := row.Child()
		if err != nil {
			return err
		}
		children = append(children, c)
	}

	return s.transition(ctx, sessionID, func(state registration.State) (registration.State, error) {
		return registration.SubmitChildren(state, children)
	})
}

// SelectMembership puts a tier in the cart. The tier has to exist and be
// active.
func (s *RegistrationService) SelectMembership(ctx context.Context, sessionID string, membershipID int64) error {
	state, err := s.Load(ctx, sessionID)
	if err != nil {
		return err
	}
	if _, err := s.resolve(ctx, membershipID); err != nil {
		var stepErr *registration.StepError
		if errors.As(err, &stepErr) {
			return &registration.StepError{Redirect: registration.Resume(state, registration.StepMembership)}
		}
		return err
	}

	next, err := registration.SelectMembership(state, membershipID)
	if err != nil {
		return err
	}
	return s.save(ctx, sessionID, next)
}

func (s *RegistrationService) RemoveFromCart(ctx context.Context, sessionID string) error {
	return s.transition(ctx, sessionID, registration.RemoveFromCart)
}

func (s *RegistrationService) cart(ctx context.Context, sessionID string) (registration.CartStep, *models.Membership, error) {
	state, err := s.Load(ctx, sessionID)
	if err != nil {
		return registration.CartStep{}, nil, err
	}

	cart, ok := state.(registration.CartStep)
	if !ok {
		return registration.CartStep{}, nil, &registration.StepError{Redirect: registration.Resume(state, registration.StepMembership)}
	}

	m, err := s.resolve(ctx, cart.MembershipID)
	if err != nil {
		return registration.CartStep{}, nil, err
	}

	return cart, m, nil
}

// Confirm handles the cart step. Free tiers complete immediately; paid
// tiers continue to checkout.
func (s *RegistrationService) Confirm(ctx context.Context, sessionID string) (*CompletionResult, error) {
	cart, m, err := s.cart(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	if !m.IsFree {
		return &CompletionResult{Redirect: CheckoutPath}, nil
	}

	return s.complete(ctx, sessionID, cart, m)
}

// Checkout accepts the payment form for a paid tier and completes the
// signup. No payment is processed; the fields only have to be present.
func (s *RegistrationService) Checkout(ctx context.Context, sessionID string, payment models.PaymentDetails) (*CompletionResult, error) {
	cart, m, err := s.cart(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if m.IsFree {
		return &CompletionResult{Redirect: registration.StepCart.Path()}, nil
	}
	if !payment.Complete() {
		return nil, models.ErrPaymentIncomplete
	}

	return s.complete(ctx, sessionID, cart, m)
}

// complete writes the account, logs it in and discards the wizard state.
// The state survives any failure so the user can retry.
func (s *RegistrationService) complete(ctx context.Context, sessionID string, cart registration.CartStep, m *models.Membership) (*CompletionResult, error) {
	user := cart.User.User()
	user.MembershipID = &m.ID

	account := &models.NewAccount{User: user}
	for i := range cart.Children {
		c := cart.Children[i]
		account.Children = append(account.Children, &c)
	}

	tier := "free"
	if !m.IsFree {
		tier = "paid"
		start := s.now()
		expiry := start.AddDate(1, 0, 0)
		user.MembershipStartDate = &start
		user.MembershipExpiryDate = &expiry
		account.CartItem = models.NewCartItem(m)
	}

	created, err := s.accounts.CreateAccount(ctx, account)
	if err != nil {
		metrics.RegistrationFailuresTotal.Inc()
		s.logger.Error("failed to persist registration",
			slog.String("email", pkglogger.SanitizedEmail(user.Email)),
			slog.Any("error", err))
		return nil, fmt.Errorf("%w: %v", ErrCompletionFailed, err)
	}

	metrics.RegistrationsTotal.WithLabelValues(tier).Inc()
	s.auditLogger.LogAccountAction(ctx, pkglogger.EventRegistered, created.ID, map[string]string{
		"membership": m.Name,
		"children":   fmt.Sprint(len(account.Children)),
	})
	events.Emit(ctx, s.publisher, s.logger, events.New(events.UserRegistered, created.ID, map[string]string{
		"membership": m.Name,
		"tier":       tier,
	}))

	tokens, err := s.auth.EstablishSession(ctx, created)
	if err != nil {
		s.logger.Error("automatic login after registration failed", slog.String("user_id", created.ID), slog.Any("error", err))
		return &CompletionResult{Redirect: LoginPath + "?registered=true", User: created}, nil
	}

	if err := s.sessions.Delete(ctx, sessionID); err != nil {
		s.logger.Warn("failed to discard registration session", slog.Any("error", err))
	}

	return &CompletionResult{Redirect: MemberHomePath, User: created, Tokens: tokens}, nil
}

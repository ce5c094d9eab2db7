package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/BradenHooton/voice-membership/internal/events"
	"github.com/BradenHooton/voice-membership/internal/models"
	"github.com/BradenHooton/voice-membership/internal/registration"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type registrationFixture struct {
	svc      *RegistrationService
	sessions *memSessionStore
	accounts *MockAccountCreator
	emails   *MockEmailChecker
	auth     *MockSessionEstablisher
	pub      *MockPublisher
	created  []*models.NewAccount
	now      time.Time
}

func newRegistrationFixture(t *testing.T) *registrationFixture {
	t.Helper()
	f := &registrationFixture{
		sessions: newMemSessionStore(),
		emails:   &MockEmailChecker{},
		auth:     &MockSessionEstablisher{},
		pub:      &MockPublisher{},
		now:      time.Date(2025, 6, 15, 9, 30, 0, 0, time.UTC),
	}
	f.accounts = &MockAccountCreator{
		CreateAccountFunc: func(ctx context.Context, account *models.NewAccount) (*models.User, error) {
			f.created = append(f.created, account)
			account.User.ID = "new-user"
			return account.User, nil
		},
	}

	f.svc = NewRegistrationService(f.sessions, f.accounts, f.emails, testCatalog(), f.auth, f.pub, testLogger(), testAuditLogger())
	f.svc.hash = func(p string) (string, error) { return "hashed:" + p, nil }
	f.svc.now = func() time.Time { return f.now }
	return f
}

func validDetails() UserDetailsInput {
	return UserDetailsInput{
		FirstName:       "Ada",
		LastName:        "Lovelace",
		Email:           "Ada@Example.com",
		Password:        "Str0ng-Pass!",
		ConfirmPassword: "Str0ng-Pass!",
		Phone:           "604-555-0199",
		City:            "Vancouver",
		Province:        "BC",
		PostalCode:      "v6b 1a1",
	}
}

// throughStep3 walks a fresh session to the membership step with one child.
func (f *registrationFixture) throughStep3(t *testing.T) string {
	t.Helper()
	ctx := context.Background()

	sid, err := f.svc.SubmitUserDetails(ctx, "", validDetails())
	require.NoError(t, err)
	require.NoError(t, f.svc.SubmitChildren(ctx, sid, []ChildInput{
		{Name: "Sam", Age: "7", DateOfBirth: "2018-02-03", HearingLossType: "Moderate"},
		{Name: "  "},
	}))
	return sid
}

func TestRegistrationService_SubmitUserDetails_StoresApplicant(t *testing.T) {
	f := newRegistrationFixture(t)

	sid, err := f.svc.SubmitUserDetails(context.Background(), "", validDetails())
	require.NoError(t, err)
	require.NotEmpty(t, sid)

	state, err := f.svc.Load(context.Background(), sid)
	require.NoError(t, err)

	step, ok := state.(registration.ChildrenStep)
	require.True(t, ok)
	assert.Equal(t, "ada@example.com", step.User.Email)
	assert.Equal(t, "hashed:Str0ng-Pass!", step.User.PasswordHash)
	assert.Equal(t, "V6B 1A1", step.User.PostalCode)
}

func TestRegistrationService_SubmitUserDetails_DuplicateEmail(t *testing.T) {
	f := newRegistrationFixture(t)
	f.emails.EmailExistsFunc = func(ctx context.Context, email string) (bool, error) {
		return email == "a@b.com", nil
	}

	in := validDetails()
	in.Email = "A@B.com"

	sid, err := f.svc.SubmitUserDetails(context.Background(), "", in)
	assert.ErrorIs(t, err, models.ErrEmailExists)
	assert.Equal(t, "email already exists", models.ErrEmailExists.Error())
	assert.Empty(t, sid)
	assert.Empty(t, f.sessions.data, "no session is created")
}

func TestRegistrationService_SubmitUserDetails_PasswordMismatch(t *testing.T) {
	f := newRegistrationFixture(t)

	in := validDetails()
	in.ConfirmPassword = "different"

	sid, err := f.svc.SubmitUserDetails(context.Background(), "", in)
	assert.ErrorIs(t, err, models.ErrPasswordMismatch)
	assert.Empty(t, sid)
	assert.Empty(t, f.sessions.data)
}

func TestRegistrationService_ViewRedirectsToReachedStep(t *testing.T) {
	f := newRegistrationFixture(t)
	ctx := context.Background()

	_, err := f.svc.View(ctx, "missing", registration.StepChildren)
	var stepErr *registration.StepError
	require.True(t, errors.As(err, &stepErr))
	assert.Equal(t, registration.StepUserDetails, stepErr.Redirect)

	sid := f.throughStep3(t)

	_, err = f.svc.View(ctx, sid, registration.StepCart)
	require.True(t, errors.As(err, &stepErr))
	assert.Equal(t, registration.StepMembership, stepErr.Redirect)

	view, err := f.svc.View(ctx, sid, registration.StepMembership)
	require.NoError(t, err)
	assert.Len(t, view.Memberships, 2)
	require.Len(t, view.Children, 1)
	assert.Equal(t, "Sam", view.Children[0].Name)
	assert.Equal(t, "ada@example.com", view.Applicant.Email)
}

func TestRegistrationService_ChildrenViewHasOneEmptyRow(t *testing.T) {
	f := newRegistrationFixture(t)
	ctx := context.Background()

	sid, err := f.svc.SubmitUserDetails(ctx, "", validDetails())
	require.NoError(t, err)

	view, err := f.svc.View(ctx, sid, registration.StepChildren)
	require.NoError(t, err)
	assert.Len(t, view.Children, 1)

	require.NoError(t, f.svc.AddChildRow(ctx, sid))
	require.NoError(t, f.svc.AddChildRow(ctx, sid))
	view, err = f.svc.View(ctx, sid, registration.StepChildren)
	require.NoError(t, err)
	assert.Len(t, view.Children, 2)
}

func TestRegistrationService_SubmitChildren_RejectsBadAge(t *testing.T) {
	f := newRegistrationFixture(t)
	ctx := context.Background()

	sid, err := f.svc.SubmitUserDetails(ctx, "", validDetails())
	require.NoError(t, err)

	err = f.svc.SubmitChildren(ctx, sid, []ChildInput{{Name: "Sam", Age: "seven"}})
	assert.ErrorIs(t, err, models.ErrBadRequest)
}

func TestRegistrationService_SelectUnknownMembershipStaysOnStep3(t *testing.T) {
	f := newRegistrationFixture(t)
	sid := f.throughStep3(t)

	err := f.svc.SelectMembership(context.Background(), sid, 99)
	var stepErr *registration.StepError
	require.True(t, errors.As(err, &stepErr))
	assert.Equal(t, registration.StepMembership, stepErr.Redirect)
}

func TestRegistrationService_ConfirmWithoutCartReturnsToStep3(t *testing.T) {
	f := newRegistrationFixture(t)
	sid := f.throughStep3(t)

	_, err := f.svc.Confirm(context.Background(), sid)
	var stepErr *registration.StepError
	require.True(t, errors.As(err, &stepErr))
	assert.Equal(t, registration.StepMembership, stepErr.Redirect)
	assert.Empty(t, f.created)
}

func TestRegistrationService_FreeMembershipCompletes(t *testing.T) {
	f := newRegistrationFixture(t)
	ctx := context.Background()
	sid := f.throughStep3(t)

	require.NoError(t, f.svc.SelectMembership(ctx, sid, freeTier().ID))
	result, err := f.svc.Confirm(ctx, sid)
	require.NoError(t, err)

	assert.Equal(t, MemberHomePath, result.Redirect)
	require.NotNil(t, result.Tokens)

	require.Len(t, f.created, 1)
	account := f.created[0]
	assert.Nil(t, account.CartItem, "free tiers get no cart item")
	require.NotNil(t, account.User.MembershipID)
	assert.Equal(t, freeTier().ID, *account.User.MembershipID)
	assert.Nil(t, account.User.MembershipStartDate)
	assert.Nil(t, account.User.MembershipExpiryDate)
	assert.Equal(t, models.RoleUser, account.User.Role)
	require.Len(t, account.Children, 1)
	assert.Equal(t, "Sam", account.Children[0].Name)

	assert.False(t, f.sessions.has(sid), "state is discarded after completion")
	assert.Equal(t, []string{events.UserRegistered}, f.pub.Types())
}

func TestRegistrationService_PaidMembershipGoesThroughCheckout(t *testing.T) {
	f := newRegistrationFixture(t)
	ctx := context.Background()
	sid := f.throughStep3(t)

	require.NoError(t, f.svc.SelectMembership(ctx, sid, premiumTier().ID))

	view, err := f.svc.View(ctx, sid, registration.StepCart)
	require.NoError(t, err)
	assert.Equal(t, "$20.00", view.TotalPrice)

	result, err := f.svc.Confirm(ctx, sid)
	require.NoError(t, err)
	assert.Equal(t, CheckoutPath, result.Redirect)
	assert.Empty(t, f.created)

	_, err = f.svc.Checkout(ctx, sid, models.PaymentDetails{CardNumber: "4111111111111111"})
	assert.ErrorIs(t, err, models.ErrPaymentIncomplete)

	result, err = f.svc.Checkout(ctx, sid, models.PaymentDetails{
		CardNumber:     "4111111111111111",
		CardHolderName: "Ada Lovelace",
		ExpiryMonth:    "12",
		ExpiryYear:     "2030",
		CVV:            "123",
	})
	require.NoError(t, err)
	assert.Equal(t, MemberHomePath, result.Redirect)

	require.Len(t, f.created, 1)
	account := f.created[0]
	require.NotNil(t, account.CartItem)
	assert.Equal(t, 1, account.CartItem.Quantity)
	assert.Equal(t, int64(2000), account.CartItem.UnitPriceCents)
	assert.Equal(t, int64(2000), account.CartItem.TotalPriceCents)

	require.NotNil(t, account.User.MembershipStartDate)
	require.NotNil(t, account.User.MembershipExpiryDate)
	assert.Equal(t, f.now, *account.User.MembershipStartDate)
	assert.Equal(t, f.now.AddDate(1, 0, 0), *account.User.MembershipExpiryDate)
}

func TestRegistrationService_PersistFailureKeepsState(t *testing.T) {
	f := newRegistrationFixture(t)
	ctx := context.Background()
	sid := f.throughStep3(t)
	require.NoError(t, f.svc.SelectMembership(ctx, sid, freeTier().ID))

	f.accounts.CreateAccountFunc = func(ctx context.Context, account *models.NewAccount) (*models.User, error) {
		return nil, errors.New("deadlock detected")
	}

	_, err := f.svc.Confirm(ctx, sid)
	assert.ErrorIs(t, err, ErrCompletionFailed)

	state, err := f.svc.Load(ctx, sid)
	require.NoError(t, err)
	assert.IsType(t, registration.CartStep{}, state)
	assert.Empty(t, f.pub.Events)
}

func TestRegistrationService_AutoLoginFailureKeepsState(t *testing.T) {
	f := newRegistrationFixture(t)
	ctx := context.Background()
	sid := f.throughStep3(t)
	require.NoError(t, f.svc.SelectMembership(ctx, sid, freeTier().ID))

	f.auth.EstablishSessionFunc = func(ctx context.Context, user *models.User) (*models.TokenPair, error) {
		return nil, errors.New("signing failed")
	}

	result, err := f.svc.Confirm(ctx, sid)
	require.NoError(t, err)
	assert.Equal(t, LoginPath+"?registered=true", result.Redirect)
	assert.Nil(t, result.Tokens)
	assert.True(t, f.sessions.has(sid))
}

func TestRegistrationService_RemoveFromCart(t *testing.T) {
	f := newRegistrationFixture(t)
	ctx := context.Background()
	sid := f.throughStep3(t)
	require.NoError(t, f.svc.SelectMembership(ctx, sid, premiumTier().ID))

	require.NoError(t, f.svc.RemoveFromCart(ctx, sid))

	state, err := f.svc.Load(ctx, sid)
	require.NoError(t, err)
	assert.IsType(t, registration.MembershipStep{}, state)
}

func TestRegistrationService_CorruptSessionRestarts(t *testing.T) {
	f := newRegistrationFixture(t)
	require.NoError(t, f.sessions.Put(context.Background(), "sid", []byte("{not json")))

	state, err := f.svc.Load(context.Background(), "sid")
	require.NoError(t, err)
	assert.Equal(t, registration.Start(), state)
}

func TestRegistrationService_BeginClearsState(t *testing.T) {
	f := newRegistrationFixture(t)
	sid := f.throughStep3(t)

	require.NoError(t, f.svc.Begin(context.Background(), sid))
	assert.False(t, f.sessions.has(sid))
}

package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/BradenHooton/voice-membership/internal/events"
	"github.com/BradenHooton/voice-membership/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type membershipFixture struct {
	svc     *MembershipService
	catalog *MockMembershipRepository
	changer *MockMembershipChanger
	mailer  *MockMailer
	pub     *MockPublisher
	user    *models.User
	now     time.Time
}

func newMembershipFixture(t *testing.T, membershipID *int64) *membershipFixture {
	t.Helper()
	user := NewTestUser("user-1", "member@example.com")
	user.MembershipID = membershipID

	f := &membershipFixture{
		catalog: testCatalog(),
		changer: &MockMembershipChanger{},
		mailer:  &MockMailer{},
		pub:     &MockPublisher{},
		user:    user,
		now:     time.Date(2025, 4, 1, 8, 0, 0, 0, time.UTC),
	}
	users := &MockUserRepository{
		GetByIDFunc: func(ctx context.Context, id string) (*models.User, error) {
			if id == user.ID {
				return user, nil
			}
			return nil, models.ErrNotFound
		},
	}

	f.svc = NewMembershipService(f.catalog, users, f.changer, f.mailer, f.pub, testLogger(), testAuditLogger())
	f.svc.now = func() time.Time { return f.now }
	return f
}

var paymentOK = models.PaymentDetails{
	CardNumber:     "4111111111111111",
	CardHolderName: "Test User",
	ExpiryMonth:    "01",
	ExpiryYear:     "2031",
	CVV:            "999",
}

func TestMembershipService_CatalogIsCached(t *testing.T) {
	f := newMembershipFixture(t, nil)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		list, err := f.svc.ListActive(ctx)
		require.NoError(t, err)
		assert.Len(t, list, 2)

		m, err := f.svc.Get(ctx, 2)
		require.NoError(t, err)
		assert.Equal(t, "Premium", m.Name)
	}
	assert.Equal(t, 1, f.catalog.ListCalls)
	assert.Equal(t, 1, f.catalog.GetCalls)

	f.svc.InvalidateCache()
	_, err := f.svc.ListActive(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, f.catalog.ListCalls)
}

func TestMembershipService_Status(t *testing.T) {
	ctx := context.Background()

	t.Run("no membership", func(t *testing.T) {
		f := newMembershipFixture(t, nil)
		st, err := f.svc.Status(ctx, f.user)
		require.NoError(t, err)
		assert.Equal(t, StatusNone, st.Status)
		assert.Equal(t, NoMembershipYet, st.Type)
	})

	t.Run("free", func(t *testing.T) {
		f := newMembershipFixture(t, int64Ptr(1))
		st, err := f.svc.Status(ctx, f.user)
		require.NoError(t, err)
		assert.Equal(t, StatusFree, st.Status)
		assert.Equal(t, NoExpiry, st.ExpiryDate)
		assert.True(t, st.ShowBenefits)
	})

	t.Run("paid", func(t *testing.T) {
		f := newMembershipFixture(t, int64Ptr(2))
		expiry := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
		f.user.MembershipExpiryDate = &expiry
		st, err := f.svc.Status(ctx, f.user)
		require.NoError(t, err)
		assert.Equal(t, StatusPaid, st.Status)
		assert.Equal(t, "Premium", st.Type)
		assert.Equal(t, "April 01, 2026", st.ExpiryDate)
	})
}

func TestMembershipService_UpgradeOptions(t *testing.T) {
	ctx := context.Background()

	f := newMembershipFixture(t, int64Ptr(1))
	opts, err := f.svc.UpgradeOptions(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, "Free", opts.Current.Name)
	require.Len(t, opts.Options, 1)
	assert.Equal(t, "Premium", opts.Options[0].Name)

	paid := newMembershipFixture(t, int64Ptr(2))
	_, err = paid.svc.UpgradeOptions(ctx, "user-1")
	assert.ErrorIs(t, err, models.ErrNotEligibleForUpgrade)

	none := newMembershipFixture(t, nil)
	_, err = none.svc.UpgradeOptions(ctx, "user-1")
	assert.ErrorIs(t, err, models.ErrNotEligibleForUpgrade)
}

func TestMembershipService_SelectUpgradeRejectsFreeOrUnknownTier(t *testing.T) {
	f := newMembershipFixture(t, int64Ptr(1))
	ctx := context.Background()

	_, err := f.svc.SelectUpgrade(ctx, "user-1", 1)
	assert.ErrorIs(t, err, models.ErrInvalidMembership)

	_, err = f.svc.SelectUpgrade(ctx, "user-1", 42)
	assert.ErrorIs(t, err, models.ErrInvalidMembership)

	m, err := f.svc.SelectUpgrade(ctx, "user-1", 2)
	require.NoError(t, err)
	assert.Equal(t, int64(2), m.ID)
}

func TestMembershipService_CompleteUpgrade(t *testing.T) {
	f := newMembershipFixture(t, int64Ptr(1))

	var receipt UpgradeReceipt
	f.mailer.SendUpgradeConfirmationFunc = func(ctx context.Context, to string, u UpgradeReceipt) error {
		receipt = u
		return errors.New("ses throttled")
	}

	m, err := f.svc.CompleteUpgrade(context.Background(), "user-1", 2, paymentOK)
	require.NoError(t, err, "email failure is swallowed")
	assert.Equal(t, "Premium", m.Name)

	require.Len(t, f.changer.Changes, 1)
	change := f.changer.Changes[0]
	assert.Equal(t, int64(2), *change.MembershipID)
	assert.Equal(t, f.now, *change.StartDate)
	assert.Equal(t, f.now.AddDate(1, 0, 0), *change.ExpiryDate)
	require.NotNil(t, change.CartItem)
	assert.Equal(t, int64(2000), change.CartItem.TotalPriceCents)

	assert.Equal(t, "$20.00", receipt.Price)
	assert.Equal(t, []string{events.MembershipUpgraded}, f.pub.Types())
}

func TestMembershipService_CompleteUpgradeRequiresPayment(t *testing.T) {
	f := newMembershipFixture(t, int64Ptr(1))

	_, err := f.svc.CompleteUpgrade(context.Background(), "user-1", 2, models.PaymentDetails{CVV: "1"})
	assert.ErrorIs(t, err, models.ErrPaymentIncomplete)
	assert.Empty(t, f.changer.Changes)
}

func TestMembershipService_Cancel(t *testing.T) {
	ctx := context.Background()

	t.Run("paid falls back to free", func(t *testing.T) {
		f := newMembershipFixture(t, int64Ptr(2))

		can, err := f.svc.CanCancel(ctx, "user-1")
		require.NoError(t, err)
		assert.True(t, can)

		result, err := f.svc.Cancel(ctx, "user-1")
		require.NoError(t, err)
		assert.True(t, result.Success)
		assert.Equal(t, "Successfully cancelled Premium membership", result.Message)

		require.Len(t, f.changer.Changes, 1)
		change := f.changer.Changes[0]
		require.NotNil(t, change.MembershipID)
		assert.Equal(t, int64(1), *change.MembershipID)
		assert.Equal(t, f.now, *change.StartDate)
		assert.Nil(t, change.ExpiryDate)
		assert.Nil(t, change.CartItem)
		assert.Equal(t, []string{events.MembershipCancelled}, f.pub.Types())
	})

	t.Run("no free tier leaves no membership", func(t *testing.T) {
		f := newMembershipFixture(t, int64Ptr(2))
		f.catalog.Memberships = []*models.Membership{premiumTier()}

		result, err := f.svc.Cancel(ctx, "user-1")
		require.NoError(t, err)
		assert.True(t, result.Success)
		assert.Nil(t, f.changer.Changes[0].MembershipID)
	})

	t.Run("free cannot be cancelled", func(t *testing.T) {
		f := newMembershipFixture(t, int64Ptr(1))

		can, err := f.svc.CanCancel(ctx, "user-1")
		require.NoError(t, err)
		assert.False(t, can)

		result, err := f.svc.Cancel(ctx, "user-1")
		require.NoError(t, err)
		assert.False(t, result.Success)
		assert.Equal(t, CancelFreeNotAllowed, result.Message)
		assert.Empty(t, f.changer.Changes)
	})

	t.Run("no membership", func(t *testing.T) {
		f := newMembershipFixture(t, nil)
		result, err := f.svc.Cancel(ctx, "user-1")
		require.NoError(t, err)
		assert.Equal(t, CancelNoActive, result.Message)
	})

	t.Run("unknown user", func(t *testing.T) {
		f := newMembershipFixture(t, nil)
		result, err := f.svc.Cancel(ctx, "ghost")
		require.NoError(t, err)
		assert.Equal(t, CancelUserNotFound, result.Message)
	})
}

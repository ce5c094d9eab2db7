package services

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/BradenHooton/voice-membership/internal/models"
	pkgauth "github.com/BradenHooton/voice-membership/pkg/auth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type resetFixture struct {
	svc     *PasswordResetService
	tokens  *memResetTokenStore
	mailer  *MockMailer
	links   []string
	newHash string
}

func newResetFixture(t *testing.T) *resetFixture {
	t.Helper()
	user := NewTestUser("user-1", "member@example.com")
	f := &resetFixture{tokens: newMemResetTokenStore()}

	f.mailer = &MockMailer{
		SendPasswordResetFunc: func(ctx context.Context, to, link string, expiresAt time.Time) error {
			f.links = append(f.links, link)
			return nil
		},
	}
	users := &MockUserRepository{
		GetByEmailFunc: func(ctx context.Context, email string) (*models.User, error) {
			if email == user.Email {
				return user, nil
			}
			return nil, models.ErrNotFound
		},
		UpdatePasswordFunc: func(ctx context.Context, id, passwordHash string) error {
			f.newHash = passwordHash
			return nil
		},
	}

	f.svc = NewPasswordResetService(f.tokens, users, f.mailer, time.Hour, testLogger(), testAuditLogger())
	return f
}

func (f *resetFixture) token(t *testing.T) string {
	t.Helper()
	require.Len(t, f.links, 1)
	u, err := url.Parse(f.links[0])
	require.NoError(t, err)
	return u.Query().Get("token")
}

func TestPasswordResetService_RequestReset(t *testing.T) {
	f := newResetFixture(t)

	require.NoError(t, f.svc.RequestReset(context.Background(), " Member@Example.com", "https://voice.test"))

	require.Len(t, f.links, 1)
	assert.True(t, strings.HasPrefix(f.links[0], "https://voice.test/reset-password?token="))

	token := f.token(t)
	stored, ok := f.tokens.tokens[hashResetToken(token)]
	require.True(t, ok, "only the hash is stored")
	assert.Equal(t, "user-1", stored.UserID)
	assert.NotContains(t, f.tokens.tokens, token)
}

func TestPasswordResetService_RequestResetUnknownEmail(t *testing.T) {
	f := newResetFixture(t)

	require.NoError(t, f.svc.RequestReset(context.Background(), "nobody@example.com", "https://voice.test"))
	assert.Empty(t, f.links)
	assert.Empty(t, f.tokens.tokens)
}

func TestPasswordResetService_RequestResetSwallowsMailFailure(t *testing.T) {
	f := newResetFixture(t)
	f.mailer.SendPasswordResetFunc = func(ctx context.Context, to, link string, expiresAt time.Time) error {
		return errors.New("ses down")
	}

	assert.NoError(t, f.svc.RequestReset(context.Background(), "member@example.com", "https://voice.test"))
}

func TestPasswordResetService_ValidateToken(t *testing.T) {
	f := newResetFixture(t)
	ctx := context.Background()
	require.NoError(t, f.svc.RequestReset(ctx, "member@example.com", ""))
	token := f.token(t)

	_, err := f.svc.ValidateToken(ctx, token)
	require.NoError(t, err)

	_, err = f.svc.ValidateToken(ctx, "not-a-token")
	assert.ErrorIs(t, err, models.ErrInvalidToken)

	_, err = f.svc.ValidateToken(ctx, "")
	assert.ErrorIs(t, err, models.ErrInvalidToken)

	f.svc.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	_, err = f.svc.ValidateToken(ctx, token)
	assert.ErrorIs(t, err, models.ErrInvalidToken, "expired")
}

func TestPasswordResetService_ResetPassword(t *testing.T) {
	f := newResetFixture(t)
	ctx := context.Background()
	require.NoError(t, f.svc.RequestReset(ctx, "member@example.com", ""))
	token := f.token(t)

	err := f.svc.ResetPassword(ctx, token, "New-Passw0rd!", "Other-Passw0rd!")
	assert.ErrorIs(t, err, models.ErrPasswordMismatch)

	err = f.svc.ResetPassword(ctx, token, "weak", "weak")
	var policyErr *pkgauth.PasswordValidationError
	assert.True(t, errors.As(err, &policyErr))

	require.NoError(t, f.svc.ResetPassword(ctx, token, "New-Passw0rd!", "New-Passw0rd!"))
	require.NotEmpty(t, f.newHash)
	assert.NoError(t, pkgauth.ComparePassword(f.newHash, "New-Passw0rd!"))

	err = f.svc.ResetPassword(ctx, token, "New-Passw0rd!", "New-Passw0rd!")
	assert.ErrorIs(t, err, models.ErrInvalidToken, "tokens are single use")
}

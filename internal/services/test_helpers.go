package services

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/BradenHooton/voice-membership/internal/events"
	"github.com/BradenHooton/voice-membership/internal/models"
	pkglogger "github.com/BradenHooton/voice-membership/pkg/logger"
	"golang.org/x/crypto/bcrypt"
)

// testLogger discards output so test runs stay quiet.
func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testAuditLogger() *pkglogger.AuditLogger {
	return pkglogger.NewAuditLogger(testLogger())
}

// testPasswordHash hashes at the minimum cost; ComparePassword accepts any
// cost so tests avoid the production work factor.
func testPasswordHash(password string) string {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		panic(err)
	}
	return string(hash)
}

// NewTestUser creates a member with the given id and email.
func NewTestUser(id, email string) *models.User {
	now := time.Now()
	return &models.User{
		ID:        id,
		FirstName: "Test",
		LastName:  "User",
		Email:     email,
		Phone:     "604-555-0100",
		Role:      models.RoleUser,
		TokenKey:  "token-key-" + id,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func int64Ptr(v int64) *int64 { return &v }

// MockUserRepository implements the user repository interfaces for testing
type MockUserRepository struct {
	GetByIDFunc        func(ctx context.Context, id string) (*models.User, error)
	GetByEmailFunc     func(ctx context.Context, email string) (*models.User, error)
	CreateFunc         func(ctx context.Context, user *models.User) (*models.User, error)
	UpdateProfileFunc  func(ctx context.Context, user *models.User) (*models.User, error)
	UpdatePasswordFunc func(ctx context.Context, id, passwordHash string) error
	UpdateRoleFunc     func(ctx context.Context, id, role string) error
	SearchFunc         func(ctx context.Context, f models.UserFilter) ([]*models.User, error)
	CountFunc          func(ctx context.Context) (int64, error)
}

func (m *MockUserRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, id)
	}
	return nil, models.ErrNotFound
}

func (m *MockUserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	if m.GetByEmailFunc != nil {
		return m.GetByEmailFunc(ctx, email)
	}
	return nil, models.ErrNotFound
}

func (m *MockUserRepository) Create(ctx context.Context, user *models.User) (*models.User, error) {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, user)
	}
	return nil, models.ErrInternalServer
}

func (m *MockUserRepository) UpdateProfile(ctx context.Context, user *models.User) (*models.User, error) {
	if m.UpdateProfileFunc != nil {
		return m.UpdateProfileFunc(ctx, user)
	}
	return user, nil
}

func (m *MockUserRepository) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	if m.UpdatePasswordFunc != nil {
		return m.UpdatePasswordFunc(ctx, id, passwordHash)
	}
	return nil
}

func (m *MockUserRepository) UpdateRole(ctx context.Context, id, role string) error {
	if m.UpdateRoleFunc != nil {
		return m.UpdateRoleFunc(ctx, id, role)
	}
	return nil
}

func (m *MockUserRepository) Search(ctx context.Context, f models.UserFilter) ([]*models.User, error) {
	if m.SearchFunc != nil {
		return m.SearchFunc(ctx, f)
	}
	return []*models.User{}, nil
}

func (m *MockUserRepository) Count(ctx context.Context) (int64, error) {
	if m.CountFunc != nil {
		return m.CountFunc(ctx)
	}
	return 0, nil
}

// memLockoutStore is an in-memory account store with the same
// compare-and-swap contract as UserRepository.CompareAndSwapLockout.
type memLockoutStore struct {
	mu    sync.Mutex
	users map[string]*models.User // by id

	// beforeSwap runs inside CompareAndSwapLockout before the comparison,
	// letting tests simulate a concurrent writer.
	beforeSwap func(u *models.User)
	swaps      int
}

func newMemLockoutStore(users ...*models.User) *memLockoutStore {
	s := &memLockoutStore{users: make(map[string]*models.User)}
	for _, u := range users {
		s.users[u.ID] = u
	}
	return s
}

func (s *memLockoutStore) GetByEmail(_ context.Context, email string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if strings.EqualFold(u.Email, email) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, models.ErrNotFound
}

func (s *memLockoutStore) GetByID(_ context.Context, id string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (s *memLockoutStore) CompareAndSwapLockout(_ context.Context, id string, prev, next models.LockoutState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return models.ErrNotFound
	}
	if s.beforeSwap != nil {
		s.beforeSwap(u)
	}
	if u.Lockout.FailedAttempts != prev.FailedAttempts || u.Lockout.Locked != prev.Locked {
		return models.ErrConflict
	}
	u.Lockout = next
	s.swaps++
	return nil
}

func (s *memLockoutStore) state(id string) models.LockoutState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.users[id].Lockout
}

// testClock is a settable clock for lockout expiry tests.
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// MockTokenRevocationRepository implements TokenRevocationRepository for testing
type MockTokenRevocationRepository struct {
	RevokeTokenFunc    func(ctx context.Context, jti, userID string, expiresAt time.Time) error
	IsTokenRevokedFunc func(ctx context.Context, jti string) (bool, error)
}

func (m *MockTokenRevocationRepository) RevokeToken(ctx context.Context, jti, userID string, expiresAt time.Time) error {
	if m.RevokeTokenFunc != nil {
		return m.RevokeTokenFunc(ctx, jti, userID, expiresAt)
	}
	return nil
}

func (m *MockTokenRevocationRepository) IsTokenRevoked(ctx context.Context, jti string) (bool, error) {
	if m.IsTokenRevokedFunc != nil {
		return m.IsTokenRevokedFunc(ctx, jti)
	}
	return false, nil
}

// MockPublisher records published events.
type MockPublisher struct {
	mu     sync.Mutex
	Events []events.Event
	Err    error
	Closed bool
}

func (p *MockPublisher) Publish(_ context.Context, event events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.Err != nil {
		return p.Err
	}
	p.Events = append(p.Events, event)
	return nil
}

func (p *MockPublisher) Close() error {
	p.Closed = true
	return nil
}

func (p *MockPublisher) Types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	types := make([]string, len(p.Events))
	for i, e := range p.Events {
		types[i] = e.Type
	}
	return types
}

// MockMailer implements Mailer for testing
type MockMailer struct {
	SendPasswordResetFunc       func(ctx context.Context, to, link string, expiresAt time.Time) error
	SendUpgradeConfirmationFunc func(ctx context.Context, to string, u UpgradeReceipt) error
}

func (m *MockMailer) SendPasswordReset(ctx context.Context, to, link string, expiresAt time.Time) error {
	if m.SendPasswordResetFunc != nil {
		return m.SendPasswordResetFunc(ctx, to, link, expiresAt)
	}
	return nil
}

func (m *MockMailer) SendUpgradeConfirmation(ctx context.Context, to string, u UpgradeReceipt) error {
	if m.SendUpgradeConfirmationFunc != nil {
		return m.SendUpgradeConfirmationFunc(ctx, to, u)
	}
	return nil
}

// memSessionStore is an in-memory RegistrationSessionStore.
type memSessionStore struct {
	mu   sync.Mutex
	data map[string][]byte
}

func newMemSessionStore() *memSessionStore {
	return &memSessionStore{data: make(map[string][]byte)}
}

func (s *memSessionStore) Get(_ context.Context, id string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.data[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	return d, nil
}

func (s *memSessionStore) Put(_ context.Context, id string, state []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[id] = state
	return nil
}

func (s *memSessionStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, id)
	return nil
}

func (s *memSessionStore) has(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.data[id]
	return ok
}

// MockAccountCreator implements AccountCreator for testing
type MockAccountCreator struct {
	CreateAccountFunc func(ctx context.Context, account *models.NewAccount) (*models.User, error)
}

func (m *MockAccountCreator) CreateAccount(ctx context.Context, account *models.NewAccount) (*models.User, error) {
	if m.CreateAccountFunc != nil {
		return m.CreateAccountFunc(ctx, account)
	}
	account.User.ID = "new-user"
	return account.User, nil
}

// MockEmailChecker implements EmailChecker for testing
type MockEmailChecker struct {
	EmailExistsFunc func(ctx context.Context, email string) (bool, error)
}

func (m *MockEmailChecker) EmailExists(ctx context.Context, email string) (bool, error) {
	if m.EmailExistsFunc != nil {
		return m.EmailExistsFunc(ctx, email)
	}
	return false, nil
}

// MockSessionEstablisher implements SessionEstablisher for testing
type MockSessionEstablisher struct {
	EstablishSessionFunc func(ctx context.Context, user *models.User) (*models.TokenPair, error)
}

func (m *MockSessionEstablisher) EstablishSession(ctx context.Context, user *models.User) (*models.TokenPair, error) {
	if m.EstablishSessionFunc != nil {
		return m.EstablishSessionFunc(ctx, user)
	}
	return &models.TokenPair{AccessToken: "access", RefreshToken: "refresh"}, nil
}

// MockMembershipRepository implements MembershipRepository and
// MembershipCatalog over a fixed list of tiers.
type MockMembershipRepository struct {
	Memberships []*models.Membership
	GetCalls    int
	ListCalls   int
}

func (m *MockMembershipRepository) GetByID(_ context.Context, id int64) (*models.Membership, error) {
	m.GetCalls++
	for _, ms := range m.Memberships {
		if ms.ID == id {
			return ms, nil
		}
	}
	return nil, models.ErrNotFound
}

func (m *MockMembershipRepository) Get(ctx context.Context, id int64) (*models.Membership, error) {
	return m.GetByID(ctx, id)
}

func (m *MockMembershipRepository) ListActive(_ context.Context) ([]*models.Membership, error) {
	m.ListCalls++
	active := make([]*models.Membership, 0, len(m.Memberships))
	for _, ms := range m.Memberships {
		if ms.Active {
			active = append(active, ms)
		}
	}
	return active, nil
}

func freeTier() *models.Membership {
	return &models.Membership{ID: 1, Name: "Free", Description: "Get started with VOICE community", IsFree: true, DisplayOrder: 1, Active: true}
}

func premiumTier() *models.Membership {
	return &models.Membership{ID: 2, Name: "Premium", Description: "Support VOICE and unlock premium benefits", PriceCents: 2000, DisplayOrder: 2, Active: true}
}

func testCatalog() *MockMembershipRepository {
	return &MockMembershipRepository{Memberships: []*models.Membership{freeTier(), premiumTier()}}
}

// MockMembershipChanger implements MembershipChanger for testing
type MockMembershipChanger struct {
	Changes              []models.MembershipChange
	ChangeMembershipFunc func(ctx context.Context, change models.MembershipChange) error
}

func (m *MockMembershipChanger) ChangeMembership(ctx context.Context, change models.MembershipChange) error {
	if m.ChangeMembershipFunc != nil {
		if err := m.ChangeMembershipFunc(ctx, change); err != nil {
			return err
		}
	}
	m.Changes = append(m.Changes, change)
	return nil
}

// MockChildRepository implements ChildRepository and AdminChildRepository
// for testing
type MockChildRepository struct {
	CreateFunc        func(ctx context.Context, c *models.Child) (*models.Child, error)
	ListByUserIDFunc  func(ctx context.Context, userID string) ([]*models.Child, error)
	ListByUserIDsFunc func(ctx context.Context, userIDs []string) (map[string][]*models.Child, error)
	GetOwnedFunc      func(ctx context.Context, userID string, id int64) (*models.Child, error)
	UpdateFunc        func(ctx context.Context, c *models.Child) (*models.Child, error)
	DeleteFunc        func(ctx context.Context, userID string, id int64) error
}

func (m *MockChildRepository) Create(ctx context.Context, c *models.Child) (*models.Child, error) {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, c)
	}
	c.ID = 1
	return c, nil
}

func (m *MockChildRepository) ListByUserID(ctx context.Context, userID string) ([]*models.Child, error) {
	if m.ListByUserIDFunc != nil {
		return m.ListByUserIDFunc(ctx, userID)
	}
	return []*models.Child{}, nil
}

func (m *MockChildRepository) ListByUserIDs(ctx context.Context, userIDs []string) (map[string][]*models.Child, error) {
	if m.ListByUserIDsFunc != nil {
		return m.ListByUserIDsFunc(ctx, userIDs)
	}
	return map[string][]*models.Child{}, nil
}

func (m *MockChildRepository) GetOwned(ctx context.Context, userID string, id int64) (*models.Child, error) {
	if m.GetOwnedFunc != nil {
		return m.GetOwnedFunc(ctx, userID, id)
	}
	return nil, models.ErrNotFound
}

func (m *MockChildRepository) Update(ctx context.Context, c *models.Child) (*models.Child, error) {
	if m.UpdateFunc != nil {
		return m.UpdateFunc(ctx, c)
	}
	return c, nil
}

func (m *MockChildRepository) Delete(ctx context.Context, userID string, id int64) error {
	if m.DeleteFunc != nil {
		return m.DeleteFunc(ctx, userID, id)
	}
	return nil
}

// memResetTokenStore is an in-memory PasswordResetRepository.
type memResetTokenStore struct {
	mu     sync.Mutex
	tokens map[string]*models.PasswordResetToken
}

func newMemResetTokenStore() *memResetTokenStore {
	return &memResetTokenStore{tokens: make(map[string]*models.PasswordResetToken)}
}

func (s *memResetTokenStore) Create(_ context.Context, userID, tokenHash string, expiresAt time.Time) (*models.PasswordResetToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := &models.PasswordResetToken{TokenHash: tokenHash, UserID: userID, ExpiresAt: expiresAt, CreatedAt: time.Now()}
	s.tokens[tokenHash] = t
	return t, nil
}

func (s *memResetTokenStore) GetByTokenHash(_ context.Context, tokenHash string) (*models.PasswordResetToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tokens[tokenHash]
	if !ok {
		return nil, models.ErrNotFound
	}
	cp := *t
	return &cp, nil
}

func (s *memResetTokenStore) MarkAsUsed(_ context.Context, tokenHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tokens[tokenHash]
	if !ok || t.UsedAt != nil {
		return models.ErrNotFound
	}
	now := time.Now()
	t.UsedAt = &now
	return nil
}

// MockLandingRepository implements LandingRepository for testing. Seeding
// calls are recorded by name.
type MockLandingRepository struct {
	Memberships []*models.Membership
	Benefits    []*models.MembershipBenefit
	Content     map[string]*models.LandingPageContent
	ListErr     error
}

func (m *MockLandingRepository) ListActive(_ context.Context) ([]*models.Membership, error) {
	if m.ListErr != nil {
		return nil, m.ListErr
	}
	return m.Memberships, nil
}

func (m *MockLandingRepository) CreateIfMissing(_ context.Context, ms *models.Membership) (bool, error) {
	for _, existing := range m.Memberships {
		if existing.Name == ms.Name {
			return false, nil
		}
	}
	ms.ID = int64(len(m.Memberships) + 1)
	m.Memberships = append(m.Memberships, ms)
	return true, nil
}

func (m *MockLandingRepository) ListActiveBenefits(_ context.Context) ([]*models.MembershipBenefit, error) {
	return m.Benefits, nil
}

func (m *MockLandingRepository) CreateBenefitIfMissing(_ context.Context, b *models.MembershipBenefit) (bool, error) {
	for _, existing := range m.Benefits {
		if existing.Title == b.Title {
			return false, nil
		}
	}
	b.ID = int64(len(m.Benefits) + 1)
	m.Benefits = append(m.Benefits, b)
	return true, nil
}

func (m *MockLandingRepository) GetContent(_ context.Context, key string) (*models.LandingPageContent, error) {
	c, ok := m.Content[key]
	if !ok {
		return nil, models.ErrNotFound
	}
	return c, nil
}

func (m *MockLandingRepository) SetContentIfMissing(_ context.Context, c *models.LandingPageContent) (bool, error) {
	if m.Content == nil {
		m.Content = make(map[string]*models.LandingPageContent)
	}
	if _, ok := m.Content[c.Key]; ok {
		return false, nil
	}
	m.Content[c.Key] = c
	return true, nil
}

// MockCatalogCache counts invalidations.
type MockCatalogCache struct {
	Invalidations int
}

func (m *MockCatalogCache) InvalidateCache() { m.Invalidations++ }

// MockUnlocker implements Unlocker for testing
type MockUnlocker struct {
	UnlockFunc func(ctx context.Context, userID string) error
}

func (m *MockUnlocker) Unlock(ctx context.Context, userID string) error {
	if m.UnlockFunc != nil {
		return m.UnlockFunc(ctx, userID)
	}
	return nil
}

package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/BradenHooton/voice-membership/internal/events"
	"github.com/BradenHooton/voice-membership/internal/metrics"
	"github.com/BradenHooton/voice-membership/internal/models"
	pkglogger "github.com/BradenHooton/voice-membership/pkg/logger"
)

// LockoutRepository defines the account lookups and the conditional write
// the lockout tracker needs.
type LockoutRepository interface {
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	GetByID(ctx context.Context, id string) (*models.User, error)
	CompareAndSwapLockout(ctx context.Context, id string, prev, next models.LockoutState) error
}

// LockoutConfig holds the lockout policy.
type LockoutConfig struct {
	MaxFailedAttempts int
	Duration          time.Duration
}

// lockoutWriteAttempts bounds retries after losing a compare-and-swap race.
const lockoutWriteAttempts = 3

// LockoutService tracks consecutive failed logins per account and locks the
// account for a fixed period once the threshold is reached. Expired locks
// are released lazily, the next time the account is checked.
//
// Unknown accounts are never reported: every operation degrades to a
// no-op or to the answer an unlocked account would get.
type LockoutService struct {
	repo        LockoutRepository
	config      LockoutConfig
	publisher   events.Publisher
	logger      *slog.Logger
	auditLogger *pkglogger.AuditLogger
	now         func() time.Time
}

func NewLockoutService(repo LockoutRepository, config LockoutConfig, publisher events.Publisher, logger *slog.Logger, auditLogger *pkglogger.AuditLogger) *LockoutService {
	return &LockoutService{
		repo:        repo,
		config:      config,
		publisher:   publisher,
		logger:      logger,
		auditLogger: auditLogger,
		now:         time.Now,
	}
}

// MaxAttempts is the configured failure threshold.
func (s *LockoutService) MaxAttempts() int {
	return s.config.MaxFailedAttempts
}

type lockoutWrite struct {
	user    *models.User
	prev    models.LockoutState
	next    models.LockoutState
	changed bool
}

// update applies mutate to the stored lockout state with compare-and-swap
// semantics, re-reading and retrying when a concurrent login wins the race.
// A nil user in the result means the account does not exist.
func (s *LockoutService) update(
	ctx context.Context,
	lookup func(context.Context) (*models.User, error),
	mutate func(models.LockoutState, time.Time) (models.LockoutState, bool),
) (lockoutWrite, error) {
	for attempt := 1; attempt <= lockoutWriteAttempts; attempt++ {
		user, err := lookup(ctx)
		if err != nil {
			if errors.Is(err, models.ErrNotFound) {
				return lockoutWrite{}, nil
			}
			return lockoutWrite{}, fmt.Errorf("failed to load lockout state: %w", err)
		}

		prev := user.Lockout
		next, changed := mutate(prev, s.now())
		if !changed {
			return lockoutWrite{user: user, prev: prev, next: prev}, nil
		}

		err = s.repo.CompareAndSwapLockout(ctx, user.ID, prev, next)
		switch {
		case err == nil:
			user.Lockout = next
			return lockoutWrite{user: user, prev: prev, next: next, changed: true}, nil
		case errors.Is(err, models.ErrConflict):
			s.logger.Debug("lockout write lost a race, retrying",
				slog.String("user_id", user.ID),
				slog.Int("attempt", attempt))
			continue
		case errors.Is(err, models.ErrNotFound):
			return lockoutWrite{}, nil
		default:
			return lockoutWrite{}, fmt.Errorf("failed to persist lockout state: %w", err)
		}
	}

	return lockoutWrite{}, fmt.Errorf("lockout state contended after %d attempts: %w", lockoutWriteAttempts, models.ErrConflict)
}

func (s *LockoutService) byEmail(email string) func(context.Context) (*models.User, error) {
	return func(ctx context.Context) (*models.User, error) {
		return s.repo.GetByEmail(ctx, email)
	}
}

// RecordFailedAttempt counts a failed login. A locked account is left as it
// is, so repeated failures do not extend the lock.
func (s *LockoutService) RecordFailedAttempt(ctx context.Context, email string) error {
	w, err := s.update(ctx, s.byEmail(email), func(st models.LockoutState, now time.Time) (models.LockoutState, bool) {
		if st.Locked {
			return st, false
		}

		next := models.LockoutState{FailedAttempts: st.FailedAttempts + 1}
		if next.FailedAttempts >= s.config.MaxFailedAttempts {
			next.Locked = true
			next.LockoutTime = &now
		}
		return next, true
	})
	if err != nil {
		return err
	}

	if w.changed && w.next.Locked {
		metrics.AccountLockoutsTotal.Inc()
		s.logger.Warn("account locked after repeated failed logins",
			slog.String("user_id", w.user.ID),
			slog.Int("failed_attempts", w.next.FailedAttempts))
		s.auditLogger.LogAccountAction(ctx, pkglogger.EventAccountLocked, w.user.ID, map[string]string{
			"failed_attempts": fmt.Sprint(w.next.FailedAttempts),
			"duration":        s.config.Duration.String(),
		})
		events.Emit(ctx, s.publisher, s.logger, events.New(events.AccountLocked, w.user.ID, map[string]string{
			"locked_until": w.next.LockoutTime.Add(s.config.Duration).UTC().Format(time.RFC3339),
		}))
	}

	return nil
}

// IsLocked reports whether the account is currently locked. A lock whose
// duration has run out is cleared as a side effect.
func (s *LockoutService) IsLocked(ctx context.Context, email string) (bool, error) {
	w, err := s.update(ctx, s.byEmail(email), func(st models.LockoutState, now time.Time) (models.LockoutState, bool) {
		if !st.Locked || !st.Elapsed(now, s.config.Duration) {
			return st, false
		}
		return st.Cleared(), true
	})
	if err != nil {
		return false, err
	}
	if w.user == nil {
		return false, nil
	}

	if w.changed {
		metrics.AccountUnlocksTotal.WithLabelValues("expired").Inc()
		s.logger.Info("account lock expired", slog.String("user_id", w.user.ID))
		s.auditLogger.LogAccountAction(ctx, pkglogger.EventAccountUnlock, w.user.ID, map[string]string{"reason": "expired"})
	}

	return w.next.Locked, nil
}

// ResetOnSuccess clears the counter after a verified login.
func (s *LockoutService) ResetOnSuccess(ctx context.Context, email string) error {
	_, err := s.update(ctx, s.byEmail(email), clearLockout)
	return err
}

// Unlock is the admin override. Unlike the email-keyed operations it
// reports an unknown account.
func (s *LockoutService) Unlock(ctx context.Context, userID string) error {
	w, err := s.update(ctx, func(ctx context.Context) (*models.User, error) {
		return s.repo.GetByID(ctx, userID)
	}, clearLockout)
	if err != nil {
		return err
	}
	if w.user == nil {
		return models.ErrNotFound
	}

	if w.prev.Locked {
		metrics.AccountUnlocksTotal.WithLabelValues("admin").Inc()
		s.auditLogger.LogAccountAction(ctx, pkglogger.EventAccountUnlock, userID, map[string]string{"reason": "admin"})
	}

	return nil
}

func clearLockout(st models.LockoutState, _ time.Time) (models.LockoutState, bool) {
	if st.FailedAttempts == 0 && !st.Locked {
		return st, false
	}
	return st.Cleared(), true
}

// RemainingLockoutMinutes is the time left on a lock, rounded up to whole
// minutes.
func (s *LockoutService) RemainingLockoutMinutes(ctx context.Context, email string) (int, error) {
	user, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to load lockout state: %w", err)
	}

	return remainingMinutes(user.Lockout, s.now(), s.config.Duration), nil
}

func remainingMinutes(st models.LockoutState, now time.Time, d time.Duration) int {
	if !st.Locked || st.LockoutTime == nil {
		return 0
	}
	left := st.LockoutTime.Add(d).Sub(now)
	if left <= 0 {
		return 0
	}
	return int(math.Ceil(left.Minutes()))
}

// RemainingAttempts is how many more failures the account can take before
// it locks.
func (s *LockoutService) RemainingAttempts(ctx context.Context, email string) (int, error) {
	user, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return s.config.MaxFailedAttempts, nil
		}
		return 0, fmt.Errorf("failed to load lockout state: %w", err)
	}

	return max(0, s.config.MaxFailedAttempts-user.Lockout.FailedAttempts), nil
}

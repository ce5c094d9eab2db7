package models

import "time"

// LockoutState is the failed-login bookkeeping stored on each account.
// Locked implies LockoutTime != nil.
type LockoutState struct {
	FailedAttempts int
	Locked         bool
	LockoutTime    *time.Time
}

// Cleared is the state after a successful login, an admin unlock or an
// expired lock.
func (s LockoutState) Cleared() LockoutState {
	return LockoutState{}
}

// Elapsed reports whether a lock applied at LockoutTime has run for at least d.
func (s LockoutState) Elapsed(now time.Time, d time.Duration) bool {
	if !s.Locked || s.LockoutTime == nil {
		return true
	}
	return now.Sub(*s.LockoutTime) >= d
}

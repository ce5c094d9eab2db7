package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Login outcomes.
const (
	LoginSuccess = "success"
	LoginFailure = "failure"
	LoginLocked  = "locked"
)

var (
	LoginAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "voice_login_attempts_total",
			Help: "Login attempts by outcome",
		},
		[]string{"outcome"},
	)

	AccountLockoutsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "voice_account_lockouts_total",
			Help: "Accounts locked after repeated failed logins",
		},
	)

	AccountUnlocksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "voice_account_unlocks_total",
			Help: "Locked accounts released, by reason",
		},
		[]string{"reason"}, // expired, admin
	)

	RegistrationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "voice_registrations_total",
			Help: "Completed registrations by membership tier",
		},
		[]string{"tier"}, // free, paid
	)

	RegistrationFailuresTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "voice_registration_failures_total",
			Help: "Registration completions that failed to persist",
		},
	)

	MembershipChangesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "voice_membership_changes_total",
			Help: "Membership upgrades and cancellations",
		},
		[]string{"change"},
	)

	PasswordResetRequestsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "voice_password_reset_requests_total",
			Help: "Password reset links requested",
		},
	)

	EmailsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "voice_emails_total",
			Help: "Outgoing emails by kind and status",
		},
		[]string{"kind", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "voice_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route", "status"},
	)

	CleanupRowsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "voice_cleanup_rows_total",
			Help: "Rows removed by scheduled cleanup jobs",
		},
		[]string{"job"},
	)
)

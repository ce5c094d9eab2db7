package models

import "errors"

// Sentinel errors for common failure conditions
var (
	ErrNotFound       = errors.New("resource not found")
	ErrConflict       = errors.New("resource already exists")
	ErrUnauthorized   = errors.New("unauthorized")
	ErrForbidden      = errors.New("forbidden")
	ErrBadRequest     = errors.New("bad request")
	ErrInternalServer = errors.New("internal server error")

	// Account state errors
	ErrAccountLocked = errors.New("account is temporarily locked")

	// Token errors
	ErrInvalidToken = errors.New("invalid or expired token")
	ErrTokenExpired = errors.New("token expired")

	// Registration and profile errors
	ErrEmailExists       = errors.New("email already exists")
	ErrPasswordMismatch  = errors.New("passwords do not match")
	ErrPaymentIncomplete = errors.New("all payment fields are required")

	// Membership errors
	ErrInvalidMembership            = errors.New("invalid membership")
	ErrNotEligibleForUpgrade        = errors.New("not eligible for upgrade")
	ErrNoActiveMembership           = errors.New("no active membership")
	ErrFreeMembershipNotCancellable = errors.New("free memberships cannot be cancelled")
)

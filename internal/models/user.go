package models

import (
	"strings"
	"time"
)

const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

type User struct {
	ID                   string       `json:"id"`
	FirstName            string       `json:"first_name"`
	MiddleName           string       `json:"middle_name,omitempty"`
	LastName             string       `json:"last_name"`
	Email                string       `json:"email"`
	PasswordHash         string       `json:"-"`
	Phone                string       `json:"phone"`
	Address              string       `json:"address,omitempty"`
	City                 string       `json:"city,omitempty"`
	Province             string       `json:"province,omitempty"`
	PostalCode           string       `json:"postal_code,omitempty"`
	Role                 string       `json:"role"`
	TokenKey             string       `json:"-"` // Per-user secret for composite token signing
	MembershipID         *int64       `json:"membership_id,omitempty"`
	MembershipStartDate  *time.Time   `json:"membership_start_date,omitempty"`
	MembershipExpiryDate *time.Time   `json:"membership_expiry_date,omitempty"`
	Lockout              LockoutState `json:"-"`
	CreatedAt            time.Time    `json:"created_at"`
	UpdatedAt            time.Time    `json:"updated_at"`
}

// FullName joins the non-empty name parts.
func (u *User) FullName() string {
	parts := make([]string, 0, 3)
	for _, p := range []string{u.FirstName, u.MiddleName, u.LastName} {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, " ")
}

func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// NormalizeEmail is the canonical form used for lookups and uniqueness.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// UserDetails is a user together with the records an admin or the profile
// page shows alongside it.
type UserDetails struct {
	User       *User       `json:"user"`
	Children   []*Child    `json:"children"`
	Membership *Membership `json:"membership,omitempty"`
}

// UserFilter narrows the admin dashboard listing. Zero values disable a
// criterion.
type UserFilter struct {
	Address         string // matches address or postal code
	City            string
	Province        string
	ChildMinAge     *int
	ChildMaxAge     *int
	HearingLossType string
	EquipmentType   string
	RegisteredFrom  *time.Time
	RegisteredTo    *time.Time // inclusive calendar day
}

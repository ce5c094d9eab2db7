package models

import "time"

type Cart struct {
	ID        int64       `json:"id"`
	UserID    string      `json:"user_id"`
	Items     []*CartItem `json:"items"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`
}

type CartItem struct {
	ID              int64 `json:"id"`
	CartID          int64 `json:"cart_id"`
	MembershipID    int64 `json:"membership_id"`
	Quantity        int   `json:"quantity"`
	UnitPriceCents  int64 `json:"unit_price_cents"`
	TotalPriceCents int64 `json:"total_price_cents"`
}

// NewCartItem prices a single unit of m.
func NewCartItem(m *Membership) *CartItem {
	return &CartItem{
		MembershipID:    m.ID,
		Quantity:        1,
		UnitPriceCents:  m.PriceCents,
		TotalPriceCents: m.PriceCents,
	}
}

// NewAccount is everything the registration wizard persists in one
// transaction.
type NewAccount struct {
	User     *User
	Children []*Child
	CartItem *CartItem // nil for free memberships
}

// MembershipChange relinks an existing account to another tier (upgrade or
// cancellation). A nil MembershipID leaves the account without a tier.
type MembershipChange struct {
	UserID       string
	MembershipID *int64
	StartDate    *time.Time
	ExpiryDate   *time.Time
	CartItem     *CartItem
}

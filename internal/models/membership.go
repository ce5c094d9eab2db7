package models

import "fmt"

type Membership struct {
	ID           int64  `json:"id"`
	Name         string `json:"name"`
	Description  string `json:"description"`
	PriceCents   int64  `json:"price_cents"`
	Features     string `json:"features,omitempty"`
	IsFree       bool   `json:"is_free"`
	DisplayOrder int    `json:"display_order"`
	Active       bool   `json:"active"`
}

// PriceDisplay formats the price as dollars, e.g. "$20.00".
func (m *Membership) PriceDisplay() string {
	return FormatCents(m.PriceCents)
}

func FormatCents(cents int64) string {
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	return fmt.Sprintf("%s$%d.%02d", sign, cents/100, cents%100)
}

type MembershipBenefit struct {
	ID           int64  `json:"id"`
	Title        string `json:"title"`
	Description  string `json:"description"`
	Icon         string `json:"icon"`
	DisplayOrder int    `json:"display_order"`
	Active       bool   `json:"active"`
}

type LandingPageContent struct {
	Key    string `json:"key"`
	Value  string `json:"value"`
	Active bool   `json:"active"`
}

const LandingKeyTagline = "tagline"

package models

import "strings"

// PaymentDetails are the checkout form fields. No gateway is called; the
// fields only have to be present.
type PaymentDetails struct {
	CardNumber     string `form:"cardNumber" json:"cardNumber"`
	CardHolderName string `form:"cardHolderName" json:"cardHolderName"`
	ExpiryMonth    string `form:"expiryMonth" json:"expiryMonth"`
	ExpiryYear     string `form:"expiryYear" json:"expiryYear"`
	CVV            string `form:"cvv" json:"cvv"`
}

func (p PaymentDetails) Complete() bool {
	for _, f := range []string{p.CardNumber, p.CardHolderName, p.ExpiryMonth, p.ExpiryYear, p.CVV} {
		if strings.TrimSpace(f) == "" {
			return false
		}
	}
	return true
}

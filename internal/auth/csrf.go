package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
)

// GenerateCSRFToken returns a random token for the double-submit cookie
// check. Nothing is kept server side.
func GenerateCSRFToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// CSRFTokensMatch compares the cookie and submitted tokens in constant time.
func CSRFTokensMatch(cookieToken, submitted string) bool {
	if cookieToken == "" || submitted == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(cookieToken), []byte(submitted)) == 1
}

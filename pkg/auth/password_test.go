package auth

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidatePassword(t *testing.T) {
	tests := []struct {
		name       string
		password   string
		shouldFail bool
	}{
		{name: "valid strong password", password: "SecureP@ss123"},
		{name: "valid with symbols", password: "MyP@ssw0rd!"},
		{name: "exactly eight characters", password: "Abcde1!x"},
		{name: "exactly sixty four characters", password: "Aa1!" + strings.Repeat("x", 60)},
		{name: "too short", password: "Pass@1", shouldFail: true},
		{name: "too long", password: "Aa1!" + strings.Repeat("x", 61), shouldFail: true},
		{name: "missing uppercase", password: "securepass@123", shouldFail: true},
		{name: "missing lowercase", password: "SECUREPASS@123", shouldFail: true},
		{name: "missing digit", password: "SecurePass@xyz", shouldFail: true},
		{name: "missing special character", password: "SecurePass123", shouldFail: true},
		{name: "contains space", password: "Secure P@ss123", shouldFail: true},
		{name: "contains tab", password: "Secure\tP@ss123", shouldFail: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePassword(tt.password)

			if !tt.shouldFail {
				assert.NoError(t, err)
				return
			}

			require.Error(t, err)
			assert.Equal(t, PasswordPolicyMessage, err.Error())

			var pve *PasswordValidationError
			require.ErrorAs(t, err, &pve)
			assert.NotEmpty(t, pve.Errors)
		})
	}
}

func TestHashAndComparePassword(t *testing.T) {
	password := "SecureP@ss123"

	hash, err := HashPassword(password)
	require.NoError(t, err)
	assert.NotEmpty(t, hash)
	assert.NotEqual(t, password, hash)

	assert.NoError(t, ComparePassword(hash, password))
	assert.Error(t, ComparePassword(hash, "WrongPassword123!"))
}

func TestHashPassword_Empty(t *testing.T) {
	_, err := HashPassword("")
	assert.Error(t, err)
}

func TestGenerateTokenKey_Unique(t *testing.T) {
	a, err := GenerateTokenKey()
	require.NoError(t, err)
	b, err := GenerateTokenKey()
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
	assert.Len(t, a, 44) // base64 of 32 bytes
}

package auth

import (
	"crypto/subtle"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// CredentialVerifier checks a username/password pair.
type CredentialVerifier interface {
	Verify(username, password string) bool
}

// AdminCredentials verifies the configured admin login against a bcrypt hash.
type AdminCredentials struct {
	username     string
	passwordHash []byte
}

// NewAdminCredentials builds a verifier from a username and bcrypt hash.
func NewAdminCredentials(username, passwordHash string) *AdminCredentials {
	return &AdminCredentials{
		username:     strings.TrimSpace(username),
		passwordHash: []byte(strings.TrimSpace(passwordHash)),
	}
}

// Verify reports whether the pair matches the configured credentials.
func (c *AdminCredentials) Verify(username, password string) bool {
	if c == nil || c.username == "" || len(c.passwordHash) == 0 {
		return false
	}
	usernameMatch := subtle.ConstantTimeCompare([]byte(c.username), []byte(username)) == 1
	passwordMatch := bcrypt.CompareHashAndPassword(c.passwordHash, []byte(password)) == nil
	return usernameMatch && passwordMatch
}

// HashPassword produces a bcrypt hash suitable for AdminCredentials.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

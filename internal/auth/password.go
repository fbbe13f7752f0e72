package auth

import (
	"crypto/subtle"
	"errors"
)

var errMissingPassword = errors.New("admin password must be provided")

// PasswordVerifier checks login attempts against the shared operator password.
type PasswordVerifier struct {
	password []byte
}

// NewPasswordVerifier constructs a verifier for the configured operator password.
func NewPasswordVerifier(password string) (*PasswordVerifier, error) {
	if password == "" {
		return nil, errMissingPassword
	}
	return &PasswordVerifier{password: []byte(password)}, nil
}

// Verify reports whether the candidate matches, in constant time.
func (v *PasswordVerifier) Verify(candidate string) bool {
	return subtle.ConstantTimeCompare(v.password, []byte(candidate)) == 1
}

package identity

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

const (
	minPasswordLength = 6
	// bcrypt only looks at the first 72 bytes
	maxPasswordBytes = 72
)

// checkNewPassword rejects passwords an account may not be given.
func checkNewPassword(password string) error {
	switch {
	case len(password) < minPasswordLength:
		return &ProviderError{Message: fmt.Sprintf("Password should be at least %d characters", minPasswordLength)}
	case len(password) > maxPasswordBytes:
		return &ProviderError{Message: fmt.Sprintf("Password should be at most %d bytes", maxPasswordBytes)}
	}
	return nil
}

func hashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// passwordMatches reports whether password is the one behind an account's stored hash.
// A malformed hash never matches.
func passwordMatches(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

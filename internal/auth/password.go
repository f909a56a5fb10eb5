package auth

import (
	"golang.org/x/crypto/bcrypt"
)

// MinCost is the lowest bcrypt cost HashPassword will use.
const MinCost = 12

// HashPassword hashes a password with bcrypt at max(cost, MinCost).
func HashPassword(password string, cost int) (string, error) {
	if cost < MinCost {
		cost = MinCost
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	return string(hash), err
}

// CheckPassword compares a plaintext password against a bcrypt hash.
// A malformed hash is reported the same way as a mismatch.
func CheckPassword(hash, password string) error {
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		return ErrInvalidCredentials
	}
	return nil
}

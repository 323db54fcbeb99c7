package auth

import (
	"errors"

	"golang.org/x/crypto/bcrypt"
)

// DefaultHashCost matches the deployment default; raising it slows
// both login verification and API key issuance.
const DefaultHashCost = 12

// bcrypt only keys on the first 72 bytes of input. Truncation must
// happen identically on the hash and verify paths, otherwise long
// passphrases hash fine but never verify (or vice versa).
const bcryptMaxInputBytes = 72

func bcryptInput(password string) []byte {
	b := []byte(password)
	if len(b) > bcryptMaxInputBytes {
		b = b[:bcryptMaxInputBytes]
	}
	return b
}

// HashPassword hashes a plaintext password using bcrypt.
func HashPassword(password string) (string, error) {
	return HashPasswordCost(password, DefaultHashCost)
}

// HashPasswordCost hashes with an explicit work factor. Input longer
// than 72 bytes is truncated rather than rejected.
func HashPasswordCost(password string, cost int) (string, error) {
	if len(password) == 0 {
		return "", errors.New("password is empty")
	}
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = DefaultHashCost
	}
	hash, err := bcrypt.GenerateFromPassword(bcryptInput(password), cost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// VerifyPassword compares a plaintext password with a stored hash.
// Malformed hashes report false rather than an error; verification
// must never surface hash internals to callers.
func VerifyPassword(password, hash string) bool {
	if password == "" || hash == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), bcryptInput(password)) == nil
}

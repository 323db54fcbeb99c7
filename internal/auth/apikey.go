package auth

import (
	"crypto/rand"
	"encoding/base64"

	"golang.org/x/crypto/bcrypt"
)

const (
	// APIKeyPrefix marks every issued key so leaked strings are easy to
	// recognize in logs and scanners.
	APIKeyPrefix = "inv_"

	// KeyPrefixLength is how much of the plaintext gets persisted next
	// to the hash for indexed lookup. Short enough to reveal nothing of
	// the 256-bit secret portion.
	KeyPrefixLength = 12

	apiKeySecretBytes = 32
)

// GenerateAPIKey mints an opaque API key. The plaintext is returned
// exactly once; callers persist only the hash and KeyPrefix slice.
func GenerateAPIKey() (plain, hash string, err error) {
	plain, err = newAPIKeySecret()
	if err != nil {
		return "", "", err
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(plain), DefaultHashCost)
	if err != nil {
		return "", "", err
	}
	return plain, string(hashed), nil
}

func newAPIKeySecret() (string, error) {
	buf := make([]byte, apiKeySecretBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return APIKeyPrefix + base64.RawURLEncoding.EncodeToString(buf), nil
}

// KeyPrefix returns the non-secret prefix slice stored for lookup.
func KeyPrefix(plain string) string {
	if len(plain) <= KeyPrefixLength {
		return plain
	}
	return plain[:KeyPrefixLength]
}

// VerifyAPIKey compares a presented key with its stored hash. Any
// internal failure, including malformed or oversized input, reports
// false; verification must never crash a request.
func VerifyAPIKey(plain, hash string) bool {
	if plain == "" || hash == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain)) == nil
}

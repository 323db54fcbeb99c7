// Package vault provides authenticated symmetric encryption for
// tenant secrets. Every organization owns one key, generated at
// creation time; ciphertext produced under one key is unrecoverable
// under any other, which is what isolates tenants from each other.
package vault

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"strings"
)

// ErrDecryptionFailed covers wrong keys, corrupted ciphertext and
// failed authentication tags alike. The caller learns nothing about
// which of the three happened.
var ErrDecryptionFailed = errors.New("vault: decryption failed")

// formatVersion prefixes every ciphertext so the encoding can evolve
// (for example keyed versions) without re-encrypting stored blobs.
const formatVersion = 0x01

const keyBytes = 32

// GenerateKey returns fresh key material for a new organization. Keys
// are never derived from user input and never rotated implicitly.
func GenerateKey() (string, error) {
	buf := make([]byte, keyBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// Encrypt seals plaintext under the organization key with AES-256-GCM
// and returns a printable token safe to embed in JSON configuration.
func Encrypt(plaintext, key string) (string, error) {
	if strings.TrimSpace(key) == "" {
		return "", errors.New("vault: key is required")
	}
	gcm, err := newAEAD(key)
	if err != nil {
		return "", err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", err
	}
	sealed := gcm.Seal(nil, nonce, []byte(plaintext), nil)

	out := make([]byte, 0, 1+len(nonce)+len(sealed))
	out = append(out, formatVersion)
	out = append(out, nonce...)
	out = append(out, sealed...)
	return base64.RawURLEncoding.EncodeToString(out), nil
}

// Decrypt opens a token produced by Encrypt. Any failure, including a
// foreign key or a flipped bit, reports ErrDecryptionFailed; partially
// decrypted or unauthenticated output is never returned.
func Decrypt(token, key string) (string, error) {
	if strings.TrimSpace(key) == "" {
		return "", ErrDecryptionFailed
	}
	raw, err := base64.RawURLEncoding.DecodeString(strings.TrimSpace(token))
	if err != nil {
		return "", ErrDecryptionFailed
	}
	gcm, err := newAEAD(key)
	if err != nil {
		return "", ErrDecryptionFailed
	}
	if len(raw) < 1+gcm.NonceSize() {
		return "", ErrDecryptionFailed
	}
	if raw[0] != formatVersion {
		return "", ErrDecryptionFailed
	}
	nonce := raw[1 : 1+gcm.NonceSize()]
	sealed := raw[1+gcm.NonceSize():]
	plain, err := gcm.Open(nil, nonce, sealed, nil)
	if err != nil {
		return "", ErrDecryptionFailed
	}
	return string(plain), nil
}

// newAEAD derives the AES key from the opaque key string. Hashing
// keeps the vault agnostic to how the key material is encoded.
func newAEAD(key string) (cipher.AEAD, error) {
	sum := sha256.Sum256([]byte(key))
	block, err := aes.NewCipher(sum[:])
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

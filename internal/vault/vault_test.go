package vault

import (
	"encoding/base64"
	"errors"
	"strings"
	"testing"
)

func TestEncryptDecryptRoundTrip(t *testing.T) {
	key, err := GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}

	for _, plaintext := range []string{"hunter2", "", "{\"password\":\"p@ss\",\"host\":\"imap.example.com\"}", strings.Repeat("x", 4096)} {
		token, err := Encrypt(plaintext, key)
		if err != nil {
			t.Fatalf("Encrypt: %v", err)
		}
		if strings.Contains(token, plaintext) && plaintext != "" {
			t.Fatalf("ciphertext leaks plaintext")
		}
		got, err := Decrypt(token, key)
		if err != nil {
			t.Fatalf("Decrypt: %v", err)
		}
		if got != plaintext {
			t.Fatalf("round trip mismatch: %q != %q", got, plaintext)
		}
	}
}

func TestDecryptWrongKeyFails(t *testing.T) {
	k1, err := GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	k2, err := GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	if k1 == k2 {
		t.Fatalf("generated keys must differ")
	}

	token, err := Encrypt("hunter2", k1)
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	if _, err := Decrypt(token, k2); !errors.Is(err, ErrDecryptionFailed) {
		t.Fatalf("expected ErrDecryptionFailed, got %v", err)
	}
}

func TestDecryptCorruptedCiphertext(t *testing.T) {
	key, err := GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	token, err := Encrypt("hunter2", key)
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}

	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		t.Fatalf("decode token: %v", err)
	}
	raw[len(raw)-1] ^= 0x01
	corrupted := base64.RawURLEncoding.EncodeToString(raw)
	if _, err := Decrypt(corrupted, key); !errors.Is(err, ErrDecryptionFailed) {
		t.Fatalf("expected ErrDecryptionFailed for flipped bit, got %v", err)
	}

	for _, bad := range []string{"", "!!!not-base64!!!", "AA", base64.RawURLEncoding.EncodeToString([]byte{0x02, 1, 2, 3})} {
		if _, err := Decrypt(bad, key); !errors.Is(err, ErrDecryptionFailed) {
			t.Fatalf("expected ErrDecryptionFailed for %q, got %v", bad, err)
		}
	}
}

func TestEncryptRequiresKey(t *testing.T) {
	if _, err := Encrypt("data", ""); err == nil {
		t.Fatalf("expected error for empty key")
	}
	if _, err := Decrypt("token", " "); !errors.Is(err, ErrDecryptionFailed) {
		t.Fatalf("expected ErrDecryptionFailed for empty key")
	}
}

func TestEncryptIsNondeterministic(t *testing.T) {
	key, err := GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	a, err := Encrypt("hunter2", key)
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	b, err := Encrypt("hunter2", key)
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	if a == b {
		t.Fatalf("nonce reuse: identical ciphertexts")
	}
}

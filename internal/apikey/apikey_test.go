package apikey

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/alexandratechlab/invoicehub/internal/auth"
)

func newTestService(t *testing.T, opts ...Option) (*Service, *MemoryStore) {
	t.Helper()
	store := NewMemoryStore()
	svc, err := NewService(store, opts...)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return svc, store
}

func TestIssueAndVerify(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	key, plain, err := svc.Issue(ctx, IssueParams{
		UserID:         "user-1",
		OrganizationID: "org-1",
		Name:           "ci-export",
		Scopes:         []string{"invoices:read"},
	})
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if !strings.HasPrefix(plain, auth.APIKeyPrefix) {
		t.Fatalf("unexpected key format: %q", plain)
	}
	if key.KeyHash == plain || key.KeyHash == "" {
		t.Fatalf("hash must be stored, plaintext must not")
	}
	if key.KeyPrefix != plain[:auth.KeyPrefixLength] {
		t.Fatalf("prefix mismatch: %q", key.KeyPrefix)
	}
	if key.RateLimit != defaultRateLimit {
		t.Fatalf("expected default rate limit, got %d", key.RateLimit)
	}
	if key.ExpiresAt == nil || !key.ExpiresAt.After(time.Now()) {
		t.Fatalf("expected default expiry in the future")
	}

	got, err := svc.Verify(ctx, plain)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if got.ID != key.ID {
		t.Fatalf("resolved wrong key: %s", got.ID)
	}
	if got.LastUsedAt == nil {
		t.Fatalf("expected last_used_at to be touched")
	}
	if !got.HasScope("invoices:read") || got.HasScope("invoices:write") {
		t.Fatalf("scope handling broken: %v", got.Scopes)
	}
}

func TestVerifyRejectsForeignAndGarbageKeys(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, plain, err := svc.Issue(ctx, IssueParams{UserID: "u", OrganizationID: "o", Name: "k"})
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	for _, presented := range []string{
		"",
		"inv_",
		"not-a-key",
		plain[:len(plain)-2] + "zz",
		auth.APIKeyPrefix + strings.Repeat("A", 43),
	} {
		if _, err := svc.Verify(ctx, presented); !errors.Is(err, ErrInvalidKey) {
			t.Fatalf("expected ErrInvalidKey for %q, got %v", presented, err)
		}
	}
}

func TestVerifyRejectsRevokedKey(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	key, plain, err := svc.Issue(ctx, IssueParams{UserID: "u", OrganizationID: "o", Name: "k"})
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if err := svc.Revoke(ctx, key.ID); err != nil {
		t.Fatalf("Revoke: %v", err)
	}
	if _, err := svc.Verify(ctx, plain); !errors.Is(err, ErrInvalidKey) {
		t.Fatalf("expected revoked key to fail, got %v", err)
	}

	stored, err := svc.Get(ctx, key.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if stored.IsActive {
		t.Fatalf("revoked key still active")
	}
	if stored.KeyHash != key.KeyHash {
		t.Fatalf("key hash must never change")
	}
}

func TestVerifyRejectsExpiredKey(t *testing.T) {
	store := NewMemoryStore()
	past := time.Now().Add(-48 * time.Hour)
	issuer, err := NewService(store, WithClock(func() time.Time { return past }), WithDefaultExpiry(24*time.Hour))
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	ctx := context.Background()

	_, plain, err := issuer.Issue(ctx, IssueParams{UserID: "u", OrganizationID: "o", Name: "k"})
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	live, err := NewService(store)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	if _, err := live.Verify(ctx, plain); !errors.Is(err, ErrInvalidKey) {
		t.Fatalf("expected expired key to fail, got %v", err)
	}
}

func TestIssueValidation(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	cases := []IssueParams{
		{UserID: "", OrganizationID: "o", Name: "k"},
		{UserID: "u", OrganizationID: "", Name: "k"},
		{UserID: "u", OrganizationID: "o", Name: " "},
	}
	for i, p := range cases {
		if _, _, err := svc.Issue(ctx, p); !errors.Is(err, ErrInvalidInput) {
			t.Fatalf("case %d: expected ErrInvalidInput, got %v", i, err)
		}
	}
}

func TestListScopedToOrganization(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	if _, _, err := svc.Issue(ctx, IssueParams{UserID: "u1", OrganizationID: "org-a", Name: "a"}); err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if _, _, err := svc.Issue(ctx, IssueParams{UserID: "u2", OrganizationID: "org-b", Name: "b"}); err != nil {
		t.Fatalf("Issue: %v", err)
	}

	keys, err := svc.List(ctx, "org-a")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(keys) != 1 || keys[0].OrganizationID != "org-a" {
		t.Fatalf("unexpected listing: %+v", keys)
	}
}

package auth

import (
	"errors"
	"testing"
	"time"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func newTestTokenService(t *testing.T, opts ...TokenOption) *TokenService {
	t.Helper()
	svc, err := NewTokenService(testSecret, opts...)
	if err != nil {
		t.Fatalf("NewTokenService: %v", err)
	}
	return svc
}

func TestIssueAccessRoundTrip(t *testing.T) {
	svc := newTestTokenService(t)
	p := Principal{
		UserID:         "user-1",
		OrganizationID: "org-1",
		Role:           RoleAdmin,
		Permissions:    []string{"invoices.read", "invoices.approve"},
	}

	token, exp, err := svc.IssueAccess(p)
	if err != nil {
		t.Fatalf("IssueAccess: %v", err)
	}
	if !exp.After(time.Now()) {
		t.Fatalf("expected future expiry, got %v", exp)
	}

	claims, err := svc.Decode(token)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if claims.Subject != "user-1" || claims.OrganizationID != "org-1" {
		t.Fatalf("identity not preserved: %+v", claims)
	}
	if claims.Role != RoleAdmin {
		t.Fatalf("role not preserved: %s", claims.Role)
	}
	if claims.TokenType != TokenTypeAccess {
		t.Fatalf("expected access type, got %s", claims.TokenType)
	}
	if !claims.HasPermission("invoices.approve") || claims.HasPermission("invoices.delete") {
		t.Fatalf("permissions not preserved: %v", claims.Permissions)
	}
	if claims.ExpiresAt == nil || !claims.ExpiresAt.After(time.Now()) {
		t.Fatalf("expected future exp claim")
	}
}

func TestIssueRefreshCarriesRefreshType(t *testing.T) {
	svc := newTestTokenService(t)
	token, _, err := svc.IssueRefresh(Principal{UserID: "user-1", Role: RoleClient})
	if err != nil {
		t.Fatalf("IssueRefresh: %v", err)
	}
	claims, err := svc.Decode(token)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if claims.TokenType != TokenTypeRefresh {
		t.Fatalf("expected refresh type, got %s", claims.TokenType)
	}
	if _, err := svc.DecodeRefresh(token); err != nil {
		t.Fatalf("DecodeRefresh: %v", err)
	}
}

func TestDecodeRefreshRejectsAccessToken(t *testing.T) {
	svc := newTestTokenService(t)
	token, _, err := svc.IssueAccess(Principal{UserID: "user-1", Role: RoleClient})
	if err != nil {
		t.Fatalf("IssueAccess: %v", err)
	}
	if _, err := svc.DecodeRefresh(token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}

func TestDecodeRejectsTamperedToken(t *testing.T) {
	svc := newTestTokenService(t)
	token, _, err := svc.IssueAccess(Principal{UserID: "user-1", Role: RoleClient})
	if err != nil {
		t.Fatalf("IssueAccess: %v", err)
	}

	tampered := []byte(token)
	last := len(tampered) - 1
	if tampered[last] == 'A' {
		tampered[last] = 'B'
	} else {
		tampered[last] = 'A'
	}
	if _, err := svc.Decode(string(tampered)); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for tampered token, got %v", err)
	}
}

func TestDecodeRejectsForeignSecret(t *testing.T) {
	svc := newTestTokenService(t)
	other, err := NewTokenService("ffffffffffffffffffffffffffffffff")
	if err != nil {
		t.Fatalf("NewTokenService: %v", err)
	}
	token, _, err := other.IssueAccess(Principal{UserID: "user-1"})
	if err != nil {
		t.Fatalf("IssueAccess: %v", err)
	}
	if _, err := svc.Decode(token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}

func TestDecodeExpiredToken(t *testing.T) {
	past := time.Now().Add(-2 * time.Hour)
	svc := newTestTokenService(t, WithClock(func() time.Time { return past }), WithAccessTTL(time.Minute))
	token, _, err := svc.IssueAccess(Principal{UserID: "user-1", Role: RoleClient})
	if err != nil {
		t.Fatalf("IssueAccess: %v", err)
	}

	live := newTestTokenService(t)
	if _, err := live.Decode(token); !errors.Is(err, ErrTokenExpired) {
		t.Fatalf("expected ErrTokenExpired, got %v", err)
	}
}

func TestDecodeRejectsGarbage(t *testing.T) {
	svc := newTestTokenService(t)
	for _, token := range []string{"", "   ", "abc", "a.b.c", "a.b"} {
		if _, err := svc.Decode(token); !errors.Is(err, ErrInvalidToken) {
			t.Fatalf("expected ErrInvalidToken for %q, got %v", token, err)
		}
	}
}

func TestNewTokenServiceRequiresSecret(t *testing.T) {
	if _, err := NewTokenService("  "); err == nil {
		t.Fatalf("expected error for blank secret")
	}
}

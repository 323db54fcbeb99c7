package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/alexandratechlab/invoicehub/internal/apikey"
	"github.com/alexandratechlab/invoicehub/internal/auth"
	"github.com/alexandratechlab/invoicehub/internal/directory"
	"github.com/alexandratechlab/invoicehub/internal/invoice"
	"github.com/alexandratechlab/invoicehub/internal/queue"
	"github.com/alexandratechlab/invoicehub/internal/stream"
)

const testSecret = "0123456789abcdef0123456789abcdef"

type testEnv struct {
	api       *API
	handler   http.Handler
	tokens    *auth.TokenService
	directory *directory.Service
	apikeys   *apikey.Service
	org       *directory.Organization
	admin     *directory.User
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	tokens, err := auth.NewTokenService(testSecret)
	if err != nil {
		t.Fatalf("NewTokenService: %v", err)
	}
	dir, err := directory.NewService(directory.NewMemoryStore(), tokens, directory.WithBcryptCost(bcrypt.MinCost))
	if err != nil {
		t.Fatalf("directory.NewService: %v", err)
	}
	keys, err := apikey.NewService(apikey.NewMemoryStore())
	if err != nil {
		t.Fatalf("apikey.NewService: %v", err)
	}
	q, err := queue.NewService(queue.NewMemoryStore(), stream.New())
	if err != nil {
		t.Fatalf("queue.NewService: %v", err)
	}
	inv, err := invoice.NewService(invoice.NewMemoryStore())
	if err != nil {
		t.Fatalf("invoice.NewService: %v", err)
	}

	ctx := context.Background()
	org, err := dir.CreateOrganization(ctx, "Test Firm", "test-firm")
	if err != nil {
		t.Fatalf("CreateOrganization: %v", err)
	}
	admin, err := dir.CreateUser(ctx, directory.CreateUserParams{
		OrganizationID: org.ID,
		Email:          "admin@test.example",
		Password:       "hunter2",
		FullName:       "Admin",
		Role:           auth.RoleAdmin,
		Permissions:    []string{"invoices.read"},
	})
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}

	api := New(ReadyProbe{}, "test", Services{
		Tokens:    tokens,
		Directory: dir,
		APIKeys:   keys,
		Queue:     q,
		Invoices:  inv,
	})
	return &testEnv{
		api:       api,
		handler:   api.Handler(),
		tokens:    tokens,
		directory: dir,
		apikeys:   keys,
		org:       org,
		admin:     admin,
	}
}

func (e *testEnv) accessToken(t *testing.T, role auth.Role, perms []string) string {
	t.Helper()
	token, _, err := e.tokens.IssueAccess(auth.Principal{
		UserID:         e.admin.ID,
		OrganizationID: e.org.ID,
		Role:           role,
		Permissions:    perms,
	})
	if err != nil {
		t.Fatalf("IssueAccess: %v", err)
	}
	return token
}

func (e *testEnv) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	e.handler.ServeHTTP(rr, req)
	return rr
}

func errorMessage(t *testing.T, rr *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	msg, _ := body["error"].(string)
	return msg
}

func TestMissingTokenRejected(t *testing.T) {
	env := newTestEnv(t)
	rr := env.do(t, http.MethodGet, "/v1/auth/me", "", nil)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rr.Code)
	}
}

func TestInvalidTokenRejectedWithDistinctMessage(t *testing.T) {
	env := newTestEnv(t)
	rr := env.do(t, http.MethodGet, "/v1/auth/me", "not-a-token", nil)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rr.Code)
	}
	if msg := errorMessage(t, rr); msg != "invalid token" {
		t.Fatalf("expected invalid token message, got %q", msg)
	}
}

func TestExpiredTokenRejectedWithDistinctMessage(t *testing.T) {
	env := newTestEnv(t)
	past, err := auth.NewTokenService(testSecret, auth.WithClock(func() time.Time {
		return time.Now().Add(-2 * time.Hour)
	}))
	if err != nil {
		t.Fatalf("NewTokenService: %v", err)
	}
	token, _, err := past.IssueAccess(auth.Principal{
		UserID:         env.admin.ID,
		OrganizationID: env.org.ID,
		Role:           auth.RoleAdmin,
	})
	if err != nil {
		t.Fatalf("IssueAccess: %v", err)
	}

	rr := env.do(t, http.MethodGet, "/v1/auth/me", token, nil)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rr.Code)
	}
	if msg := errorMessage(t, rr); msg != "token expired" {
		t.Fatalf("expected token expired message, got %q", msg)
	}
}

func TestRefreshTokenNeverAuthorizesRequests(t *testing.T) {
	env := newTestEnv(t)
	refresh, _, err := env.tokens.IssueRefresh(auth.Principal{
		UserID:         env.admin.ID,
		OrganizationID: env.org.ID,
		Role:           auth.RoleSuperAdmin,
	})
	if err != nil {
		t.Fatalf("IssueRefresh: %v", err)
	}
	rr := env.do(t, http.MethodGet, "/v1/auth/me", refresh, nil)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for refresh token, got %d", rr.Code)
	}
}

func TestRoleEnforcement(t *testing.T) {
	env := newTestEnv(t)

	client := env.accessToken(t, auth.RoleClient, nil)
	rr := env.do(t, http.MethodGet, "/v1/apikeys", client, nil)
	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for client role, got %d", rr.Code)
	}
	if msg := errorMessage(t, rr); msg != "insufficient role" {
		t.Fatalf("unexpected message: %q", msg)
	}

	super := env.accessToken(t, auth.RoleSuperAdmin, nil)
	rr = env.do(t, http.MethodGet, "/v1/apikeys", super, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("super_admin must pass role checks, got %d", rr.Code)
	}
}

func TestAPIKeyAuthentication(t *testing.T) {
	env := newTestEnv(t)
	_, plain, err := env.apikeys.Issue(context.Background(), apikey.IssueParams{
		UserID:         env.admin.ID,
		OrganizationID: env.org.ID,
		Name:           "machine",
		Scopes:         []string{"invoices:read"},
	})
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/v1/invoices", nil)
	req.Header.Set("X-API-Key", plain)
	rr := httptest.NewRecorder()
	env.handler.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 with valid api key, got %d: %s", rr.Code, rr.Body.String())
	}

	req = httptest.NewRequest(http.MethodGet, "/v1/invoices", nil)
	req.Header.Set("X-API-Key", "inv_bogus")
	rr = httptest.NewRecorder()
	env.handler.ServeHTTP(rr, req)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 with bogus api key, got %d", rr.Code)
	}
}

func TestPublicPathsSkipAuth(t *testing.T) {
	env := newTestEnv(t)
	for _, path := range []string{"/healthz", "/readyz", "/v1/info"} {
		rr := env.do(t, http.MethodGet, path, "", nil)
		if rr.Code != http.StatusOK {
			t.Fatalf("expected %s to be public, got %d", path, rr.Code)
		}
	}
}

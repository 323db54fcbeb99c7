package directory

import (
	"context"
	"errors"
	"testing"

	"golang.org/x/crypto/bcrypt"

	"github.com/alexandratechlab/invoicehub/internal/auth"
	"github.com/alexandratechlab/invoicehub/internal/vault"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func newTestService(t *testing.T) (*Service, *MemoryStore) {
	t.Helper()
	tokens, err := auth.NewTokenService(testSecret)
	if err != nil {
		t.Fatalf("NewTokenService: %v", err)
	}
	store := NewMemoryStore()
	svc, err := NewService(store, tokens, WithBcryptCost(bcrypt.MinCost))
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return svc, store
}

func TestCreateOrganizationMintsEncryptionKey(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	org, err := svc.CreateOrganization(ctx, "Alexandra Tech Lab", "alexandra")
	if err != nil {
		t.Fatalf("CreateOrganization: %v", err)
	}
	if org.EncryptionKey == "" {
		t.Fatalf("expected encryption key at creation")
	}

	other, err := svc.CreateOrganization(ctx, "Other Firm", "other")
	if err != nil {
		t.Fatalf("CreateOrganization: %v", err)
	}
	if other.EncryptionKey == org.EncryptionKey {
		t.Fatalf("organizations must not share encryption keys")
	}
}

func TestAuthenticateIssuesTokenPair(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	org, err := svc.CreateOrganization(ctx, "Firm", "firm")
	if err != nil {
		t.Fatalf("CreateOrganization: %v", err)
	}
	user, err := svc.CreateUser(ctx, CreateUserParams{
		OrganizationID: org.ID,
		Email:          "admin@firm.example",
		Password:       "hunter2",
		FullName:       "Admin",
		Role:           auth.RoleAdmin,
		Permissions:    []string{"invoices.read"},
	})
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	if user.PasswordHash == "hunter2" {
		t.Fatalf("password stored in plaintext")
	}

	pair, authed, err := svc.Authenticate(ctx, "Admin@Firm.example", "hunter2")
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if authed.ID != user.ID {
		t.Fatalf("unexpected user: %s", authed.ID)
	}
	if pair.AccessToken == "" || pair.RefreshToken == "" {
		t.Fatalf("expected both tokens")
	}

	tokens, _ := auth.NewTokenService(testSecret)
	claims, err := tokens.Decode(pair.AccessToken)
	if err != nil {
		t.Fatalf("Decode access: %v", err)
	}
	if claims.OrganizationID != org.ID || claims.Role != auth.RoleAdmin {
		t.Fatalf("claims mismatch: %+v", claims)
	}
	if claims.TokenType != auth.TokenTypeAccess {
		t.Fatalf("expected access token")
	}
	refreshClaims, err := tokens.DecodeRefresh(pair.RefreshToken)
	if err != nil {
		t.Fatalf("DecodeRefresh: %v", err)
	}
	if refreshClaims.Subject != user.ID {
		t.Fatalf("refresh subject mismatch")
	}
}

func TestAuthenticateRejectsBadCredentials(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	org, _ := svc.CreateOrganization(ctx, "Firm", "firm")
	_, err := svc.CreateUser(ctx, CreateUserParams{
		OrganizationID: org.ID,
		Email:          "user@firm.example",
		Password:       "hunter2",
		FullName:       "User",
		Role:           auth.RoleClient,
	})
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}

	if _, _, err := svc.Authenticate(ctx, "user@firm.example", "wrong"); !errors.Is(err, auth.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized for wrong password, got %v", err)
	}
	if _, _, err := svc.Authenticate(ctx, "nobody@firm.example", "hunter2"); !errors.Is(err, auth.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized for unknown user, got %v", err)
	}
}

func TestRefreshRejectsAccessToken(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	org, _ := svc.CreateOrganization(ctx, "Firm", "firm")
	_, err := svc.CreateUser(ctx, CreateUserParams{
		OrganizationID: org.ID,
		Email:          "user@firm.example",
		Password:       "hunter2",
		FullName:       "User",
		Role:           auth.RoleClient,
	})
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	pair, _, err := svc.Authenticate(ctx, "user@firm.example", "hunter2")
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}

	if _, err := svc.Refresh(ctx, pair.AccessToken); !errors.Is(err, auth.ErrInvalidToken) {
		t.Fatalf("access token must not refresh, got %v", err)
	}
	if _, err := svc.Refresh(ctx, pair.RefreshToken); err != nil {
		t.Fatalf("refresh token should mint a new pair: %v", err)
	}
}

func TestMailboxCredentialsRoundTrip(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	org, _ := svc.CreateOrganization(ctx, "Firm", "firm")
	client, err := svc.CreateClient(ctx, org.ID, "Acme Ltd", "Acme", "billing@acme.example")
	if err != nil {
		t.Fatalf("CreateClient: %v", err)
	}

	creds := MailboxCredentials{
		Username: "billing@acme.example",
		Password: "hunter2",
		Host:     "imap.acme.example",
		Port:     993,
		SSL:      true,
		Folders:  []string{"INBOX", "Invoices"},
	}
	if err := svc.SetMailboxCredentials(ctx, client.ID, "imap", creds); err != nil {
		t.Fatalf("SetMailboxCredentials: %v", err)
	}

	stored, err := svc.GetClient(ctx, client.ID)
	if err != nil {
		t.Fatalf("GetClient: %v", err)
	}
	sealed, _ := stored.EmailConfig["encrypted_credentials"].(string)
	if sealed == "" {
		t.Fatalf("expected encrypted credentials in config")
	}
	if sealed == "hunter2" || stored.EmailConfig["password"] != nil {
		t.Fatalf("plaintext password leaked into config")
	}

	got, err := svc.MailboxCredentials(ctx, client.ID)
	if err != nil {
		t.Fatalf("MailboxCredentials: %v", err)
	}
	if got.Password != "hunter2" || got.Username != creds.Username {
		t.Fatalf("round trip mismatch: %+v", got)
	}
	if got.Host != "imap.acme.example" || got.Port != 993 || !got.SSL {
		t.Fatalf("plaintext settings lost: %+v", got)
	}
}

func TestMailboxCredentialsForeignKeyFails(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	org, _ := svc.CreateOrganization(ctx, "Firm", "firm")
	client, _ := svc.CreateClient(ctx, org.ID, "Acme Ltd", "", "")
	if err := svc.SetMailboxCredentials(ctx, client.ID, "imap", MailboxCredentials{
		Username: "u", Password: "hunter2", Host: "h", Port: 993, SSL: true,
	}); err != nil {
		t.Fatalf("SetMailboxCredentials: %v", err)
	}

	// Simulate tenant key mixing: swap the organization's key.
	store.mu.Lock()
	otherKey, err := vault.GenerateKey()
	if err != nil {
		store.mu.Unlock()
		t.Fatalf("GenerateKey: %v", err)
	}
	store.orgs[org.ID].EncryptionKey = otherKey
	store.mu.Unlock()

	if _, err := svc.MailboxCredentials(ctx, client.ID); !errors.Is(err, vault.ErrDecryptionFailed) {
		t.Fatalf("expected ErrDecryptionFailed under foreign key, got %v", err)
	}
}

func TestAccountingCredentialsRoundTrip(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	org, _ := svc.CreateOrganization(ctx, "Firm", "firm")
	client, _ := svc.CreateClient(ctx, org.ID, "Acme Ltd", "", "")

	creds := AccountingCredentials{
		APIURL:   "https://api.accounting.example",
		AuthType: "api_key",
		Secret:   "sk-very-secret",
	}
	if err := svc.SetAccountingCredentials(ctx, client.ID, "custom", creds); err != nil {
		t.Fatalf("SetAccountingCredentials: %v", err)
	}
	got, err := svc.AccountingCredentials(ctx, client.ID)
	if err != nil {
		t.Fatalf("AccountingCredentials: %v", err)
	}
	if got.Secret != creds.Secret || got.APIURL != creds.APIURL || got.AuthType != creds.AuthType {
		t.Fatalf("round trip mismatch: %+v", got)
	}
}

func TestCreateUserValidation(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	org, _ := svc.CreateOrganization(ctx, "Firm", "firm")

	cases := []CreateUserParams{
		{OrganizationID: "", Email: "a@b.c", Password: "p", Role: auth.RoleClient},
		{OrganizationID: org.ID, Email: "not-an-email", Password: "p", Role: auth.RoleClient},
		{OrganizationID: org.ID, Email: "a@b.c", Password: "", Role: auth.RoleClient},
		{OrganizationID: org.ID, Email: "a@b.c", Password: "p", Role: "owner"},
	}
	for i, p := range cases {
		if _, err := svc.CreateUser(ctx, p); !errors.Is(err, ErrInvalidInput) {
			t.Fatalf("case %d: expected ErrInvalidInput, got %v", i, err)
		}
	}
}

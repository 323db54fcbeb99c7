package directory

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/alexandratechlab/invoicehub/internal/auth"
	"github.com/alexandratechlab/invoicehub/internal/vault"
)

// encrypted credential blobs live under this key inside config JSON.
const encryptedCredentialsField = "encrypted_credentials"

// TokenPair is what a successful login or refresh returns.
type TokenPair struct {
	AccessToken      string    `json:"access_token"`
	RefreshToken     string    `json:"refresh_token"`
	AccessExpiresAt  time.Time `json:"access_expires_at"`
	RefreshExpiresAt time.Time `json:"refresh_expires_at"`
}

// Service provides tenant directory operations: organizations, users,
// clients and their protected configuration.
type Service struct {
	store      Store
	tokens     *auth.TokenService
	bcryptCost int
	now        func() time.Time
}

// Option configures Service.
type Option func(*Service)

// WithBcryptCost overrides the password hashing work factor.
func WithBcryptCost(cost int) Option {
	return func(s *Service) {
		if cost > 0 {
			s.bcryptCost = cost
		}
	}
}

// WithClock overrides the time source (useful for tests).
func WithClock(fn func() time.Time) Option {
	return func(s *Service) {
		if fn != nil {
			s.now = fn
		}
	}
}

// NewService constructs the directory service.
func NewService(store Store, tokens *auth.TokenService, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("directory: store is required")
	}
	if tokens == nil {
		return nil, fmt.Errorf("directory: token service is required")
	}
	s := &Service{
		store:      store,
		tokens:     tokens,
		bcryptCost: auth.DefaultHashCost,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// CreateOrganization provisions a tenant. The encryption key is
// generated here, once; it is never rotated implicitly afterwards.
func (s *Service) CreateOrganization(ctx context.Context, name, slug string) (*Organization, error) {
	name = strings.TrimSpace(name)
	slug = strings.TrimSpace(strings.ToLower(slug))
	if name == "" || slug == "" {
		return nil, fmt.Errorf("%w: name and slug are required", ErrInvalidInput)
	}
	key, err := vault.GenerateKey()
	if err != nil {
		return nil, fmt.Errorf("generate encryption key: %w", err)
	}
	now := s.now().UTC()
	org := &Organization{
		ID:               uuid.NewString(),
		Name:             name,
		Slug:             slug,
		SubscriptionTier: "basic",
		Settings:         map[string]any{},
		EncryptionKey:    key,
		IsActive:         true,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := s.store.CreateOrganization(ctx, org); err != nil {
		return nil, err
	}
	return org, nil
}

// GetOrganization loads a tenant by id.
func (s *Service) GetOrganization(ctx context.Context, id string) (*Organization, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, fmt.Errorf("%w: organization_id is required", ErrInvalidInput)
	}
	return s.store.GetOrganization(ctx, id)
}

// ListOrganizations lists all tenants.
func (s *Service) ListOrganizations(ctx context.Context) ([]*Organization, error) {
	return s.store.ListOrganizations(ctx)
}

// CreateUserParams collects the fields for user provisioning.
type CreateUserParams struct {
	OrganizationID string
	ClientID       string
	Email          string
	Password       string
	FullName       string
	Role           auth.Role
	Permissions    []string
}

// CreateUser provisions a platform account with a hashed password.
func (s *Service) CreateUser(ctx context.Context, p CreateUserParams) (*User, error) {
	p.OrganizationID = strings.TrimSpace(p.OrganizationID)
	p.Email = strings.TrimSpace(strings.ToLower(p.Email))
	p.FullName = strings.TrimSpace(p.FullName)
	if p.OrganizationID == "" {
		return nil, fmt.Errorf("%w: organization_id is required", ErrInvalidInput)
	}
	if p.Email == "" || !strings.Contains(p.Email, "@") {
		return nil, fmt.Errorf("%w: valid email is required", ErrInvalidInput)
	}
	if p.Password == "" {
		return nil, fmt.Errorf("%w: password is required", ErrInvalidInput)
	}
	role, ok := auth.ParseRole(string(p.Role))
	if !ok {
		return nil, fmt.Errorf("%w: unsupported role %q", ErrInvalidInput, p.Role)
	}
	hash, err := auth.HashPasswordCost(p.Password, s.bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	now := s.now().UTC()
	user := &User{
		ID:             uuid.NewString(),
		OrganizationID: p.OrganizationID,
		ClientID:       strings.TrimSpace(p.ClientID),
		Email:          p.Email,
		PasswordHash:   hash,
		FullName:       p.FullName,
		Role:           role,
		Permissions:    dedupe(p.Permissions),
		IsActive:       true,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.store.CreateUser(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// Authenticate verifies credentials and mints a token pair. Every
// failure mode collapses to ErrUnauthorized so login responses do not
// reveal whether the account exists.
func (s *Service) Authenticate(ctx context.Context, email, password string) (TokenPair, *User, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" || password == "" {
		return TokenPair{}, nil, auth.ErrUnauthorized
	}
	user, err := s.store.GetUserByEmail(ctx, email)
	if err != nil {
		return TokenPair{}, nil, auth.ErrUnauthorized
	}
	if !user.IsActive {
		return TokenPair{}, nil, auth.ErrUnauthorized
	}
	if !auth.VerifyPassword(password, user.PasswordHash) {
		return TokenPair{}, nil, auth.ErrUnauthorized
	}
	pair, err := s.mintTokens(user)
	if err != nil {
		return TokenPair{}, nil, err
	}
	_ = s.store.TouchLastLogin(ctx, user.ID, s.now().UTC())
	return pair, user, nil
}

// Refresh exchanges a refresh token for a fresh pair. The user is
// reloaded so disabled accounts stop refreshing immediately even
// though access tokens stay valid until expiry.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (TokenPair, error) {
	claims, err := s.tokens.DecodeRefresh(refreshToken)
	if err != nil {
		return TokenPair{}, err
	}
	user, err := s.store.GetUser(ctx, claims.Subject)
	if err != nil {
		return TokenPair{}, auth.ErrInvalidToken
	}
	if !user.IsActive {
		return TokenPair{}, auth.ErrInvalidToken
	}
	return s.mintTokens(user)
}

func (s *Service) mintTokens(user *User) (TokenPair, error) {
	principal := auth.Principal{
		UserID:         user.ID,
		OrganizationID: user.OrganizationID,
		Role:           user.Role,
		Permissions:    user.Permissions,
	}
	access, accessExp, err := s.tokens.IssueAccess(principal)
	if err != nil {
		return TokenPair{}, err
	}
	refresh, refreshExp, err := s.tokens.IssueRefresh(principal)
	if err != nil {
		return TokenPair{}, err
	}
	return TokenPair{
		AccessToken:      access,
		RefreshToken:     refresh,
		AccessExpiresAt:  accessExp,
		RefreshExpiresAt: refreshExp,
	}, nil
}

// CreateClient registers a customer under an organization.
func (s *Service) CreateClient(ctx context.Context, organizationID, name, companyName, email string) (*Client, error) {
	organizationID = strings.TrimSpace(organizationID)
	name = strings.TrimSpace(name)
	if organizationID == "" || name == "" {
		return nil, fmt.Errorf("%w: organization_id and name are required", ErrInvalidInput)
	}
	if _, err := s.store.GetOrganization(ctx, organizationID); err != nil {
		return nil, err
	}
	now := s.now().UTC()
	client := &Client{
		ID:              uuid.NewString(),
		OrganizationID:  organizationID,
		Name:            name,
		CompanyName:     strings.TrimSpace(companyName),
		Email:           strings.TrimSpace(strings.ToLower(email)),
		DefaultCurrency: "USD",
		Timezone:        "UTC",
		IsActive:        true,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := s.store.CreateClient(ctx, client); err != nil {
		return nil, err
	}
	return client, nil
}

// GetClient loads a client by id.
func (s *Service) GetClient(ctx context.Context, id string) (*Client, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, fmt.Errorf("%w: client_id is required", ErrInvalidInput)
	}
	return s.store.GetClient(ctx, id)
}

// ListClients lists the clients of an organization.
func (s *Service) ListClients(ctx context.Context, organizationID string) ([]*Client, error) {
	organizationID = strings.TrimSpace(organizationID)
	if organizationID == "" {
		return nil, fmt.Errorf("%w: organization_id is required", ErrInvalidInput)
	}
	return s.store.ListClients(ctx, organizationID)
}

// SetMailboxCredentials encrypts mailbox credentials under the owning
// organization's key and stores them inside the client email config.
// Host, port and folder settings stay plaintext; only the credential
// pair is sealed.
func (s *Service) SetMailboxCredentials(ctx context.Context, clientID, provider string, creds MailboxCredentials) error {
	client, org, err := s.clientWithOrg(ctx, clientID)
	if err != nil {
		return err
	}
	secret, err := json.Marshal(struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}{creds.Username, creds.Password})
	if err != nil {
		return err
	}
	sealed, err := vault.Encrypt(string(secret), org.EncryptionKey)
	if err != nil {
		return err
	}
	config := map[string]any{
		encryptedCredentialsField: sealed,
		"host":                    creds.Host,
		"port":                    creds.Port,
		"ssl":                     creds.SSL,
	}
	if len(creds.Folders) > 0 {
		config["folders"] = creds.Folders
	}
	return s.store.UpdateClientEmailConfig(ctx, client.ID, strings.TrimSpace(provider), config)
}

// MailboxCredentials decrypts a client's mailbox credentials with the
// owning organization's key. Wrong-tenant reads fail decryption.
func (s *Service) MailboxCredentials(ctx context.Context, clientID string) (MailboxCredentials, error) {
	client, org, err := s.clientWithOrg(ctx, clientID)
	if err != nil {
		return MailboxCredentials{}, err
	}
	sealed, ok := client.EmailConfig[encryptedCredentialsField].(string)
	if !ok || sealed == "" {
		return MailboxCredentials{}, fmt.Errorf("%w: client has no mailbox credentials", ErrNotFound)
	}
	plain, err := vault.Decrypt(sealed, org.EncryptionKey)
	if err != nil {
		return MailboxCredentials{}, err
	}
	var secret struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := json.Unmarshal([]byte(plain), &secret); err != nil {
		return MailboxCredentials{}, vault.ErrDecryptionFailed
	}
	creds := MailboxCredentials{
		Username: secret.Username,
		Password: secret.Password,
	}
	if host, ok := client.EmailConfig["host"].(string); ok {
		creds.Host = host
	}
	if port, ok := client.EmailConfig["port"].(float64); ok {
		creds.Port = int(port)
	} else if port, ok := client.EmailConfig["port"].(int); ok {
		creds.Port = port
	}
	if ssl, ok := client.EmailConfig["ssl"].(bool); ok {
		creds.SSL = ssl
	}
	if folders, ok := client.EmailConfig["folders"].([]any); ok {
		for _, f := range folders {
			if name, ok := f.(string); ok {
				creds.Folders = append(creds.Folders, name)
			}
		}
	}
	return creds, nil
}

// SetAccountingCredentials seals an accounting system secret into the
// client's accounting config.
func (s *Service) SetAccountingCredentials(ctx context.Context, clientID, system string, creds AccountingCredentials) error {
	client, org, err := s.clientWithOrg(ctx, clientID)
	if err != nil {
		return err
	}
	sealed, err := vault.Encrypt(creds.Secret, org.EncryptionKey)
	if err != nil {
		return err
	}
	config := map[string]any{
		encryptedCredentialsField: sealed,
		"api_url":                 creds.APIURL,
		"auth_type":               creds.AuthType,
	}
	return s.store.UpdateClientAccountingConfig(ctx, client.ID, strings.TrimSpace(system), config)
}

// AccountingCredentials decrypts a client's accounting connection.
func (s *Service) AccountingCredentials(ctx context.Context, clientID string) (AccountingCredentials, error) {
	client, org, err := s.clientWithOrg(ctx, clientID)
	if err != nil {
		return AccountingCredentials{}, err
	}
	sealed, ok := client.AccountingConfig[encryptedCredentialsField].(string)
	if !ok || sealed == "" {
		return AccountingCredentials{}, fmt.Errorf("%w: client has no accounting credentials", ErrNotFound)
	}
	secret, err := vault.Decrypt(sealed, org.EncryptionKey)
	if err != nil {
		return AccountingCredentials{}, err
	}
	creds := AccountingCredentials{Secret: secret}
	if u, ok := client.AccountingConfig["api_url"].(string); ok {
		creds.APIURL = u
	}
	if a, ok := client.AccountingConfig["auth_type"].(string); ok {
		creds.AuthType = a
	}
	return creds, nil
}

// CreateIntegrationConfig registers an integration for a client.
func (s *Service) CreateIntegrationConfig(ctx context.Context, clientID, integrationType, name string, configData map[string]any) (*IntegrationConfig, error) {
	clientID = strings.TrimSpace(clientID)
	integrationType = strings.TrimSpace(integrationType)
	name = strings.TrimSpace(name)
	if clientID == "" || integrationType == "" || name == "" {
		return nil, fmt.Errorf("%w: client_id, integration_type and name are required", ErrInvalidInput)
	}
	if _, err := s.store.GetClient(ctx, clientID); err != nil {
		return nil, err
	}
	if configData == nil {
		configData = map[string]any{}
	}
	now := s.now().UTC()
	ic := &IntegrationConfig{
		ID:              uuid.NewString(),
		ClientID:        clientID,
		IntegrationType: integrationType,
		Name:            name,
		ConfigData:      configData,
		IsActive:        true,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := s.store.CreateIntegrationConfig(ctx, ic); err != nil {
		return nil, err
	}
	return ic, nil
}

// ListIntegrationConfigs returns the integrations registered for a client.
func (s *Service) ListIntegrationConfigs(ctx context.Context, clientID string) ([]*IntegrationConfig, error) {
	clientID = strings.TrimSpace(clientID)
	if clientID == "" {
		return nil, fmt.Errorf("%w: client_id is required", ErrInvalidInput)
	}
	return s.store.ListIntegrationConfigs(ctx, clientID)
}

func (s *Service) clientWithOrg(ctx context.Context, clientID string) (*Client, *Organization, error) {
	clientID = strings.TrimSpace(clientID)
	if clientID == "" {
		return nil, nil, fmt.Errorf("%w: client_id is required", ErrInvalidInput)
	}
	client, err := s.store.GetClient(ctx, clientID)
	if err != nil {
		return nil, nil, err
	}
	org, err := s.store.GetOrganization(ctx, client.OrganizationID)
	if err != nil {
		return nil, nil, err
	}
	return client, org, nil
}

func dedupe(values []string) []string {
	if len(values) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

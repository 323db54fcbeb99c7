package directory

import (
	"time"

	"github.com/alexandratechlab/invoicehub/internal/auth"
)

// Organization is the multi-tenant master record: an accounting firm
// using the platform. EncryptionKey is minted exactly once at creation
// and scopes every secret the tenant stores.
type Organization struct {
	ID               string         `json:"id"`
	Name             string         `json:"name"`
	Slug             string         `json:"slug"`
	SubscriptionTier string         `json:"subscription_tier"`
	Email            string         `json:"email,omitempty"`
	Settings         map[string]any `json:"settings,omitempty"`
	EncryptionKey    string         `json:"-"`
	IsActive         bool           `json:"is_active"`
	CreatedAt        time.Time      `json:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at"`
}

// User is a platform account: firm staff (admin) or a client login.
type User struct {
	ID             string     `json:"id"`
	OrganizationID string     `json:"organization_id"`
	ClientID       string     `json:"client_id,omitempty"`
	Email          string     `json:"email"`
	PasswordHash   string     `json:"-"`
	FullName       string     `json:"full_name"`
	Role           auth.Role  `json:"role"`
	Permissions    []string   `json:"permissions,omitempty"`
	IsActive       bool       `json:"is_active"`
	LastLoginAt    *time.Time `json:"last_login_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// Client is a customer of the accounting firm. Credential material in
// the config blobs is stored only as vault ciphertext under the
// "encrypted_credentials" field; everything else stays plaintext.
type Client struct {
	ID             string `json:"id"`
	OrganizationID string `json:"organization_id"`
	Name           string `json:"name"`
	CompanyName    string `json:"company_name,omitempty"`
	Email          string `json:"email,omitempty"`

	EmailEnabled  bool           `json:"email_enabled"`
	EmailProvider string         `json:"email_provider,omitempty"`
	EmailConfig   map[string]any `json:"email_config,omitempty"`

	WhatsappEnabled   bool   `json:"whatsapp_enabled"`
	WhatsappSessionID string `json:"whatsapp_session_id,omitempty"`

	AccountingSystem string         `json:"accounting_system,omitempty"`
	AccountingConfig map[string]any `json:"accounting_config,omitempty"`

	DefaultCurrency string    `json:"default_currency"`
	Timezone        string    `json:"timezone"`
	IsActive        bool      `json:"is_active"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// IntegrationConfig connects a client to an accounting system or a
// custom API. ConfigData follows the same encrypted-credentials
// convention as Client configs.
type IntegrationConfig struct {
	ID              string         `json:"id"`
	ClientID        string         `json:"client_id"`
	IntegrationType string         `json:"integration_type"`
	Name            string         `json:"name"`
	ConfigData      map[string]any `json:"config_data,omitempty"`
	IsActive        bool           `json:"is_active"`
	LastSyncAt      *time.Time     `json:"last_sync_at,omitempty"`
	SyncStatus      string         `json:"sync_status,omitempty"`
	SyncError       string         `json:"sync_error,omitempty"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
}

// MailboxCredentials is the decrypted shape of a client's monitored
// mailbox configuration.
type MailboxCredentials struct {
	Username string   `json:"username"`
	Password string   `json:"password"`
	Host     string   `json:"host"`
	Port     int      `json:"port"`
	SSL      bool     `json:"ssl"`
	Folders  []string `json:"folders,omitempty"`
}

// AccountingCredentials is the decrypted shape of a client's
// accounting system connection.
type AccountingCredentials struct {
	APIURL   string `json:"api_url"`
	AuthType string `json:"auth_type"`
	Secret   string `json:"secret"`
}

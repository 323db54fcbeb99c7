package directory

import (
	"context"
	"errors"
	"time"
)

var (
	ErrNotFound      = errors.New("directory: not found")
	ErrAlreadyExists = errors.New("directory: already exists")
	ErrInvalidInput  = errors.New("directory: invalid input")
)

// Store describes the persistence operations the directory needs. The
// service never performs storage I/O itself.
type Store interface {
	CreateOrganization(ctx context.Context, org *Organization) error
	GetOrganization(ctx context.Context, id string) (*Organization, error)
	ListOrganizations(ctx context.Context) ([]*Organization, error)

	CreateUser(ctx context.Context, u *User) error
	GetUser(ctx context.Context, id string) (*User, error)
	GetUserByEmail(ctx context.Context, email string) (*User, error)
	TouchLastLogin(ctx context.Context, userID string, at time.Time) error

	CreateClient(ctx context.Context, c *Client) error
	GetClient(ctx context.Context, id string) (*Client, error)
	ListClients(ctx context.Context, organizationID string) ([]*Client, error)
	UpdateClientEmailConfig(ctx context.Context, clientID string, provider string, config map[string]any) error
	UpdateClientAccountingConfig(ctx context.Context, clientID string, system string, config map[string]any) error

	CreateIntegrationConfig(ctx context.Context, ic *IntegrationConfig) error
	GetIntegrationConfig(ctx context.Context, id string) (*IntegrationConfig, error)
	ListIntegrationConfigs(ctx context.Context, clientID string) ([]*IntegrationConfig, error)
}

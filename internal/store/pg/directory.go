package pg

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/alexandratechlab/invoicehub/internal/directory"
)

// DirectoryStore implements directory.Store on PostgreSQL.
type DirectoryStore struct {
	db *sql.DB
}

var _ directory.Store = (*DirectoryStore)(nil)

// Directory returns the directory persistence bound to the store's
// connection pool.
func (s *Store) Directory() *DirectoryStore {
	return &DirectoryStore{db: s.db}
}

const orgColumns = `id, name, slug, subscription_tier, email, settings, encryption_key, is_active, created_at, updated_at`

func (d *DirectoryStore) CreateOrganization(ctx context.Context, org *directory.Organization) error {
	settings, err := encodeJSON(org.Settings)
	if err != nil {
		return err
	}
	_, err = d.db.ExecContext(ctx, `
		insert into organizations(id, name, slug, subscription_tier, email, settings, encryption_key, is_active, created_at, updated_at)
		values ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
	`, org.ID, org.Name, org.Slug, org.SubscriptionTier, nullString(org.Email), settings, org.EncryptionKey, org.IsActive, org.CreatedAt, org.UpdatedAt)
	if isUniqueViolation(err) {
		return directory.ErrAlreadyExists
	}
	return err
}

func (d *DirectoryStore) GetOrganization(ctx context.Context, id string) (*directory.Organization, error) {
	row := d.db.QueryRowContext(ctx, `select `+orgColumns+` from organizations where id=$1`, id)
	return scanOrganization(row)
}

func (d *DirectoryStore) ListOrganizations(ctx context.Context) ([]*directory.Organization, error) {
	rows, err := d.db.QueryContext(ctx, `select `+orgColumns+` from organizations order by created_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*directory.Organization
	for rows.Next() {
		org, err := scanOrganization(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, org)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrganization(row rowScanner) (*directory.Organization, error) {
	var org directory.Organization
	var email sql.NullString
	var settings []byte
	err := row.Scan(&org.ID, &org.Name, &org.Slug, &org.SubscriptionTier, &email, &settings,
		&org.EncryptionKey, &org.IsActive, &org.CreatedAt, &org.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, directory.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	org.Email = email.String
	if org.Settings, err = decodeMap(settings); err != nil {
		return nil, err
	}
	return &org, nil
}

const userColumns = `id, organization_id, client_id, email, password_hash, full_name, role, permissions, is_active, last_login_at, created_at, updated_at`

func (d *DirectoryStore) CreateUser(ctx context.Context, u *directory.User) error {
	perms, err := encodeStrings(u.Permissions)
	if err != nil {
		return err
	}
	_, err = d.db.ExecContext(ctx, `
		insert into users(id, organization_id, client_id, email, password_hash, full_name, role, permissions, is_active, created_at, updated_at)
		values ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
	`, u.ID, u.OrganizationID, nullString(u.ClientID), u.Email, u.PasswordHash, u.FullName, string(u.Role), perms, u.IsActive, u.CreatedAt, u.UpdatedAt)
	if isUniqueViolation(err) {
		return directory.ErrAlreadyExists
	}
	return err
}

func (d *DirectoryStore) GetUser(ctx context.Context, id string) (*directory.User, error) {
	row := d.db.QueryRowContext(ctx, `select `+userColumns+` from users where id=$1`, id)
	return scanUser(row)
}

func (d *DirectoryStore) GetUserByEmail(ctx context.Context, email string) (*directory.User, error) {
	row := d.db.QueryRowContext(ctx, `select `+userColumns+` from users where lower(email)=lower($1)`, email)
	return scanUser(row)
}

func (d *DirectoryStore) TouchLastLogin(ctx context.Context, userID string, at time.Time) error {
	res, err := d.db.ExecContext(ctx, `update users set last_login_at=$2, updated_at=$2 where id=$1`, userID, at)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return directory.ErrNotFound
	}
	return nil
}

func scanUser(row rowScanner) (*directory.User, error) {
	var u directory.User
	var clientID sql.NullString
	var role string
	var perms []byte
	var lastLogin sql.NullTime
	err := row.Scan(&u.ID, &u.OrganizationID, &clientID, &u.Email, &u.PasswordHash, &u.FullName,
		&role, &perms, &u.IsActive, &lastLogin, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, directory.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	u.ClientID = clientID.String
	u.Role = authRole(role)
	u.LastLoginAt = timePtr(lastLogin)
	if u.Permissions, err = decodeStrings(perms); err != nil {
		return nil, err
	}
	return &u, nil
}

const clientColumns = `id, organization_id, name, company_name, email,
	email_enabled, email_provider, email_config,
	whatsapp_enabled, whatsapp_session_id,
	accounting_system, accounting_config,
	default_currency, timezone, is_active, created_at, updated_at`

func (d *DirectoryStore) CreateClient(ctx context.Context, c *directory.Client) error {
	emailCfg, err := encodeJSON(c.EmailConfig)
	if err != nil {
		return err
	}
	acctCfg, err := encodeJSON(c.AccountingConfig)
	if err != nil {
		return err
	}
	_, err = d.db.ExecContext(ctx, `
		insert into clients(id, organization_id, name, company_name, email,
			email_enabled, email_provider, email_config,
			whatsapp_enabled, whatsapp_session_id,
			accounting_system, accounting_config,
			default_currency, timezone, is_active, created_at, updated_at)
		values ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17)
	`, c.ID, c.OrganizationID, c.Name, nullString(c.CompanyName), nullString(c.Email),
		c.EmailEnabled, nullString(c.EmailProvider), emailCfg,
		c.WhatsappEnabled, nullString(c.WhatsappSessionID),
		nullString(c.AccountingSystem), acctCfg,
		c.DefaultCurrency, c.Timezone, c.IsActive, c.CreatedAt, c.UpdatedAt)
	return err
}

func (d *DirectoryStore) GetClient(ctx context.Context, id string) (*directory.Client, error) {
	row := d.db.QueryRowContext(ctx, `select `+clientColumns+` from clients where id=$1`, id)
	return scanClient(row)
}

func (d *DirectoryStore) ListClients(ctx context.Context, organizationID string) ([]*directory.Client, error) {
	rows, err := d.db.QueryContext(ctx, `select `+clientColumns+` from clients where organization_id=$1 order by created_at`, organizationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*directory.Client
	for rows.Next() {
		c, err := scanClient(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (d *DirectoryStore) UpdateClientEmailConfig(ctx context.Context, clientID string, provider string, config map[string]any) error {
	cfg, err := encodeJSON(config)
	if err != nil {
		return err
	}
	res, err := d.db.ExecContext(ctx, `
		update clients set email_enabled=true, email_provider=$2, email_config=$3, updated_at=now()
		where id=$1
	`, clientID, provider, cfg)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return directory.ErrNotFound
	}
	return nil
}

func (d *DirectoryStore) UpdateClientAccountingConfig(ctx context.Context, clientID string, system string, config map[string]any) error {
	cfg, err := encodeJSON(config)
	if err != nil {
		return err
	}
	res, err := d.db.ExecContext(ctx, `
		update clients set accounting_system=$2, accounting_config=$3, updated_at=now()
		where id=$1
	`, clientID, system, cfg)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return directory.ErrNotFound
	}
	return nil
}

func scanClient(row rowScanner) (*directory.Client, error) {
	var c directory.Client
	var companyName, email, emailProvider, whatsappSession, acctSystem sql.NullString
	var emailCfg, acctCfg []byte
	err := row.Scan(&c.ID, &c.OrganizationID, &c.Name, &companyName, &email,
		&c.EmailEnabled, &emailProvider, &emailCfg,
		&c.WhatsappEnabled, &whatsappSession,
		&acctSystem, &acctCfg,
		&c.DefaultCurrency, &c.Timezone, &c.IsActive, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, directory.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	c.CompanyName = companyName.String
	c.Email = email.String
	c.EmailProvider = emailProvider.String
	c.WhatsappSessionID = whatsappSession.String
	c.AccountingSystem = acctSystem.String
	if c.EmailConfig, err = decodeMap(emailCfg); err != nil {
		return nil, err
	}
	if c.AccountingConfig, err = decodeMap(acctCfg); err != nil {
		return nil, err
	}
	return &c, nil
}

const integrationColumns = `id, client_id, integration_type, name, config_data, is_active, last_sync_at, sync_status, sync_error, created_at, updated_at`

func (d *DirectoryStore) CreateIntegrationConfig(ctx context.Context, ic *directory.IntegrationConfig) error {
	cfg, err := encodeJSON(ic.ConfigData)
	if err != nil {
		return err
	}
	_, err = d.db.ExecContext(ctx, `
		insert into integration_configs(id, client_id, integration_type, name, config_data, is_active, sync_status, created_at, updated_at)
		values ($1,$2,$3,$4,$5,$6,$7,$8,$9)
	`, ic.ID, ic.ClientID, ic.IntegrationType, ic.Name, cfg, ic.IsActive, nullString(ic.SyncStatus), ic.CreatedAt, ic.UpdatedAt)
	return err
}

func (d *DirectoryStore) GetIntegrationConfig(ctx context.Context, id string) (*directory.IntegrationConfig, error) {
	row := d.db.QueryRowContext(ctx, `select `+integrationColumns+` from integration_configs where id=$1`, id)
	return scanIntegrationConfig(row)
}

func (d *DirectoryStore) ListIntegrationConfigs(ctx context.Context, clientID string) ([]*directory.IntegrationConfig, error) {
	rows, err := d.db.QueryContext(ctx, `select `+integrationColumns+` from integration_configs where client_id=$1 order by created_at`, clientID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*directory.IntegrationConfig
	for rows.Next() {
		ic, err := scanIntegrationConfig(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, ic)
	}
	return out, rows.Err()
}

func scanIntegrationConfig(row rowScanner) (*directory.IntegrationConfig, error) {
	var ic directory.IntegrationConfig
	var cfg []byte
	var lastSync sql.NullTime
	var syncStatus, syncError sql.NullString
	err := row.Scan(&ic.ID, &ic.ClientID, &ic.IntegrationType, &ic.Name, &cfg, &ic.IsActive,
		&lastSync, &syncStatus, &syncError, &ic.CreatedAt, &ic.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, directory.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	ic.LastSyncAt = timePtr(lastSync)
	ic.SyncStatus = syncStatus.String
	ic.SyncError = syncError.String
	if ic.ConfigData, err = decodeMap(cfg); err != nil {
		return nil, err
	}
	return &ic, nil
}

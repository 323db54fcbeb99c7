package pg

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/alexandratechlab/invoicehub/internal/apikey"
)

// APIKeyStore implements apikey.Store on PostgreSQL.
type APIKeyStore struct {
	db *sql.DB
}

var _ apikey.Store = (*APIKeyStore)(nil)

// APIKeys returns the API key persistence bound to the store's
// connection pool.
func (s *Store) APIKeys() *APIKeyStore {
	return &APIKeyStore{db: s.db}
}

const apiKeyColumns = `id, user_id, organization_id, client_id, key_hash, key_prefix, name, scopes, rate_limit, is_active, expires_at, last_used_at, created_at, updated_at`

func (a *APIKeyStore) Create(ctx context.Context, key *apikey.Key) error {
	scopes, err := encodeStrings(key.Scopes)
	if err != nil {
		return err
	}
	_, err = a.db.ExecContext(ctx, `
		insert into api_keys(id, user_id, organization_id, client_id, key_hash, key_prefix, name, scopes, rate_limit, is_active, expires_at, created_at, updated_at)
		values ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
	`, key.ID, key.UserID, key.OrganizationID, nullString(key.ClientID), key.KeyHash, key.KeyPrefix,
		key.Name, scopes, key.RateLimit, key.IsActive, nullTime(key.ExpiresAt), key.CreatedAt, key.UpdatedAt)
	return err
}

func (a *APIKeyStore) Get(ctx context.Context, id string) (*apikey.Key, error) {
	row := a.db.QueryRowContext(ctx, `select `+apiKeyColumns+` from api_keys where id=$1`, id)
	return scanAPIKey(row)
}

func (a *APIKeyStore) ListByOrganization(ctx context.Context, organizationID string) ([]*apikey.Key, error) {
	rows, err := a.db.QueryContext(ctx, `select `+apiKeyColumns+` from api_keys where organization_id=$1 order by created_at desc`, organizationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectAPIKeys(rows)
}

func (a *APIKeyStore) FindActiveByPrefix(ctx context.Context, prefix string) ([]*apikey.Key, error) {
	rows, err := a.db.QueryContext(ctx, `select `+apiKeyColumns+` from api_keys where key_prefix=$1 and is_active`, prefix)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectAPIKeys(rows)
}

func (a *APIKeyStore) Deactivate(ctx context.Context, id string) error {
	res, err := a.db.ExecContext(ctx, `update api_keys set is_active=false, updated_at=now() where id=$1`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apikey.ErrNotFound
	}
	return nil
}

func (a *APIKeyStore) TouchLastUsed(ctx context.Context, id string, at time.Time) error {
	res, err := a.db.ExecContext(ctx, `update api_keys set last_used_at=$2, updated_at=$2 where id=$1`, id, at)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apikey.ErrNotFound
	}
	return nil
}

func collectAPIKeys(rows *sql.Rows) ([]*apikey.Key, error) {
	var out []*apikey.Key
	for rows.Next() {
		key, err := scanAPIKey(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, key)
	}
	return out, rows.Err()
}

func scanAPIKey(row rowScanner) (*apikey.Key, error) {
	var key apikey.Key
	var clientID sql.NullString
	var scopes []byte
	var expiresAt, lastUsedAt sql.NullTime
	err := row.Scan(&key.ID, &key.UserID, &key.OrganizationID, &clientID, &key.KeyHash, &key.KeyPrefix,
		&key.Name, &scopes, &key.RateLimit, &key.IsActive, &expiresAt, &lastUsedAt, &key.CreatedAt, &key.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apikey.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	key.ClientID = clientID.String
	key.ExpiresAt = timePtr(expiresAt)
	key.LastUsedAt = timePtr(lastUsedAt)
	if key.Scopes, err = decodeStrings(scopes); err != nil {
		return nil, err
	}
	return &key, nil
}

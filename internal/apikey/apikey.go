// Package apikey manages opaque machine-to-machine keys. Only a hash
// and a short lookup prefix of each key are ever persisted; the
// plaintext is handed to the caller once at issuance and is
// unrecoverable afterwards.
package apikey

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/alexandratechlab/invoicehub/internal/auth"
)

var (
	ErrNotFound     = errors.New("apikey: not found")
	ErrInvalidInput = errors.New("apikey: invalid input")

	// ErrInvalidKey covers unknown, inactive, expired and mismatched
	// keys alike; callers treat it as 401 material.
	ErrInvalidKey = errors.New("apikey: invalid key")
)

// Key is the persisted API key record. KeyHash is written once at
// issuance and never updated; lifecycle mutations are limited to
// IsActive and LastUsedAt.
type Key struct {
	ID             string     `json:"id"`
	UserID         string     `json:"user_id"`
	OrganizationID string     `json:"organization_id"`
	ClientID       string     `json:"client_id,omitempty"`
	KeyHash        string     `json:"-"`
	KeyPrefix      string     `json:"key_prefix"`
	Name           string     `json:"name"`
	Scopes         []string   `json:"scopes,omitempty"`
	RateLimit      int        `json:"rate_limit"`
	IsActive       bool       `json:"is_active"`
	ExpiresAt      *time.Time `json:"expires_at,omitempty"`
	LastUsedAt     *time.Time `json:"last_used_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// HasScope reports whether the key grants a scope.
func (k *Key) HasScope(scope string) bool {
	for _, s := range k.Scopes {
		if s == scope {
			return true
		}
	}
	return false
}

// Store persists API key records.
type Store interface {
	Create(ctx context.Context, key *Key) error
	Get(ctx context.Context, id string) (*Key, error)
	ListByOrganization(ctx context.Context, organizationID string) ([]*Key, error)
	// FindActiveByPrefix returns active keys sharing a plaintext
	// prefix. Prefixes are not unique, so verification compares the
	// presented key against every candidate hash.
	FindActiveByPrefix(ctx context.Context, prefix string) ([]*Key, error)
	Deactivate(ctx context.Context, id string) error
	TouchLastUsed(ctx context.Context, id string, at time.Time) error
}

const defaultRateLimit = 100 // requests per hour, matching deployment default

// Service issues, verifies and revokes API keys.
type Service struct {
	store         Store
	defaultExpiry time.Duration
	now           func() time.Time
}

// Option configures Service.
type Option func(*Service)

// WithDefaultExpiry sets the expiry applied to keys issued without an
// explicit one. Zero disables default expiry.
func WithDefaultExpiry(d time.Duration) Option {
	return func(s *Service) { s.defaultExpiry = d }
}

// WithClock overrides the time source (useful for tests).
func WithClock(fn func() time.Time) Option {
	return func(s *Service) {
		if fn != nil {
			s.now = fn
		}
	}
}

// NewService constructs the API key service.
func NewService(store Store, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, errors.New("apikey: store is required")
	}
	s := &Service{
		store:         store,
		defaultExpiry: 365 * 24 * time.Hour,
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// IssueParams collects issuance fields.
type IssueParams struct {
	UserID         string
	OrganizationID string
	ClientID       string
	Name           string
	Scopes         []string
	RateLimit      int
	ExpiresAt      *time.Time
}

// Issue mints a key and persists its record. The returned plaintext is
// shown to the caller exactly once and never stored.
func (s *Service) Issue(ctx context.Context, p IssueParams) (*Key, string, error) {
	p.UserID = strings.TrimSpace(p.UserID)
	p.OrganizationID = strings.TrimSpace(p.OrganizationID)
	p.Name = strings.TrimSpace(p.Name)
	if p.UserID == "" || p.OrganizationID == "" {
		return nil, "", fmt.Errorf("%w: user_id and organization_id are required", ErrInvalidInput)
	}
	if p.Name == "" {
		return nil, "", fmt.Errorf("%w: name is required", ErrInvalidInput)
	}
	if p.RateLimit <= 0 {
		p.RateLimit = defaultRateLimit
	}

	plain, hash, err := auth.GenerateAPIKey()
	if err != nil {
		return nil, "", fmt.Errorf("generate key: %w", err)
	}

	now := s.now().UTC()
	expires := p.ExpiresAt
	if expires == nil && s.defaultExpiry > 0 {
		e := now.Add(s.defaultExpiry)
		expires = &e
	}
	key := &Key{
		ID:             uuid.NewString(),
		UserID:         p.UserID,
		OrganizationID: p.OrganizationID,
		ClientID:       strings.TrimSpace(p.ClientID),
		KeyHash:        hash,
		KeyPrefix:      auth.KeyPrefix(plain),
		Name:           p.Name,
		Scopes:         p.Scopes,
		RateLimit:      p.RateLimit,
		IsActive:       true,
		ExpiresAt:      expires,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.store.Create(ctx, key); err != nil {
		return nil, "", err
	}
	return key, plain, nil
}

// Verify resolves a presented plaintext key to its record. Lookup goes
// through the stored prefix so only a handful of hashes are compared;
// any mismatch, expiry or inactive flag yields ErrInvalidKey.
func (s *Service) Verify(ctx context.Context, plain string) (*Key, error) {
	plain = strings.TrimSpace(plain)
	if plain == "" || !strings.HasPrefix(plain, auth.APIKeyPrefix) {
		return nil, ErrInvalidKey
	}
	candidates, err := s.store.FindActiveByPrefix(ctx, auth.KeyPrefix(plain))
	if err != nil {
		return nil, err
	}
	now := s.now().UTC()
	for _, key := range candidates {
		if !auth.VerifyAPIKey(plain, key.KeyHash) {
			continue
		}
		if !key.IsActive {
			return nil, ErrInvalidKey
		}
		if key.ExpiresAt != nil && !key.ExpiresAt.After(now) {
			return nil, ErrInvalidKey
		}
		_ = s.store.TouchLastUsed(ctx, key.ID, now)
		key.LastUsedAt = &now
		return key, nil
	}
	return nil, ErrInvalidKey
}

// Get loads a key record by id.
func (s *Service) Get(ctx context.Context, id string) (*Key, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, fmt.Errorf("%w: id is required", ErrInvalidInput)
	}
	return s.store.Get(ctx, id)
}

// List returns an organization's keys, hashes excluded by the Key
// JSON encoding.
func (s *Service) List(ctx context.Context, organizationID string) ([]*Key, error) {
	organizationID = strings.TrimSpace(organizationID)
	if organizationID == "" {
		return nil, fmt.Errorf("%w: organization_id is required", ErrInvalidInput)
	}
	return s.store.ListByOrganization(ctx, organizationID)
}

// Revoke deactivates a key. Records are never deleted so audit trails
// keep resolving.
func (s *Service) Revoke(ctx context.Context, id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return fmt.Errorf("%w: id is required", ErrInvalidInput)
	}
	return s.store.Deactivate(ctx, id)
}

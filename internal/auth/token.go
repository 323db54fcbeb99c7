package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	// TokenTypeAccess authorizes resource access.
	TokenTypeAccess = "access"
	// TokenTypeRefresh only authorizes minting a fresh pair.
	TokenTypeRefresh = "refresh"

	defaultIssuer     = "invoicehub"
	defaultAccessTTL  = 60 * time.Minute
	defaultRefreshTTL = 7 * 24 * time.Hour
)

// Principal is the identity embedded into tokens: who, which tenant,
// and what they may do.
type Principal struct {
	UserID         string
	OrganizationID string
	Role           Role
	Permissions    []string
}

// Claims is the verified JWT payload.
type Claims struct {
	OrganizationID string   `json:"org,omitempty"`
	Role           Role     `json:"role,omitempty"`
	Permissions    []string `json:"permissions,omitempty"`
	TokenType      string   `json:"type"`
	jwt.RegisteredClaims
}

// Principal rebuilds the identity carried by the claims.
func (c *Claims) Principal() Principal {
	return Principal{
		UserID:         c.Subject,
		OrganizationID: c.OrganizationID,
		Role:           c.Role,
		Permissions:    c.Permissions,
	}
}

// HasPermission reports whether the permission is present in the
// token's permission set.
func (c *Claims) HasPermission(perm string) bool {
	for _, p := range c.Permissions {
		if p == perm {
			return true
		}
	}
	return false
}

// TokenService signs and verifies bearer tokens with a process-wide
// HS256 secret. Tokens are stateless: there is no revocation list, so
// invalidation means waiting out the TTL or rotating the secret.
type TokenService struct {
	secret     []byte
	issuer     string
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

// TokenOption configures TokenService.
type TokenOption func(*TokenService)

// WithIssuer overrides the iss claim.
func WithIssuer(issuer string) TokenOption {
	return func(s *TokenService) {
		if v := strings.TrimSpace(issuer); v != "" {
			s.issuer = v
		}
	}
}

// WithAccessTTL configures access token lifetime.
func WithAccessTTL(ttl time.Duration) TokenOption {
	return func(s *TokenService) {
		if ttl > 0 {
			s.accessTTL = ttl
		}
	}
}

// WithRefreshTTL configures refresh token lifetime.
func WithRefreshTTL(ttl time.Duration) TokenOption {
	return func(s *TokenService) {
		if ttl > 0 {
			s.refreshTTL = ttl
		}
	}
}

// WithClock overrides the time source (useful for tests).
func WithClock(fn func() time.Time) TokenOption {
	return func(s *TokenService) {
		if fn != nil {
			s.now = fn
		}
	}
}

// NewTokenService constructs a TokenService around the signing secret.
func NewTokenService(secret string, opts ...TokenOption) (*TokenService, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, errors.New("auth: signing secret is required")
	}
	s := &TokenService{
		secret:     []byte(secret),
		issuer:     defaultIssuer,
		accessTTL:  defaultAccessTTL,
		refreshTTL: defaultRefreshTTL,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// IssueAccess mints an access token for the principal.
func (s *TokenService) IssueAccess(p Principal) (string, time.Time, error) {
	return s.issue(p, TokenTypeAccess, s.accessTTL)
}

// IssueRefresh mints a refresh token for the principal.
func (s *TokenService) IssueRefresh(p Principal) (string, time.Time, error) {
	return s.issue(p, TokenTypeRefresh, s.refreshTTL)
}

func (s *TokenService) issue(p Principal, tokenType string, ttl time.Duration) (string, time.Time, error) {
	userID := strings.TrimSpace(p.UserID)
	if userID == "" {
		return "", time.Time{}, errors.New("auth: user id is required")
	}
	now := s.now().UTC()
	exp := now.Add(ttl)
	claims := Claims{
		OrganizationID: p.OrganizationID,
		Role:           p.Role,
		Permissions:    p.Permissions,
		TokenType:      tokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.issuer,
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
			ID:        uuid.NewString(),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, exp, nil
}

// Decode verifies the signature and structure of a token and returns
// its claims. Expired tokens surface ErrTokenExpired; every other
// failure collapses to ErrInvalidToken so callers cannot distinguish
// tamper modes.
func (s *TokenService) Decode(token string) (*Claims, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrInvalidToken
	}
	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(t *jwt.Token) (any, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, ErrInvalidToken
		}
		return s.secret, nil
	}, jwt.WithIssuer(s.issuer), jwt.WithTimeFunc(func() time.Time { return s.now() }))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrInvalidToken
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, ErrInvalidToken
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return nil, ErrInvalidToken
	}
	if claims.TokenType != TokenTypeAccess && claims.TokenType != TokenTypeRefresh {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// DecodeRefresh verifies a token and additionally requires it to be a
// refresh token; the dedicated refresh flow is the only caller.
func (s *TokenService) DecodeRefresh(token string) (*Claims, error) {
	claims, err := s.Decode(token)
	if err != nil {
		return nil, err
	}
	if claims.TokenType != TokenTypeRefresh {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/alexandratechlab/invoicehub/internal/apikey"
	"github.com/alexandratechlab/invoicehub/internal/auth"
	"github.com/alexandratechlab/invoicehub/internal/obs"
)

const (
	authHeader   = "Authorization"
	bearer       = "Bearer "
	apiKeyHeader = "X-API-Key"
)

var publicPaths = []string{
	"/v1/auth/login",
	"/v1/auth/refresh",
	"/metrics",
	"/healthz",
	"/readyz",
	"/v1/info",
	"/",
}

type apiKeyContextKey struct{}

// APIKeyFromContext returns the verified API key for machine callers.
func APIKeyFromContext(ctx context.Context) (*apikey.Key, bool) {
	v, ok := ctx.Value(apiKeyContextKey{}).(*apikey.Key)
	return v, ok && v != nil
}

// withAuth authenticates every non-public request, accepting either a
// bearer token or an X-API-Key header.
func (a *API) withAuth(next http.Handler) http.Handler {
	if a.tokens == nil {
		return next
	}
	guard := auth.NewGuard(a.tokens)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodOptions || isPublicPath(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		if raw := strings.TrimSpace(r.Header.Get(apiKeyHeader)); raw != "" {
			a.authenticateAPIKey(w, r, next, raw)
			return
		}

		token, err := extractBearerToken(r.Header.Get(authHeader))
		if err != nil {
			writeError(w, r, http.StatusUnauthorized, err.Error())
			return
		}

		claims, err := guard.Authorize(token)
		if err != nil {
			writeAuthError(w, r, err)
			return
		}

		ctx := auth.ContextWithClaims(r.Context(), claims)
		ctx = auth.ContextWithToken(ctx, token)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (a *API) authenticateAPIKey(w http.ResponseWriter, r *http.Request, next http.Handler, raw string) {
	if a.apikeys == nil {
		writeError(w, r, http.StatusUnauthorized, "invalid api key")
		return
	}
	key, err := a.apikeys.Verify(r.Context(), raw)
	if err != nil {
		if errors.Is(err, apikey.ErrInvalidKey) {
			writeError(w, r, http.StatusUnauthorized, "invalid api key")
			return
		}
		obs.Logger().Error("api key verification failed", zap.Error(err))
		writeError(w, r, http.StatusInternalServerError, "authentication error")
		return
	}

	// API keys act as client-scoped credentials of the owning tenant.
	claims := &auth.Claims{
		OrganizationID: key.OrganizationID,
		Role:           auth.RoleClient,
		Permissions:    key.Scopes,
		TokenType:      auth.TokenTypeAccess,
	}
	claims.Subject = key.UserID

	ctx := context.WithValue(r.Context(), apiKeyContextKey{}, key)
	ctx = auth.ContextWithClaims(ctx, claims)
	next.ServeHTTP(w, r.WithContext(ctx))
}

// writeAuthError maps authorization failures to HTTP statuses: 401 for
// token problems (with distinct messages for expired and invalid), 403
// for role and permission denials.
func writeAuthError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, auth.ErrTokenExpired):
		writeError(w, r, http.StatusUnauthorized, "token expired")
	case errors.Is(err, auth.ErrInvalidToken), errors.Is(err, auth.ErrUnauthorized):
		writeError(w, r, http.StatusUnauthorized, "invalid token")
	case errors.Is(err, auth.ErrInsufficientRole):
		writeError(w, r, http.StatusForbidden, "insufficient role")
	case errors.Is(err, auth.ErrMissingPermission):
		writeError(w, r, http.StatusForbidden, "missing permission")
	default:
		obs.Logger().Error("authorization failure", zap.Error(err))
		writeError(w, r, http.StatusInternalServerError, "authentication error")
	}
}

// claims returns the authenticated claims or writes a 401.
func (a *API) claims(w http.ResponseWriter, r *http.Request) (*auth.Claims, bool) {
	claims, ok := auth.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "invalid token")
		return nil, false
	}
	return claims, true
}

// ensureRole enforces a minimum role on the authenticated claims.
func (a *API) ensureRole(w http.ResponseWriter, r *http.Request, role auth.Role) (*auth.Claims, bool) {
	claims, ok := a.claims(w, r)
	if !ok {
		return nil, false
	}
	if !claims.Role.Satisfies(role) {
		writeAuthError(w, r, auth.ErrInsufficientRole)
		return nil, false
	}
	return claims, true
}

// ensurePermission enforces a permission; super_admin always passes.
func (a *API) ensurePermission(w http.ResponseWriter, r *http.Request, perm string) (*auth.Claims, bool) {
	claims, ok := a.claims(w, r)
	if !ok {
		return nil, false
	}
	if claims.Role != auth.RoleSuperAdmin && !claims.HasPermission(perm) {
		writeAuthError(w, r, auth.ErrMissingPermission)
		return nil, false
	}
	return claims, true
}

func extractBearerToken(header string) (string, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return "", errors.New("missing bearer token")
	}
	if !strings.HasPrefix(strings.ToLower(header), strings.ToLower(bearer)) {
		return "", errors.New("invalid authorization scheme")
	}
	token := strings.TrimSpace(header[len(bearer):])
	if token == "" {
		return "", errors.New("missing bearer token")
	}
	return token, nil
}

func isPublicPath(path string) bool {
	for _, p := range publicPaths {
		if path == p {
			return true
		}
	}
	return false
}

package httpapi

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/alexandratechlab/invoicehub/internal/apikey"
	"github.com/alexandratechlab/invoicehub/internal/auth"
)

type createAPIKeyRequest struct {
	Name      string     `json:"name"`
	ClientID  string     `json:"client_id"`
	Scopes    []string   `json:"scopes"`
	RateLimit int        `json:"rate_limit"`
	ExpiresAt *time.Time `json:"expires_at"`
}

type createAPIKeyResponse struct {
	Key *apikey.Key `json:"key"`
	// Plaintext is returned exactly once; it cannot be recovered later.
	Plaintext string `json:"plaintext"`
}

func (a *API) handleAPIKeys(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		a.createAPIKey(w, r)
	case http.MethodGet:
		a.listAPIKeys(w, r)
	default:
		methodNotAllowed(w, r, http.MethodPost, http.MethodGet)
	}
}

func (a *API) createAPIKey(w http.ResponseWriter, r *http.Request) {
	claims, ok := a.ensureRole(w, r, auth.RoleAdmin)
	if !ok {
		return
	}
	var req createAPIKeyRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	key, plain, err := a.apikeys.Issue(r.Context(), apikey.IssueParams{
		UserID:         claims.Subject,
		OrganizationID: claims.OrganizationID,
		ClientID:       req.ClientID,
		Name:           req.Name,
		Scopes:         req.Scopes,
		RateLimit:      req.RateLimit,
		ExpiresAt:      req.ExpiresAt,
	})
	if err != nil {
		handleAPIKeyError(w, r, err)
		return
	}

	_ = a.audit.Event(r.Context(), "apikey.issued", map[string]any{
		"key_id": key.ID,
		"name":   key.Name,
	})
	w.Header().Set("Location", fmt.Sprintf("/v1/apikeys/%s", key.ID))
	writeJSON(w, http.StatusCreated, createAPIKeyResponse{Key: key, Plaintext: plain})
}

func (a *API) listAPIKeys(w http.ResponseWriter, r *http.Request) {
	claims, ok := a.ensureRole(w, r, auth.RoleAdmin)
	if !ok {
		return
	}
	keys, err := a.apikeys.List(r.Context(), claims.OrganizationID)
	if err != nil {
		handleAPIKeyError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"keys": keys})
}

func (a *API) handleAPIKeyScoped(w http.ResponseWriter, r *http.Request) {
	id := strings.Trim(strings.TrimPrefix(r.URL.Path, "/v1/apikeys/"), "/")
	if id == "" || strings.Contains(id, "/") {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}
	claims, ok := a.ensureRole(w, r, auth.RoleAdmin)
	if !ok {
		return
	}

	key, err := a.apikeys.Get(r.Context(), id)
	if err != nil {
		handleAPIKeyError(w, r, err)
		return
	}
	// Keys never cross tenant boundaries, whoever asks.
	if key.OrganizationID != claims.OrganizationID && claims.Role != auth.RoleSuperAdmin {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}

	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, key)
	case http.MethodDelete:
		if err := a.apikeys.Revoke(r.Context(), id); err != nil {
			handleAPIKeyError(w, r, err)
			return
		}
		_ = a.audit.Event(r.Context(), "apikey.revoked", map[string]any{"key_id": id})
		w.WriteHeader(http.StatusNoContent)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodDelete)
	}
}

func handleAPIKeyError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, apikey.ErrInvalidInput):
		writeError(w, r, http.StatusBadRequest, err.Error())
	case errors.Is(err, apikey.ErrNotFound):
		writeError(w, r, http.StatusNotFound, "resource not found")
	default:
		writeError(w, r, http.StatusInternalServerError, "internal error")
	}
}

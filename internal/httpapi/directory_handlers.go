package httpapi

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/alexandratechlab/invoicehub/internal/auth"
	"github.com/alexandratechlab/invoicehub/internal/directory"
	"github.com/alexandratechlab/invoicehub/internal/obs"
	"github.com/alexandratechlab/invoicehub/internal/vault"

	"go.uber.org/zap"
)

type createOrganizationRequest struct {
	Name string `json:"name"`
	Slug string `json:"slug"`
}

type createUserRequest struct {
	OrganizationID string   `json:"organization_id"`
	ClientID       string   `json:"client_id"`
	Email          string   `json:"email"`
	Password       string   `json:"password"`
	FullName       string   `json:"full_name"`
	Role           string   `json:"role"`
	Permissions    []string `json:"permissions"`
}

type createClientRequest struct {
	Name        string `json:"name"`
	CompanyName string `json:"company_name"`
	Email       string `json:"email"`
}

type mailboxCredentialsRequest struct {
	Provider string   `json:"provider"`
	Username string   `json:"username"`
	Password string   `json:"password"`
	Host     string   `json:"host"`
	Port     int      `json:"port"`
	SSL      bool     `json:"ssl"`
	Folders  []string `json:"folders"`
}

type accountingCredentialsRequest struct {
	System   string `json:"system"`
	APIURL   string `json:"api_url"`
	AuthType string `json:"auth_type"`
	Secret   string `json:"secret"`
}

type createIntegrationRequest struct {
	IntegrationType string         `json:"integration_type"`
	Name            string         `json:"name"`
	ConfigData      map[string]any `json:"config_data"`
}

// Read responses carry connection settings only. Decrypted secrets are
// consumed by integration workers in-process and never travel back out
// over HTTP.
type mailboxSettingsResponse struct {
	Username    string   `json:"username"`
	Host        string   `json:"host"`
	Port        int      `json:"port"`
	SSL         bool     `json:"ssl"`
	Folders     []string `json:"folders,omitempty"`
	PasswordSet bool     `json:"password_set"`
}

type accountingSettingsResponse struct {
	APIURL    string `json:"api_url"`
	AuthType  string `json:"auth_type"`
	SecretSet bool   `json:"secret_set"`
}

func (a *API) handleOrganizations(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		if _, ok := a.ensureRole(w, r, auth.RoleSuperAdmin); !ok {
			return
		}
		var req createOrganizationRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		org, err := a.directory.CreateOrganization(r.Context(), req.Name, req.Slug)
		if err != nil {
			handleDirectoryError(w, r, err)
			return
		}
		_ = a.audit.Event(r.Context(), "directory.organization.created", map[string]any{
			"organization_id": org.ID,
			"slug":            org.Slug,
		})
		w.Header().Set("Location", fmt.Sprintf("/v1/organizations/%s", org.ID))
		writeJSON(w, http.StatusCreated, org)
	case http.MethodGet:
		if _, ok := a.ensureRole(w, r, auth.RoleSuperAdmin); !ok {
			return
		}
		orgs, err := a.directory.ListOrganizations(r.Context())
		if err != nil {
			handleDirectoryError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"organizations": orgs})
	default:
		methodNotAllowed(w, r, http.MethodPost, http.MethodGet)
	}
}

func (a *API) handleOrganizationScoped(w http.ResponseWriter, r *http.Request) {
	id := strings.Trim(strings.TrimPrefix(r.URL.Path, "/v1/organizations/"), "/")
	if id == "" || strings.Contains(id, "/") {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	claims, ok := a.ensureRole(w, r, auth.RoleAdmin)
	if !ok {
		return
	}
	if claims.Role != auth.RoleSuperAdmin && claims.OrganizationID != id {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}
	org, err := a.directory.GetOrganization(r.Context(), id)
	if err != nil {
		handleDirectoryError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, org)
}

func (a *API) handleUsers(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	claims, ok := a.ensureRole(w, r, auth.RoleAdmin)
	if !ok {
		return
	}
	var req createUserRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	orgID := claims.OrganizationID
	if claims.Role == auth.RoleSuperAdmin && strings.TrimSpace(req.OrganizationID) != "" {
		orgID = req.OrganizationID
	}
	role, roleOK := auth.ParseRole(req.Role)
	if !roleOK {
		writeError(w, r, http.StatusBadRequest, "unsupported role")
		return
	}
	// Only super_admin may mint super_admin accounts.
	if role == auth.RoleSuperAdmin && claims.Role != auth.RoleSuperAdmin {
		writeAuthError(w, r, auth.ErrInsufficientRole)
		return
	}

	user, err := a.directory.CreateUser(r.Context(), directory.CreateUserParams{
		OrganizationID: orgID,
		ClientID:       req.ClientID,
		Email:          req.Email,
		Password:       req.Password,
		FullName:       req.FullName,
		Role:           role,
		Permissions:    req.Permissions,
	})
	if err != nil {
		handleDirectoryError(w, r, err)
		return
	}
	_ = a.audit.Event(r.Context(), "directory.user.created", map[string]any{
		"user_id":         user.ID,
		"organization_id": user.OrganizationID,
		"role":            user.Role,
	})
	w.Header().Set("Location", fmt.Sprintf("/v1/users/%s", user.ID))
	writeJSON(w, http.StatusCreated, user)
}

func (a *API) handleClients(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		claims, ok := a.ensureRole(w, r, auth.RoleAdmin)
		if !ok {
			return
		}
		var req createClientRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		client, err := a.directory.CreateClient(r.Context(), claims.OrganizationID, req.Name, req.CompanyName, req.Email)
		if err != nil {
			handleDirectoryError(w, r, err)
			return
		}
		_ = a.audit.Event(r.Context(), "directory.client.created", map[string]any{
			"client_id": client.ID,
		})
		w.Header().Set("Location", fmt.Sprintf("/v1/clients/%s", client.ID))
		writeJSON(w, http.StatusCreated, client)
	case http.MethodGet:
		claims, ok := a.ensureRole(w, r, auth.RoleAdmin)
		if !ok {
			return
		}
		clients, err := a.directory.ListClients(r.Context(), claims.OrganizationID)
		if err != nil {
			handleDirectoryError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"clients": clients})
	default:
		methodNotAllowed(w, r, http.MethodPost, http.MethodGet)
	}
}

func (a *API) handleClientScoped(w http.ResponseWriter, r *http.Request) {
	path := strings.Trim(strings.TrimPrefix(r.URL.Path, "/v1/clients/"), "/")
	if path == "" {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}
	parts := strings.Split(path, "/")
	clientID := parts[0]

	claims, ok := a.ensureRole(w, r, auth.RoleAdmin)
	if !ok {
		return
	}
	client, err := a.directory.GetClient(r.Context(), clientID)
	if err != nil {
		handleDirectoryError(w, r, err)
		return
	}
	if claims.Role != auth.RoleSuperAdmin && client.OrganizationID != claims.OrganizationID {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}

	if len(parts) == 1 {
		if r.Method != http.MethodGet {
			methodNotAllowed(w, r, http.MethodGet)
			return
		}
		writeJSON(w, http.StatusOK, client)
		return
	}
	if len(parts) != 2 {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}
	switch parts[1] {
	case "mailbox":
		a.handleClientMailbox(w, r, clientID)
	case "accounting":
		a.handleClientAccounting(w, r, clientID)
	case "integrations":
		a.handleClientIntegrations(w, r, clientID)
	default:
		writeError(w, r, http.StatusNotFound, "resource not found")
	}
}

func (a *API) handleClientMailbox(w http.ResponseWriter, r *http.Request, clientID string) {
	switch r.Method {
	case http.MethodPost:
		var req mailboxCredentialsRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		err := a.directory.SetMailboxCredentials(r.Context(), clientID, req.Provider, directory.MailboxCredentials{
			Username: req.Username,
			Password: req.Password,
			Host:     req.Host,
			Port:     req.Port,
			SSL:      req.SSL,
			Folders:  req.Folders,
		})
		if err != nil {
			handleDirectoryError(w, r, err)
			return
		}
		_ = a.audit.Event(r.Context(), "directory.client.mailbox_updated", map[string]any{
			"client_id": clientID,
		})
		w.WriteHeader(http.StatusNoContent)
	case http.MethodGet:
		creds, err := a.directory.MailboxCredentials(r.Context(), clientID)
		if err != nil {
			handleDirectoryError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, mailboxSettingsResponse{
			Username:    creds.Username,
			Host:        creds.Host,
			Port:        creds.Port,
			SSL:         creds.SSL,
			Folders:     creds.Folders,
			PasswordSet: creds.Password != "",
		})
	default:
		methodNotAllowed(w, r, http.MethodPost, http.MethodGet)
	}
}

func (a *API) handleClientAccounting(w http.ResponseWriter, r *http.Request, clientID string) {
	switch r.Method {
	case http.MethodPost:
		var req accountingCredentialsRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		err := a.directory.SetAccountingCredentials(r.Context(), clientID, req.System, directory.AccountingCredentials{
			APIURL:   req.APIURL,
			AuthType: req.AuthType,
			Secret:   req.Secret,
		})
		if err != nil {
			handleDirectoryError(w, r, err)
			return
		}
		_ = a.audit.Event(r.Context(), "directory.client.accounting_updated", map[string]any{
			"client_id": clientID,
		})
		w.WriteHeader(http.StatusNoContent)
	case http.MethodGet:
		creds, err := a.directory.AccountingCredentials(r.Context(), clientID)
		if err != nil {
			handleDirectoryError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, accountingSettingsResponse{
			APIURL:    creds.APIURL,
			AuthType:  creds.AuthType,
			SecretSet: creds.Secret != "",
		})
	default:
		methodNotAllowed(w, r, http.MethodPost, http.MethodGet)
	}
}

func (a *API) handleClientIntegrations(w http.ResponseWriter, r *http.Request, clientID string) {
	switch r.Method {
	case http.MethodPost:
		var req createIntegrationRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		ic, err := a.directory.CreateIntegrationConfig(r.Context(), clientID, req.IntegrationType, req.Name, req.ConfigData)
		if err != nil {
			handleDirectoryError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, ic)
	case http.MethodGet:
		configs, err := a.directory.ListIntegrationConfigs(r.Context(), clientID)
		if err != nil {
			handleDirectoryError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"integrations": configs})
	default:
		methodNotAllowed(w, r, http.MethodPost, http.MethodGet)
	}
}

// handleDirectoryError translates domain failures. Decryption failures
// deliberately return a generic 500 with the detail logged server-side
// only.
func handleDirectoryError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, vault.ErrDecryptionFailed):
		obs.Logger().Error("credential decryption failed",
			zap.Error(err),
			zap.String("path", r.URL.Path),
		)
		writeError(w, r, http.StatusInternalServerError, "internal error")
	case errors.Is(err, directory.ErrInvalidInput):
		writeError(w, r, http.StatusBadRequest, err.Error())
	case errors.Is(err, directory.ErrNotFound):
		writeError(w, r, http.StatusNotFound, "resource not found")
	case errors.Is(err, directory.ErrAlreadyExists):
		writeError(w, r, http.StatusConflict, "resource already exists")
	default:
		writeError(w, r, http.StatusInternalServerError, "internal error")
	}
}

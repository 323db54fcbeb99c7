package httpapi

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/alexandratechlab/invoicehub/internal/auth"
	"github.com/alexandratechlab/invoicehub/internal/queue"
)

type enqueueTaskRequest struct {
	ClientID        string         `json:"client_id"`
	TaskType        string         `json:"task_type"`
	Priority        int            `json:"priority"`
	FilePath        string         `json:"file_path"`
	Source          string         `json:"source"`
	SourceReference string         `json:"source_reference"`
	Payload         map[string]any `json:"payload"`
}

func (a *API) handleQueueTasks(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		claims, ok := a.claims(w, r)
		if !ok {
			return
		}
		var req enqueueTaskRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		task, err := a.queue.Enqueue(r.Context(), queue.EnqueueParams{
			ClientID:        req.ClientID,
			OrganizationID:  claims.OrganizationID,
			Type:            req.TaskType,
			Priority:        req.Priority,
			FilePath:        req.FilePath,
			Source:          req.Source,
			SourceReference: req.SourceReference,
			Payload:         req.Payload,
		})
		if err != nil {
			handleQueueError(w, r, err)
			return
		}
		w.Header().Set("Location", fmt.Sprintf("/v1/queue/tasks/%s", task.ID))
		writeJSON(w, http.StatusAccepted, task)
	case http.MethodGet:
		claims, ok := a.ensureRole(w, r, auth.RoleAdmin)
		if !ok {
			return
		}
		limit, err := parseLimit(r.URL.Query().Get("limit"), 50, 1, 1000)
		if err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		tasks, err := a.queue.ListByOrganization(r.Context(), claims.OrganizationID, r.URL.Query().Get("status"), limit)
		if err != nil {
			handleQueueError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"tasks": tasks})
	default:
		methodNotAllowed(w, r, http.MethodPost, http.MethodGet)
	}
}

func (a *API) handleQueueTaskScoped(w http.ResponseWriter, r *http.Request) {
	id := strings.Trim(strings.TrimPrefix(r.URL.Path, "/v1/queue/tasks/"), "/")
	if id == "" || strings.Contains(id, "/") {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	claims, ok := a.claims(w, r)
	if !ok {
		return
	}
	task, err := a.queue.Get(r.Context(), id)
	if err != nil {
		handleQueueError(w, r, err)
		return
	}
	if claims.Role != auth.RoleSuperAdmin && task.OrganizationID != claims.OrganizationID {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}
	writeJSON(w, http.StatusOK, task)
}

// handleQueueEvents streams task status changes over Server-Sent
// Events.
func (a *API) handleQueueEvents(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	if _, ok := a.ensureRole(w, r, auth.RoleAdmin); !ok {
		return
	}
	a.streamEvents(w, r)
}

func handleQueueError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, queue.ErrInvalidInput):
		writeError(w, r, http.StatusBadRequest, err.Error())
	case errors.Is(err, queue.ErrNotFound):
		writeError(w, r, http.StatusNotFound, "resource not found")
	case errors.Is(err, queue.ErrInvalidTransition):
		writeError(w, r, http.StatusConflict, err.Error())
	default:
		writeError(w, r, http.StatusInternalServerError, "internal error")
	}
}

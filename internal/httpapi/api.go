// Package httpapi is the HTTP boundary of the service: routing,
// authentication, request plumbing and JSON handlers.
package httpapi

import (
	"context"
	"database/sql"
	"net/http"

	"github.com/alexandratechlab/invoicehub/internal/apikey"
	"github.com/alexandratechlab/invoicehub/internal/audit"
	"github.com/alexandratechlab/invoicehub/internal/auth"
	"github.com/alexandratechlab/invoicehub/internal/directory"
	"github.com/alexandratechlab/invoicehub/internal/invoice"
	"github.com/alexandratechlab/invoicehub/internal/obs"
	"github.com/alexandratechlab/invoicehub/internal/queue"
)

// ReadyProbe reports whether downstream dependencies are reachable.
type ReadyProbe struct {
	DB *sql.DB
}

func (rp ReadyProbe) Check(ctx context.Context) error {
	if rp.DB == nil {
		return nil
	}
	return rp.DB.PingContext(ctx)
}

// Services bundles the domain services the API fronts.
type Services struct {
	Tokens    *auth.TokenService
	Directory *directory.Service
	APIKeys   *apikey.Service
	Queue     *queue.Service
	Invoices  *invoice.Service
}

// API is the HTTP layer.
type API struct {
	mux        *http.ServeMux
	readyProbe ReadyProbe
	version    string

	tokens    *auth.TokenService
	directory *directory.Service
	apikeys   *apikey.Service
	queue     *queue.Service
	invoices  *invoice.Service
	audit     *audit.Log
}

func New(rp ReadyProbe, version string, svcs Services) *API {
	a := &API{
		mux:        http.NewServeMux(),
		readyProbe: rp,
		version:    version,
		tokens:     svcs.Tokens,
		directory:  svcs.Directory,
		apikeys:    svcs.APIKeys,
		queue:      svcs.Queue,
		invoices:   svcs.Invoices,
		audit:      audit.New(nil),
	}

	// health/ready/info
	a.mux.HandleFunc("/healthz", a.Healthz)
	a.mux.HandleFunc("/readyz", a.Ready)
	a.mux.HandleFunc("/v1/info", a.Info)

	// Prometheus metrics
	a.mux.Handle("/metrics", obs.Handler())

	// authentication
	a.mux.HandleFunc("/v1/auth/login", a.handleLogin)
	a.mux.HandleFunc("/v1/auth/refresh", a.handleRefresh)
	a.mux.HandleFunc("/v1/auth/me", a.handleMe)

	// API keys
	a.mux.HandleFunc("/v1/apikeys", a.handleAPIKeys)
	a.mux.HandleFunc("/v1/apikeys/", a.handleAPIKeyScoped)

	// directory
	a.mux.HandleFunc("/v1/organizations", a.handleOrganizations)
	a.mux.HandleFunc("/v1/organizations/", a.handleOrganizationScoped)
	a.mux.HandleFunc("/v1/users", a.handleUsers)
	a.mux.HandleFunc("/v1/clients", a.handleClients)
	a.mux.HandleFunc("/v1/clients/", a.handleClientScoped)

	// processing queue
	a.mux.HandleFunc("/v1/queue/tasks", a.handleQueueTasks)
	a.mux.HandleFunc("/v1/queue/tasks/", a.handleQueueTaskScoped)
	a.mux.HandleFunc("/v1/queue/events", a.handleQueueEvents)

	// invoices
	a.mux.HandleFunc("/v1/invoices", a.handleInvoices)
	a.mux.HandleFunc("/v1/invoices/", a.handleInvoiceScoped)
	a.mux.HandleFunc("/v1/categories", a.handleCategories)

	a.mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})

	return a
}

// Handler returns the full handler chain served by cmd/api.
func (a *API) Handler() http.Handler {
	return obs.Instrument(a.withAuth(a.mux))
}

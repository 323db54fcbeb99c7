package httpapi

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/alexandratechlab/invoicehub/internal/auth"
	"github.com/alexandratechlab/invoicehub/internal/invoice"
)

type createInvoiceRequest struct {
	ClientID        string              `json:"client_id"`
	InvoiceNumber   string              `json:"invoice_number"`
	VendorName      string              `json:"vendor_name"`
	Subtotal        float64             `json:"subtotal"`
	TaxAmount       float64             `json:"tax_amount"`
	TotalAmount     float64             `json:"total_amount"`
	Currency        string              `json:"currency"`
	Category        string              `json:"category"`
	Source          string              `json:"source"`
	SourceReference string              `json:"source_reference"`
	OCRConfidence   float64             `json:"ocr_confidence"`
	OCREngine       string              `json:"ocr_engine"`
	StructuredData  map[string]any      `json:"structured_data"`
	FilePath        string              `json:"file_path"`
	FileName        string              `json:"file_name"`
	FileType        string              `json:"file_type"`
	Tags            []string            `json:"tags"`
	LineItems       []invoiceLineItemIn `json:"line_items"`
}

type invoiceLineItemIn struct {
	Description string  `json:"description"`
	Quantity    float64 `json:"quantity"`
	UnitPrice   float64 `json:"unit_price"`
	TotalPrice  float64 `json:"total_price"`
	TaxRate     float64 `json:"tax_rate"`
	Category    string  `json:"category"`
}

type reviewInvoiceRequest struct {
	Category    string `json:"category"`
	Subcategory string `json:"subcategory"`
}

type createCategoryRequest struct {
	Name        string   `json:"name"`
	Type        string   `json:"type"`
	ParentID    string   `json:"parent_id"`
	AccountCode string   `json:"account_code"`
	Keywords    []string `json:"keywords"`
}

func (a *API) handleInvoices(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		claims, ok := a.claims(w, r)
		if !ok {
			return
		}
		var req createInvoiceRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		items := make([]*invoice.LineItem, 0, len(req.LineItems))
		for _, li := range req.LineItems {
			items = append(items, &invoice.LineItem{
				Description: li.Description,
				Quantity:    li.Quantity,
				UnitPrice:   li.UnitPrice,
				TotalPrice:  li.TotalPrice,
				TaxRate:     li.TaxRate,
				Category:    li.Category,
			})
		}
		inv, err := a.invoices.Create(r.Context(), &invoice.Invoice{
			ClientID:        req.ClientID,
			OrganizationID:  claims.OrganizationID,
			InvoiceNumber:   req.InvoiceNumber,
			VendorName:      req.VendorName,
			Subtotal:        req.Subtotal,
			TaxAmount:       req.TaxAmount,
			TotalAmount:     req.TotalAmount,
			Currency:        req.Currency,
			Category:        req.Category,
			IsExpense:       true,
			Source:          req.Source,
			SourceReference: req.SourceReference,
			OCRConfidence:   req.OCRConfidence,
			OCREngine:       req.OCREngine,
			StructuredData:  req.StructuredData,
			FilePath:        req.FilePath,
			FileName:        req.FileName,
			FileType:        req.FileType,
			Tags:            req.Tags,
		}, items)
		if err != nil {
			handleInvoiceError(w, r, err)
			return
		}
		_ = a.audit.Event(r.Context(), "invoice.created", map[string]any{
			"invoice_id": inv.ID,
			"client_id":  inv.ClientID,
		})
		w.Header().Set("Location", fmt.Sprintf("/v1/invoices/%s", inv.ID))
		writeJSON(w, http.StatusCreated, inv)
	case http.MethodGet:
		claims, ok := a.claims(w, r)
		if !ok {
			return
		}
		limit, err := parseLimit(r.URL.Query().Get("limit"), 50, 1, 1000)
		if err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		filter := invoice.ListFilter{
			ClientID: r.URL.Query().Get("client_id"),
			Status:   r.URL.Query().Get("status"),
			Limit:    limit,
		}
		if raw := r.URL.Query().Get("needs_review"); raw != "" {
			v := raw == "true"
			filter.NeedsReview = &v
		}
		invoices, err := a.invoices.List(r.Context(), claims.OrganizationID, filter)
		if err != nil {
			handleInvoiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"invoices": invoices})
	default:
		methodNotAllowed(w, r, http.MethodPost, http.MethodGet)
	}
}

func (a *API) handleInvoiceScoped(w http.ResponseWriter, r *http.Request) {
	path := strings.Trim(strings.TrimPrefix(r.URL.Path, "/v1/invoices/"), "/")
	if path == "" {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}
	parts := strings.Split(path, "/")
	claims, ok := a.claims(w, r)
	if !ok {
		return
	}

	inv, err := a.invoices.Get(r.Context(), parts[0])
	if err != nil {
		handleInvoiceError(w, r, err)
		return
	}
	if claims.Role != auth.RoleSuperAdmin && inv.OrganizationID != claims.OrganizationID {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}

	switch {
	case len(parts) == 1 && r.Method == http.MethodGet:
		writeJSON(w, http.StatusOK, inv)
	case len(parts) == 2 && parts[1] == "items" && r.Method == http.MethodGet:
		items, err := a.invoices.LineItems(r.Context(), inv.ID)
		if err != nil {
			handleInvoiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"line_items": items})
	case len(parts) == 2 && parts[1] == "review" && r.Method == http.MethodPost:
		if _, ok := a.ensureRole(w, r, auth.RoleAdmin); !ok {
			return
		}
		var req reviewInvoiceRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		reviewed, err := a.invoices.Review(r.Context(), inv.ID, claims.Subject, req.Category, req.Subcategory)
		if err != nil {
			handleInvoiceError(w, r, err)
			return
		}
		_ = a.audit.Event(r.Context(), "invoice.reviewed", map[string]any{
			"invoice_id": inv.ID,
		})
		writeJSON(w, http.StatusOK, reviewed)
	default:
		writeError(w, r, http.StatusNotFound, "resource not found")
	}
}

func (a *API) handleCategories(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		claims, ok := a.ensureRole(w, r, auth.RoleAdmin)
		if !ok {
			return
		}
		var req createCategoryRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		cat, err := a.invoices.CreateCategory(r.Context(), &invoice.Category{
			OrganizationID: claims.OrganizationID,
			Name:           req.Name,
			Type:           req.Type,
			ParentID:       req.ParentID,
			AccountCode:    req.AccountCode,
			Keywords:       req.Keywords,
		})
		if err != nil {
			handleInvoiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, cat)
	case http.MethodGet:
		claims, ok := a.claims(w, r)
		if !ok {
			return
		}
		cats, err := a.invoices.Categories(r.Context(), claims.OrganizationID)
		if err != nil {
			handleInvoiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"categories": cats})
	default:
		methodNotAllowed(w, r, http.MethodPost, http.MethodGet)
	}
}

func handleInvoiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, invoice.ErrInvalidInput):
		writeError(w, r, http.StatusBadRequest, err.Error())
	case errors.Is(err, invoice.ErrNotFound):
		writeError(w, r, http.StatusNotFound, "resource not found")
	default:
		writeError(w, r, http.StatusInternalServerError, "internal error")
	}
}

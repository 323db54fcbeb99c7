// Package invoice stores extracted invoices and the category tree used
// to classify them.
package invoice

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/alexandratechlab/invoicehub/internal/ids"
)

var (
	ErrNotFound     = errors.New("invoice: not found")
	ErrInvalidInput = errors.New("invoice: invalid input")
)

// Invoice statuses.
const (
	StatusPending  = "pending"
	StatusReviewed = "reviewed"
	StatusApproved = "approved"
	StatusExported = "exported"
	StatusRejected = "rejected"
)

// Invoice is an extracted invoice record. OCR output lands in
// StructuredData together with per-field confidence scores.
type Invoice struct {
	ID             string `json:"id"`
	ClientID       string `json:"client_id"`
	OrganizationID string `json:"organization_id"`

	InvoiceNumber string     `json:"invoice_number,omitempty"`
	InvoiceDate   *time.Time `json:"invoice_date,omitempty"`
	DueDate       *time.Time `json:"due_date,omitempty"`

	VendorName  string `json:"vendor_name,omitempty"`
	VendorTaxID string `json:"vendor_tax_id,omitempty"`

	Subtotal    float64 `json:"subtotal,omitempty"`
	TaxAmount   float64 `json:"tax_amount,omitempty"`
	TotalAmount float64 `json:"total_amount"`
	Currency    string  `json:"currency"`

	Category    string `json:"category,omitempty"`
	Subcategory string `json:"subcategory,omitempty"`
	CategoryID  string `json:"category_id,omitempty"`
	IsExpense   bool   `json:"is_expense"`
	AccountCode string `json:"account_code,omitempty"`

	Source          string `json:"source"`
	SourceReference string `json:"source_reference,omitempty"`

	OCRConfidence  float64        `json:"ocr_confidence,omitempty"`
	OCREngine      string         `json:"ocr_engine,omitempty"`
	StructuredData map[string]any `json:"structured_data,omitempty"`
	NeedsReview    bool           `json:"needs_review"`
	ReviewReason   string         `json:"review_reason,omitempty"`

	FilePath string `json:"file_path,omitempty"`
	FileName string `json:"file_name,omitempty"`
	FileType string `json:"file_type,omitempty"`

	Status     string `json:"status"`
	ReviewedBy string `json:"reviewed_by,omitempty"`

	IsDuplicate bool   `json:"is_duplicate"`
	DuplicateOf string `json:"duplicate_of,omitempty"`

	Tags      []string  `json:"tags,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// LineItem is a single position on an invoice.
type LineItem struct {
	ID          string  `json:"id"`
	InvoiceID   string  `json:"invoice_id"`
	LineNumber  int     `json:"line_number"`
	Description string  `json:"description"`
	Quantity    float64 `json:"quantity"`
	UnitPrice   float64 `json:"unit_price"`
	TotalPrice  float64 `json:"total_price"`
	TaxRate     float64 `json:"tax_rate,omitempty"`
	Category    string  `json:"category,omitempty"`
	AccountCode string  `json:"account_code,omitempty"`
}

// Category classifies invoices as expense or income lines.
type Category struct {
	ID             string    `json:"id"`
	OrganizationID string    `json:"organization_id"`
	Name           string    `json:"name"`
	Type           string    `json:"type"` // expense or income
	ParentID       string    `json:"parent_id,omitempty"`
	AccountCode    string    `json:"account_code,omitempty"`
	Keywords       []string  `json:"keywords,omitempty"`
	IsActive       bool      `json:"is_active"`
	CreatedAt      time.Time `json:"created_at"`
}

// ListFilter narrows invoice listings.
type ListFilter struct {
	ClientID    string
	Status      string
	NeedsReview *bool
	Limit       int
}

// Store persists invoices and categories.
type Store interface {
	CreateInvoice(ctx context.Context, inv *Invoice, items []*LineItem) error
	GetInvoice(ctx context.Context, id string) (*Invoice, error)
	ListInvoices(ctx context.Context, organizationID string, f ListFilter) ([]*Invoice, error)
	UpdateInvoice(ctx context.Context, inv *Invoice) error
	ListLineItems(ctx context.Context, invoiceID string) ([]*LineItem, error)

	CreateCategory(ctx context.Context, c *Category) error
	ListCategories(ctx context.Context, organizationID string) ([]*Category, error)
}

// Service exposes invoice CRUD and review workflow.
type Service struct {
	store Store
	now   func() time.Time
}

// Option configures Service.
type Option func(*Service)

// WithClock overrides the time source (useful for tests).
func WithClock(fn func() time.Time) Option {
	return func(s *Service) {
		if fn != nil {
			s.now = fn
		}
	}
}

// NewService constructs the invoice service.
func NewService(store Store, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, errors.New("invoice: store is required")
	}
	s := &Service{store: store, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// lowConfidenceThreshold flags extractions for manual review.
const lowConfidenceThreshold = 0.75

// Create persists an extracted invoice. Low OCR confidence forces the
// needs_review flag regardless of what the extractor reported.
func (s *Service) Create(ctx context.Context, inv *Invoice, items []*LineItem) (*Invoice, error) {
	if inv == nil {
		return nil, fmt.Errorf("%w: invoice is required", ErrInvalidInput)
	}
	inv.ClientID = strings.TrimSpace(inv.ClientID)
	inv.OrganizationID = strings.TrimSpace(inv.OrganizationID)
	if inv.ClientID == "" || inv.OrganizationID == "" {
		return nil, fmt.Errorf("%w: client_id and organization_id are required", ErrInvalidInput)
	}
	if inv.TotalAmount < 0 {
		return nil, fmt.Errorf("%w: total_amount must not be negative", ErrInvalidInput)
	}
	if inv.Source == "" {
		return nil, fmt.Errorf("%w: source is required", ErrInvalidInput)
	}

	now := s.now().UTC()
	cp := *inv
	cp.ID = ids.New()
	if cp.Currency == "" {
		cp.Currency = "USD"
	}
	if cp.Status == "" {
		cp.Status = StatusPending
	}
	if cp.OCRConfidence > 0 && cp.OCRConfidence < lowConfidenceThreshold {
		cp.NeedsReview = true
		if cp.ReviewReason == "" {
			cp.ReviewReason = "low ocr confidence"
		}
	}
	cp.CreatedAt = now
	cp.UpdatedAt = now

	lineItems := make([]*LineItem, 0, len(items))
	for i, item := range items {
		li := *item
		li.ID = ids.New()
		li.InvoiceID = cp.ID
		if li.LineNumber == 0 {
			li.LineNumber = i + 1
		}
		lineItems = append(lineItems, &li)
	}
	if err := s.store.CreateInvoice(ctx, &cp, lineItems); err != nil {
		return nil, err
	}
	return &cp, nil
}

// Get loads an invoice by id.
func (s *Service) Get(ctx context.Context, id string) (*Invoice, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, fmt.Errorf("%w: id is required", ErrInvalidInput)
	}
	return s.store.GetInvoice(ctx, id)
}

// List returns an organization's invoices matching the filter.
func (s *Service) List(ctx context.Context, organizationID string, f ListFilter) ([]*Invoice, error) {
	organizationID = strings.TrimSpace(organizationID)
	if organizationID == "" {
		return nil, fmt.Errorf("%w: organization_id is required", ErrInvalidInput)
	}
	if f.Limit <= 0 {
		f.Limit = 50
	}
	return s.store.ListInvoices(ctx, organizationID, f)
}

// LineItems loads an invoice's positions.
func (s *Service) LineItems(ctx context.Context, invoiceID string) ([]*LineItem, error) {
	return s.store.ListLineItems(ctx, strings.TrimSpace(invoiceID))
}

// Review marks an invoice reviewed, optionally recategorizing it.
func (s *Service) Review(ctx context.Context, id, reviewerID, category, subcategory string) (*Invoice, error) {
	inv, err := s.store.GetInvoice(ctx, id)
	if err != nil {
		return nil, err
	}
	if category != "" {
		inv.Category = category
		inv.Subcategory = subcategory
	}
	inv.Status = StatusReviewed
	inv.NeedsReview = false
	inv.ReviewReason = ""
	inv.ReviewedBy = reviewerID
	inv.UpdatedAt = s.now().UTC()
	if err := s.store.UpdateInvoice(ctx, inv); err != nil {
		return nil, err
	}
	return inv, nil
}

// CreateCategory registers a category for an organization.
func (s *Service) CreateCategory(ctx context.Context, c *Category) (*Category, error) {
	if c == nil {
		return nil, fmt.Errorf("%w: category is required", ErrInvalidInput)
	}
	c.OrganizationID = strings.TrimSpace(c.OrganizationID)
	c.Name = strings.TrimSpace(c.Name)
	if c.OrganizationID == "" || c.Name == "" {
		return nil, fmt.Errorf("%w: organization_id and name are required", ErrInvalidInput)
	}
	if c.Type != "expense" && c.Type != "income" {
		return nil, fmt.Errorf("%w: type must be expense or income", ErrInvalidInput)
	}
	cp := *c
	cp.ID = ids.New()
	cp.IsActive = true
	cp.CreatedAt = s.now().UTC()
	if err := s.store.CreateCategory(ctx, &cp); err != nil {
		return nil, err
	}
	return &cp, nil
}

// Categories lists an organization's categories.
func (s *Service) Categories(ctx context.Context, organizationID string) ([]*Category, error) {
	organizationID = strings.TrimSpace(organizationID)
	if organizationID == "" {
		return nil, fmt.Errorf("%w: organization_id is required", ErrInvalidInput)
	}
	return s.store.ListCategories(ctx, organizationID)
}

package invoice

import (
	"context"
	"errors"
	"testing"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	svc, err := NewService(NewMemoryStore())
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return svc
}

func TestCreateDefaultsAndLineItems(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	inv, err := svc.Create(ctx, &Invoice{
		ClientID:       "c-1",
		OrganizationID: "o-1",
		VendorName:     "Acme Ltd",
		TotalAmount:    120.50,
		Source:         "email",
		OCRConfidence:  0.93,
	}, []*LineItem{
		{Description: "Widgets", Quantity: 10, UnitPrice: 10, TotalPrice: 100},
		{Description: "Shipping", Quantity: 1, UnitPrice: 20.50, TotalPrice: 20.50},
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if inv.ID == "" || inv.Status != StatusPending || inv.Currency != "USD" {
		t.Fatalf("defaults not applied: %+v", inv)
	}
	if inv.NeedsReview {
		t.Fatalf("high confidence invoice should not need review")
	}

	items, err := svc.LineItems(ctx, inv.ID)
	if err != nil {
		t.Fatalf("LineItems: %v", err)
	}
	if len(items) != 2 || items[0].LineNumber != 1 || items[1].LineNumber != 2 {
		t.Fatalf("line items broken: %+v", items)
	}
}

func TestCreateFlagsLowConfidence(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	inv, err := svc.Create(ctx, &Invoice{
		ClientID:       "c-1",
		OrganizationID: "o-1",
		TotalAmount:    10,
		Source:         "upload",
		OCRConfidence:  0.41,
	}, nil)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if !inv.NeedsReview || inv.ReviewReason == "" {
		t.Fatalf("low confidence invoice must need review: %+v", inv)
	}
}

func TestReviewClearsFlagAndRecategorizes(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	inv, err := svc.Create(ctx, &Invoice{
		ClientID:       "c-1",
		OrganizationID: "o-1",
		TotalAmount:    10,
		Source:         "upload",
		OCRConfidence:  0.41,
		Category:       "misc",
	}, nil)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	reviewed, err := svc.Review(ctx, inv.ID, "user-7", "office_supplies", "stationery")
	if err != nil {
		t.Fatalf("Review: %v", err)
	}
	if reviewed.Status != StatusReviewed || reviewed.NeedsReview {
		t.Fatalf("review state wrong: %+v", reviewed)
	}
	if reviewed.Category != "office_supplies" || reviewed.ReviewedBy != "user-7" {
		t.Fatalf("recategorization lost: %+v", reviewed)
	}
}

func TestListFilters(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	if _, err := svc.Create(ctx, &Invoice{ClientID: "c-1", OrganizationID: "o-1", TotalAmount: 1, Source: "email", OCRConfidence: 0.9}, nil); err != nil {
		t.Fatalf("Create: %v", err)
	}
	flagged, err := svc.Create(ctx, &Invoice{ClientID: "c-2", OrganizationID: "o-1", TotalAmount: 2, Source: "email", OCRConfidence: 0.3}, nil)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := svc.Create(ctx, &Invoice{ClientID: "c-9", OrganizationID: "o-2", TotalAmount: 3, Source: "email"}, nil); err != nil {
		t.Fatalf("Create: %v", err)
	}

	needsReview := true
	got, err := svc.List(ctx, "o-1", ListFilter{NeedsReview: &needsReview})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(got) != 1 || got[0].ID != flagged.ID {
		t.Fatalf("unexpected listing: %+v", got)
	}

	got, err = svc.List(ctx, "o-1", ListFilter{ClientID: "c-1"})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(got) != 1 || got[0].ClientID != "c-1" {
		t.Fatalf("client filter broken: %+v", got)
	}
}

func TestCategoryValidation(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	if _, err := svc.CreateCategory(ctx, &Category{OrganizationID: "o-1", Name: "Travel", Type: "leisure"}); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for bad type, got %v", err)
	}
	c, err := svc.CreateCategory(ctx, &Category{OrganizationID: "o-1", Name: "Travel", Type: "expense", Keywords: []string{"flight", "hotel"}})
	if err != nil {
		t.Fatalf("CreateCategory: %v", err)
	}
	if !c.IsActive || c.ID == "" {
		t.Fatalf("category defaults wrong: %+v", c)
	}

	cats, err := svc.Categories(ctx, "o-1")
	if err != nil {
		t.Fatalf("Categories: %v", err)
	}
	if len(cats) != 1 || cats[0].Name != "Travel" {
		t.Fatalf("unexpected categories: %+v", cats)
	}
}

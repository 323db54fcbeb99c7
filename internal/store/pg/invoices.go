package pg

import (
	"context"
	"database/sql"
	"errors"

	"github.com/alexandratechlab/invoicehub/internal/invoice"
)

// InvoiceStore implements invoice.Store on PostgreSQL.
type InvoiceStore struct {
	db *sql.DB
}

var _ invoice.Store = (*InvoiceStore)(nil)

// Invoices returns the invoice persistence bound to the store's
// connection pool.
func (s *Store) Invoices() *InvoiceStore {
	return &InvoiceStore{db: s.db}
}

const invoiceColumns = `id, client_id, organization_id, invoice_number, invoice_date, due_date,
	vendor_name, vendor_tax_id, subtotal, tax_amount, total_amount, currency,
	category, subcategory, category_id, is_expense, account_code,
	source, source_reference, ocr_confidence, ocr_engine, structured_data, needs_review, review_reason,
	file_path, file_name, file_type, status, reviewed_by, is_duplicate, duplicate_of, tags, created_at, updated_at`

func (i *InvoiceStore) CreateInvoice(ctx context.Context, inv *invoice.Invoice, items []*invoice.LineItem) error {
	structured, err := encodeJSON(inv.StructuredData)
	if err != nil {
		return err
	}
	tags, err := encodeStrings(inv.Tags)
	if err != nil {
		return err
	}

	tx, err := i.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `
		insert into invoices(id, client_id, organization_id, invoice_number, invoice_date, due_date,
			vendor_name, vendor_tax_id, subtotal, tax_amount, total_amount, currency,
			category, subcategory, category_id, is_expense, account_code,
			source, source_reference, ocr_confidence, ocr_engine, structured_data, needs_review, review_reason,
			file_path, file_name, file_type, status, reviewed_by, is_duplicate, duplicate_of, tags, created_at, updated_at)
		values ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22,$23,$24,$25,$26,$27,$28,$29,$30,$31,$32,$33,$34)
	`, inv.ID, inv.ClientID, inv.OrganizationID, nullString(inv.InvoiceNumber), nullTime(inv.InvoiceDate), nullTime(inv.DueDate),
		nullString(inv.VendorName), nullString(inv.VendorTaxID), inv.Subtotal, inv.TaxAmount, inv.TotalAmount, inv.Currency,
		nullString(inv.Category), nullString(inv.Subcategory), nullString(inv.CategoryID), inv.IsExpense, nullString(inv.AccountCode),
		inv.Source, nullString(inv.SourceReference), inv.OCRConfidence, nullString(inv.OCREngine), structured, inv.NeedsReview, nullString(inv.ReviewReason),
		nullString(inv.FilePath), nullString(inv.FileName), nullString(inv.FileType), inv.Status, nullString(inv.ReviewedBy),
		inv.IsDuplicate, nullString(inv.DuplicateOf), tags, inv.CreatedAt, inv.UpdatedAt); err != nil {
		return err
	}

	for _, item := range items {
		if _, err := tx.ExecContext(ctx, `
			insert into invoice_line_items(id, invoice_id, line_number, description, quantity, unit_price, total_price, tax_rate, category, account_code)
			values ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
		`, item.ID, item.InvoiceID, item.LineNumber, item.Description, item.Quantity, item.UnitPrice, item.TotalPrice,
			item.TaxRate, nullString(item.Category), nullString(item.AccountCode)); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (i *InvoiceStore) GetInvoice(ctx context.Context, id string) (*invoice.Invoice, error) {
	row := i.db.QueryRowContext(ctx, `select `+invoiceColumns+` from invoices where id=$1`, id)
	return scanInvoice(row)
}

func (i *InvoiceStore) ListInvoices(ctx context.Context, organizationID string, f invoice.ListFilter) ([]*invoice.Invoice, error) {
	needsReview := sql.NullBool{}
	if f.NeedsReview != nil {
		needsReview = sql.NullBool{Bool: *f.NeedsReview, Valid: true}
	}
	rows, err := i.db.QueryContext(ctx, `
		select `+invoiceColumns+` from invoices
		where organization_id=$1
		  and ($2='' or client_id=$2)
		  and ($3='' or status=$3)
		  and ($4::boolean is null or needs_review=$4)
		order by created_at desc limit $5
	`, organizationID, f.ClientID, f.Status, needsReview, f.Limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*invoice.Invoice
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, inv)
	}
	return out, rows.Err()
}

func (i *InvoiceStore) UpdateInvoice(ctx context.Context, inv *invoice.Invoice) error {
	res, err := i.db.ExecContext(ctx, `
		update invoices
		set category=$2, subcategory=$3, category_id=$4, status=$5, needs_review=$6, review_reason=$7, reviewed_by=$8, updated_at=$9
		where id=$1
	`, inv.ID, nullString(inv.Category), nullString(inv.Subcategory), nullString(inv.CategoryID),
		inv.Status, inv.NeedsReview, nullString(inv.ReviewReason), nullString(inv.ReviewedBy), inv.UpdatedAt)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return invoice.ErrNotFound
	}
	return nil
}

func (i *InvoiceStore) ListLineItems(ctx context.Context, invoiceID string) ([]*invoice.LineItem, error) {
	rows, err := i.db.QueryContext(ctx, `
		select id, invoice_id, line_number, description, quantity, unit_price, total_price, tax_rate, category, account_code
		from invoice_line_items where invoice_id=$1 order by line_number
	`, invoiceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*invoice.LineItem
	for rows.Next() {
		var li invoice.LineItem
		var category, accountCode sql.NullString
		if err := rows.Scan(&li.ID, &li.InvoiceID, &li.LineNumber, &li.Description, &li.Quantity,
			&li.UnitPrice, &li.TotalPrice, &li.TaxRate, &category, &accountCode); err != nil {
			return nil, err
		}
		li.Category = category.String
		li.AccountCode = accountCode.String
		out = append(out, &li)
	}
	return out, rows.Err()
}

func (i *InvoiceStore) CreateCategory(ctx context.Context, c *invoice.Category) error {
	keywords, err := encodeStrings(c.Keywords)
	if err != nil {
		return err
	}
	_, err = i.db.ExecContext(ctx, `
		insert into categories(id, organization_id, name, type, parent_id, account_code, keywords, is_active, created_at)
		values ($1,$2,$3,$4,$5,$6,$7,$8,$9)
	`, c.ID, c.OrganizationID, c.Name, c.Type, nullString(c.ParentID), nullString(c.AccountCode), keywords, c.IsActive, c.CreatedAt)
	return err
}

func (i *InvoiceStore) ListCategories(ctx context.Context, organizationID string) ([]*invoice.Category, error) {
	rows, err := i.db.QueryContext(ctx, `
		select id, organization_id, name, type, parent_id, account_code, keywords, is_active, created_at
		from categories where organization_id=$1 order by name
	`, organizationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*invoice.Category
	for rows.Next() {
		var c invoice.Category
		var parentID, accountCode sql.NullString
		var keywords []byte
		if err := rows.Scan(&c.ID, &c.OrganizationID, &c.Name, &c.Type, &parentID, &accountCode, &keywords, &c.IsActive, &c.CreatedAt); err != nil {
			return nil, err
		}
		c.ParentID = parentID.String
		c.AccountCode = accountCode.String
		if c.Keywords, err = decodeStrings(keywords); err != nil {
			return nil, err
		}
		out = append(out, &c)
	}
	return out, rows.Err()
}

func scanInvoice(row rowScanner) (*invoice.Invoice, error) {
	var inv invoice.Invoice
	var invoiceNumber, vendorName, vendorTaxID, category, subcategory, categoryID, accountCode sql.NullString
	var sourceRef, ocrEngine, reviewReason, filePath, fileName, fileType, reviewedBy, duplicateOf sql.NullString
	var invoiceDate, dueDate sql.NullTime
	var structured, tags []byte
	err := row.Scan(&inv.ID, &inv.ClientID, &inv.OrganizationID, &invoiceNumber, &invoiceDate, &dueDate,
		&vendorName, &vendorTaxID, &inv.Subtotal, &inv.TaxAmount, &inv.TotalAmount, &inv.Currency,
		&category, &subcategory, &categoryID, &inv.IsExpense, &accountCode,
		&inv.Source, &sourceRef, &inv.OCRConfidence, &ocrEngine, &structured, &inv.NeedsReview, &reviewReason,
		&filePath, &fileName, &fileType, &inv.Status, &reviewedBy, &inv.IsDuplicate, &duplicateOf, &tags,
		&inv.CreatedAt, &inv.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, invoice.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	inv.InvoiceNumber = invoiceNumber.String
	inv.InvoiceDate = timePtr(invoiceDate)
	inv.DueDate = timePtr(dueDate)
	inv.VendorName = vendorName.String
	inv.VendorTaxID = vendorTaxID.String
	inv.Category = category.String
	inv.Subcategory = subcategory.String
	inv.CategoryID = categoryID.String
	inv.AccountCode = accountCode.String
	inv.SourceReference = sourceRef.String
	inv.OCREngine = ocrEngine.String
	inv.ReviewReason = reviewReason.String
	inv.FilePath = filePath.String
	inv.FileName = fileName.String
	inv.FileType = fileType.String
	inv.ReviewedBy = reviewedBy.String
	inv.DuplicateOf = duplicateOf.String
	if inv.StructuredData, err = decodeMap(structured); err != nil {
		return nil, err
	}
	if inv.Tags, err = decodeStrings(tags); err != nil {
		return nil, err
	}
	return &inv, nil
}

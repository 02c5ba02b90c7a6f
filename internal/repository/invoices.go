package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	entsql "entgo.io/ent/dialect/sql"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/WullieT22/Invoice-to-PO/constants"
	"github.com/WullieT22/Invoice-to-PO/internal/common"
	"github.com/WullieT22/Invoice-to-PO/internal/entity"
)

const tableInvoices = "invoices"

var invoiceColumns = []string{
	"id", "invoice_number", "vendor_name", "vendor_id", "invoice_amount", "invoice_date",
	"invoice_type", "po_reference", "part_number", "description", "line_items",
	"source_text", "created_at",
}

// InvoiceRepository defines the interface for invoice persistence
type InvoiceRepository interface {
	Create(ctx context.Context, inv *entity.Invoice) error
	Get(ctx context.Context, id uuid.UUID) (*entity.Invoice, error)
}

type invoiceRepository struct {
	db     *DB
	logger *slog.Logger
}

// NewInvoiceRepository creates a new invoice repository
func NewInvoiceRepository(db *DB, logger *slog.Logger) InvoiceRepository {
	return &invoiceRepository{db: db, logger: logger}
}

// Create stores inv, assigning an ID and creation time when unset.
func (r *invoiceRepository) Create(ctx context.Context, inv *entity.Invoice) error {
	if inv.ID == uuid.Nil {
		inv.ID = uuid.New()
	}
	if inv.CreatedAt.IsZero() {
		inv.CreatedAt = time.Now().UTC()
	}
	f := inv.Fields
	if f.InvoiceType == "" {
		f.InvoiceType = constants.InvoiceTypeStandard
	}
	items := f.LineItems
	if items == nil {
		items = []entity.LineItem{}
	}
	lineItems, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("encode line items: %w", err)
	}

	query, args := r.db.builder().Insert(tableInvoices).
		Columns(invoiceColumns...).
		Values(
			inv.ID, nullString(f.InvoiceNumber), nullString(f.VendorName), nullString(f.VendorID),
			nullDecimal(f.InvoiceAmount), nullTimeArg(f.InvoiceDate), string(f.InvoiceType),
			nullString(f.POReference), nullString(f.PartNumber), nullString(f.Description),
			r.db.jsonArg(lineItems), nullString(inv.SourceText), inv.CreatedAt,
		).Query()

	if _, err := r.db.SQL.ExecContext(ctx, query, args...); err != nil {
		r.logger.Error("failed to create invoice", "invoice_id", inv.ID, "error", err)
		return fmt.Errorf("%w: create invoice: %w", common.ErrDatabase, err)
	}
	inv.Fields.InvoiceType = f.InvoiceType
	return nil
}

// Get retrieves an invoice by ID
func (r *invoiceRepository) Get(ctx context.Context, id uuid.UUID) (*entity.Invoice, error) {
	b := r.db.builder()
	query, args := b.Select(invoiceColumns...).
		From(b.Table(tableInvoices)).
		Where(entsql.EQ("id", id)).
		Query()

	inv, err := scanInvoice(r.db.SQL.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.NewAppError("NOT_FOUND", fmt.Sprintf("invoice %s not found", id), common.ErrNotFound)
	}
	if err != nil {
		r.logger.Error("failed to get invoice", "invoice_id", id, "error", err)
		return nil, fmt.Errorf("%w: get invoice: %w", common.ErrDatabase, err)
	}
	return inv, nil
}

func scanInvoice(row rowScanner) (*entity.Invoice, error) {
	var (
		inv                                       entity.Invoice
		number, vendorName, vendorID, poRef, part sql.NullString
		description, sourceText                   sql.NullString
		amount                                    decimal.NullDecimal
		invoiceDate, createdAt                    nullTime
		invoiceType                               string
		lineItems                                 []byte
	)
	if err := row.Scan(
		&inv.ID, &number, &vendorName, &vendorID, &amount, &invoiceDate,
		&invoiceType, &poRef, &part, &description, &lineItems,
		&sourceText, &createdAt,
	); err != nil {
		return nil, err
	}
	inv.Fields = entity.InvoiceFields{
		InvoiceNumber: number.String,
		VendorName:    vendorName.String,
		VendorID:      vendorID.String,
		InvoiceAmount: decimalPtr(amount),
		InvoiceDate:   invoiceDate.ptr(),
		InvoiceType:   constants.InvoiceType(invoiceType),
		POReference:   poRef.String,
		PartNumber:    part.String,
		Description:   description.String,
	}
	if len(lineItems) > 0 {
		if err := json.Unmarshal(lineItems, &inv.Fields.LineItems); err != nil {
			return nil, fmt.Errorf("decode line items: %w", err)
		}
	}
	inv.SourceText = sourceText.String
	inv.CreatedAt = createdAt.Time
	return &inv, nil
}

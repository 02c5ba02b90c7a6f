package entity

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/WullieT22/Invoice-to-PO/constants"
)

// LineItem is one billed line on an invoice.
type LineItem struct {
	Description string          `json:"description"`
	Quantity    decimal.Decimal `json:"quantity" validate:"gte=0"`
	Amount      decimal.Decimal `json:"amount" validate:"gte=0"`
}

// InvoiceFields are the extracted fields of one invoice. Absent strings are empty.
type InvoiceFields struct {
	InvoiceNumber string                `json:"invoice_number,omitempty"`
	VendorName    string                `json:"vendor_name,omitempty"`
	VendorID      string                `json:"vendor_id,omitempty"`
	InvoiceAmount *decimal.Decimal      `json:"invoice_amount,omitempty" validate:"omitempty,gte=0"`
	InvoiceDate   *time.Time            `json:"invoice_date,omitempty"`
	InvoiceType   constants.InvoiceType `json:"invoice_type,omitempty" validate:"omitempty,oneof=STANDARD CREDIT_MEMO DEBIT_MEMO"`
	POReference   string                `json:"po_reference,omitempty"`
	PartNumber    string                `json:"part_number,omitempty"`
	Description   string                `json:"description,omitempty"`
	LineItems     []LineItem            `json:"line_items,omitempty" validate:"dive"`
}

// Invoice is a persisted invoice and the text it was extracted from, if any.
type Invoice struct {
	ID         uuid.UUID     `json:"id"`
	Fields     InvoiceFields `json:"fields"`
	SourceText string        `json:"source_text,omitempty"`
	CreatedAt  time.Time     `json:"created_at"`
}

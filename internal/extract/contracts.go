package extract

import (
	"context"
	"time"

	"github.com/WullieT22/Invoice-to-PO/internal/entity"
)

// FieldExtractor turns invoice text into structured fields.
type FieldExtractor interface {
	ExtractFields(ctx context.Context, text string) (Result, error)
}

type Result struct {
	Fields   entity.InvoiceFields
	Method   string // "rules"
	Duration time.Duration
	// Warnings name fields that could not be found.
	Warnings []string
}

// Package ingest feeds invoice text files from the local filesystem into the
// matcher: files are extracted, submitted and handed to a dispatch func.
package ingest

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/WullieT22/Invoice-to-PO/internal/entity"
)

// Result is the per-file ingest outcome.
type Result struct {
	SourcePath   string   `json:"source_path"`
	InvoiceID    string   `json:"invoice_id,omitempty"`
	Deduplicated bool     `json:"deduplicated,omitempty"`
	HashHex      string   `json:"sha256,omitempty"`
	Warnings     []string `json:"warnings,omitempty"`
	Err          string   `json:"error,omitempty"`
}

// DirStats summarizes a directory ingest.
type DirStats struct {
	Scanned      uint32 `json:"scanned"`
	Matched      uint32 `json:"matched"`
	Succeeded    uint32 `json:"succeeded"`
	Deduplicated uint32 `json:"deduplicated"`
	Failed       uint32 `json:"failed"`
}

// Submitter persists extracted invoices. reconcile.Service satisfies it.
type Submitter interface {
	SubmitInvoice(ctx context.Context, fields entity.InvoiceFields, sourceText string) (*entity.Invoice, error)
}

// Dispatch hands a freshly submitted invoice on for matching, either inline or
// through the background queue.
type Dispatch func(ctx context.Context, invoiceID uuid.UUID) error

// IsHidden checks if a file or directory is hidden (starts with '.').
func IsHidden(path string) bool {
	return strings.HasPrefix(filepath.Base(path), ".")
}

package extract

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/WullieT22/Invoice-to-PO/constants"
	"github.com/WullieT22/Invoice-to-PO/internal/common"
)

const defaultMaxFileBytes = 4 << 20

// FileExtractor reads .txt and .csv invoices from disk and runs a FieldExtractor over them.
type FileExtractor struct {
	fields   FieldExtractor
	maxBytes int64
	log      *slog.Logger
}

func NewFileExtractor(fields FieldExtractor, logger *slog.Logger) *FileExtractor {
	if fields == nil {
		fields = NewRuleExtractor()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &FileExtractor{fields: fields, maxBytes: defaultMaxFileBytes, log: logger}
}

// Extract returns the extracted fields and the file's text.
func (e *FileExtractor) Extract(ctx context.Context, path string) (Result, string, error) {
	ext := filepath.Ext(path)
	if !constants.IsInvoiceTextExt(ext) {
		return Result{}, "", common.InvalidInput("unsupported invoice file type %q", ext)
	}

	fh, err := os.Open(path)
	if err != nil {
		return Result{}, "", fmt.Errorf("open invoice file: %w", err)
	}
	defer fh.Close()

	b, err := io.ReadAll(io.LimitReader(fh, e.maxBytes+1))
	if err != nil {
		return Result{}, "", fmt.Errorf("read invoice file: %w", err)
	}
	if int64(len(b)) > e.maxBytes {
		return Result{}, "", common.InvalidInput("invoice file exceeds %d bytes", e.maxBytes)
	}

	text := string(b)
	res, err := e.fields.ExtractFields(ctx, text)
	if err != nil {
		return Result{}, "", err
	}
	e.log.Info("extract.done", "path", path, "method", res.Method,
		"warnings", len(res.Warnings), "duration_ms", res.Duration.Milliseconds())
	return res, text, nil
}

package ingest

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/WullieT22/Invoice-to-PO/constants"
	"github.com/WullieT22/Invoice-to-PO/internal/common"
	"github.com/WullieT22/Invoice-to-PO/internal/extract"
)

// FSIngestor reads invoice text files from the local filesystem. Files whose
// content was already submitted by this ingestor are reported as deduplicated
// and not submitted again.
type FSIngestor struct {
	files    *extract.FileExtractor
	submit   Submitter
	dispatch Dispatch
	logger   *slog.Logger

	mu   sync.Mutex
	seen map[string]uuid.UUID // sha256 hex -> invoice id
}

// NewFSIngestor builds an ingestor. dispatch may be nil, in which case
// invoices are only submitted.
func NewFSIngestor(files *extract.FileExtractor, submit Submitter, dispatch Dispatch, logger *slog.Logger) *FSIngestor {
	if logger == nil {
		logger = slog.Default()
	}
	if files == nil {
		files = extract.NewFileExtractor(nil, logger)
	}
	return &FSIngestor{
		files:    files,
		submit:   submit,
		dispatch: dispatch,
		logger:   logger,
		seen:     make(map[string]uuid.UUID),
	}
}

// IngestPath extracts, submits and dispatches a single file.
func (i *FSIngestor) IngestPath(ctx context.Context, path string) (Result, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return Result{SourcePath: path}, fmt.Errorf("abs path: %w", err)
	}
	out := Result{SourcePath: abs}

	res, text, err := i.files.Extract(ctx, abs)
	if err != nil {
		return out, err
	}
	sum := sha256.Sum256([]byte(text))
	out.HashHex = hex.EncodeToString(sum[:])
	out.Warnings = res.Warnings

	i.mu.Lock()
	prev, dup := i.seen[out.HashHex]
	i.mu.Unlock()
	if dup {
		out.InvoiceID = prev.String()
		out.Deduplicated = true
		i.logger.Debug("ingest.deduplicated", "path", abs, "invoice_id", prev)
		return out, nil
	}

	inv, err := i.submit.SubmitInvoice(ctx, res.Fields, text)
	if err != nil {
		return out, err
	}
	out.InvoiceID = inv.ID.String()

	i.mu.Lock()
	i.seen[out.HashHex] = inv.ID
	i.mu.Unlock()

	if i.dispatch != nil {
		if err := i.dispatch(ctx, inv.ID); err != nil {
			return out, fmt.Errorf("dispatch invoice %s: %w", inv.ID, err)
		}
	}
	i.logger.Info("ingest.file",
		"path", abs,
		"invoice_id", inv.ID,
		"warnings", len(res.Warnings),
	)
	return out, nil
}

// IngestDirectory walks root, skips hidden if requested,
// and calls IngestPath for each file. Returns per-file results + aggregate stats.
func (i *FSIngestor) IngestDirectory(ctx context.Context, root string, skipHidden bool) ([]Result, DirStats, error) {
	if strings.TrimSpace(root) == "" {
		return nil, DirStats{}, common.InvalidInput("root path is required")
	}

	var results []Result
	var stats DirStats

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		stats.Scanned++
		if walkErr != nil {
			results = append(results, Result{SourcePath: path, Err: walkErr.Error()})
			stats.Failed++
			return nil
		}
		if skipHidden && path != root && IsHidden(path) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() || !constants.IsInvoiceTextExt(filepath.Ext(path)) {
			return nil
		}
		stats.Matched++

		r, err := i.IngestPath(ctx, path)
		if err != nil {
			r.Err = err.Error()
			results = append(results, r)
			stats.Failed++
			return nil
		}
		results = append(results, r)
		stats.Succeeded++
		if r.Deduplicated {
			stats.Deduplicated++
		}
		return nil
	})
	if err != nil {
		return results, stats, fmt.Errorf("walk: %w", err)
	}
	i.logger.Info("ingest.directory",
		"root", root,
		"matched", stats.Matched,
		"succeeded", stats.Succeeded,
		"failed", stats.Failed,
	)
	return results, stats, nil
}

package reconcile

import (
	"context"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/WullieT22/Invoice-to-PO/internal/common"
)

// BatchItem is the outcome for one invoice of a batch. Exactly one of Outcome
// and Err is set.
type BatchItem struct {
	InvoiceID uuid.UUID
	Outcome   *MatchOutcome
	Err       error
}

// MatchBatch matches invoices concurrently, bounded by BatchConcurrency.
// Per-invoice failures are reported in the items; only cancellation of ctx
// aborts the batch.
func (s *Service) MatchBatch(ctx context.Context, invoiceIDs []uuid.UUID) ([]BatchItem, error) {
	if len(invoiceIDs) == 0 {
		return nil, common.InvalidInput("no invoice ids")
	}

	items := make([]BatchItem, len(invoiceIDs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.BatchConcurrency)

	for i, id := range invoiceIDs {
		g.Go(func() error {
			out, err := s.MatchInvoice(gctx, id)
			if err != nil && ctx.Err() != nil {
				return ctx.Err()
			}
			items[i] = BatchItem{InvoiceID: id, Outcome: out, Err: err}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	failed := 0
	for _, it := range items {
		if it.Err != nil {
			failed++
		}
	}
	s.logger.Info("match.batch.done", "invoices", len(invoiceIDs), "failed", failed)
	return items, nil
}

package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	entsql "entgo.io/ent/dialect/sql"

	"github.com/WullieT22/Invoice-to-PO/internal/common"
	"github.com/WullieT22/Invoice-to-PO/internal/entity"
)

const tablePOLines = "po_lines"

var candidateColumns = []string{
	"po_number", "po_line", "vendor_name", "vendor_id", "part_number", "supplier_part",
	"line_description", "line_amount", "received_amount", "remaining_amount", "due_date",
}

// CandidateRepository stores the open PO lines invoices are matched against.
type CandidateRepository interface {
	// Upsert inserts or replaces PO lines by (po_number, po_line) in one transaction.
	Upsert(ctx context.Context, cands []entity.CandidatePO) (int, error)
	// ListOpen returns lines with a positive remaining amount, ordered by key.
	ListOpen(ctx context.Context, limit int) ([]entity.CandidatePO, error)
	Get(ctx context.Context, key entity.CandidateKey) (*entity.CandidatePO, error)
}

type candidateRepository struct {
	db     *DB
	logger *slog.Logger
}

func NewCandidateRepository(db *DB, logger *slog.Logger) CandidateRepository {
	return &candidateRepository{db: db, logger: logger}
}

func (r *candidateRepository) Upsert(ctx context.Context, cands []entity.CandidatePO) (int, error) {
	if len(cands) == 0 {
		return 0, nil
	}
	now := time.Now().UTC()
	err := r.db.inTx(ctx, func(tx *sql.Tx) error {
		for _, c := range cands {
			query, args := r.db.builder().Insert(tablePOLines).
				Columns(append(candidateColumns, "synced_at")...).
				Values(
					c.PONumber, c.POLine, nullString(c.VendorName), nullString(c.VendorID),
					nullString(c.PartNumber), nullString(c.SupplierPart), nullString(c.LineDescription),
					c.LineAmount, c.ReceivedAmount, c.RemainingAmount, nullTimeArg(c.DueDate), now,
				).
				OnConflict(
					entsql.ConflictColumns("po_number", "po_line"),
					entsql.ResolveWithNewValues(),
				).
				Query()
			if _, err := tx.ExecContext(ctx, query, args...); err != nil {
				return fmt.Errorf("upsert %s: %w", c.Key(), err)
			}
		}
		return nil
	})
	if err != nil {
		r.logger.Error("failed to upsert candidates", "count", len(cands), "error", err)
		return 0, fmt.Errorf("%w: %w", common.ErrDatabase, err)
	}
	r.logger.Debug("candidates upserted", "count", len(cands))
	return len(cands), nil
}

func (r *candidateRepository) ListOpen(ctx context.Context, limit int) ([]entity.CandidatePO, error) {
	b := r.db.builder()
	sel := b.Select(candidateColumns...).
		From(b.Table(tablePOLines)).
		Where(entsql.GT("remaining_amount", 0)).
		OrderBy("po_number", "po_line")
	if limit > 0 {
		sel = sel.Limit(limit)
	}
	query, args := sel.Query()

	rows, err := r.db.SQL.QueryContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("failed to list open candidates", "error", err)
		return nil, fmt.Errorf("%w: list candidates: %w", common.ErrDatabase, err)
	}
	defer rows.Close()

	var out []entity.CandidatePO
	for rows.Next() {
		c, err := scanCandidate(rows)
		if err != nil {
			return nil, fmt.Errorf("%w: scan candidate: %w", common.ErrDatabase, err)
		}
		out = append(out, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: list candidates: %w", common.ErrDatabase, err)
	}
	return out, nil
}

func (r *candidateRepository) Get(ctx context.Context, key entity.CandidateKey) (*entity.CandidatePO, error) {
	b := r.db.builder()
	query, args := b.Select(candidateColumns...).
		From(b.Table(tablePOLines)).
		Where(entsql.And(entsql.EQ("po_number", key.PONumber), entsql.EQ("po_line", key.POLine))).
		Query()

	c, err := scanCandidate(r.db.SQL.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.NewAppError("NOT_FOUND", fmt.Sprintf("po line %s not found", key), common.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: get candidate: %w", common.ErrDatabase, err)
	}
	return c, nil
}

func scanCandidate(row rowScanner) (*entity.CandidatePO, error) {
	var (
		c                                entity.CandidatePO
		vendorName, vendorID, part, supp sql.NullString
		desc                             sql.NullString
		due                              nullTime
	)
	if err := row.Scan(
		&c.PONumber, &c.POLine, &vendorName, &vendorID, &part, &supp,
		&desc, &c.LineAmount, &c.ReceivedAmount, &c.RemainingAmount, &due,
	); err != nil {
		return nil, err
	}
	c.VendorName = vendorName.String
	c.VendorID = vendorID.String
	c.PartNumber = part.String
	c.SupplierPart = supp.String
	c.LineDescription = desc.String
	c.DueDate = due.ptr()
	return &c, nil
}

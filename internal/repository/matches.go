package repository

import (
	"context"
	"database/sql"
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

const tableMatchRecords = "match_records"

var matchColumns = []string{
	"id", "invoice_id", "po_number", "po_line", "score", "reasoning", "source", "verdict",
	"state", "version", "matched_amount", "decided_by", "decided_at", "created_at", "updated_at",
}

// ListFilter narrows a match record listing. Zero fields are ignored.
type ListFilter struct {
	State     constants.MatchState
	InvoiceID uuid.UUID
	Limit     int
}

// MatchRecordRepository defines persistence for match proposals and their state.
type MatchRecordRepository interface {
	Create(ctx context.Context, rec *entity.MatchRecord) error
	Get(ctx context.Context, id uuid.UUID) (*entity.MatchRecord, error)
	List(ctx context.Context, filter ListFilter) ([]*entity.MatchRecord, error)
	// CompareAndSetState moves rec to state `to` only if the stored row still has
	// rec's state and version. On success rec is updated in place. A false result
	// with a nil error means another writer got there first.
	CompareAndSetState(ctx context.Context, rec *entity.MatchRecord, to constants.MatchState, actor string, at time.Time) (bool, error)
}

type matchRecordRepository struct {
	db     *DB
	logger *slog.Logger
}

func NewMatchRecordRepository(db *DB, logger *slog.Logger) MatchRecordRepository {
	return &matchRecordRepository{db: db, logger: logger}
}

func (r *matchRecordRepository) Create(ctx context.Context, rec *entity.MatchRecord) error {
	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}
	now := time.Now().UTC()
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}
	rec.UpdatedAt = rec.CreatedAt
	if rec.Version == 0 {
		rec.Version = 1
	}
	if rec.State == "" {
		rec.State = constants.MatchStateProposed
	}

	query, args := r.db.builder().Insert(tableMatchRecords).
		Columns(matchColumns...).
		Values(
			rec.ID, rec.InvoiceID, rec.PONumber, rec.POLine, rec.Score, rec.Reasoning,
			string(rec.Source), string(rec.Verdict), string(rec.State), rec.Version,
			nullDecimal(rec.MatchedAmount), nullString(rec.DecidedBy), nullTimeArg(rec.DecidedAt),
			rec.CreatedAt, rec.UpdatedAt,
		).Query()

	if _, err := r.db.SQL.ExecContext(ctx, query, args...); err != nil {
		if isUniqueViolation(err) {
			return approvedConflict(rec.InvoiceID)
		}
		r.logger.Error("failed to create match record", "invoice_id", rec.InvoiceID, "error", err)
		return fmt.Errorf("%w: create match record: %w", common.ErrDatabase, err)
	}
	return nil
}

func (r *matchRecordRepository) Get(ctx context.Context, id uuid.UUID) (*entity.MatchRecord, error) {
	b := r.db.builder()
	query, args := b.Select(matchColumns...).
		From(b.Table(tableMatchRecords)).
		Where(entsql.EQ("id", id)).
		Query()

	rec, err := scanMatchRecord(r.db.SQL.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.NewAppError("NOT_FOUND", fmt.Sprintf("match record %s not found", id), common.ErrNotFound)
	}
	if err != nil {
		r.logger.Error("failed to get match record", "match_id", id, "error", err)
		return nil, fmt.Errorf("%w: get match record: %w", common.ErrDatabase, err)
	}
	return rec, nil
}

// List returns records oldest first.
func (r *matchRecordRepository) List(ctx context.Context, filter ListFilter) ([]*entity.MatchRecord, error) {
	b := r.db.builder()
	sel := b.Select(matchColumns...).From(b.Table(tableMatchRecords))
	if filter.State != "" {
		sel = sel.Where(entsql.EQ("state", string(filter.State)))
	}
	if filter.InvoiceID != uuid.Nil {
		sel = sel.Where(entsql.EQ("invoice_id", filter.InvoiceID))
	}
	sel = sel.OrderBy("created_at", "id")
	if filter.Limit > 0 {
		sel = sel.Limit(filter.Limit)
	}
	query, args := sel.Query()

	rows, err := r.db.SQL.QueryContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("failed to list match records", "error", err)
		return nil, fmt.Errorf("%w: list match records: %w", common.ErrDatabase, err)
	}
	defer rows.Close()

	var out []*entity.MatchRecord
	for rows.Next() {
		rec, err := scanMatchRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("%w: scan match record: %w", common.ErrDatabase, err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: list match records: %w", common.ErrDatabase, err)
	}
	return out, nil
}

func (r *matchRecordRepository) CompareAndSetState(ctx context.Context, rec *entity.MatchRecord, to constants.MatchState, actor string, at time.Time) (bool, error) {
	at = at.UTC()
	query, args := r.db.builder().Update(tableMatchRecords).
		Set("state", string(to)).
		Set("version", rec.Version+1).
		Set("decided_by", nullString(actor)).
		Set("decided_at", at).
		Set("updated_at", at).
		Where(entsql.And(
			entsql.EQ("id", rec.ID),
			entsql.EQ("version", rec.Version),
			entsql.EQ("state", string(rec.State)),
		)).
		Query()

	res, err := r.db.SQL.ExecContext(ctx, query, args...)
	if err != nil {
		if isUniqueViolation(err) {
			return false, approvedConflict(rec.InvoiceID)
		}
		r.logger.Error("failed to update match state", "match_id", rec.ID, "error", err)
		return false, fmt.Errorf("%w: update match state: %w", common.ErrDatabase, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("%w: update match state: %w", common.ErrDatabase, err)
	}
	if n == 0 {
		return false, nil
	}

	rec.State = to
	rec.Version++
	rec.DecidedBy = actor
	rec.DecidedAt = &at
	rec.UpdatedAt = at
	return true, nil
}

// approvedConflict reports a second approval for an invoice, rejected by
// match_records_one_approved_idx.
func approvedConflict(invoiceID uuid.UUID) error {
	return common.NewAppError("CONFLICT",
		fmt.Sprintf("invoice %s already has an approved match", invoiceID), common.ErrConflict)
}

func scanMatchRecord(row rowScanner) (*entity.MatchRecord, error) {
	var (
		rec                         entity.MatchRecord
		source, verdict, state      string
		matched                     decimal.NullDecimal
		decidedBy                   sql.NullString
		decidedAt, created, updated nullTime
	)
	if err := row.Scan(
		&rec.ID, &rec.InvoiceID, &rec.PONumber, &rec.POLine, &rec.Score, &rec.Reasoning,
		&source, &verdict, &state, &rec.Version, &matched, &decidedBy, &decidedAt,
		&created, &updated,
	); err != nil {
		return nil, err
	}
	rec.Source = constants.MatchSource(source)
	rec.Verdict = constants.Verdict(verdict)
	rec.State = constants.MatchState(state)
	rec.MatchedAmount = decimalPtr(matched)
	rec.DecidedBy = decidedBy.String
	rec.DecidedAt = decidedAt.ptr()
	rec.CreatedAt = created.Time
	rec.UpdatedAt = updated.Time
	return &rec, nil
}

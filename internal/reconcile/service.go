// Package reconcile ties invoices, the open PO pool and the matcher together and
// owns the match record workflow.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/WullieT22/Invoice-to-PO/constants"
	"github.com/WullieT22/Invoice-to-PO/internal/common"
	"github.com/WullieT22/Invoice-to-PO/internal/entity"
	"github.com/WullieT22/Invoice-to-PO/internal/extract"
	"github.com/WullieT22/Invoice-to-PO/internal/matching"
	"github.com/WullieT22/Invoice-to-PO/internal/metrics"
	"github.com/WullieT22/Invoice-to-PO/internal/repository"
)

// maxTransitionAttempts bounds the optimistic retry loop on concurrent decisions.
const maxTransitionAttempts = 3

type Config struct {
	AutoApproveThreshold float64
	// MinScore is the score a match must exceed to be persisted.
	MinScore         float64
	CandidateLimit   int
	BatchConcurrency int
}

func DefaultConfig() Config {
	return Config{
		AutoApproveThreshold: constants.DefaultAutoApproveThreshold,
		CandidateLimit:       500,
		BatchConcurrency:     4,
	}
}

// ConfigFrom maps the application matching config.
func ConfigFrom(c common.MatchingConfig) Config {
	return Config{
		AutoApproveThreshold: c.AutoApproveThreshold,
		MinScore:             c.MinScore,
		CandidateLimit:       c.CandidateLimit,
		BatchConcurrency:     c.BatchConcurrency,
	}
}

// Service handles invoice matching business logic.
type Service struct {
	matcher    *matching.Matcher
	invoices   repository.InvoiceRepository
	candidates repository.CandidateRepository
	records    repository.MatchRecordRepository
	extractor  extract.FieldExtractor
	cfg        Config
	logger     *slog.Logger
	now        func() time.Time
}

// NewService creates a new reconcile service.
func NewService(
	matcher *matching.Matcher,
	invoices repository.InvoiceRepository,
	candidates repository.CandidateRepository,
	records repository.MatchRecordRepository,
	extractor extract.FieldExtractor,
	cfg Config,
	logger *slog.Logger,
) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if extractor == nil {
		extractor = extract.NewRuleExtractor()
	}
	d := DefaultConfig()
	// A zero threshold is legal and approves every persisted match; only an
	// empty config takes the default.
	if cfg == (Config{}) || cfg.AutoApproveThreshold < 0 {
		cfg.AutoApproveThreshold = d.AutoApproveThreshold
	}
	if cfg.CandidateLimit <= 0 {
		cfg.CandidateLimit = d.CandidateLimit
	}
	if cfg.BatchConcurrency <= 0 {
		cfg.BatchConcurrency = d.BatchConcurrency
	}
	return &Service{
		matcher:    matcher,
		invoices:   invoices,
		candidates: candidates,
		records:    records,
		extractor:  extractor,
		cfg:        cfg,
		logger:     logger,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// MatchOutcome is the result of matching one stored invoice. Record is nil when
// nothing was persisted.
type MatchOutcome struct {
	InvoiceID uuid.UUID           `json:"invoice_id"`
	Result    entity.MatchResult  `json:"result"`
	Verdict   constants.Verdict   `json:"verdict"`
	Record    *entity.MatchRecord `json:"record,omitempty"`
}

// SubmitInvoice validates and stores invoice fields.
func (s *Service) SubmitInvoice(ctx context.Context, fields entity.InvoiceFields, sourceText string) (*entity.Invoice, error) {
	if err := common.ValidateStruct(fields); err != nil {
		s.logger.Warn("invoice rejected", "invoice_number", fields.InvoiceNumber, "error", err)
		return nil, err
	}
	inv := &entity.Invoice{Fields: fields, SourceText: sourceText}
	if err := s.invoices.Create(ctx, inv); err != nil {
		return nil, err
	}
	s.logger.Info("invoice stored", "invoice_id", inv.ID, "invoice_number", fields.InvoiceNumber)
	return inv, nil
}

// SubmitInvoiceText extracts fields from raw invoice text and stores the invoice.
func (s *Service) SubmitInvoiceText(ctx context.Context, text string) (*entity.Invoice, extract.Result, error) {
	if text == "" {
		return nil, extract.Result{}, common.InvalidInput("invoice text is empty")
	}
	res, err := s.extractor.ExtractFields(ctx, text)
	if err != nil {
		return nil, extract.Result{}, err
	}
	inv, err := s.SubmitInvoice(ctx, res.Fields, text)
	if err != nil {
		return nil, res, err
	}
	return inv, res, nil
}

// MatchInvoice matches a stored invoice against the open PO pool, persists a
// proposal when the result clears MinScore and auto-approves it above the threshold.
func (s *Service) MatchInvoice(ctx context.Context, invoiceID uuid.UUID) (*MatchOutcome, error) {
	inv, err := s.invoices.Get(ctx, invoiceID)
	if err != nil {
		return nil, err
	}
	if err := s.ensureNotApproved(ctx, invoiceID); err != nil {
		return nil, err
	}

	cands, err := s.candidates.ListOpen(ctx, s.cfg.CandidateLimit)
	if err != nil {
		return nil, err
	}

	result, err := s.matcher.FindBestMatch(ctx, inv.Fields, cands)
	if err != nil {
		return nil, err
	}
	verdict := matching.Decide(result, s.cfg.AutoApproveThreshold)
	metrics.RecordMatch(string(result.Source), string(verdict), result.FallbackReason, result.Score)

	out := &MatchOutcome{InvoiceID: invoiceID, Result: result, Verdict: verdict}
	if verdict == constants.VerdictNoMatch || result.Score <= s.cfg.MinScore {
		s.logger.Info("match.not_persisted",
			"invoice_id", invoiceID, "verdict", verdict, "score", result.Score, "min_score", s.cfg.MinScore)
		return out, nil
	}

	rec := &entity.MatchRecord{
		InvoiceID:     invoiceID,
		PONumber:      result.Candidate.PONumber,
		POLine:        result.Candidate.POLine,
		Score:         result.Score,
		Reasoning:     result.Reasoning,
		Source:        result.Source,
		Verdict:       verdict,
		State:         constants.MatchStateProposed,
		MatchedAmount: inv.Fields.InvoiceAmount,
	}
	if err := s.records.Create(ctx, rec); err != nil {
		return nil, err
	}
	out.Record = rec

	if verdict == constants.VerdictAutoApprove {
		approved, err := s.transition(ctx, rec.ID, constants.ActionAutoApprove, constants.AutoApproveActor)
		if err != nil {
			return nil, err
		}
		out.Record = approved
	}

	s.logger.Info("match.recorded",
		"invoice_id", invoiceID,
		"match_id", out.Record.ID,
		"po", out.Record.Key().String(),
		"source", result.Source,
		"verdict", verdict,
		"state", out.Record.State,
		"score", result.Score,
	)
	return out, nil
}

func (s *Service) ensureNotApproved(ctx context.Context, invoiceID uuid.UUID) error {
	existing, err := s.records.List(ctx, repository.ListFilter{
		InvoiceID: invoiceID,
		State:     constants.MatchStateApproved,
		Limit:     1,
	})
	if err != nil {
		return err
	}
	if len(existing) > 0 {
		return common.NewAppError("CONFLICT",
			fmt.Sprintf("invoice %s already matched to %s", invoiceID, existing[0].Key()), common.ErrConflict)
	}
	return nil
}

// Approve manually approves a proposed match.
func (s *Service) Approve(ctx context.Context, recordID uuid.UUID, actor string) (*entity.MatchRecord, error) {
	return s.decide(ctx, recordID, constants.ActionApprove, actor)
}

// Reject manually rejects a proposed match.
func (s *Service) Reject(ctx context.Context, recordID uuid.UUID, actor string) (*entity.MatchRecord, error) {
	return s.decide(ctx, recordID, constants.ActionReject, actor)
}

func (s *Service) decide(ctx context.Context, recordID uuid.UUID, action constants.Action, actor string) (*entity.MatchRecord, error) {
	if actor == "" {
		actor = common.ActorFromContext(ctx)
	}
	if actor == "" {
		return nil, common.InvalidInput("actor is required")
	}
	return s.transition(ctx, recordID, action, actor)
}

// transition applies action under the record's version, re-reading and retrying
// when a concurrent writer moved it first.
func (s *Service) transition(ctx context.Context, recordID uuid.UUID, action constants.Action, actor string) (*entity.MatchRecord, error) {
	for attempt := 1; attempt <= maxTransitionAttempts; attempt++ {
		rec, err := s.records.Get(ctx, recordID)
		if err != nil {
			return nil, err
		}
		to, err := matching.NextState(rec.State, action)
		if err != nil {
			metrics.RecordTransition(string(action), "rejected")
			s.logger.Warn("match.transition.invalid",
				"match_id", recordID, "action", action, "state", rec.State, "error", err)
			return nil, err
		}
		ok, err := s.records.CompareAndSetState(ctx, rec, to, actor, s.now())
		if err != nil {
			return nil, err
		}
		if ok {
			metrics.RecordTransition(string(action), "ok")
			s.logger.Info("match.transition",
				"match_id", recordID, "action", action, "state", rec.State, "actor", actor, "version", rec.Version)
			return rec, nil
		}
		s.logger.Debug("match.transition.stale", "match_id", recordID, "attempt", attempt)
	}
	metrics.RecordTransition(string(action), "conflict")
	return nil, common.NewAppError("CONFLICT",
		fmt.Sprintf("match record %s changed concurrently", recordID), common.ErrConflict)
}

// ListPending returns proposals awaiting a decision, oldest first.
func (s *Service) ListPending(ctx context.Context, limit int) ([]*entity.MatchRecord, error) {
	return s.records.List(ctx, repository.ListFilter{State: constants.MatchStateProposed, Limit: limit})
}

// ListRecords returns match records matching filter.
func (s *Service) ListRecords(ctx context.Context, filter repository.ListFilter) ([]*entity.MatchRecord, error) {
	if filter.State != "" && !filter.State.Valid() {
		return nil, common.InvalidInput("unknown state %q", filter.State)
	}
	return s.records.List(ctx, filter)
}

// GetRecord returns one match record.
func (s *Service) GetRecord(ctx context.Context, recordID uuid.UUID) (*entity.MatchRecord, error) {
	return s.records.Get(ctx, recordID)
}

// SyncCandidates upserts PO lines from the ERP feed. Remaining amount is always
// recomputed as line minus received.
func (s *Service) SyncCandidates(ctx context.Context, cands []entity.CandidatePO) (int, error) {
	seen := make(map[entity.CandidateKey]struct{}, len(cands))
	rows := make([]entity.CandidatePO, 0, len(cands))
	for i, c := range cands {
		if err := common.ValidateStruct(c); err != nil {
			return 0, fmt.Errorf("candidate %d: %w", i, err)
		}
		if _, dup := seen[c.Key()]; dup {
			return 0, common.InvalidInput("duplicate po line %s", c.Key())
		}
		seen[c.Key()] = struct{}{}
		c.RemainingAmount = c.LineAmount.Sub(c.ReceivedAmount).Round(2)
		rows = append(rows, c)
	}

	n, err := s.candidates.Upsert(ctx, rows)
	if err != nil {
		return 0, err
	}
	metrics.RecordCandidatesSynced(n)
	s.logger.Info("candidates synced", "count", n)
	return n, nil
}

// ValidateMatch asks the oracle for a second opinion on a stored match.
func (s *Service) ValidateMatch(ctx context.Context, recordID uuid.UUID) (entity.MatchValidation, error) {
	rec, err := s.records.Get(ctx, recordID)
	if err != nil {
		return entity.MatchValidation{}, err
	}
	inv, err := s.invoices.Get(ctx, rec.InvoiceID)
	if err != nil {
		return entity.MatchValidation{}, err
	}
	cand, err := s.candidates.Get(ctx, rec.Key())
	if errors.Is(err, common.ErrNotFound) && rec.Key() == matching.SyntheticCandidate().Key() {
		sc := matching.SyntheticCandidate()
		cand, err = &sc, nil
	}
	if err != nil {
		return entity.MatchValidation{}, err
	}
	return s.matcher.ValidateMatch(ctx, inv.Fields, *cand)
}

package matching

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/WullieT22/Invoice-to-PO/constants"
	"github.com/WullieT22/Invoice-to-PO/internal/common"
	"github.com/WullieT22/Invoice-to-PO/internal/entity"
)

// Fallback reasons, reported on MatchResult.FallbackReason.
const (
	FallbackDisabled   = "oracle_disabled"
	FallbackTimeout    = "oracle_timeout"
	FallbackAuth       = "oracle_auth"
	FallbackTransport  = "oracle_transport"
	FallbackParse      = "oracle_parse"
	FallbackUnresolved = "oracle_unresolved"
)

// Config tunes the matcher. Zero fields take defaults.
type Config struct {
	Weights       Weights
	OracleTimeout time.Duration
	MaxLineItems  int
	MaxCandidates int

	// AllowSyntheticCandidate substitutes SyntheticCandidate for an empty
	// candidate set instead of rejecting the call.
	AllowSyntheticCandidate bool
}

func DefaultConfig() Config {
	return Config{
		Weights:       DefaultWeights(),
		OracleTimeout: constants.DefaultOracleTimeout,
		MaxLineItems:  constants.MaxPromptLineItems,
		MaxCandidates: constants.MaxPromptCandidates,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.Weights.isZero() {
		c.Weights = d.Weights
	}
	if c.OracleTimeout <= 0 {
		c.OracleTimeout = d.OracleTimeout
	}
	if c.MaxLineItems <= 0 {
		c.MaxLineItems = d.MaxLineItems
	}
	if c.MaxCandidates <= 0 {
		c.MaxCandidates = d.MaxCandidates
	}
	return c
}

// SyntheticCandidate is the demo PO line used when no candidates exist and
// AllowSyntheticCandidate is set.
func SyntheticCandidate() entity.CandidatePO {
	return entity.CandidatePO{
		PONumber:        "PO-2024-1001",
		POLine:          1,
		VendorName:      "ACME Corporation",
		VendorID:        "ACME001",
		PartNumber:      "OFF-SUP-001",
		LineDescription: "Office Supplies - Batch Order",
		LineAmount:      decimal.RequireFromString("2754.00"),
		RemainingAmount: decimal.RequireFromString("2754.00"),
	}
}

// Matcher picks the best PO line for an invoice, consulting the oracle when one
// is configured and falling back to Rank otherwise. It holds no mutable state.
type Matcher struct {
	oracle Oracle
	cfg    Config
	logger *slog.Logger
}

// NewMatcher builds a Matcher. A nil oracle always takes the fallback path.
func NewMatcher(oracle Oracle, cfg Config, logger *slog.Logger) *Matcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Matcher{oracle: oracle, cfg: cfg.withDefaults(), logger: logger}
}

func (m *Matcher) Config() Config {
	return m.cfg
}

// FindBestMatch returns the best match for inv among cands.
//
// Oracle failures of any kind degrade to the heuristic ranker. The only errors
// returned are invalid input (common.ErrInvalidInput) and the caller's context error.
func (m *Matcher) FindBestMatch(ctx context.Context, inv entity.InvoiceFields, cands []entity.CandidatePO) (entity.MatchResult, error) {
	if err := ctx.Err(); err != nil {
		return entity.MatchResult{}, err
	}
	if err := ValidateInput(inv, cands); err != nil {
		return entity.MatchResult{}, err
	}
	if len(cands) == 0 {
		if !m.cfg.AllowSyntheticCandidate {
			return entity.MatchResult{}, common.InvalidInput("no candidate PO lines")
		}
		m.logger.Warn("matching.synthetic_candidate", "invoice_number", inv.InvoiceNumber)
		cands = []entity.CandidatePO{SyntheticCandidate()}
	}

	rid := common.RequestIDFromContext(ctx)
	if rid == "" {
		rid = uuid.New().String()
		ctx = common.WithRequestID(ctx, rid)
	}

	if m.oracle == nil {
		return m.fallback(inv, cands, FallbackDisabled, nil, rid)
	}

	start := time.Now()
	prompt := BuildMatchPrompt(inv, cands, m.cfg.MaxLineItems, m.cfg.MaxCandidates)
	m.logger.Debug("matching.oracle.start",
		"req_id", rid,
		"candidates", len(cands),
		"prompt_len", len(prompt),
	)

	raw, err := m.invoke(ctx, prompt)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			m.logger.Info("matching.cancelled", "req_id", rid, "error", ctxErr)
			return entity.MatchResult{}, ctxErr
		}
		return m.fallback(inv, cands, classify(err), err, rid)
	}

	res, err := ParseOracleResponse(raw, cands)
	if err != nil {
		return m.fallback(inv, cands, classify(err), err, rid)
	}

	m.logger.Info("matching.oracle.ok",
		"req_id", rid,
		"po_number", res.Candidate.PONumber,
		"po_line", res.Candidate.POLine,
		"score", res.Score,
		"alternatives", len(res.Alternatives),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return res, nil
}

type oracleReplyOrErr struct {
	raw string
	err error
}

// invoke calls the oracle under its own timeout. The call runs in a goroutine so
// an oracle that ignores its context cannot hold the caller past the deadline.
func (m *Matcher) invoke(ctx context.Context, prompt string) (string, error) {
	callCtx, cancel := context.WithTimeout(ctx, m.cfg.OracleTimeout)
	defer cancel()

	done := make(chan oracleReplyOrErr, 1)
	go func() {
		raw, err := m.oracle.Invoke(callCtx, prompt)
		done <- oracleReplyOrErr{raw: raw, err: err}
	}()

	select {
	case r := <-done:
		if r.err != nil && errors.Is(callCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			return "", fmt.Errorf("%w: %v", common.ErrOracleTimeout, r.err)
		}
		return r.raw, r.err
	case <-callCtx.Done():
		if err := ctx.Err(); err != nil {
			return "", err
		}
		return "", fmt.Errorf("%w after %s", common.ErrOracleTimeout, m.cfg.OracleTimeout)
	}
}

func (m *Matcher) fallback(inv entity.InvoiceFields, cands []entity.CandidatePO, reason string, cause error, rid string) (entity.MatchResult, error) {
	res, err := Rank(inv, cands, m.cfg.Weights)
	if err != nil {
		return entity.MatchResult{}, err
	}
	res.FallbackReason = reason

	attrs := []any{"req_id", rid, "reason", reason, "score", res.Score, "po_number", res.Candidate.PONumber}
	if cause != nil {
		attrs = append(attrs, "error", cause)
	}
	if reason == FallbackDisabled {
		m.logger.Debug("matching.fallback", attrs...)
	} else {
		m.logger.Warn("matching.oracle.fallback", attrs...)
	}
	return res, nil
}

func classify(err error) string {
	switch {
	case errors.Is(err, common.ErrUnresolvedOracleMatch):
		return FallbackUnresolved
	case errors.Is(err, common.ErrOracleParse):
		return FallbackParse
	case errors.Is(err, common.ErrOracleTimeout), errors.Is(err, context.DeadlineExceeded):
		return FallbackTimeout
	case errors.Is(err, common.ErrOracleAuth):
		return FallbackAuth
	default:
		return FallbackTransport
	}
}

// ValidateInput rejects inputs that make scoring meaningless: negative amounts,
// candidates without a po_number and duplicate (po_number, po_line) keys.
func ValidateInput(inv entity.InvoiceFields, cands []entity.CandidatePO) error {
	if err := common.ValidateStruct(inv); err != nil {
		return err
	}
	seen := make(map[entity.CandidateKey]int, len(cands))
	for i := range cands {
		if err := common.ValidateStruct(cands[i]); err != nil {
			return fmt.Errorf("candidate %d: %w", i, err)
		}
		if j, dup := seen[cands[i].Key()]; dup {
			return common.InvalidInput("candidates %d and %d share key %s", j, i, cands[i].Key())
		}
		seen[cands[i].Key()] = i
	}
	return nil
}

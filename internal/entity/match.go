package entity

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/WullieT22/Invoice-to-PO/constants"
)

// MatchResult is the outcome of matching one invoice against a candidate set.
// Candidate points into the caller's candidate slice; nil means no match and Score is 0.
type MatchResult struct {
	Candidate      *CandidatePO          `json:"candidate,omitempty"`
	Score          float64               `json:"score"`
	Reasoning      string                `json:"reasoning"`
	Source         constants.MatchSource `json:"source"`
	FallbackReason string                `json:"fallback_reason,omitempty"`
	Alternatives   []AlternativeMatch    `json:"alternatives,omitempty"`
}

// Matched reports whether a candidate was selected.
func (r MatchResult) Matched() bool {
	return r.Candidate != nil
}

// AlternativeMatch is a runner-up suggested by the oracle.
type AlternativeMatch struct {
	Candidate *CandidatePO `json:"candidate"`
	Score     float64      `json:"score"`
	Reasoning string       `json:"reasoning,omitempty"`
}

// MatchRecord is a persisted match proposal and its workflow state.
type MatchRecord struct {
	ID            uuid.UUID             `json:"id"`
	InvoiceID     uuid.UUID             `json:"invoice_id"`
	PONumber      string                `json:"po_number"`
	POLine        int                   `json:"po_line"`
	Score         float64               `json:"score"`
	Reasoning     string                `json:"reasoning"`
	Source        constants.MatchSource `json:"source"`
	Verdict       constants.Verdict     `json:"verdict"`
	State         constants.MatchState  `json:"state"`
	Version       int                   `json:"version"`
	MatchedAmount *decimal.Decimal      `json:"matched_amount,omitempty"`
	DecidedBy     string                `json:"decided_by,omitempty"`
	DecidedAt     *time.Time            `json:"decided_at,omitempty"`
	CreatedAt     time.Time             `json:"created_at"`
	UpdatedAt     time.Time             `json:"updated_at"`
}

func (r MatchRecord) Key() CandidateKey {
	return CandidateKey{PONumber: r.PONumber, POLine: r.POLine}
}

// MatchValidation is the oracle's second opinion on a proposed match.
type MatchValidation struct {
	IsValid        bool     `json:"is_valid"`
	Confidence     float64  `json:"confidence"`
	Discrepancies  []string `json:"discrepancies,omitempty"`
	Recommendation string   `json:"recommendation"`
}

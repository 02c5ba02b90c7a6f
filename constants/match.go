package constants

import "time"

// InvoiceType classifies the document being matched.
type InvoiceType string

const (
	InvoiceTypeStandard   InvoiceType = "STANDARD"
	InvoiceTypeCreditMemo InvoiceType = "CREDIT_MEMO"
	InvoiceTypeDebitMemo  InvoiceType = "DEBIT_MEMO"
)

// MatchSource records which path produced a match.
type MatchSource string

const (
	MatchSourceOracle   MatchSource = "ORACLE"
	MatchSourceFallback MatchSource = "FALLBACK"
)

// Verdict is the categorical outcome of the decision policy.
type Verdict string

const (
	VerdictAutoApprove    Verdict = "AUTO_APPROVE"
	VerdictRequiresReview Verdict = "REQUIRES_REVIEW"
	VerdictNoMatch        Verdict = "NO_MATCH"
)

const (
	DefaultAutoApproveThreshold = 0.8
	DefaultOracleTimeout        = 30 * time.Second

	// Prompt bounds keep the oracle payload small.
	MaxPromptLineItems  = 3
	MaxPromptCandidates = 10

	// AutoApproveActor is recorded as decided_by for policy approvals.
	AutoApproveActor = "system:auto"
)

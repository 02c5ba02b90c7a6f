package matching

import (
	"fmt"

	"github.com/WullieT22/Invoice-to-PO/constants"
	"github.com/WullieT22/Invoice-to-PO/internal/common"
	"github.com/WullieT22/Invoice-to-PO/internal/entity"
)

// Decide maps a match result onto a verdict. Scores at or above threshold are
// auto-approvable.
func Decide(r entity.MatchResult, threshold float64) constants.Verdict {
	switch {
	case !r.Matched():
		return constants.VerdictNoMatch
	case r.Score >= threshold:
		return constants.VerdictAutoApprove
	default:
		return constants.VerdictRequiresReview
	}
}

// NextState applies an action to a record state. Approved and Rejected are terminal.
func NextState(from constants.MatchState, action constants.Action) (constants.MatchState, error) {
	if from != constants.MatchStateProposed {
		return from, fmt.Errorf("%w: %s from %s", common.ErrInvalidTransition, action, from)
	}
	switch action {
	case constants.ActionAutoApprove, constants.ActionApprove:
		return constants.MatchStateApproved, nil
	case constants.ActionReject:
		return constants.MatchStateRejected, nil
	default:
		return from, common.InvalidInput("unknown action %q", action)
	}
}

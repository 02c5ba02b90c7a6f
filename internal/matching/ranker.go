package matching

import (
	"github.com/WullieT22/Invoice-to-PO/constants"
	"github.com/WullieT22/Invoice-to-PO/internal/common"
	"github.com/WullieT22/Invoice-to-PO/internal/entity"
)

// ReasonNoSuitableMatch is reported when every candidate scores zero.
const ReasonNoSuitableMatch = "No suitable matches found"

// Rank scores every candidate and returns the highest. Ties keep the earliest
// candidate. The result always points into cands, even when the best score is 0.
func Rank(inv entity.InvoiceFields, cands []entity.CandidatePO, w Weights) (entity.MatchResult, error) {
	if len(cands) == 0 {
		return entity.MatchResult{}, common.InvalidInput("rank: no candidates")
	}

	best, bestScore := 0, -1.0
	var bestReasons []string
	for i := range cands {
		s, reasons := Score(inv, cands[i], w)
		if s > bestScore {
			best, bestScore, bestReasons = i, s, reasons
		}
	}

	reasoning := JoinReasons(bestReasons)
	if bestScore == 0 {
		reasoning = ReasonNoSuitableMatch
	}
	return entity.MatchResult{
		Candidate: &cands[best],
		Score:     bestScore,
		Reasoning: reasoning,
		Source:    constants.MatchSourceFallback,
	}, nil
}

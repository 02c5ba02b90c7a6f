package matching

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/WullieT22/Invoice-to-PO/constants"
	"github.com/WullieT22/Invoice-to-PO/internal/common"
	"github.com/WullieT22/Invoice-to-PO/internal/entity"
	"github.com/WullieT22/Invoice-to-PO/internal/llm"
)

const (
	// DefaultOracleReasoning is used when the oracle gives no reasoning.
	DefaultOracleReasoning = "AI matching completed"
	// ReasonUnresolved marks an oracle pick that is absent from the candidate set.
	ReasonUnresolved = "Unresolved oracle match"
)

type oracleRef struct {
	PONumber   string   `json:"po_number"`
	POLine     *float64 `json:"po_line"`
	MatchScore *float64 `json:"match_score"`
	Reasoning  string   `json:"reasoning"`
}

type oracleReply struct {
	BestMatch    oracleRef   `json:"best_match"`
	Reasoning    string      `json:"reasoning"`
	Alternatives []oracleRef `json:"alternative_matches"`
}

// ParseOracleResponse validates an oracle reply and resolves its pick against cands.
//
// Malformed replies fail with *OracleParseError. A well-formed pick whose po_number
// is not among cands yields a zero result and an error wrapping
// common.ErrUnresolvedOracleMatch. Resolution is exact on po_number and the first
// candidate with that number wins, except that a candidate whose po_line also
// equals the reply's po_line is preferred over an earlier one that differs only
// by line. With no po_line in the reply, or no line match, plain first-wins applies.
func ParseOracleResponse(raw string, cands []entity.CandidatePO) (entity.MatchResult, error) {
	body := llm.StripCodeFence(raw)
	if body == "" {
		return entity.MatchResult{}, parseError(raw, "empty response", nil)
	}

	var doc any
	if err := json.Unmarshal([]byte(body), &doc); err != nil {
		return entity.MatchResult{}, parseError(raw, "not valid json", err)
	}
	schema, err := matchSchema()
	if err != nil {
		return entity.MatchResult{}, parseError(raw, "schema unavailable", err)
	}
	if err := llm.ValidateJSON(schema, doc); err != nil {
		return entity.MatchResult{}, parseError(raw, "schema violation", err)
	}

	var reply oracleReply
	if err := json.Unmarshal([]byte(body), &reply); err != nil {
		return entity.MatchResult{}, parseError(raw, "decode reply", err)
	}

	best := resolve(cands, reply.BestMatch)
	if best == nil {
		return entity.MatchResult{
				Score:     0,
				Reasoning: fmt.Sprintf("%s: po_number %q", ReasonUnresolved, reply.BestMatch.PONumber),
				Source:    constants.MatchSourceOracle,
			}, fmt.Errorf("%w: po_number %q among %d candidates",
				common.ErrUnresolvedOracleMatch, reply.BestMatch.PONumber, len(cands))
	}
	if reply.BestMatch.MatchScore == nil {
		return entity.MatchResult{}, parseError(raw, "best_match.match_score missing", nil)
	}

	reasoning := strings.TrimSpace(reply.Reasoning)
	if reasoning == "" {
		reasoning = strings.TrimSpace(reply.BestMatch.Reasoning)
	}
	if reasoning == "" {
		reasoning = DefaultOracleReasoning
	}

	return entity.MatchResult{
		Candidate:    best,
		Score:        *reply.BestMatch.MatchScore,
		Reasoning:    reasoning,
		Source:       constants.MatchSourceOracle,
		Alternatives: resolveAlternatives(cands, best, reply.Alternatives),
	}, nil
}

func resolve(cands []entity.CandidatePO, ref oracleRef) *entity.CandidatePO {
	var first *entity.CandidatePO
	for i := range cands {
		if cands[i].PONumber != ref.PONumber {
			continue
		}
		if ref.POLine == nil || cands[i].POLine == int(*ref.POLine) {
			return &cands[i]
		}
		if first == nil {
			first = &cands[i]
		}
	}
	return first
}

// resolveAlternatives keeps alternatives that resolve to a candidate other than best;
// duplicates and unresolved entries are dropped.
func resolveAlternatives(cands []entity.CandidatePO, best *entity.CandidatePO, refs []oracleRef) []entity.AlternativeMatch {
	if len(refs) == 0 {
		return nil
	}
	seen := map[entity.CandidateKey]bool{best.Key(): true}
	var out []entity.AlternativeMatch
	for _, ref := range refs {
		c := resolve(cands, ref)
		if c == nil || seen[c.Key()] {
			continue
		}
		seen[c.Key()] = true
		alt := entity.AlternativeMatch{Candidate: c, Reasoning: ref.Reasoning}
		if ref.MatchScore != nil {
			alt.Score = *ref.MatchScore
		}
		out = append(out, alt)
	}
	return out
}

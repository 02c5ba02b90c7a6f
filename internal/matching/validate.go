package matching

import (
	"context"
	"encoding/json"

	"github.com/WullieT22/Invoice-to-PO/internal/entity"
	"github.com/WullieT22/Invoice-to-PO/internal/llm"
)

// RecommendationError is reported when the oracle could not give an opinion.
const RecommendationError = "error"

func validationFailed(reason string) entity.MatchValidation {
	return entity.MatchValidation{
		IsValid:        false,
		Confidence:     0,
		Discrepancies:  []string{reason},
		Recommendation: RecommendationError,
	}
}

// ValidateMatch asks the oracle whether c is a correct match for inv. Oracle
// and parse failures produce a validation with recommendation "error"; only
// invalid input and caller cancellation are returned as errors.
func (m *Matcher) ValidateMatch(ctx context.Context, inv entity.InvoiceFields, c entity.CandidatePO) (entity.MatchValidation, error) {
	if err := ValidateInput(inv, []entity.CandidatePO{c}); err != nil {
		return entity.MatchValidation{}, err
	}
	if m.oracle == nil {
		return validationFailed("oracle not configured"), nil
	}

	raw, err := m.invoke(ctx, BuildValidationPrompt(inv, c))
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return entity.MatchValidation{}, ctxErr
		}
		m.logger.Warn("matching.validate.oracle_error", "po_number", c.PONumber, "error", err)
		return validationFailed(err.Error()), nil
	}

	out, err := parseValidation(raw)
	if err != nil {
		m.logger.Warn("matching.validate.parse_error", "po_number", c.PONumber, "error", err)
		return validationFailed(err.Error()), nil
	}
	return out, nil
}

func parseValidation(raw string) (entity.MatchValidation, error) {
	body := llm.StripCodeFence(raw)
	var doc any
	if err := json.Unmarshal([]byte(body), &doc); err != nil {
		return entity.MatchValidation{}, parseError(raw, "not valid json", err)
	}
	schema, err := validationSchema()
	if err != nil {
		return entity.MatchValidation{}, parseError(raw, "schema unavailable", err)
	}
	if err := llm.ValidateJSON(schema, doc); err != nil {
		return entity.MatchValidation{}, parseError(raw, "schema violation", err)
	}
	var out entity.MatchValidation
	if err := json.Unmarshal([]byte(body), &out); err != nil {
		return entity.MatchValidation{}, parseError(raw, "decode reply", err)
	}
	return out, nil
}


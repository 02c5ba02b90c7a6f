package matching

import (
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/WullieT22/Invoice-to-PO/internal/llm"
)

func scoreProp() map[string]any {
	return map[string]any{"type": "number", "minimum": 0.0, "maximum": 1.0}
}

// MatchResponseSchema describes the oracle's match reply.
func MatchResponseSchema() map[string]any {
	ref := map[string]any{
		"type":     "object",
		"required": []string{"po_number"},
		"properties": map[string]any{
			"po_number":   map[string]any{"type": "string", "minLength": 1},
			"po_line":     map[string]any{"type": "integer"},
			"match_score": scoreProp(),
			"reasoning":   map[string]any{"type": "string"},
		},
	}
	return map[string]any{
		"type":     "object",
		"required": []string{"best_match"},
		"properties": map[string]any{
			"best_match": ref,
			"reasoning":  map[string]any{"type": "string"},
			"alternative_matches": map[string]any{
				"type":  "array",
				"items": ref,
			},
		},
	}
}

// ValidationResponseSchema describes the oracle's reply to a validation prompt.
func ValidationResponseSchema() map[string]any {
	return map[string]any{
		"type":     "object",
		"required": []string{"is_valid", "confidence", "recommendation"},
		"properties": map[string]any{
			"is_valid":      map[string]any{"type": "boolean"},
			"confidence":    map[string]any{"type": "number", "minimum": 0.0, "maximum": 100.0},
			"discrepancies": map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
			"recommendation": map[string]any{
				"type": "string",
				"enum": []string{"approve", "review", "reject"},
			},
		},
	}
}

var (
	matchSchema = sync.OnceValues(func() (*jsonschema.Schema, error) {
		return llm.CompileSchema("match_response.json", MatchResponseSchema())
	})
	validationSchema = sync.OnceValues(func() (*jsonschema.Schema, error) {
		return llm.CompileSchema("validation_response.json", ValidationResponseSchema())
	})
)

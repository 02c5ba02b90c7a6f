package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateJSONAgainstSchema(t *testing.T) {
	schema := map[string]any{
		"type":     "object",
		"required": []string{"score"},
		"properties": map[string]any{
			"score": map[string]any{"type": "number", "minimum": 0.0, "maximum": 1.0},
		},
	}

	require.NoError(t, ValidateJSONAgainstSchema(schema, []byte(`{"score":0.5}`)))
	assert.Error(t, ValidateJSONAgainstSchema(schema, []byte(`{"score":1.5}`)))
	assert.Error(t, ValidateJSONAgainstSchema(schema, []byte(`{"score":"high"}`)))
	assert.Error(t, ValidateJSONAgainstSchema(schema, []byte(`{}`)))
	assert.Error(t, ValidateJSONAgainstSchema(schema, []byte(`not json`)))
}

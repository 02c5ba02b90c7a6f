package utils

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/WullieT22/Invoice-to-PO/internal/common"
)

func TestParseOptionalDate(t *testing.T) {
	got, err := ParseOptionalDate("due_date", "2024-03-15")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC), *got)

	got, err = ParseOptionalDate("due_date", "2024-03-15T10:00:00Z")
	require.NoError(t, err)
	assert.Equal(t, 10, got.Hour())

	got, err = ParseOptionalDate("due_date", "  ")
	require.NoError(t, err)
	assert.Nil(t, got)

	_, err = ParseOptionalDate("due_date", "15/03/2024")
	require.ErrorIs(t, err, common.ErrInvalidInput)
	assert.Contains(t, err.Error(), "due_date")
}

func TestFormatYMD(t *testing.T) {
	assert.Empty(t, FormatYMD(nil))
	assert.Equal(t, "2024-03-15", FormatYMD(Ptr(time.Date(2024, 3, 15, 23, 0, 0, 0, time.UTC))))
}

func TestParseID(t *testing.T) {
	id := uuid.New()
	got, err := ParseID("match_id", id.String())
	require.NoError(t, err)
	assert.Equal(t, id, got)

	_, err = ParseID("match_id", "")
	require.ErrorIs(t, err, common.ErrInvalidInput)
	assert.Contains(t, err.Error(), "'match_id'")
	assert.Contains(t, err.Error(), "is required")

	_, err = ParseID("match_id", "nope")
	require.ErrorIs(t, err, common.ErrInvalidInput)
	assert.Contains(t, err.Error(), "must be a valid UUID")
}

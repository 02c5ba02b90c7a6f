package utils

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/WullieT22/Invoice-to-PO/internal/common"
)

const ymd = "2006-01-02"

func Ptr[T any](v T) *T {
	return &v
}

func ParseYMD(s string) (time.Time, error) {
	t, err := time.ParseInLocation(ymd, s, time.UTC)
	if err != nil {
		return time.Time{}, err
	}
	// strip time to midnight UTC to match DATE semantics
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), nil
}

// ParseOptionalDate accepts YYYY-MM-DD or RFC3339. Empty input yields nil.
func ParseOptionalDate(field, s string) (*time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	if t, err := ParseYMD(s); err == nil {
		return &t, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return nil, common.InvalidInput("%s invalid (YYYY-MM-DD): %q", field, s)
	}
	return &t, nil
}

func FormatYMD(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format(ymd)
}

// ParseID parses a required UUID field.
func ParseID(field, s string) (uuid.UUID, error) {
	s = strings.TrimSpace(s)
	if err := common.NewValidator().Field(field, s, common.Required).Err(); err != nil {
		return uuid.Nil, err
	}
	if err := common.NewValidator().Field(field, s, common.UUID).Err(); err != nil {
		return uuid.Nil, err
	}
	return uuid.MustParse(s), nil
}

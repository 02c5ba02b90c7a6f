package matching

import (
	"fmt"

	"github.com/WullieT22/Invoice-to-PO/internal/common"
)

// OracleParseError reports an oracle reply that could not be used. It matches
// common.ErrOracleParse with errors.Is.
type OracleParseError struct {
	Reason string
	Raw    string
	Err    error
}

func (e *OracleParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("oracle parse: %s: %v", e.Reason, e.Err)
	}
	return "oracle parse: " + e.Reason
}

func (e *OracleParseError) Unwrap() []error {
	if e.Err != nil {
		return []error{common.ErrOracleParse, e.Err}
	}
	return []error{common.ErrOracleParse}
}

func parseError(raw, reason string, err error) *OracleParseError {
	return &OracleParseError{Reason: reason, Raw: raw, Err: err}
}

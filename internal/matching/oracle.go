package matching

import "context"

// Oracle is the external matching service. Invoke returns the raw reply, which
// is untrusted. Failures wrap common.ErrOracleTimeout, ErrOracleTransport or ErrOracleAuth.
type Oracle interface {
	Invoke(ctx context.Context, prompt string) (string, error)
}

// OracleFunc adapts a function to Oracle.
type OracleFunc func(ctx context.Context, prompt string) (string, error)

func (f OracleFunc) Invoke(ctx context.Context, prompt string) (string, error) {
	return f(ctx, prompt)
}

package common

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func TestToStatus(t *testing.T) {
	tests := []struct {
		err  error
		code codes.Code
	}{
		{InvalidInput("bad %s", "thing"), codes.InvalidArgument},
		{fmt.Errorf("record: %w", ErrNotFound), codes.NotFound},
		{fmt.Errorf("approve: %w", ErrInvalidTransition), codes.FailedPrecondition},
		{ErrConflict, codes.Aborted},
		{context.Canceled, codes.Canceled},
		{fmt.Errorf("boom"), codes.Internal},
		{status.Error(codes.Unavailable, "down"), codes.Unavailable},
	}
	for _, tt := range tests {
		t.Run(tt.code.String(), func(t *testing.T) {
			assert.Equal(t, tt.code, status.Code(ToStatus(tt.err)))
		})
	}
	assert.NoError(t, ToStatus(nil))
}

package matching

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/WullieT22/Invoice-to-PO/constants"
	"github.com/WullieT22/Invoice-to-PO/internal/common"
	"github.com/WullieT22/Invoice-to-PO/internal/entity"
)

func TestDecide(t *testing.T) {
	c := &entity.CandidatePO{PONumber: "PO-1"}
	tests := []struct {
		name      string
		result    entity.MatchResult
		threshold float64
		want      constants.Verdict
	}{
		{"no candidate", entity.MatchResult{}, 0.8, constants.VerdictNoMatch},
		{"at threshold", entity.MatchResult{Candidate: c, Score: 0.8}, 0.8, constants.VerdictAutoApprove},
		{"above threshold", entity.MatchResult{Candidate: c, Score: 0.95}, 0.8, constants.VerdictAutoApprove},
		{"scenario A", entity.MatchResult{Candidate: c, Score: 0.6}, 0.8, constants.VerdictRequiresReview},
		{"custom threshold", entity.MatchResult{Candidate: c, Score: 0.6}, 0.5, constants.VerdictAutoApprove},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Decide(tt.result, tt.threshold))
		})
	}
}

func TestNextState(t *testing.T) {
	tests := []struct {
		from   constants.MatchState
		action constants.Action
		want   constants.MatchState
		err    error
	}{
		{constants.MatchStateProposed, constants.ActionAutoApprove, constants.MatchStateApproved, nil},
		{constants.MatchStateProposed, constants.ActionApprove, constants.MatchStateApproved, nil},
		{constants.MatchStateProposed, constants.ActionReject, constants.MatchStateRejected, nil},
		{constants.MatchStateApproved, constants.ActionReject, constants.MatchStateApproved, common.ErrInvalidTransition},
		{constants.MatchStateApproved, constants.ActionApprove, constants.MatchStateApproved, common.ErrInvalidTransition},
		{constants.MatchStateRejected, constants.ActionApprove, constants.MatchStateRejected, common.ErrInvalidTransition},
		{constants.MatchStateProposed, constants.Action("ESCALATE"), constants.MatchStateProposed, common.ErrInvalidInput},
	}
	for _, tt := range tests {
		t.Run(string(tt.from)+"_"+string(tt.action), func(t *testing.T) {
			got, err := NextState(tt.from, tt.action)
			assert.Equal(t, tt.want, got)
			if tt.err == nil {
				require.NoError(t, err)
				return
			}
			assert.True(t, errors.Is(err, tt.err))
		})
	}
}

package constants

// MatchState is the workflow state of a persisted match record.
type MatchState string

// Stable values (store these exact strings in DB).
const (
	MatchStateProposed MatchState = "PROPOSED" // awaiting decision
	MatchStateApproved MatchState = "APPROVED" // terminal
	MatchStateRejected MatchState = "REJECTED" // terminal
)

// Terminal reports whether no further transitions are allowed from s.
func (s MatchState) Terminal() bool {
	return s == MatchStateApproved || s == MatchStateRejected
}

func (s MatchState) Valid() bool {
	switch s {
	case MatchStateProposed, MatchStateApproved, MatchStateRejected:
		return true
	}
	return false
}

// Action drives a MatchState transition.
type Action string

const (
	ActionAutoApprove Action = "AUTO_APPROVE"
	ActionApprove     Action = "APPROVE"
	ActionReject      Action = "REJECT"
)

// JobStatus tracks background matching jobs.
type JobStatus string

const (
	JobStatusQueued JobStatus = "QUEUED"
	JobStatusDone   JobStatus = "DONE"
	JobStatusFailed JobStatus = "FAILED"
)

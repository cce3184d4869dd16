package ledger

import (
	"context"
	"time"
)

// Receipt confirms a recorded vote.
type Receipt struct {
	ID          string    `json:"receipt_id"`
	VoterID     string    `json:"-"`
	CandidateID string    `json:"candidate_id"`
	VotedAt     time.Time `json:"voted_at"`
}

// Ledger records votes. Record flips the voter's isVoted flag and appends the
// vote to the candidate's ledger as one unit: either both happen or neither.
//
// Record returns identity.ErrUserNotFound, identity.ErrAlreadyVoted or
// ballot.ErrCandidateNotFound for the corresponding domain failures.
type Ledger interface {
	Record(ctx context.Context, voterID, candidateID string, at time.Time) (Receipt, error)
}

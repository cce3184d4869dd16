package ledger

import (
	"context"
	"sync"
	"time"

	"github.com/segmentio/ksuid"

	"github.com/votewise/votewise/internal/ballot"
	"github.com/votewise/votewise/internal/identity"
)

type inMemoryLedger struct {
	mu         sync.Mutex
	users      *identity.MemoryRepository
	candidates *ballot.MemoryRepository
}

// NewInMemory creates a ledger over the in-memory stores. Records are
// serialized by a single mutex.
func NewInMemory(users *identity.MemoryRepository, candidates *ballot.MemoryRepository) Ledger {
	return &inMemoryLedger{users: users, candidates: candidates}
}

func (l *inMemoryLedger) Record(ctx context.Context, voterID, candidateID string, at time.Time) (Receipt, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.users.MarkVoted(ctx, voterID); err != nil {
		return Receipt{}, err
	}
	receipt := newReceipt(voterID, candidateID, at)
	if err := l.candidates.AppendVote(ctx, candidateID, receipt.vote()); err != nil {
		// Release the claim so the voter can still vote for a valid candidate.
		_ = l.users.ClearVoted(ctx, voterID)
		return Receipt{}, err
	}
	return receipt, nil
}

func newReceipt(voterID, candidateID string, at time.Time) Receipt {
	return Receipt{
		ID:          ksuid.New().String(),
		VoterID:     voterID,
		CandidateID: candidateID,
		VotedAt:     at.UTC(),
	}
}

func (r Receipt) vote() ballot.Vote {
	return ballot.Vote{ID: r.ID, VoterID: r.VoterID, VotedAt: r.VotedAt}
}

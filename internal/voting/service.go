package voting

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/votewise/votewise/internal/ballot"
	"github.com/votewise/votewise/internal/identity"
	"github.com/votewise/votewise/internal/ledger"
	"github.com/votewise/votewise/internal/metrics"
	"github.com/votewise/votewise/internal/notification"
)

// Rejection reasons recorded on votewise_vote_rejections_total.
const (
	ReasonVoterNotFound     = "voter_not_found"
	ReasonAlreadyVoted      = "already_voted"
	ReasonCandidateNotFound = "candidate_not_found"
	ReasonError             = "error"
)

// Service casts votes.
type Service struct {
	users      identity.Repository
	candidates ballot.Repository
	ledger     ledger.Ledger
	notifier   notification.Notifier
	metrics    *metrics.Metrics
	logger     *slog.Logger
	now        func() time.Time
}

// NewService wires the voting operation. notifier, m and logger may be nil.
func NewService(users identity.Repository, candidates ballot.Repository, l ledger.Ledger, notifier notification.Notifier, m *metrics.Metrics, logger *slog.Logger) *Service {
	return &Service{
		users:      users,
		candidates: candidates,
		ledger:     l,
		notifier:   notifier,
		metrics:    m,
		logger:     logger,
		now:        time.Now,
	}
}

// CastVote records one vote for voterID. The reads up front only produce
// precise errors early; the at-most-once guarantee comes from the ledger's
// conditional write, which reports ErrAlreadyVoted to the loser of a race.
func (s *Service) CastVote(ctx context.Context, voterID, candidateID string) (ledger.Receipt, error) {
	receipt, err := s.castVote(ctx, voterID, candidateID)
	if err != nil {
		s.metrics.VoteRejected(reason(err))
		return ledger.Receipt{}, err
	}
	s.metrics.VoteCast()
	if s.logger != nil {
		s.logger.InfoContext(ctx, "vote recorded",
			slog.String("receipt_id", receipt.ID),
			slog.String("voter_id", voterID),
			slog.String("candidate_id", candidateID),
		)
	}
	if s.notifier != nil {
		_ = s.notifier.Send(ctx, notification.Message{
			Kind:        notification.KindVoteCast,
			Destination: voterID,
			Body:        "Your vote has been recorded with receipt " + receipt.ID,
		})
	}
	return receipt, nil
}

func (s *Service) castVote(ctx context.Context, voterID, candidateID string) (ledger.Receipt, error) {
	voter, err := s.users.FindByID(ctx, voterID)
	if err != nil {
		return ledger.Receipt{}, err
	}
	if voter.IsVoted {
		return ledger.Receipt{}, identity.ErrAlreadyVoted
	}
	if _, err := s.candidates.FindByID(ctx, candidateID); err != nil {
		return ledger.Receipt{}, err
	}
	return s.ledger.Record(ctx, voterID, candidateID, s.now())
}

func reason(err error) string {
	switch {
	case errors.Is(err, identity.ErrUserNotFound):
		return ReasonVoterNotFound
	case errors.Is(err, identity.ErrAlreadyVoted):
		return ReasonAlreadyVoted
	case errors.Is(err, ballot.ErrCandidateNotFound):
		return ReasonCandidateNotFound
	default:
		return ReasonError
	}
}

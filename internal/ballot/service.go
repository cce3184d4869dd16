package ballot

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/votewise/votewise/internal/identity"
	"github.com/votewise/votewise/internal/validation"
)

// UserDirectory is the part of the credential store the ballot reports need.
type UserDirectory interface {
	FindByID(ctx context.Context, id string) (identity.User, error)
	CountAll(ctx context.Context) (int64, error)
}

// Service manages candidates and the tally views.
type Service struct {
	repo  Repository
	users UserDirectory
}

// NewService creates a new ballot service.
func NewService(repo Repository, users UserDirectory) *Service {
	return &Service{repo: repo, users: users}
}

// Create adds a candidate with an empty ledger.
func (s *Service) Create(ctx context.Context, in CandidateInput) (Candidate, error) {
	in = normalize(in)
	if err := validation.Struct(in); err != nil {
		return Candidate{}, err
	}
	now := time.Now().UTC()
	c := Candidate{
		ID:        uuid.New().String(),
		Name:      in.Name,
		Party:     in.Party,
		Age:       in.Age,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.repo.Create(ctx, c); err != nil {
		return Candidate{}, err
	}
	return c, nil
}

// Update replaces the candidate's name, party and age.
func (s *Service) Update(ctx context.Context, id string, in CandidateInput) (Candidate, error) {
	in = normalize(in)
	if err := validation.Struct(in); err != nil {
		return Candidate{}, err
	}
	return s.repo.Update(ctx, id, in)
}

// Delete removes a candidate and its ledger.
func (s *Service) Delete(ctx context.Context, id string) error {
	return s.repo.Delete(ctx, id)
}

// Get returns one candidate.
func (s *Service) Get(ctx context.Context, id string) (Candidate, error) {
	return s.repo.FindByID(ctx, id)
}

// List returns candidates in insertion order.
func (s *Service) List(ctx context.Context) ([]Candidate, error) {
	return s.repo.FindAll(ctx, SortCreated)
}

// ListResults returns the tally ordered by descending vote count.
// Percentages are 0 when no votes have been cast.
func (s *Service) ListResults(ctx context.Context) (Results, error) {
	candidates, err := s.repo.FindAll(ctx, SortByVotes)
	if err != nil {
		return Results{}, err
	}
	return Tally(candidates), nil
}

// Tally computes totals and percentages for candidates, keeping their order.
func Tally(candidates []Candidate) Results {
	res := Results{Candidates: make([]Result, 0, len(candidates))}
	for _, c := range candidates {
		res.TotalVotes += c.VoteCount
	}
	for _, c := range candidates {
		row := Result{ID: c.ID, Name: c.Name, Party: c.Party, Votes: c.VoteCount}
		if res.TotalVotes > 0 {
			row.Percent = float64(c.VoteCount) / float64(res.TotalVotes) * 100
		}
		res.Candidates = append(res.Candidates, row)
	}
	return res
}

// Dashboard returns the admin overview counters.
func (s *Service) Dashboard(ctx context.Context) (Dashboard, error) {
	users, err := s.users.CountAll(ctx)
	if err != nil {
		return Dashboard{}, err
	}
	candidates, err := s.repo.Count(ctx)
	if err != nil {
		return Dashboard{}, err
	}
	votes, err := s.repo.TotalVotes(ctx)
	if err != nil {
		return Dashboard{}, err
	}
	return Dashboard{TotalUsers: users, TotalCandidates: candidates, TotalVotes: votes}, nil
}

// VoteLogs returns every ledger, candidates sorted by name, each vote joined
// with the voter's name, email and mobile.
func (s *Service) VoteLogs(ctx context.Context) ([]VoteLog, error) {
	candidates, err := s.repo.FindAll(ctx, SortByName)
	if err != nil {
		return nil, err
	}
	voters := make(map[string]identity.User)
	logs := make([]VoteLog, 0, len(candidates))
	for _, c := range candidates {
		entry := VoteLog{CandidateID: c.ID, Name: c.Name, Party: c.Party, VoteCount: c.VoteCount, Votes: make([]VoteLogEntry, 0, len(c.Votes))}
		for _, v := range c.Votes {
			voter, ok := voters[v.VoterID]
			if !ok {
				voter, err = s.users.FindByID(ctx, v.VoterID)
				if err != nil && !errors.Is(err, identity.ErrUserNotFound) {
					return nil, err
				}
				voters[v.VoterID] = voter
			}
			entry.Votes = append(entry.Votes, VoteLogEntry{
				VoteID:     v.ID,
				VoterID:    v.VoterID,
				VoterName:  voter.Name,
				VoterEmail: voter.Email,
				Mobile:     voter.Mobile,
				VotedAt:    v.VotedAt,
			})
		}
		logs = append(logs, entry)
	}
	return logs, nil
}

func normalize(in CandidateInput) CandidateInput {
	in.Name = strings.TrimSpace(in.Name)
	in.Party = strings.TrimSpace(in.Party)
	return in
}

package ballot

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryRepository is an in-memory candidate store.
type MemoryRepository struct {
	mu         sync.RWMutex
	candidates map[string]Candidate
	seq        map[string]int
	next       int
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{candidates: make(map[string]Candidate), seq: make(map[string]int)}
}

func (r *MemoryRepository) FindAll(_ context.Context, order SortOrder) ([]Candidate, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Candidate, 0, len(r.candidates))
	for _, c := range r.candidates {
		out = append(out, clone(c))
	}
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		switch order {
		case SortByName:
			if a.Name != b.Name {
				return a.Name < b.Name
			}
		case SortByVotes:
			if a.VoteCount != b.VoteCount {
				return a.VoteCount > b.VoteCount
			}
			if a.Name != b.Name {
				return a.Name < b.Name
			}
		}
		return r.seq[a.ID] < r.seq[b.ID]
	})
	return out, nil
}

func (r *MemoryRepository) FindByID(_ context.Context, id string) (Candidate, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.candidates[id]
	if !ok {
		return Candidate{}, ErrCandidateNotFound
	}
	return clone(c), nil
}

func (r *MemoryRepository) Create(_ context.Context, c Candidate) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c.Votes = nil
	c.VoteCount = 0
	r.candidates[c.ID] = c
	r.seq[c.ID] = r.next
	r.next++
	return nil
}

func (r *MemoryRepository) Update(_ context.Context, id string, in CandidateInput) (Candidate, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.candidates[id]
	if !ok {
		return Candidate{}, ErrCandidateNotFound
	}
	c.Name, c.Party, c.Age = in.Name, in.Party, in.Age
	c.UpdatedAt = time.Now().UTC()
	r.candidates[id] = c
	return clone(c), nil
}

func (r *MemoryRepository) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.candidates[id]; !ok {
		return ErrCandidateNotFound
	}
	delete(r.candidates, id)
	delete(r.seq, id)
	return nil
}

func (r *MemoryRepository) Count(_ context.Context) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return int64(len(r.candidates)), nil
}

func (r *MemoryRepository) TotalVotes(_ context.Context) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var total int64
	for _, c := range r.candidates {
		total += c.VoteCount
	}
	return total, nil
}

func (r *MemoryRepository) AppendVote(_ context.Context, candidateID string, vote Vote) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.candidates[candidateID]
	if !ok {
		return ErrCandidateNotFound
	}
	c.Votes = append(c.Votes, vote)
	c.VoteCount++
	c.UpdatedAt = time.Now().UTC()
	r.candidates[candidateID] = c
	return nil
}

func clone(c Candidate) Candidate {
	if c.Votes != nil {
		c.Votes = append([]Vote(nil), c.Votes...)
	}
	return c
}

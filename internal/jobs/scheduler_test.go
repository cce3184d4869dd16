package jobs

import (
	"context"
	"errors"
	"testing"

	"github.com/votewise/votewise/internal/ballot"
	"github.com/votewise/votewise/internal/logging"
)

type countingPruner struct{ calls int }

func (p *countingPruner) Prune() int {
	p.calls++
	return 1
}

type fakeStats struct {
	err   error
	calls int
}

func (f *fakeStats) Dashboard(context.Context) (ballot.Dashboard, error) {
	f.calls++
	return ballot.Dashboard{TotalUsers: 3, TotalCandidates: 2, TotalVotes: 1}, f.err
}

func TestSchedulerRegistersConfiguredJobs(t *testing.T) {
	s := NewScheduler(&countingPruner{}, &fakeStats{}, logging.Discard())
	if err := s.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer s.Stop(context.Background())
	if got := len(s.cron.Entries()); got != 2 {
		t.Fatalf("expected 2 jobs, got %d", got)
	}

	empty := NewScheduler(nil, nil, logging.Discard())
	if err := empty.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer empty.Stop(context.Background())
	if got := len(empty.cron.Entries()); got != 0 {
		t.Fatalf("expected no jobs, got %d", got)
	}
}

func TestJobsRunAgainstDependencies(t *testing.T) {
	pruner := &countingPruner{}
	stats := &fakeStats{}
	s := NewScheduler(pruner, stats, logging.Discard())

	s.pruneRevocations()
	s.logTally()
	stats.err = errors.New("store down")
	s.logTally()

	if pruner.calls != 1 || stats.calls != 2 {
		t.Fatalf("unexpected calls: prune=%d stats=%d", pruner.calls, stats.calls)
	}
}

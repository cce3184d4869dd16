package jobs

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/votewise/votewise/internal/ballot"
)

// Pruner drops expired entries and reports how many were removed.
type Pruner interface {
	Prune() int
}

// StatsSource supplies the counters logged by the hourly tally snapshot.
type StatsSource interface {
	Dashboard(ctx context.Context) (ballot.Dashboard, error)
}

// Scheduler runs periodic housekeeping.
type Scheduler struct {
	cron   *cron.Cron
	pruner Pruner
	stats  StatsSource
	log    *slog.Logger
}

// NewScheduler builds a scheduler. pruner and stats may be nil, in which
// case the matching job is not registered.
func NewScheduler(pruner Pruner, stats StatsSource, log *slog.Logger) *Scheduler {
	return &Scheduler{
		cron:   cron.New(cron.WithChain(cron.Recover(cron.DefaultLogger))),
		pruner: pruner,
		stats:  stats,
		log:    log,
	}
}

// Start registers the jobs and starts the cron loop.
func (s *Scheduler) Start() error {
	if s.pruner != nil {
		if _, err := s.cron.AddFunc("@every 1m", s.pruneRevocations); err != nil {
			return err
		}
	}
	if s.stats != nil {
		if _, err := s.cron.AddFunc("@hourly", s.logTally); err != nil {
			return err
		}
	}
	s.cron.Start()
	return nil
}

// Stop halts the scheduler and waits for running jobs up to ctx's deadline.
func (s *Scheduler) Stop(ctx context.Context) {
	done := s.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
	}
}

func (s *Scheduler) pruneRevocations() {
	if n := s.pruner.Prune(); n > 0 {
		s.log.Debug("pruned revoked tokens", slog.Int("count", n))
	}
}

func (s *Scheduler) logTally() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	stats, err := s.stats.Dashboard(ctx)
	if err != nil {
		s.log.Error("tally snapshot failed", slog.Any("error", err))
		return
	}
	s.log.Info("tally snapshot",
		slog.Int64("users", stats.TotalUsers),
		slog.Int64("candidates", stats.TotalCandidates),
		slog.Int64("votes", stats.TotalVotes),
	)
}

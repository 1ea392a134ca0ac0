package service

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
	"lecture-gen/pkg/metrics"
	"lecture-gen/repository"
)

// Sweeper resets jobs that have sat in a running status for longer than
// staleAfter, such as runs lost to a crashed worker.
type Sweeper struct {
	repo       repository.JobRepository
	cron       *cron.Cron
	schedule   string
	staleAfter time.Duration
	metrics    *metrics.Metrics
	group      singleflight.Group
	now        func() time.Time
}

func NewSweeper(repo repository.JobRepository, c *cron.Cron, schedule string, staleAfter time.Duration, m *metrics.Metrics) *Sweeper {
	return &Sweeper{
		repo:       repo,
		cron:       c,
		schedule:   schedule,
		staleAfter: staleAfter,
		metrics:    m,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// Schedule registers the sweep with the cron engine. Overlapping ticks
// collapse into the sweep already running.
func (s *Sweeper) Schedule(ctx context.Context) error {
	_, err := s.cron.AddFunc(s.schedule, func() {
		if _, err := s.Sweep(ctx); err != nil {
			zerolog.Ctx(ctx).Error().Err(err).Msg("stale job sweep failed")
		}
	})
	return err
}

func (s *Sweeper) Sweep(ctx context.Context) (int64, error) {
	v, err, _ := s.group.Do("sweep", func() (any, error) {
		n, err := s.repo.ResetStaleJobs(ctx, s.now().Add(-s.staleAfter))
		if err != nil {
			return int64(0), err
		}
		s.metrics.StaleJobsReset(n)
		if n > 0 {
			zerolog.Ctx(ctx).Warn().Int64("jobs", n).Dur("stale_after", s.staleAfter).Msg("reset stale jobs")
		}
		return n, nil
	})
	if err != nil {
		return 0, err
	}
	return v.(int64), nil
}

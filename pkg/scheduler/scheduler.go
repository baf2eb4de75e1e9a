// Package scheduler implements ticker-driven dispatch of the pipeline's
// named jobs (collect, aggregate-hour, aggregate-day, aggregate-month,
// summarize), each running to completion independently with retry and
// exponential backoff on failure — the same ticker+select+stop-channel
// shape tinyobs uses to run its compaction job.
package scheduler

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/kb9wtx/spotlake/pkg/metrics"
)

// Job is a named, retryable unit of work run on a fixed interval.
type Job struct {
	Name     string
	Interval time.Duration
	Run      func(ctx context.Context) error

	// MaxRetries and BaseDelay configure the exponential backoff applied
	// within a single tick when Run fails. A zero MaxRetries disables
	// retry — the tick simply fails and the next scheduled tick tries
	// again, matching the Collector's "no retry within a tick" policy.
	MaxRetries int
	BaseDelay  time.Duration
}

// Scheduler runs a set of Jobs concurrently, each on its own ticker, until
// Stop is called.
type Scheduler struct {
	jobs    []Job
	log     *zap.Logger
	metrics *metrics.Metrics
	stop    chan struct{}
	wg      sync.WaitGroup
}

// New creates a Scheduler for the given jobs. log defaults to zap.L() when
// nil. m may be nil to disable instrumentation.
func New(jobs []Job, log *zap.Logger, m *metrics.Metrics) *Scheduler {
	if log == nil {
		log = zap.L()
	}
	return &Scheduler{jobs: jobs, log: log, metrics: m, stop: make(chan struct{})}
}

// Start launches one goroutine per job and returns immediately.
func (s *Scheduler) Start() {
	for _, job := range s.jobs {
		s.wg.Add(1)
		go s.runJob(job)
	}
}

// Stop signals every job goroutine to exit and waits for them to finish.
func (s *Scheduler) Stop() {
	close(s.stop)
	s.wg.Wait()
}

func (s *Scheduler) runJob(job Job) {
	defer s.wg.Done()

	ticker := time.NewTicker(job.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.runWithRetry(job)
		case <-s.stop:
			return
		}
	}
}

// runWithRetry runs job.Run once, retrying up to job.MaxRetries times with
// exponential backoff (BaseDelay, 2×BaseDelay, 4×BaseDelay, …) on failure.
func (s *Scheduler) runWithRetry(job Job) {
	log := s.log.With(zap.String("job", job.Name))

	for attempt := 0; attempt <= job.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := job.BaseDelay * time.Duration(1<<(attempt-1))
			log.Warn("retrying job", zap.Int("attempt", attempt+1), zap.Duration("delay", delay))
			if s.metrics != nil {
				s.metrics.SchedulerJobRetries.WithLabelValues(job.Name).Inc()
			}
			select {
			case <-time.After(delay):
			case <-s.stop:
				return
			}
		}

		start := time.Now()
		ctx, cancel := context.WithTimeout(context.Background(), job.Interval)
		err := job.Run(ctx)
		cancel()

		if err == nil {
			log.Info("job completed", zap.Duration("elapsed", time.Since(start)))
			return
		}
		log.Error("job failed", zap.Int("attempt", attempt+1), zap.Error(err))
	}

	log.Error("job exhausted retries, will retry on next scheduled tick")
}

// PreviousHour truncates t down to the start of the previous hour, the
// bucket the hourly job aggregates.
func PreviousHour(t time.Time) time.Time {
	t = t.UTC()
	hourStart := time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), 0, 0, 0, time.UTC)
	return hourStart.Add(-time.Hour)
}

// PreviousDay truncates t down to the start of the previous day, the bucket
// the daily job aggregates.
func PreviousDay(t time.Time) time.Time {
	t = t.UTC()
	dayStart := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	return dayStart.AddDate(0, 0, -1)
}

// PreviousMonth truncates t down to the start of the previous month, the
// bucket the monthly job aggregates on the 1st of each month.
func PreviousMonth(t time.Time) time.Time {
	t = t.UTC()
	monthStart := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
	return monthStart.AddDate(0, -1, 0)
}

// Package housekeeping runs periodic maintenance: expired session sweeps and
// the pending-review backlog gauge.
package housekeeping

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/geocoder89/eduloan/internal/domain/application"
	"github.com/geocoder89/eduloan/internal/observability"
	"github.com/robfig/cron/v3"
)

const (
	JobSweepSessions  = "sweep_sessions"
	JobPendingBacklog = "pending_backlog"
)

type SessionSweeper interface {
	SweepExpired(ctx context.Context) (int, error)
}

type StatsSource interface {
	Stats(ctx context.Context, counselorID *string) (application.Stats, error)
}

// Metrics receives job outcomes. *observability.Prom satisfies it.
type Metrics interface {
	ObserveJob(job string, d time.Duration, err error)
	AddSessionsSwept(n int)
	SetPendingBacklog(n int)
}

type Config struct {
	SweepSchedule   string
	BacklogSchedule string
	JobTimeout      time.Duration
}

type job struct {
	schedule string
	run      func(ctx context.Context) error
	stats    *observability.JobMetrics
}

type Scheduler struct {
	cron    *cron.Cron
	log     *slog.Logger
	metrics Metrics
	timeout time.Duration

	mu   sync.Mutex
	jobs map[string]*job
}

func New(cfg Config, sessions SessionSweeper, stats StatsSource, metrics Metrics, log *slog.Logger) (*Scheduler, error) {
	if cfg.SweepSchedule == "" {
		cfg.SweepSchedule = "@every 5m"
	}
	if cfg.BacklogSchedule == "" {
		cfg.BacklogSchedule = "@every 1m"
	}
	if cfg.JobTimeout <= 0 {
		cfg.JobTimeout = 30 * time.Second
	}
	if log == nil {
		log = slog.Default()
	}

	s := &Scheduler{
		cron:    cron.New(cron.WithChain(cron.Recover(cronLogger{log}), cron.SkipIfStillRunning(cronLogger{log}))),
		log:     log,
		metrics: metrics,
		timeout: cfg.JobTimeout,
		jobs:    make(map[string]*job),
	}

	if err := s.register(JobSweepSessions, cfg.SweepSchedule, func(ctx context.Context) error {
		n, err := sessions.SweepExpired(ctx)
		if err != nil {
			return err
		}
		if s.metrics != nil {
			s.metrics.AddSessionsSwept(n)
		}
		if n > 0 {
			s.log.InfoContext(ctx, "expired sessions swept", "count", n)
		}
		return nil
	}); err != nil {
		return nil, err
	}

	if err := s.register(JobPendingBacklog, cfg.BacklogSchedule, func(ctx context.Context) error {
		st, err := stats.Stats(ctx, nil)
		if err != nil {
			return err
		}
		if s.metrics != nil {
			s.metrics.SetPendingBacklog(st.Pending)
		}
		s.log.DebugContext(ctx, "pending backlog refreshed", "pending", st.Pending)
		return nil
	}); err != nil {
		return nil, err
	}

	return s, nil
}

func (s *Scheduler) register(name, schedule string, run func(ctx context.Context) error) error {
	j := &job{schedule: schedule, run: run, stats: observability.NewJobMetrics()}

	if _, err := s.cron.AddFunc(schedule, func() { _ = s.execute(context.Background(), name, j) }); err != nil {
		return fmt.Errorf("schedule %s (%q): %w", name, schedule, err)
	}

	s.mu.Lock()
	s.jobs[name] = j
	s.mu.Unlock()
	return nil
}

func (s *Scheduler) execute(ctx context.Context, name string, j *job) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	start := time.Now()
	err := j.run(ctx)
	d := time.Since(start)

	j.stats.Observe(d, err, start)
	if s.metrics != nil {
		s.metrics.ObserveJob(name, d, err)
	}
	if err != nil {
		s.log.ErrorContext(ctx, "housekeeping job failed", "job", name, "err", err)
	}
	return err
}

// RunNow executes one job synchronously, outside its schedule.
func (s *Scheduler) RunNow(ctx context.Context, name string) error {
	s.mu.Lock()
	j, ok := s.jobs[name]
	s.mu.Unlock()

	if !ok {
		return fmt.Errorf("unknown housekeeping job %q", name)
	}
	return s.execute(ctx, name, j)
}

func (s *Scheduler) Start() {
	s.cron.Start()
	s.log.Info("housekeeping started", "jobs", s.Jobs())
}

// Stop halts scheduling and waits for running jobs until ctx expires.
func (s *Scheduler) Stop(ctx context.Context) error {
	done := s.cron.Stop()
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Scheduler) Jobs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]string, 0, len(s.jobs))
	for name := range s.jobs {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Snapshot reports per-job run statistics.
func (s *Scheduler) Snapshot() map[string]observability.JobMetricsSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[string]observability.JobMetricsSnapshot, len(s.jobs))
	for name, j := range s.jobs {
		out[name] = j.stats.Snapshot()
	}
	return out
}

// cronLogger adapts slog to cron.Logger.
type cronLogger struct{ log *slog.Logger }

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Error("cron: "+msg, append([]interface{}{"err", err}, keysAndValues...)...)
}

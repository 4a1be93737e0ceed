package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"dexalert/internal/metrics"
	"dexalert/internal/scan"
)

// Default schedules, evaluated in UTC
const (
	DefaultScanSchedule    = "*/2 * * * *"
	DefaultSummarySchedule = "0 0 * * *"
)

// ErrScanInProgress is returned when a scan is requested while one is running
var ErrScanInProgress = errors.New("scan already in progress")

// Jobs is the work the scheduler triggers
type Jobs interface {
	ScanAll(ctx context.Context) (scan.Result, error)
	DailySummary(ctx context.Context) (int, error)
}

// Scheduler runs the periodic scan and the daily summary. At most one scan
// runs at a time whether it was started by a tick or by RunNow.
type Scheduler struct {
	cron        *cron.Cron
	jobs        Jobs
	scanSpec    string
	summarySpec string
	metrics     *metrics.Registry
	inFlight    atomic.Bool
	ctx         context.Context
	cancel      context.CancelFunc
}

// New creates a scheduler. Empty specs fall back to the defaults.
func New(jobs Jobs, scanSpec, summarySpec string, m *metrics.Registry) *Scheduler {
	if scanSpec == "" {
		scanSpec = DefaultScanSchedule
	}
	if summarySpec == "" {
		summarySpec = DefaultSummarySchedule
	}

	logger := cronLogger{log.With().Str("component", "scheduler").Logger()}
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cron: cron.New(
			cron.WithLocation(time.UTC),
			cron.WithLogger(logger),
			cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
		),
		jobs:        jobs,
		scanSpec:    scanSpec,
		summarySpec: summarySpec,
		metrics:     m,
		ctx:         ctx,
		cancel:      cancel,
	}
}

// Start registers the jobs and starts ticking
func (s *Scheduler) Start() error {
	if _, err := s.cron.AddFunc(s.scanSpec, s.tickScan); err != nil {
		return fmt.Errorf("invalid scan schedule %q: %w", s.scanSpec, err)
	}
	if _, err := s.cron.AddFunc(s.summarySpec, s.tickSummary); err != nil {
		return fmt.Errorf("invalid summary schedule %q: %w", s.summarySpec, err)
	}

	s.cron.Start()
	log.Info().Str("component", "scheduler").
		Str("scan", s.scanSpec).
		Str("summary", s.summarySpec).
		Msg("scheduler started")
	return nil
}

// Stop halts ticking, cancels running jobs and waits for them until ctx is done
func (s *Scheduler) Stop(ctx context.Context) error {
	done := s.cron.Stop()
	s.cancel()

	select {
	case <-done.Done():
		log.Info().Str("component", "scheduler").Msg("scheduler stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RunNow runs a scan immediately unless one is already running
func (s *Scheduler) RunNow(ctx context.Context) (scan.Result, error) {
	if !s.inFlight.CompareAndSwap(false, true) {
		s.metrics.RecordSkippedScan()
		return scan.Result{}, ErrScanInProgress
	}
	defer s.inFlight.Store(false)

	return s.jobs.ScanAll(ctx)
}

// Running reports whether a scan is in progress
func (s *Scheduler) Running() bool {
	return s.inFlight.Load()
}

func (s *Scheduler) tickScan() {
	if _, err := s.RunNow(s.ctx); err != nil {
		if errors.Is(err, ErrScanInProgress) {
			log.Warn().Str("component", "scheduler").Msg("previous scan still running, skipping tick")
			return
		}
		log.Error().Err(err).Str("component", "scheduler").Msg("scheduled scan failed")
	}
}

func (s *Scheduler) tickSummary() {
	if _, err := s.jobs.DailySummary(s.ctx); err != nil {
		log.Error().Err(err).Str("component", "scheduler").Msg("daily summary failed")
	}
}

// cronLogger adapts zerolog to cron's logger
type cronLogger struct {
	logger zerolog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug().Fields(keysAndValues).Msg(msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error().Err(err).Fields(keysAndValues).Msg(msg)
}

// Package scheduler runs the periodic housekeeping jobs: purging expired
// OTP codes and pruning old read notifications.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// Job is one unit of periodic work. Its returned count is logged.
type Job func(ctx context.Context) (int, error)

// Scheduler wraps a cron runner. Overlapping runs of one job are skipped and
// a panicking job is recovered and logged.
type Scheduler struct {
	cron    *cron.Cron
	log     zerolog.Logger
	ctx     context.Context
	cancel  context.CancelFunc
	timeout time.Duration
}

func New(log zerolog.Logger) *Scheduler {
	cl := cronLogger{log: log}
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cron: cron.New(
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
		log:     log,
		ctx:     ctx,
		cancel:  cancel,
		timeout: 5 * time.Minute,
	}
}

// Add registers job under name on a standard cron spec or a descriptor
// such as "@every 5m".
func (s *Scheduler) Add(name, spec string, job Job) error {
	_, err := s.cron.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(s.ctx, s.timeout)
		defer cancel()

		start := time.Now()
		n, err := job(ctx)
		if err != nil {
			s.log.Error().Err(err).Str("job", name).Msg("scheduled job failed")
			return
		}
		s.log.Debug().
			Str("job", name).
			Int("affected", n).
			Dur("duration", time.Since(start)).
			Msg("scheduled job finished")
	})
	if err != nil {
		return fmt.Errorf("scheduler: adding %s (%q): %w", name, spec, err)
	}
	return nil
}

func (s *Scheduler) Start() {
	s.log.Info().Int("jobs", len(s.cron.Entries())).Msg("scheduler started")
	s.cron.Start()
}

// Stop prevents new runs and waits for running jobs until ctx expires, at
// which point their contexts are canceled.
func (s *Scheduler) Stop(ctx context.Context) {
	done := s.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
		s.log.Warn().Msg("scheduler: jobs still running at shutdown")
	}
	s.cancel()
}

// cronLogger routes cron's internal logging to zerolog.
type cronLogger struct {
	log zerolog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Debug().Fields(keysAndValues).Msg("cron: " + msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Error().Err(err).Fields(keysAndValues).Msg("cron: " + msg)
}

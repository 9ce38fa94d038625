// Package job runs periodic maintenance on a cron schedule.
package job

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/akylbek/payment-system/acquirer-gateway/internal/telemetry"
)

const defaultJobTimeout = 2 * time.Minute

// Runnable is a job triggered by the Scheduler.
type Runnable interface {
	Name() string
	Run(ctx context.Context) error
}

type Scheduler struct {
	cron    *cron.Cron
	mu      sync.Mutex
	started bool
}

// NewScheduler accepts standard cron specs, an optional seconds field and
// descriptors such as "@every 5m".
func NewScheduler() *Scheduler {
	parser := cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	return &Scheduler{cron: cron.New(cron.WithParser(parser))}
}

func (s *Scheduler) Register(spec string, runnable Runnable) (cron.EntryID, error) {
	if runnable == nil {
		return 0, errors.New("scheduler: runnable is required")
	}
	if spec == "" {
		return 0, errors.New("scheduler: spec is required")
	}
	id, err := s.cron.AddFunc(spec, s.wrap(runnable))
	if err != nil {
		return 0, err
	}
	telemetry.Logger.Info("Job registered", zap.String("job", runnable.Name()), zap.String("spec", spec))
	return id, nil
}

func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return
	}
	s.cron.Start()
	s.started = true
}

// Stop halts scheduling; the returned context is done once running jobs finish.
func (s *Scheduler) Stop() context.Context {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.started {
		return context.Background()
	}
	s.started = false
	return s.cron.Stop()
}

func (s *Scheduler) wrap(runnable Runnable) func() {
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), defaultJobTimeout)
		defer cancel()

		start := time.Now()
		if err := runnable.Run(ctx); err != nil {
			telemetry.Logger.Error("Job failed",
				zap.String("job", runnable.Name()),
				zap.Duration("elapsed", time.Since(start)),
				zap.Error(err),
			)
			return
		}
		telemetry.Logger.Debug("Job completed", zap.String("job", runnable.Name()), zap.Duration("elapsed", time.Since(start)))
	}
}

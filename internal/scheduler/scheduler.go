// Package scheduler runs the batch jobs on cron specs.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Job is a named batch run on a five-field cron spec.
type Job struct {
	Name string
	Spec string
	Run  func(ctx context.Context) error
}

// Scheduler runs jobs one at a time. A tick that fires while any job is
// still running is skipped.
type Scheduler struct {
	cron    *cron.Cron
	parser  cron.Parser
	logger  *zap.Logger
	running sync.Mutex
	ctx     context.Context
}

// New creates a scheduler whose jobs receive ctx.
func New(ctx context.Context, logger *zap.Logger) *Scheduler {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	c := cron.New(
		cron.WithParser(parser),
		cron.WithChain(cron.Recover(cronLogger{logger.Sugar()})),
	)
	return &Scheduler{cron: c, parser: parser, logger: logger, ctx: ctx}
}

// Add registers job. An empty spec leaves the job disabled.
func (s *Scheduler) Add(job Job) error {
	if job.Spec == "" {
		s.logger.Info("Job disabled", zap.String("job", job.Name))
		return nil
	}
	if _, err := s.parser.Parse(job.Spec); err != nil {
		return fmt.Errorf("invalid schedule for %s: %w", job.Name, err)
	}
	if _, err := s.cron.AddFunc(job.Spec, s.wrap(job)); err != nil {
		return fmt.Errorf("failed to schedule %s: %w", job.Name, err)
	}
	s.logger.Info("Job scheduled", zap.String("job", job.Name), zap.String("spec", job.Spec))
	return nil
}

func (s *Scheduler) wrap(job Job) func() {
	return func() {
		if !s.running.TryLock() {
			s.logger.Warn("Skipping run, a batch is still in progress", zap.String("job", job.Name))
			return
		}
		defer s.running.Unlock()

		start := time.Now()
		s.logger.Info("Job started", zap.String("job", job.Name))
		if err := job.Run(s.ctx); err != nil {
			s.logger.Error("Job failed", zap.String("job", job.Name), zap.Duration("elapsed", time.Since(start)), zap.Error(err))
			return
		}
		s.logger.Info("Job finished", zap.String("job", job.Name), zap.Duration("elapsed", time.Since(start)))
	}
}

// Run starts the cron loop and blocks until the scheduler's context is
// done, then waits for a running job to return.
func (s *Scheduler) Run() {
	s.cron.Start()
	<-s.ctx.Done()
	s.logger.Info("Stopping scheduler")
	<-s.cron.Stop().Done()
}

// cronLogger adapts zap to cron's logger.
type cronLogger struct {
	l *zap.SugaredLogger
}

func (c cronLogger) Info(msg string, keysAndValues ...interface{}) {
	c.l.Debugw(msg, keysAndValues...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	c.l.Errorw(msg, append(keysAndValues, "error", err)...)
}

// Package scheduler runs the recurring alert and digest jobs on cron
// schedules. Jobs never overlap with themselves and never crash the
// process: panics are recovered and a slow run causes the next trigger
// to be skipped, not queued.
package scheduler

import (
	"context"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// ChatNotifier is the chat webhook surface consumed by jobs.
type ChatNotifier interface {
	SendMessage(ctx context.Context, title, text string) error
	SendHighScoreAlert(ctx context.Context, title string, score int, solicitation, deadline, link string) error
}

// EmailNotifier is the email surface consumed by jobs.
type EmailNotifier interface {
	SendMarkdown(to, subject, markdown string) error
}

// Scheduler wraps a cron runner with the job chain used by all jobs.
type Scheduler struct {
	cron   *cron.Cron
	logger *zap.Logger
}

// New creates a scheduler. Each registered job is wrapped so panics are
// recovered and overlapping runs are skipped.
func New(logger *zap.Logger) *Scheduler {
	cl := cronLogger{logger: logger}
	return &Scheduler{
		cron: cron.New(cron.WithChain(
			cron.SkipIfStillRunning(cl),
			cron.Recover(cl),
		)),
		logger: logger,
	}
}

// Add registers a job on a cron spec.
func (s *Scheduler) Add(spec string, job cron.Job) error {
	_, err := s.cron.AddJob(spec, job)
	return err
}

// Start begins running jobs in the background.
func (s *Scheduler) Start() {
	s.logger.Info("scheduler started")
	s.cron.Start()
}

// Stop stops scheduling new runs and returns a context that completes
// when in-flight jobs finish.
func (s *Scheduler) Stop() context.Context {
	s.logger.Info("scheduler stopping")
	return s.cron.Stop()
}

// cronLogger adapts zap to the cron logging interface.
type cronLogger struct {
	logger *zap.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Sugar().Infow("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Sugar().Errorw("cron: "+msg, append(keysAndValues, "error", err)...)
}

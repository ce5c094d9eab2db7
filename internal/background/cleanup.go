package background

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/BradenHooton/voice-membership/internal/metrics"
	"github.com/robfig/cron/v3"
)

// Purger deletes rows that can no longer be used: spent or expired reset
// tokens, abandoned wizard sessions, revocations past the token lifetime.
type Purger interface {
	CleanupExpired(ctx context.Context) (int64, error)
}

// CleanupJob is one named purge.
type CleanupJob struct {
	Name   string
	Purger Purger
}

const cleanupTimeout = 30 * time.Second

// CleanupManager runs every purge on a cron schedule.
type CleanupManager struct {
	cron   *cron.Cron
	jobs   []CleanupJob
	logger *slog.Logger
	ctx    context.Context
	cancel context.CancelFunc
}

// NewCleanupManager parses spec ("@every 15m", "0 3 * * *", ...) and
// registers the jobs. Nothing runs until Start.
func NewCleanupManager(spec string, jobs []CleanupJob, logger *slog.Logger) (*CleanupManager, error) {
	ctx, cancel := context.WithCancel(context.Background())
	cm := &CleanupManager{
		cron: cron.New(cron.WithChain(
			cron.Recover(cronLogger{logger}),
			cron.SkipIfStillRunning(cronLogger{logger}),
		)),
		jobs:   jobs,
		logger: logger,
		ctx:    ctx,
		cancel: cancel,
	}

	if _, err := cm.cron.AddFunc(spec, cm.RunOnce); err != nil {
		cancel()
		return nil, fmt.Errorf("invalid cleanup schedule %q: %w", spec, err)
	}
	return cm, nil
}

// Start runs the purges once immediately and then on schedule.
func (cm *CleanupManager) Start() {
	go cm.RunOnce()
	cm.cron.Start()
}

// RunOnce runs every job in order. A failing job does not stop the others.
func (cm *CleanupManager) RunOnce() {
	for _, job := range cm.jobs {
		cm.run(job)
	}
}

func (cm *CleanupManager) run(job CleanupJob) {
	ctx, cancel := context.WithTimeout(cm.ctx, cleanupTimeout)
	defer cancel()

	rows, err := job.Purger.CleanupExpired(ctx)
	if err != nil {
		cm.logger.Error("cleanup job failed", slog.String("job", job.Name), slog.Any("error", err))
		return
	}

	metrics.CleanupRowsTotal.WithLabelValues(job.Name).Add(float64(rows))
	if rows > 0 {
		cm.logger.Info("cleanup job completed", slog.String("job", job.Name), slog.Int64("rows_deleted", rows))
	}
}

// Stop cancels running purges and waits for them to return.
func (cm *CleanupManager) Stop() {
	cm.cancel()
	<-cm.cron.Stop().Done()
	cm.logger.Info("cleanup manager stopped")
}

// cronLogger adapts slog to the logger cron's job wrappers expect.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error(msg, append(keysAndValues, "error", err)...)
}

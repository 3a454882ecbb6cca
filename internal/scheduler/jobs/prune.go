package jobs

import (
	"context"
	"time"

	"github.com/wonny/arbfilter/pkg/logger"
)

// RunPruner deletes stored runs older than a cutoff
type RunPruner interface {
	DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// PruneJob removes stored runs past the retention period
type PruneJob struct {
	store     RunPruner
	retention time.Duration
	schedule  string
	now       func() time.Time
	logger    *logger.Logger
}

// NewPruneJob creates a new prune job
func NewPruneJob(store RunPruner, retention time.Duration, schedule string, log *logger.Logger) *PruneJob {
	return &PruneJob{
		store:     store,
		retention: retention,
		schedule:  schedule,
		now:       time.Now,
		logger:    log,
	}
}

// Name returns the job name
func (j *PruneJob) Name() string {
	return "run_prune"
}

// Schedule returns the cron schedule
func (j *PruneJob) Schedule() string {
	return j.schedule
}

// Run deletes runs created before now - retention
func (j *PruneJob) Run(ctx context.Context) error {
	cutoff := j.now().Add(-j.retention)

	n, err := j.store.DeleteBefore(ctx, cutoff)
	if err != nil {
		return err
	}

	if n > 0 {
		j.logger.WithFields(map[string]interface{}{
			"removed": n,
			"cutoff":  cutoff,
		}).Info("Run prune completed")
	}
	return nil
}

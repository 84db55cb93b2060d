// Package cron holds the scheduled background jobs run by the worker binary.
package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/oskarlind/groceryledger-backend/internal/sourcefiles"
	"github.com/oskarlind/groceryledger-backend/pkg/logger"
	"github.com/oskarlind/groceryledger-backend/pkg/metrics"
)

const orphanSweepJobName = "orphan_source_file_sweep"

// OrphanSweepJob periodically deletes source files no receipt references,
// such as documents whose import failed to parse or receipts that were
// replaced from a newer upload.
type OrphanSweepJob struct {
	sources  sourcefiles.Registry
	interval time.Duration
	grace    time.Duration
	metrics  *metrics.CronJobMetrics
	logg     *logger.Logger
}

// NewOrphanSweepJob builds the sweep job. Metrics and logger may be nil in
// tests.
func NewOrphanSweepJob(
	sources sourcefiles.Registry,
	interval time.Duration,
	grace time.Duration,
	cronMetrics *metrics.CronJobMetrics,
	logg *logger.Logger,
) (*OrphanSweepJob, error) {
	if sources == nil {
		return nil, fmt.Errorf("source file registry required")
	}
	if interval <= 0 {
		interval = time.Hour
	}
	if grace <= 0 {
		grace = time.Hour
	}
	return &OrphanSweepJob{
		sources:  sources,
		interval: interval,
		grace:    grace,
		metrics:  cronMetrics,
		logg:     logg,
	}, nil
}

// Run blocks until ctx is done, executing the sweep on each tick.
func (j *OrphanSweepJob) Run(ctx context.Context) {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			j.RunOnce(ctx)
		}
	}
}

// RunOnce executes a single sweep and records its outcome.
func (j *OrphanSweepJob) RunOnce(ctx context.Context) {
	start := time.Now()
	removed, err := j.sources.SweepOrphans(ctx, j.grace)
	j.metrics.ObserveDuration(orphanSweepJobName, time.Since(start))

	if err != nil {
		j.metrics.IncFailure(orphanSweepJobName)
		if j.logg != nil {
			j.logg.Error(ctx, "orphan source file sweep failed", err)
		}
		return
	}

	j.metrics.IncSuccess(orphanSweepJobName)
	if j.logg != nil && removed > 0 {
		ctx = j.logg.WithField(ctx, "removed", removed)
		j.logg.Info(ctx, "orphan source files removed")
	}
}

package workflow

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/temporal"

	"encore.app/reports/model"
	"encore.app/reports/store"
	"encore.app/reports/store/jobs"
)

// StuckJob is the slice of a row the reconciler needs.
type StuckJob struct {
	IdempotencyKey string `json:"idempotency_key"`
	JobID          string `json:"job_id"`
}

// ActivityDependencies holds what the reconciliation activities call into.
type ActivityDependencies struct {
	Store   store.JobStore
	Queries jobs.Querier
}

var activityDeps *ActivityDependencies

// SetActivityDependencies wires the activities at service start.
func SetActivityDependencies(js store.JobStore, queries jobs.Querier) {
	activityDeps = &ActivityDependencies{Store: js, Queries: queries}
}

// ListStuckJobsActivity returns processing rows older than the deadline.
func ListStuckJobsActivity(ctx context.Context, params ReconcileParams) ([]StuckJob, error) {
	logger := activity.GetLogger(ctx)

	if activityDeps == nil || activityDeps.Queries == nil {
		logger.Error("Activity dependencies not set")
		return nil, temporal.NewApplicationError("activity dependencies not initialized", "DependencyError")
	}

	limit := params.BatchLimit
	if limit <= 0 {
		limit = 100
	}
	cutoff := time.Now().Add(-params.StuckAfter)

	rows, err := activityDeps.Queries.ListStuckReportJobs(ctx, jobs.ListStuckReportJobsParams{
		Status:    string(model.JobStatusProcessing),
		OlderThan: pgtype.Timestamptz{Time: cutoff, Valid: true},
		Limit:     limit,
	})
	if err != nil {
		logger.Error("Failed to list stuck report jobs", "error", err)
		return nil, err
	}

	stuck := make([]StuckJob, 0, len(rows))
	for _, row := range rows {
		stuck = append(stuck, StuckJob{IdempotencyKey: row.IdempotencyKey, JobID: row.JobID})
	}
	return stuck, nil
}

// FailStuckJobActivity transitions one abandoned row to failed. Losing the
// conditional update is benign: it means the real holder finished first.
func FailStuckJobActivity(ctx context.Context, job StuckJob) error {
	logger := activity.GetLogger(ctx)

	if activityDeps == nil || activityDeps.Store == nil {
		logger.Error("Activity dependencies not set")
		return temporal.NewApplicationError("activity dependencies not initialized", "DependencyError")
	}

	err := activityDeps.Store.Fail(ctx, job.IdempotencyKey, job.JobID, "generation timed out and was reconciled")
	if err != nil {
		if errors.Is(err, store.ErrStaleClaim) {
			logger.Info("Row reached a terminal state on its own", "jobID", job.JobID)
			return nil
		}
		logger.Error("Failed to fail stuck job", "jobID", job.JobID, "error", err)
		return err
	}

	logger.Info("Reconciled stuck job", "jobID", job.JobID)
	return nil
}

// Package workflow holds the Temporal workflow that reconciles report jobs
// stuck in processing. A claim-holder that crashed, or a store outage during
// Complete/Fail, leaves a row processing forever; pollers would never
// resolve without this pass.
package workflow

import (
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"
)

// ReconcileParams configures one reconciliation pass.
type ReconcileParams struct {
	// StuckAfter is how long a row may stay processing before it is
	// considered abandoned. Must be comfortably above the engine timeout.
	StuckAfter time.Duration `json:"stuck_after"`
	// BatchLimit caps how many rows one pass fails.
	BatchLimit int32 `json:"batch_limit"`
}

// ReconcileStuckJobs fails abandoned processing rows so their keys reach a
// terminal state. One pass per workflow execution; scheduling is the
// starter's concern.
func ReconcileStuckJobs(ctx workflow.Context, params ReconcileParams) (int, error) {
	logger := workflow.GetLogger(ctx)
	logger.Info("Starting stuck job reconciliation", "stuckAfter", params.StuckAfter, "batchLimit", params.BatchLimit)

	activityOptions := workflow.ActivityOptions{
		StartToCloseTimeout: time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:    2 * time.Second,
			BackoffCoefficient: 2.0,
			MaximumInterval:    15 * time.Second,
			MaximumAttempts:    5,
		},
	}
	activityCtx := workflow.WithActivityOptions(ctx, activityOptions)

	var stuck []StuckJob
	err := workflow.ExecuteActivity(activityCtx, ListStuckJobsActivity, params).Get(ctx, &stuck)
	if err != nil {
		logger.Error("Failed to list stuck jobs", "error", err)
		return 0, err
	}

	failed := 0
	for _, job := range stuck {
		err := workflow.ExecuteActivity(activityCtx, FailStuckJobActivity, job).Get(ctx, nil)
		if err != nil {
			// Keep going; the next pass retries whatever is left.
			logger.Error("Failed to reconcile stuck job", "jobID", job.JobID, "error", err)
			continue
		}
		failed++
	}

	logger.Info("Stuck job reconciliation completed", "found", len(stuck), "failed", failed)
	return failed, nil
}

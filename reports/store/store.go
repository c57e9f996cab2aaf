// Package store adapts the report_jobs query layer into the durable lock
// and result store the coordinator runs on. The database's uniqueness
// constraint is the only cross-instance synchronization primitive in the
// whole service.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"

	"encore.app/reports/model"
	"encore.app/reports/store/jobs"
)

// ErrStoreUnavailable is returned when the durable store cannot be reached
// or misbehaves. Callers must surface it fast; there is deliberately no
// volatile fallback, which would reintroduce duplicate invocations under
// multi-instance load.
var ErrStoreUnavailable = errors.New("durable job store unavailable")

// ErrStaleClaim is returned when Complete or Fail matches no row: the row is
// already terminal or belongs to a different job ID.
var ErrStaleClaim = errors.New("claim is stale or superseded")

// ClaimResult is the outcome of a claim attempt. When Claimed is false, Job
// holds the pre-existing row exactly as the store returned it.
type ClaimResult struct {
	Claimed bool
	Job     model.ReportJob
}

// JobStore is the durable contract the coordinator depends on.
type JobStore interface {
	Claim(ctx context.Context, idempotencyKey, jobID, artifactType string, inputSnapshot json.RawMessage) (ClaimResult, error)
	Complete(ctx context.Context, idempotencyKey, jobID string, content json.RawMessage) error
	Fail(ctx context.Context, idempotencyKey, jobID, errorMessage string) error
	GetByKey(ctx context.Context, idempotencyKey string) (*model.ReportJob, error)
	GetByJobID(ctx context.Context, jobID string) (*model.ReportJob, error)
}

// Adapter implements JobStore over a jobs.Querier.
type Adapter struct {
	queries jobs.Querier
}

func NewAdapter(queries jobs.Querier) *Adapter {
	return &Adapter{queries: queries}
}

// Claim attempts the atomic conditional insert for idempotencyKey. Exactly
// one caller per key ever sees Claimed=true; everyone else gets the existing
// row. There is no read-then-write anywhere on this path.
func (a *Adapter) Claim(ctx context.Context, idempotencyKey, jobID, artifactType string, inputSnapshot json.RawMessage) (ClaimResult, error) {
	row, err := a.queries.CreateReportJob(ctx, jobs.CreateReportJobParams{
		IdempotencyKey: idempotencyKey,
		JobID:          jobID,
		Status:         string(model.JobStatusProcessing),
		ArtifactType:   artifactType,
		InputSnapshot:  inputSnapshot,
	})
	if err == nil {
		return ClaimResult{Claimed: true, Job: toModel(row)}, nil
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
		existing, getErr := a.queries.GetReportJobByKey(ctx, idempotencyKey)
		if getErr != nil {
			return ClaimResult{}, fmt.Errorf("%w: fetch after conflict: %v", ErrStoreUnavailable, getErr)
		}
		return ClaimResult{Claimed: false, Job: toModel(existing)}, nil
	}

	return ClaimResult{}, fmt.Errorf("%w: claim insert: %v", ErrStoreUnavailable, err)
}

// Complete transitions the row to completed. Only the holder of the exact
// key+jobID pair can succeed, and only while the row is still processing.
func (a *Adapter) Complete(ctx context.Context, idempotencyKey, jobID string, content json.RawMessage) error {
	affected, err := a.queries.CompleteReportJob(ctx, jobs.CompleteReportJobParams{
		IdempotencyKey: idempotencyKey,
		JobID:          jobID,
		Content:        content,
	})
	if err != nil {
		return fmt.Errorf("%w: complete: %v", ErrStoreUnavailable, err)
	}
	if affected == 0 {
		return ErrStaleClaim
	}
	return nil
}

// Fail transitions the row to failed under the same guard as Complete.
func (a *Adapter) Fail(ctx context.Context, idempotencyKey, jobID, errorMessage string) error {
	affected, err := a.queries.FailReportJob(ctx, jobs.FailReportJobParams{
		IdempotencyKey: idempotencyKey,
		JobID:          jobID,
		ErrorMessage:   pgtype.Text{String: errorMessage, Valid: true},
	})
	if err != nil {
		return fmt.Errorf("%w: fail: %v", ErrStoreUnavailable, err)
	}
	if affected == 0 {
		return ErrStaleClaim
	}
	return nil
}

// GetByKey returns the row for an idempotency key, or nil when absent.
func (a *Adapter) GetByKey(ctx context.Context, idempotencyKey string) (*model.ReportJob, error) {
	row, err := a.queries.GetReportJobByKey(ctx, idempotencyKey)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: get by key: %v", ErrStoreUnavailable, err)
	}
	job := toModel(row)
	return &job, nil
}

// GetByJobID returns the row for a job ID, or nil when absent. Polling
// clients resolve their handle through this lookup.
func (a *Adapter) GetByJobID(ctx context.Context, jobID string) (*model.ReportJob, error) {
	row, err := a.queries.GetReportJobByJobID(ctx, jobID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: get by job id: %v", ErrStoreUnavailable, err)
	}
	job := toModel(row)
	return &job, nil
}

func toModel(row jobs.ReportJob) model.ReportJob {
	job := model.ReportJob{
		ID:             row.ID,
		IdempotencyKey: row.IdempotencyKey,
		JobID:          row.JobID,
		Status:         model.JobStatus(row.Status),
		ArtifactType:   row.ArtifactType,
		InputSnapshot:  row.InputSnapshot,
		Content:        row.Content,
		CreatedAt:      row.CreatedAt.Time,
		UpdatedAt:      row.UpdatedAt.Time,
	}
	if row.ErrorMessage.Valid {
		job.ErrorMessage = &row.ErrorMessage.String
	}
	return job
}

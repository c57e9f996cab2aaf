// Package jobs is the query layer over the report_jobs table. It speaks pgx
// and returns raw rows; status semantics live in the store adapter above it.
package jobs

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DBTX is satisfied by *pgxpool.Pool and pgx.Tx.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Querier is the interface the store adapter and mocks implement.
type Querier interface {
	CreateReportJob(ctx context.Context, arg CreateReportJobParams) (ReportJob, error)
	GetReportJobByKey(ctx context.Context, idempotencyKey string) (ReportJob, error)
	GetReportJobByJobID(ctx context.Context, jobID string) (ReportJob, error)
	CompleteReportJob(ctx context.Context, arg CompleteReportJobParams) (int64, error)
	FailReportJob(ctx context.Context, arg FailReportJobParams) (int64, error)
	ListStuckReportJobs(ctx context.Context, arg ListStuckReportJobsParams) ([]ReportJob, error)
}

type Queries struct {
	db DBTX
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

// WithTx returns Queries bound to a transaction.
func (q *Queries) WithTx(tx pgx.Tx) *Queries {
	return &Queries{db: tx}
}

const createReportJob = `
INSERT INTO report_jobs (idempotency_key, job_id, status, artifact_type, input_snapshot)
VALUES ($1, $2, $3, $4, $5)
RETURNING id, idempotency_key, job_id, status, artifact_type, input_snapshot, content, error_message, created_at, updated_at
`

// CreateReportJob inserts a new row. The unique constraint on
// idempotency_key makes this the atomic claim primitive; callers translate
// a unique violation into "already claimed".
func (q *Queries) CreateReportJob(ctx context.Context, arg CreateReportJobParams) (ReportJob, error) {
	row := q.db.QueryRow(ctx, createReportJob,
		arg.IdempotencyKey,
		arg.JobID,
		arg.Status,
		arg.ArtifactType,
		arg.InputSnapshot,
	)
	return scanReportJob(row)
}

const getReportJobByKey = `
SELECT id, idempotency_key, job_id, status, artifact_type, input_snapshot, content, error_message, created_at, updated_at
FROM report_jobs
WHERE idempotency_key = $1
`

func (q *Queries) GetReportJobByKey(ctx context.Context, idempotencyKey string) (ReportJob, error) {
	row := q.db.QueryRow(ctx, getReportJobByKey, idempotencyKey)
	return scanReportJob(row)
}

const getReportJobByJobID = `
SELECT id, idempotency_key, job_id, status, artifact_type, input_snapshot, content, error_message, created_at, updated_at
FROM report_jobs
WHERE job_id = $1
`

func (q *Queries) GetReportJobByJobID(ctx context.Context, jobID string) (ReportJob, error) {
	row := q.db.QueryRow(ctx, getReportJobByJobID, jobID)
	return scanReportJob(row)
}

const completeReportJob = `
UPDATE report_jobs
SET status = 'completed', content = $3, error_message = NULL, updated_at = now()
WHERE idempotency_key = $1 AND job_id = $2 AND status = 'processing'
`

// CompleteReportJob transitions processing -> completed. Scoping the update
// to key+job_id+status keeps a stale claim-holder from overwriting a row it
// no longer owns; the returned count is zero when the guard did not match.
func (q *Queries) CompleteReportJob(ctx context.Context, arg CompleteReportJobParams) (int64, error) {
	tag, err := q.db.Exec(ctx, completeReportJob, arg.IdempotencyKey, arg.JobID, arg.Content)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

const failReportJob = `
UPDATE report_jobs
SET status = 'failed', error_message = $3, updated_at = now()
WHERE idempotency_key = $1 AND job_id = $2 AND status = 'processing'
`

// FailReportJob transitions processing -> failed under the same guard as
// CompleteReportJob.
func (q *Queries) FailReportJob(ctx context.Context, arg FailReportJobParams) (int64, error) {
	tag, err := q.db.Exec(ctx, failReportJob, arg.IdempotencyKey, arg.JobID, arg.ErrorMessage)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

const listStuckReportJobs = `
SELECT id, idempotency_key, job_id, status, artifact_type, input_snapshot, content, error_message, created_at, updated_at
FROM report_jobs
WHERE status = $1 AND created_at < $2
ORDER BY created_at
LIMIT $3
`

func (q *Queries) ListStuckReportJobs(ctx context.Context, arg ListStuckReportJobsParams) ([]ReportJob, error) {
	rows, err := q.db.Query(ctx, listStuckReportJobs, arg.Status, arg.OlderThan, arg.Limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []ReportJob
	for rows.Next() {
		job, err := scanReportJob(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, job)
	}
	return items, rows.Err()
}

func scanReportJob(row pgx.Row) (ReportJob, error) {
	var j ReportJob
	err := row.Scan(
		&j.ID,
		&j.IdempotencyKey,
		&j.JobID,
		&j.Status,
		&j.ArtifactType,
		&j.InputSnapshot,
		&j.Content,
		&j.ErrorMessage,
		&j.CreatedAt,
		&j.UpdatedAt,
	)
	return j, err
}

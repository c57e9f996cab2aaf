package jobs

import (
	"github.com/jackc/pgx/v5/pgtype"
)

// ReportJob mirrors the report_jobs table.
type ReportJob struct {
	ID             int64
	IdempotencyKey string
	JobID          string
	Status         string
	ArtifactType   string
	InputSnapshot  []byte
	Content        []byte
	ErrorMessage   pgtype.Text
	CreatedAt      pgtype.Timestamptz
	UpdatedAt      pgtype.Timestamptz
}

type CreateReportJobParams struct {
	IdempotencyKey string
	JobID          string
	Status         string
	ArtifactType   string
	InputSnapshot  []byte
}

type CompleteReportJobParams struct {
	IdempotencyKey string
	JobID          string
	Content        []byte
}

type FailReportJobParams struct {
	IdempotencyKey string
	JobID          string
	ErrorMessage   pgtype.Text
}

type ListStuckReportJobsParams struct {
	Status    string
	OlderThan pgtype.Timestamptz
	Limit     int32
}

package model

import (
	"encoding/json"
	"time"
)

// ReportJob is the durable record for one logical generation request.
// At most one row exists per idempotency key; the database enforces it.
type ReportJob struct {
	ID             int64           `json:"id"`
	IdempotencyKey string          `json:"idempotency_key"`
	JobID          string          `json:"job_id"`
	Status         JobStatus       `json:"status"`
	ArtifactType   string          `json:"artifact_type"`
	InputSnapshot  json.RawMessage `json:"input_snapshot,omitempty"`
	Content        json.RawMessage `json:"content,omitempty"`
	ErrorMessage   *string         `json:"error_message,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

type JobStatus string

const (
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
)

// Terminal reports whether no further transition is allowed from s.
func (s JobStatus) Terminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// Result is what callers of the coordinator receive. Status mirrors the
// durable row; Content is only set once the row is completed.
type Result struct {
	Status       JobStatus       `json:"status"`
	JobID        string          `json:"job_id"`
	Content      json.RawMessage `json:"content,omitempty"`
	ErrorMessage *string         `json:"error_message,omitempty"`
}

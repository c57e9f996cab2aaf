package reports

import (
	"context"

	"encore.dev/beta/errs"
	"encore.dev/rlog"
)

// GetReport is the polling endpoint. Clients call it with the job ID from
// GenerateReport until the status is terminal.
//
//encore:api public path=/v1/reports/job/:jobID method=GET
func (s *Service) GetReport(ctx context.Context, jobID string) (*ReportResponse, error) {
	if jobID == "" {
		return nil, &errs.Error{Code: errs.InvalidArgument, Message: "job ID is required"}
	}

	result, err := s.coordinator.Lookup(ctx, jobID)
	if err != nil {
		rlog.Error("failed to look up report job", "error", err, "job_id", jobID)
		return nil, err
	}

	return toResponse(result), nil
}

package reports

import (
	"context"
	"encoding/json"

	"encore.dev/beta/errs"
	"encore.dev/rlog"

	"encore.app/reports/model"
)

type GenerateReportRequest struct {
	Name         string  `json:"name" validate:"required,max=120"`
	DateOfBirth  string  `json:"date_of_birth" validate:"required,datetime=2006-01-02"`
	TimeOfBirth  string  `json:"time_of_birth" validate:"omitempty,datetime=15:04"`
	Place        string  `json:"place" validate:"required,max=200"`
	Latitude     float64 `json:"latitude" validate:"omitempty,latitude"`
	Longitude    float64 `json:"longitude" validate:"omitempty,longitude"`
	ArtifactType string  `json:"artifact_type" validate:"required,oneof=life-summary year-forecast day-forecast"`
	TargetPeriod string  `json:"target_period" validate:"omitempty,max=32"`
	RetryNonce   string  `json:"retry_nonce" validate:"omitempty,max=64"`
	Email        string  `json:"email" validate:"omitempty,email"`
	ForceReal    bool    `json:"force_real"`
	Synthetic    bool    `json:"synthetic"`
}

type ReportResponse struct {
	Status       model.JobStatus `json:"status"`
	JobID        string          `json:"job_id"`
	Content      json.RawMessage `json:"content,omitempty"`
	ErrorMessage *string         `json:"error_message,omitempty"`
}

// GenerateReport accepts a report request and returns either the cached
// result or a processing handle the client polls via GetReport. Submitting
// the same input any number of times triggers at most one generation.
//
//encore:api public path=/v1/reports method=POST
func (s *Service) GenerateReport(ctx context.Context, req *GenerateReportRequest) (*ReportResponse, error) {
	result, err := s.coordinator.Generate(ctx, &model.GenerationRequest{
		Name:         req.Name,
		DateOfBirth:  req.DateOfBirth,
		TimeOfBirth:  req.TimeOfBirth,
		Place:        req.Place,
		Latitude:     req.Latitude,
		Longitude:    req.Longitude,
		ArtifactType: req.ArtifactType,
		TargetPeriod: req.TargetPeriod,
		RetryNonce:   req.RetryNonce,
		Email:        req.Email,
		ForceReal:    req.ForceReal,
		Synthetic:    req.Synthetic,
	})
	if err != nil {
		rlog.Error("failed to coordinate report generation", "error", err, "artifact_type", req.ArtifactType)
		return nil, err
	}

	return toResponse(result), nil
}

// Validate implements validation for GenerateReportRequest using
// go-playground/validator.
func (r *GenerateReportRequest) Validate() error {
	if err := validate.Struct(r); err != nil {
		return &errs.Error{Code: errs.InvalidArgument, Message: err.Error()}
	}
	return nil
}

func toResponse(result *model.Result) *ReportResponse {
	return &ReportResponse{
		Status:       result.Status,
		JobID:        result.JobID,
		Content:      result.Content,
		ErrorMessage: result.ErrorMessage,
	}
}

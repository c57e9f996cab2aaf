package reports

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func validRequest() *GenerateReportRequest {
	return &GenerateReportRequest{
		Name:         "A",
		DateOfBirth:  "1990-01-01",
		TimeOfBirth:  "10:00",
		Place:        "X",
		ArtifactType: "life-summary",
	}
}

func TestGenerateReportRequest_Validate(t *testing.T) {
	testCases := []struct {
		name          string
		mutate        func(*GenerateReportRequest)
		expectedError bool
	}{
		{
			name:   "happy_case",
			mutate: func(r *GenerateReportRequest) {},
		},
		{
			name:   "optional_fields_populated",
			mutate: func(r *GenerateReportRequest) { r.Email = "a@example.com"; r.Latitude = 51.5; r.Longitude = -0.1 },
		},
		{
			name:          "missing_name",
			mutate:        func(r *GenerateReportRequest) { r.Name = "" },
			expectedError: true,
		},
		{
			name:          "malformed_date_of_birth",
			mutate:        func(r *GenerateReportRequest) { r.DateOfBirth = "01/01/1990" },
			expectedError: true,
		},
		{
			name:          "malformed_time_of_birth",
			mutate:        func(r *GenerateReportRequest) { r.TimeOfBirth = "10am" },
			expectedError: true,
		},
		{
			name:          "unknown_artifact_type",
			mutate:        func(r *GenerateReportRequest) { r.ArtifactType = "novel" },
			expectedError: true,
		},
		{
			name:          "invalid_email",
			mutate:        func(r *GenerateReportRequest) { r.Email = "not-an-email" },
			expectedError: true,
		},
		{
			name:          "latitude_out_of_range",
			mutate:        func(r *GenerateReportRequest) { r.Latitude = 123.4 },
			expectedError: true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			req := validRequest()
			tc.mutate(req)

			err := req.Validate()
			if tc.expectedError {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestPrivilegedActorsFromEnv(t *testing.T) {
	t.Run("unset_means_empty", func(t *testing.T) {
		t.Setenv("REPORTS_PRIVILEGED_ACTORS", "")
		assert.Empty(t, privilegedActorsFromEnv())
	})

	t.Run("parses_and_normalizes", func(t *testing.T) {
		t.Setenv("REPORTS_PRIVILEGED_ACTORS", "VIP@Example.com, second@example.com ,")
		actors := privilegedActorsFromEnv()
		assert.Len(t, actors, 2)
		assert.True(t, actors["vip@example.com"])
		assert.True(t, actors["second@example.com"])
	})
}

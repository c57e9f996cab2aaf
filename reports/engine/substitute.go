package engine

import (
	"context"
	"encoding/json"
	"fmt"

	"encore.app/reports/model"
)

// Substitute is the cheap, deterministic stand-in for the real engine. It is
// used for synthetic/test requests and when the kill switch routes traffic
// away from the metered engine.
type Substitute struct{}

func NewSubstitute() Substitute {
	return Substitute{}
}

func (Substitute) Generate(_ context.Context, artifactType string, input *model.GenerationRequest) (json.RawMessage, error) {
	payload := map[string]any{
		"artifact_type": artifactType,
		"substitute":    true,
		"summary":       fmt.Sprintf("Sample %s for %s", artifactType, input.Name),
		"sections": []map[string]string{
			{"title": "Overview", "body": "This is placeholder content produced without invoking the generation engine."},
		},
	}
	content, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal substitute content: %w", err)
	}
	return content, nil
}

// Package engine holds the generation engine port and its implementations.
// From the coordinator's point of view the engine is opaque, slow, costly,
// and not idempotent: it must never run more than once per successful claim.
package engine

import (
	"context"
	"encoding/json"

	"encore.app/reports/model"
)

// Engine produces the content for one artifact.
type Engine interface {
	Generate(ctx context.Context, artifactType string, input *model.GenerationRequest) (json.RawMessage, error)
}

// Func adapts a plain function to the Engine interface.
type Func func(ctx context.Context, artifactType string, input *model.GenerationRequest) (json.RawMessage, error)

func (f Func) Generate(ctx context.Context, artifactType string, input *model.GenerationRequest) (json.RawMessage, error) {
	return f(ctx, artifactType, input)
}

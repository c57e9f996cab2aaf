package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"encore.app/reports/model"
)

var secrets struct {
	// GenerationAPIKey authenticates outbound calls to the generation
	// provider.
	GenerationAPIKey string
}

// HTTPConfig configures the outbound client for the real engine.
type HTTPConfig struct {
	BaseURL string
	Timeout time.Duration
}

// HTTP is the real, metered engine reached over the provider's API.
type HTTP struct {
	baseURL string
	client  *http.Client
}

func NewHTTP(cfg HTTPConfig) *HTTP {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &HTTP{
		baseURL: cfg.BaseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

type generateRequest struct {
	ArtifactType string                   `json:"artifact_type"`
	Input        *model.GenerationRequest `json:"input"`
}

type generateResponse struct {
	Content json.RawMessage `json:"content"`
}

func (h *HTTP) Generate(ctx context.Context, artifactType string, input *model.GenerationRequest) (json.RawMessage, error) {
	body, err := json.Marshal(generateRequest{ArtifactType: artifactType, Input: input})
	if err != nil {
		return nil, fmt.Errorf("marshal generation request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.baseURL+"/v1/generate", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build generation request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+secrets.GenerationAPIKey)

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("call generation engine: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("generation engine returned %d: %s", resp.StatusCode, snippet)
	}

	var out generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode generation response: %w", err)
	}
	if len(out.Content) == 0 {
		return nil, fmt.Errorf("generation engine returned empty content")
	}
	return out.Content, nil
}

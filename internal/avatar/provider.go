// Image Provider Adapter.
//
// ProviderClient issues a single synchronous text-to-image request against an
// OpenAI-compatible generation endpoint and returns the first result as a
// Generated value. No retry is performed; callers needing resilience must
// re-invoke.
package avatar

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/xAGI-labs/charstream-sub001/internal/config"
)

// generationRequest is the wire body sent to the provider.
type generationRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
	N      int    `json:"n"`
	Steps  int    `json:"steps"`
}

// generationResult is one entry of the provider's data list. Either URL or
// B64JSON is populated.
type generationResult struct {
	URL     string `json:"url,omitempty"`
	B64JSON string `json:"b64_json,omitempty"`
}

// generationResponse is the provider's top-level response body.
type generationResponse struct {
	Data []generationResult `json:"data"`
}

// ProviderClient calls the external image-generation API.
// The zero value is not usable; construct via NewProviderClient.
type ProviderClient struct {
	apiKey  string
	baseURL string
	model   string
	width   int
	height  int
	steps   int

	httpClient *http.Client
}

// NewProviderClient builds a client from configuration. Timeout behavior is
// inherited from the HTTP client; the resolver adds no deadline of its own.
func NewProviderClient(cfg config.TogetherConfig) *ProviderClient {
	return &ProviderClient{
		apiKey:     cfg.APIKey,
		baseURL:    cfg.BaseURL,
		model:      cfg.Model,
		width:      cfg.Width,
		height:     cfg.Height,
		steps:      cfg.Steps,
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}
}

// Generate requests one image for prompt and returns the first result's
// hosted URL when present, else its inline data as a data URI.
//
// Failure modes:
//   - missing API key: ErrNotConfigured
//   - network error or non-2xx status: ErrGenerateFailed (body logged)
//   - undecodable or empty payload: ErrMalformedResponse
func (p *ProviderClient) Generate(ctx context.Context, prompt string) (*Generated, error) {
	if p.apiKey == "" {
		return nil, fmt.Errorf("%w: image provider API key missing", ErrNotConfigured)
	}

	body, err := json.Marshal(generationRequest{
		Model:  p.model,
		Prompt: prompt,
		Width:  p.width,
		Height: p.height,
		N:      1,
		Steps:  p.steps,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGenerateFailed, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGenerateFailed, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.apiKey)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		log.Error().Err(err).Str("model", p.model).Msg("image generation request failed")
		return nil, fmt.Errorf("%w: %v", ErrGenerateFailed, err)
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		log.Error().
			Int("status", resp.StatusCode).
			Str("model", p.model).
			Str("body", string(raw)).
			Msg("image generation returned non-2xx")
		return nil, fmt.Errorf("%w: status %d", ErrGenerateFailed, resp.StatusCode)
	}

	var out generationResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if len(out.Data) == 0 {
		return nil, fmt.Errorf("%w: empty data list", ErrMalformedResponse)
	}

	first := out.Data[0]
	switch {
	case first.URL != "":
		return &Generated{URL: first.URL}, nil
	case first.B64JSON != "":
		return &Generated{InlineData: dataURIPrefix + "image/png;base64," + first.B64JSON}, nil
	default:
		return nil, fmt.Errorf("%w: result has neither url nor b64_json", ErrMalformedResponse)
	}
}

package summarize

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"
)

const anthropicDefaultModel = "claude-3-5-haiku-latest"

// AnthropicProvider calls Anthropic's messages API with the same contract
// as the OpenAI provider.
type AnthropicProvider struct {
	apiKey     string
	model      string
	baseURL    string
	httpClient *http.Client
}

// NewAnthropicProvider builds a provider with the given credential; model
// overrides the default when non-empty.
func NewAnthropicProvider(apiKey, model string) *AnthropicProvider {
	if model == "" {
		model = anthropicDefaultModel
	}
	return &AnthropicProvider{
		apiKey:  apiKey,
		model:   model,
		baseURL: "https://api.anthropic.com",
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// SetBaseURL overrides the API endpoint (used in tests).
func (p *AnthropicProvider) SetBaseURL(baseURL string) { p.baseURL = baseURL }

// Name implements Provider.
func (p *AnthropicProvider) Name() string { return "anthropic" }

// DefaultModel implements Provider.
func (p *AnthropicProvider) DefaultModel() string { return p.model }

// Generate implements Provider with bounded retry and backoff on failure.
func (p *AnthropicProvider) Generate(ctx context.Context, req Request) (Response, error) {
	model := req.Model
	if model == "" {
		model = p.model
	}

	body := map[string]any{
		"model":      model,
		"max_tokens": 512,
		"system":     req.SystemPrompt,
		"messages": []map[string]string{
			{"role": "user", "content": req.UserPrompt},
		},
	}
	encoded, err := json.Marshal(body)
	if err != nil {
		return Response{}, fmt.Errorf("marshal anthropic payload: %w", err)
	}

	var payload json.RawMessage
	err = withBackoff(ctx, providerAttempts, func() error {
		out, cerr := p.complete(ctx, encoded)
		if cerr != nil {
			return cerr
		}
		payload = out
		return nil
	})
	if err != nil {
		return Response{}, err
	}
	return Response{Model: model, Payload: payload}, nil
}

func (p *AnthropicProvider) complete(ctx context.Context, body []byte) (json.RawMessage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/v1/messages", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("x-api-key", p.apiKey)
	req.Header.Set("anthropic-version", "2023-06-01")
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("call anthropic: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("anthropic responded with status %s", resp.Status)
	}

	var parsed struct {
		Content []struct {
			Text string `json:"text"`
		} `json:"content"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode anthropic response: %w", err)
	}
	if len(parsed.Content) == 0 {
		return nil, errors.New("anthropic returned no content")
	}

	text := parsed.Content[0].Text
	if !json.Valid([]byte(text)) {
		return nil, errors.New("anthropic returned non-JSON content")
	}
	return json.RawMessage(text), nil
}

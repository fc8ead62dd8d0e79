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

const openAIDefaultModel = "gpt-4o-mini"

// OpenAIProvider calls OpenAI's chat completions API for schema-constrained
// JSON responses.
type OpenAIProvider struct {
	apiKey     string
	model      string
	baseURL    string
	httpClient *http.Client
}

// NewOpenAIProvider builds a provider with the given credential; model
// overrides the default when non-empty.
func NewOpenAIProvider(apiKey, model string) *OpenAIProvider {
	if model == "" {
		model = openAIDefaultModel
	}
	return &OpenAIProvider{
		apiKey:  apiKey,
		model:   model,
		baseURL: "https://api.openai.com",
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// SetBaseURL overrides the API endpoint (used in tests).
func (p *OpenAIProvider) SetBaseURL(baseURL string) { p.baseURL = baseURL }

// Name implements Provider.
func (p *OpenAIProvider) Name() string { return "openai" }

// DefaultModel implements Provider.
func (p *OpenAIProvider) DefaultModel() string { return p.model }

// Generate implements Provider with bounded retry and backoff on failure.
func (p *OpenAIProvider) Generate(ctx context.Context, req Request) (Response, error) {
	model := req.Model
	if model == "" {
		model = p.model
	}

	body := map[string]any{
		"model": model,
		"messages": []map[string]string{
			{"role": "system", "content": req.SystemPrompt},
			{"role": "user", "content": req.UserPrompt},
		},
		"temperature":     0.2,
		"response_format": map[string]any{"type": "json_object"},
	}
	encoded, err := json.Marshal(body)
	if err != nil {
		return Response{}, fmt.Errorf("marshal openai payload: %w", err)
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

func (p *OpenAIProvider) complete(ctx context.Context, body []byte) (json.RawMessage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/v1/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+p.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("call openai: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("openai responded with status %s", resp.Status)
	}

	var parsed struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode openai response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return nil, errors.New("openai returned no choices")
	}

	content := parsed.Choices[0].Message.Content
	if !json.Valid([]byte(content)) {
		return nil, errors.New("openai returned non-JSON content")
	}
	return json.RawMessage(content), nil
}

package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/fredericrous/texto-diagrama/internal/model"
)

const (
	defaultOpenRouterURL   = "https://openrouter.ai/api/v1"
	defaultOpenRouterModel = "google/gemini-2.0-flash-001"
)

// OpenRouter generates diagrams through an OpenAI-compatible chat completions API.
type OpenRouter struct {
	baseURL     string
	apiKey      string
	model       string
	temperature float32
	client      *http.Client
}

// NewOpenRouter creates an OpenRouter client from cfg.
func NewOpenRouter(cfg Config) *OpenRouter {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = defaultOpenRouterURL
	}
	modelName := cfg.Model
	if modelName == "" {
		modelName = defaultOpenRouterModel
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 60 * time.Second
	}
	return &OpenRouter{
		baseURL:     baseURL,
		apiKey:      cfg.APIKey,
		model:       modelName,
		temperature: cfg.Temperature,
		client:      &http.Client{Timeout: timeout},
	}
}

// Generate sends one chat completion and parses the JSON answer.
func (o *OpenRouter) Generate(ctx context.Context, req model.GenerateRequest) (*model.GenerateResponse, error) {
	reqBody := map[string]any{
		"model":       o.model,
		"temperature": o.temperature,
		"messages": []map[string]string{
			{"role": "system", "content": systemPrompt},
			{"role": "user", "content": buildPrompt(req)},
		},
		"response_format": map[string]string{"type": "json_object"},
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("encoding request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+o.apiKey)

	resp, err := o.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("openrouter request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		return nil, fmt.Errorf("openrouter returned %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var apiResp struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&apiResp); err != nil {
		return nil, fmt.Errorf("decoding openrouter response: %w", err)
	}
	if len(apiResp.Choices) == 0 {
		return nil, fmt.Errorf("%w: no choices returned", ErrInvalidResponse)
	}

	return ParseResponse(apiResp.Choices[0].Message.Content)
}

// Name returns the provider and model.
func (o *OpenRouter) Name() string {
	return "openrouter:" + o.model
}

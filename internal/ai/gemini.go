package ai

import (
	"context"
	"fmt"

	"google.golang.org/genai"

	"github.com/fredericrous/texto-diagrama/internal/model"
)

const defaultGeminiModel = "gemini-2.0-flash"

// Gemini generates diagrams with Google's Gemini API.
type Gemini struct {
	client      *genai.Client
	model       string
	temperature float32
}

// NewGemini creates a Gemini client from cfg. BaseURL overrides the API
// endpoint and Timeout bounds each HTTP call.
func NewGemini(ctx context.Context, cfg Config) (*Gemini, error) {
	if cfg.APIKey == "" {
		return nil, ErrNotConfigured
	}

	modelName := cfg.Model
	if modelName == "" {
		modelName = defaultGeminiModel
	}

	httpOpts := genai.HTTPOptions{BaseURL: cfg.BaseURL}
	if cfg.Timeout > 0 {
		httpOpts.Timeout = genai.Ptr(cfg.Timeout)
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:      cfg.APIKey,
		Backend:     genai.BackendGeminiAPI,
		HTTPOptions: httpOpts,
	})
	if err != nil {
		return nil, fmt.Errorf("creating gemini client: %w", err)
	}

	return &Gemini{client: client, model: modelName, temperature: cfg.Temperature}, nil
}

// Generate asks Gemini for a JSON-encoded diagram.
func (g *Gemini) Generate(ctx context.Context, req model.GenerateRequest) (*model.GenerateResponse, error) {
	result, err := g.client.Models.GenerateContent(ctx,
		g.model,
		genai.Text(buildPrompt(req)),
		&genai.GenerateContentConfig{
			SystemInstruction: genai.NewContentFromText(systemPrompt, genai.RoleUser),
			ResponseMIMEType:  "application/json",
			Temperature:       genai.Ptr(g.temperature),
		},
	)
	if err != nil {
		return nil, fmt.Errorf("gemini generate: %w", err)
	}

	text := result.Text()
	if text == "" {
		return nil, fmt.Errorf("%w: empty gemini response", ErrInvalidResponse)
	}
	return ParseResponse(text)
}

// Name returns the provider and model.
func (g *Gemini) Name() string {
	return "gemini:" + g.model
}

// Package ai implements the generative-AI collaborator that turns text into
// Mermaid markup. Providers are constructed once at startup and handed to
// the generation pipeline; there are no package-level client handles.
package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/fredericrous/texto-diagrama/internal/diagram"
	"github.com/fredericrous/texto-diagrama/internal/model"
)

var (
	// ErrNotConfigured is returned by every call on a client without an API key.
	ErrNotConfigured = errors.New("AI API key not configured")
	// ErrInvalidResponse means the model answered with something that is not a usable diagram.
	ErrInvalidResponse = errors.New("invalid AI response")
)

// Client generates a diagram from natural-language input.
type Client interface {
	Generate(ctx context.Context, req model.GenerateRequest) (*model.GenerateResponse, error)
	Name() string
}

// Config selects and configures a provider.
type Config struct {
	Provider    string        `koanf:"provider"` // "gemini" | "openrouter"
	APIKey      string        `koanf:"api_key"`
	Model       string        `koanf:"model"`
	BaseURL     string        `koanf:"base_url"`
	Temperature float32       `koanf:"temperature"`
	Timeout     time.Duration `koanf:"timeout"`
}

// New builds the configured provider. A missing API key yields a Disabled
// client so callers can rely on the fallback path.
func New(ctx context.Context, cfg Config) (Client, error) {
	if cfg.APIKey == "" {
		return Disabled{}, nil
	}
	switch cfg.Provider {
	case "gemini", "":
		g, err := NewGemini(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return g, nil
	case "openrouter":
		return NewOpenRouter(cfg), nil
	default:
		return nil, fmt.Errorf("unknown AI provider: %s", cfg.Provider)
	}
}

// Disabled is the client used when no provider is configured.
type Disabled struct{}

// Generate always fails with ErrNotConfigured.
func (Disabled) Generate(context.Context, model.GenerateRequest) (*model.GenerateResponse, error) {
	return nil, ErrNotConfigured
}

// Name returns "disabled".
func (Disabled) Name() string { return "disabled" }

const systemPrompt = `You convert natural-language descriptions into Mermaid diagrams.
Pick the most suitable diagram type (flowchart, sequence, classDiagram, erDiagram, journey, gantt, pie, gitgraph).
Use short labels in the same language as the input. Do not use emoji or HTML in labels.
Respond with a single JSON object and nothing else:
{"mermaidCode": "<mermaid source>", "diagramType": "<type>", "confidence": <0.0-1.0>}`

const defaultContext = "Generate a clear and logical diagram that represents the described process, system, or concept."

// buildPrompt renders the user turn for a request.
func buildPrompt(req model.GenerateRequest) string {
	ctxText := strings.TrimSpace(req.Context)
	if ctxText == "" {
		ctxText = defaultContext
	}
	return fmt.Sprintf("%s\n\nText:\n%s", ctxText, diagram.StripAngleBrackets(req.Input))
}

const responseSchema = `{
  "type": "object",
  "required": ["mermaidCode", "diagramType"],
  "properties": {
    "mermaidCode": {"type": "string", "minLength": 1},
    "diagramType": {
      "type": "string",
      "enum": ["flowchart", "sequence", "classDiagram", "erDiagram", "journey", "gantt", "pie", "gitgraph"]
    },
    "confidence": {"type": "number", "minimum": 0, "maximum": 1}
  }
}`

var compiledSchema = jsonschema.MustCompileString("mem://ai/response.json", responseSchema)

// ParseResponse extracts a diagram from a model's text answer. Code fences
// around the JSON or the Mermaid source are tolerated. The kind reported
// is the one declared by the markup itself.
func ParseResponse(content string) (*model.GenerateResponse, error) {
	content = stripFence(content, "json")

	var raw any
	if err := json.Unmarshal([]byte(content), &raw); err != nil {
		return nil, fmt.Errorf("%w: decoding JSON: %v", ErrInvalidResponse, err)
	}
	if err := compiledSchema.Validate(raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}

	var resp model.GenerateResponse
	if err := json.Unmarshal([]byte(content), &resp); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}

	resp.MermaidCode = stripFence(resp.MermaidCode, "mermaid")
	if !diagram.ValidateMermaid(resp.MermaidCode) {
		return nil, fmt.Errorf("%w: no mermaid diagram declaration", ErrInvalidResponse)
	}
	resp.DiagramType = diagram.KindOf(resp.MermaidCode)

	return &resp, nil
}

func stripFence(s, lang string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```"+lang)
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

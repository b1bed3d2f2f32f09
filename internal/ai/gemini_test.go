package ai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/fredericrous/texto-diagrama/internal/model"
)

// geminiServer answers generateContent calls with status and body.
func geminiServer(t *testing.T, status int, body string, inspect func(r *http.Request)) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if inspect != nil {
			inspect(r)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newTestGemini(t *testing.T, baseURL string) *Gemini {
	t.Helper()
	g, err := NewGemini(context.Background(), Config{
		APIKey:      "gemini-key",
		Model:       "test-model",
		BaseURL:     baseURL + "/",
		Temperature: 0.2,
		Timeout:     5 * time.Second,
	})
	if err != nil {
		t.Fatalf("NewGemini: %v", err)
	}
	return g
}

func TestGeminiGenerate(t *testing.T) {
	answer := `{"mermaidCode":"graph TD\n  A[Inicio] --> B[Fin]","diagramType":"flowchart","confidence":0.7}`
	text, err := json.Marshal(answer)
	if err != nil {
		t.Fatal(err)
	}
	body := `{"candidates":[{"content":{"role":"model","parts":[{"text":` + string(text) + `}]}}]}`

	var gotPath, gotKey string
	var gotBody map[string]any
	srv := geminiServer(t, http.StatusOK, body, func(r *http.Request) {
		gotPath = r.URL.Path
		gotKey = r.Header.Get("x-goog-api-key")
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("decode body: %v", err)
		}
	})

	g := newTestGemini(t, srv.URL)
	got, err := g.Generate(context.Background(), model.GenerateRequest{Input: "inicio y fin"})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	if !strings.HasSuffix(gotPath, "models/test-model:generateContent") {
		t.Errorf("path = %q", gotPath)
	}
	if gotKey != "gemini-key" {
		t.Errorf("api key header = %q", gotKey)
	}
	if _, ok := gotBody["systemInstruction"]; !ok {
		t.Error("request has no systemInstruction")
	}
	genCfg, _ := gotBody["generationConfig"].(map[string]any)
	if genCfg["responseMimeType"] != "application/json" {
		t.Errorf("responseMimeType = %v", genCfg["responseMimeType"])
	}
	if got.MermaidCode != "graph TD\n  A[Inicio] --> B[Fin]" || got.DiagramType != model.KindFlowchart || got.Confidence != 0.7 {
		t.Errorf("unexpected response: %+v", got)
	}
	if g.Name() != "gemini:test-model" {
		t.Errorf("Name = %q", g.Name())
	}
}

func TestGeminiErrors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		invalid bool
		message string
	}{
		{"no candidates", http.StatusOK, `{"candidates":[]}`, true, ""},
		{"empty candidate", http.StatusOK, `{"candidates":[{"content":{"role":"model","parts":[]}}]}`, true, ""},
		{"not json", http.StatusOK, `{"candidates":[{"content":{"role":"model","parts":[{"text":"lo siento"}]}}]}`, true, ""},
		{
			"api error", http.StatusBadRequest,
			`{"error":{"code":400,"message":"API key not valid","status":"INVALID_ARGUMENT"}}`,
			false, "API key not valid",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := geminiServer(t, tt.status, tt.body, nil)
			g := newTestGemini(t, srv.URL)

			_, err := g.Generate(context.Background(), model.GenerateRequest{Input: "x"})
			if err == nil {
				t.Fatal("expected error")
			}
			if got := errors.Is(err, ErrInvalidResponse); got != tt.invalid {
				t.Errorf("errors.Is(ErrInvalidResponse) = %v, want %v (err: %v)", got, tt.invalid, err)
			}
			if tt.message != "" && !strings.Contains(err.Error(), tt.message) {
				t.Errorf("error %q does not mention %q", err, tt.message)
			}
		})
	}
}

func TestGeminiTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	t.Cleanup(srv.Close)

	g, err := NewGemini(context.Background(), Config{
		APIKey:  "gemini-key",
		Model:   "test-model",
		BaseURL: srv.URL + "/",
		Timeout: 50 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("NewGemini: %v", err)
	}

	start := time.Now()
	if _, err := g.Generate(context.Background(), model.GenerateRequest{Input: "x"}); err == nil {
		t.Fatal("expected timeout error")
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("Generate took %v, want the 50ms client timeout to apply", elapsed)
	}
}

func TestNewGeminiRequiresKey(t *testing.T) {
	if _, err := NewGemini(context.Background(), Config{}); !errors.Is(err, ErrNotConfigured) {
		t.Errorf("NewGemini without key error = %v, want ErrNotConfigured", err)
	}
}

func TestNewGeminiDefaultModel(t *testing.T) {
	g, err := NewGemini(context.Background(), Config{APIKey: "k"})
	if err != nil {
		t.Fatalf("NewGemini: %v", err)
	}
	if g.Name() != "gemini:"+defaultGeminiModel {
		t.Errorf("Name = %q", g.Name())
	}
}

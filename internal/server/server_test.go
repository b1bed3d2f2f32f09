package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fredericrous/texto-diagrama/internal/ai"
	"github.com/fredericrous/texto-diagrama/internal/diagram"
	"github.com/fredericrous/texto-diagrama/internal/metrics"
	"github.com/fredericrous/texto-diagrama/internal/model"
	"github.com/fredericrous/texto-diagrama/internal/pipeline"
	"github.com/fredericrous/texto-diagrama/internal/session"
)

type stubAI struct {
	resp *model.GenerateResponse
	err  error
}

func (s stubAI) Generate(context.Context, model.GenerateRequest) (*model.GenerateResponse, error) {
	return s.resp, s.err
}

func (stubAI) Name() string { return "stub" }

type failingStore struct{ session.Store }

func (failingStore) Put(context.Context, string, model.Diagram) error {
	return errors.New("disk full")
}

func newTestServer(t *testing.T, cfg Config, pcfg pipeline.Config, client ai.Client, store session.Store) *httptest.Server {
	t.Helper()
	reg := prometheus.NewRegistry()
	p := pipeline.New(pcfg, client, store, metrics.New(reg), diagram.NewTitler(nil))
	ts := httptest.NewServer(New(cfg, p, reg).Handler())
	t.Cleanup(ts.Close)
	return ts
}

func defaultServer(t *testing.T) *httptest.Server {
	return newTestServer(t, Config{}, pipeline.Config{}, ai.Disabled{}, session.NewMemoryStore())
}

// do sends a request, replaying cookies from prior responses.
func do(t *testing.T, ts *httptest.Server, cookies []*http.Cookie, method, path, body string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, ts.URL+path, strings.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	for _, c := range cookies {
		req.AddCookie(c)
	}
	resp, err := ts.Client().Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decodeBody[T any](t *testing.T, resp *http.Response) model.APIResponse[T] {
	t.Helper()
	var out model.APIResponse[T]
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func TestGenerateHeuristic(t *testing.T) {
	ts := defaultServer(t)

	resp := do(t, ts, nil, http.MethodPost, "/api/diagrams", `{"input":"Receta de tortilla de patatas"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body := decodeBody[model.Diagram](t, resp)
	require.True(t, body.Success)
	require.NotNil(t, body.Data)
	assert.Equal(t, model.SourceHeuristic, body.Data.Source)
	assert.Equal(t, model.KindFlowchart, body.Data.Kind)
	assert.Contains(t, body.Data.Code, "Pelar y cortar las patatas")
	assert.Empty(t, body.Error)

	var sid *http.Cookie
	for _, c := range resp.Cookies() {
		if c.Name == sessionCookie {
			sid = c
		}
	}
	require.NotNil(t, sid, "session cookie not set")

	current := do(t, ts, []*http.Cookie{sid}, http.MethodGet, "/api/diagrams/current", "")
	require.Equal(t, http.StatusOK, current.StatusCode)
	assert.Equal(t, body.Data.ID, decodeBody[model.Diagram](t, current).Data.ID)

	cleared := do(t, ts, []*http.Cookie{sid}, http.MethodDelete, "/api/diagrams/current", "")
	require.Equal(t, http.StatusOK, cleared.StatusCode)
	assert.True(t, decodeBody[struct{}](t, cleared).Success)

	gone := do(t, ts, []*http.Cookie{sid}, http.MethodGet, "/api/diagrams/current", "")
	assert.Equal(t, http.StatusNotFound, gone.StatusCode)
	assert.Equal(t, msgNoDiagram, decodeBody[model.Diagram](t, gone).Error)
}

func TestSessionsAreIsolated(t *testing.T) {
	ts := defaultServer(t)

	first := do(t, ts, nil, http.MethodPost, "/api/diagrams", `{"input":"login de usuario"}`)
	require.Equal(t, http.StatusOK, first.StatusCode)

	other := &http.Cookie{Name: sessionCookie, Value: "6f1c1a7e-3b0c-4f63-9d0b-7f6a9c3c2e11"}
	resp := do(t, ts, []*http.Cookie{other}, http.MethodGet, "/api/diagrams/current", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestGenerateUsesAI(t *testing.T) {
	client := stubAI{resp: &model.GenerateResponse{
		MermaidCode: "pie\n  \"A\" : 1",
		DiagramType: model.KindPie,
		Confidence:  0.8,
	}}
	ts := newTestServer(t, Config{}, pipeline.Config{}, client, session.NewMemoryStore())

	resp := do(t, ts, nil, http.MethodPost, "/api/diagrams", `{"input":"reparto del presupuesto","context":"pie chart"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body := decodeBody[model.Diagram](t, resp)
	assert.Equal(t, model.SourceAI, body.Data.Source)
	assert.Equal(t, model.KindPie, body.Data.Kind)
	assert.Equal(t, 0.8, body.Data.Confidence)
}

func TestGenerateErrors(t *testing.T) {
	tests := []struct {
		name    string
		pcfg    pipeline.Config
		client  ai.Client
		store   session.Store
		cfg     Config
		body    string
		status  int
		message string
	}{
		{
			name:    "blank input",
			body:    `{"input":"   "}`,
			status:  http.StatusBadRequest,
			message: msgEmptyInput,
		},
		{
			name:    "malformed json",
			body:    `{"input":`,
			status:  http.StatusBadRequest,
			message: msgBadRequest,
		},
		{
			name:    "body too large",
			cfg:     Config{MaxInputBytes: 16},
			body:    `{"input":"` + strings.Repeat("a", 64) + `"}`,
			status:  http.StatusRequestEntityTooLarge,
			message: msgTooLarge,
		},
		{
			name:    "ai failure without fallback",
			pcfg:    pipeline.Config{Fallback: pipeline.PolicyNone},
			client:  stubAI{err: errors.New("quota exceeded")},
			body:    `{"input":"login de usuario"}`,
			status:  http.StatusBadGateway,
			message: msgAIFailed + "quota exceeded",
		},
		{
			name:    "store failure",
			store:   failingStore{session.NewMemoryStore()},
			body:    `{"input":"login de usuario"}`,
			status:  http.StatusInternalServerError,
			message: msgGenerateFail,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := tt.client
			if client == nil {
				client = ai.Disabled{}
			}
			store := tt.store
			if store == nil {
				store = session.NewMemoryStore()
			}
			ts := newTestServer(t, tt.cfg, tt.pcfg, client, store)

			resp := do(t, ts, nil, http.MethodPost, "/api/diagrams", tt.body)
			assert.Equal(t, tt.status, resp.StatusCode)

			body := decodeBody[model.Diagram](t, resp)
			assert.False(t, body.Success)
			assert.Nil(t, body.Data)
			assert.Equal(t, tt.message, body.Error)
		})
	}
}

func TestClassify(t *testing.T) {
	ts := defaultServer(t)

	resp := do(t, ts, nil, http.MethodPost, "/api/classify", `{"input":"herencia de objetos"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body := decodeBody[model.Classification](t, resp)
	assert.Equal(t, model.KindClassDiagram, body.Data.Kind)
	assert.True(t, strings.HasPrefix(body.Data.Markup, "classDiagram"))

	blank := do(t, ts, nil, http.MethodPost, "/api/classify", `{"input":""}`)
	assert.Equal(t, http.StatusBadRequest, blank.StatusCode)
}

func TestStyle(t *testing.T) {
	ts := defaultServer(t)

	code := "graph TD\n  A[Inicio] --> B[Fin]\n"
	payload, err := json.Marshal(styleBody{Code: code})
	require.NoError(t, err)

	resp := do(t, ts, nil, http.MethodPost, "/api/style", string(payload))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := decodeBody[styleBody](t, resp)
	assert.Equal(t, diagram.ApplyStyling(code), body.Data.Code)

	bad := do(t, ts, nil, http.MethodPost, "/api/style", `{"code":"hola"}`)
	assert.Equal(t, http.StatusBadRequest, bad.StatusCode)
	assert.Equal(t, msgBadMermaid, decodeBody[styleBody](t, bad).Error)
}

func TestHealthAndMetrics(t *testing.T) {
	ts := defaultServer(t)

	health := do(t, ts, nil, http.MethodGet, "/api/health", "")
	assert.Equal(t, http.StatusOK, health.StatusCode)

	do(t, ts, nil, http.MethodPost, "/api/diagrams", `{"input":"compra en la tienda"}`)

	resp := do(t, ts, nil, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `texto_diagrama_diagrams_generated_total{kind="flowchart",source="heuristic"} 1`)
	assert.Contains(t, string(raw), `texto_diagrama_heuristic_fallbacks_total{reason="not_configured"} 1`)
}

func TestCORSPreflight(t *testing.T) {
	ts := defaultServer(t)

	resp := do(t, ts, nil, http.MethodOptions, "/api/diagrams", "")
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
	assert.Contains(t, resp.Header.Get("Access-Control-Allow-Methods"), "DELETE")
}

func TestStaticFiles(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "index.html"), []byte("<h1>hola</h1>"), 0o600))
	ts := newTestServer(t, Config{StaticDir: dir}, pipeline.Config{}, ai.Disabled{}, session.NewMemoryStore())

	resp := do(t, ts, nil, http.MethodGet, "/", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "<h1>hola</h1>", string(raw))
}

func TestSessionIDRejectsForgedCookie(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: sessionCookie, Value: "../../etc"})

	id := sessionID(rec, req)
	assert.NotEqual(t, "../../etc", id)
	assert.Contains(t, rec.Header().Get("Set-Cookie"), id)
}

package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/fredericrous/texto-diagrama/internal/diagram"
	"github.com/fredericrous/texto-diagrama/internal/model"
	"github.com/fredericrous/texto-diagrama/internal/pipeline"
	"github.com/fredericrous/texto-diagrama/internal/session"
)

const sessionCookie = "session_id"

// User-facing messages.
const (
	msgEmptyInput   = "Por favor, introduce algún texto"
	msgBadRequest   = "Solicitud inválida"
	msgTooLarge     = "El texto es demasiado largo"
	msgBadMermaid   = "Código Mermaid inválido"
	msgNoDiagram    = "No hay ningún diagrama en esta sesión"
	msgAIFailed     = "Error al generar diagrama con IA: "
	msgGenerateFail = "Error al generar diagrama. Verifica tu conexión a internet y la configuración de la API."
	msgInternal     = "Error interno del servidor"
)

// Config holds server configuration.
type Config struct {
	Port            int           `koanf:"port"`
	StaticDir       string        `koanf:"static_dir"`
	MaxInputBytes   int64         `koanf:"max_input_bytes"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

// Server serves the diagram API.
type Server struct {
	cfg      Config
	pipeline *pipeline.Pipeline
	gatherer prometheus.Gatherer
}

// New creates a new Server. Metrics are exposed from gatherer.
func New(cfg Config, p *pipeline.Pipeline, gatherer prometheus.Gatherer) *Server {
	if cfg.MaxInputBytes <= 0 {
		cfg.MaxInputBytes = 64 << 10
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = 5 * time.Second
	}
	return &Server{cfg: cfg, pipeline: p, gatherer: gatherer}
}

// Handler returns the routed API with CORS applied.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/diagrams", s.handleGenerate)
	mux.HandleFunc("GET /api/diagrams/current", s.handleCurrent)
	mux.HandleFunc("DELETE /api/diagrams/current", s.handleClear)
	mux.HandleFunc("POST /api/classify", s.handleClassify)
	mux.HandleFunc("POST /api/style", s.handleStyle)
	mux.HandleFunc("GET /api/health", s.handleHealth)
	mux.Handle("GET /metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	if s.cfg.StaticDir != "" {
		mux.Handle("GET /", http.FileServer(http.Dir(s.cfg.StaticDir)))
	}
	return withCORS(mux)
}

// Start serves HTTP until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	addr := fmt.Sprintf(":%d", s.cfg.Port)
	slog.Info("starting server", "addr", addr, "static", s.cfg.StaticDir)

	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	var req model.GenerateRequest
	if !s.decode(w, r, &req) {
		return
	}
	if !diagram.ValidateText(req.Input) {
		writeError(w, http.StatusBadRequest, msgEmptyInput)
		return
	}

	d, err := s.pipeline.Generate(r.Context(), sessionID(w, r), req)
	switch {
	case err == nil:
		writeData(w, http.StatusOK, d)
	case errors.Is(err, pipeline.ErrEmptyInput):
		writeError(w, http.StatusBadRequest, msgEmptyInput)
	case errors.Is(err, pipeline.ErrAIFailed):
		slog.Warn("AI generation failed", "error", err)
		writeError(w, http.StatusBadGateway, msgAIFailed+aiCause(err))
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		slog.Info("client left before the diagram was ready", "error", err)
		writeError(w, http.StatusServiceUnavailable, msgGenerateFail)
	default:
		slog.Error("diagram generation failed", "error", err)
		writeError(w, http.StatusInternalServerError, msgGenerateFail)
	}
}

func (s *Server) handleCurrent(w http.ResponseWriter, r *http.Request) {
	d, err := s.pipeline.Current(r.Context(), sessionID(w, r))
	switch {
	case err == nil:
		writeData(w, http.StatusOK, d)
	case errors.Is(err, session.ErrNotFound):
		writeError(w, http.StatusNotFound, msgNoDiagram)
	default:
		slog.Error("loading current diagram", "error", err)
		writeError(w, http.StatusInternalServerError, msgInternal)
	}
}

func (s *Server) handleClear(w http.ResponseWriter, r *http.Request) {
	if err := s.pipeline.Clear(r.Context(), sessionID(w, r)); err != nil {
		slog.Error("clearing diagram", "error", err)
		writeError(w, http.StatusInternalServerError, msgInternal)
		return
	}
	writeJSON(w, http.StatusOK, model.APIResponse[struct{}]{Success: true})
}

func (s *Server) handleClassify(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Input string `json:"input"`
	}
	if !s.decode(w, r, &req) {
		return
	}
	if !diagram.ValidateText(req.Input) {
		writeError(w, http.StatusBadRequest, msgEmptyInput)
		return
	}
	c := diagram.Classify(req.Input)
	writeData(w, http.StatusOK, &c)
}

type styleBody struct {
	Code string `json:"code"`
}

func (s *Server) handleStyle(w http.ResponseWriter, r *http.Request) {
	var req styleBody
	if !s.decode(w, r, &req) {
		return
	}
	if !diagram.ValidateMermaid(req.Code) {
		writeError(w, http.StatusBadRequest, msgBadMermaid)
		return
	}
	writeData(w, http.StatusOK, &styleBody{Code: diagram.ApplyStyling(req.Code)})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}

// decode reads a size-capped JSON body into v, answering the request itself
// when that fails.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxInputBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, msgTooLarge)
			return false
		}
		writeError(w, http.StatusBadRequest, msgBadRequest)
		return false
	}
	return true
}

// sessionID returns the caller's session, minting a cookie on first contact.
func sessionID(w http.ResponseWriter, r *http.Request) string {
	if c, err := r.Cookie(sessionCookie); err == nil {
		if _, err := uuid.Parse(c.Value); err == nil {
			return c.Value
		}
	}
	id := uuid.NewString()
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    id,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	return id
}

// aiCause strips the pipeline's wrapping so users see the provider's message.
func aiCause(err error) string {
	return strings.TrimPrefix(err.Error(), pipeline.ErrAIFailed.Error()+": ")
}

func writeData[T any](w http.ResponseWriter, status int, data *T) {
	writeJSON(w, status, model.APIResponse[T]{Success: true, Data: data})
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, model.APIResponse[struct{}]{Error: msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("writing response", "error", err)
	}
}

func withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

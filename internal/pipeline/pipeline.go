// Package pipeline orchestrates diagram generation: the AI collaborator is
// tried first and, depending on the fallback policy, the keyword heuristic
// takes over when it fails. Results become the session's current diagram.
package pipeline

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/zeebo/blake3"
	"golang.org/x/sync/semaphore"
	"golang.org/x/sync/singleflight"

	"github.com/fredericrous/texto-diagrama/internal/ai"
	"github.com/fredericrous/texto-diagrama/internal/diagram"
	"github.com/fredericrous/texto-diagrama/internal/metrics"
	"github.com/fredericrous/texto-diagrama/internal/model"
	"github.com/fredericrous/texto-diagrama/internal/session"
)

// Policy decides what happens when the AI call fails.
type Policy string

const (
	// PolicyHeuristic answers with the keyword heuristic.
	PolicyHeuristic Policy = "heuristic"
	// PolicyNone reports the AI error to the caller.
	PolicyNone Policy = "none"
)

var (
	ErrEmptyInput = errors.New("empty input")
	ErrAIFailed   = errors.New("AI generation failed")
)

// Config tunes the pipeline.
type Config struct {
	Fallback        Policy        `koanf:"fallback"`
	Styling         bool          `koanf:"styling"`
	AITimeout       time.Duration `koanf:"ai_timeout"`
	MaxConcurrentAI int64         `koanf:"max_concurrent_ai"`
}

// Pipeline generates diagrams and tracks each session's current one.
type Pipeline struct {
	cfg     Config
	ai      ai.Client
	store   session.Store
	titler  *diagram.Titler
	metrics *metrics.Metrics

	sem   *semaphore.Weighted
	group singleflight.Group
	now   func() time.Time
}

// New wires a Pipeline. All dependencies are required.
func New(cfg Config, client ai.Client, store session.Store, m *metrics.Metrics, titler *diagram.Titler) *Pipeline {
	if cfg.Fallback == "" {
		cfg.Fallback = PolicyHeuristic
	}
	if cfg.AITimeout <= 0 {
		cfg.AITimeout = 30 * time.Second
	}
	if cfg.MaxConcurrentAI <= 0 {
		cfg.MaxConcurrentAI = 4
	}
	return &Pipeline{
		cfg:     cfg,
		ai:      client,
		store:   store,
		titler:  titler,
		metrics: m,
		sem:     semaphore.NewWeighted(cfg.MaxConcurrentAI),
		now:     time.Now,
	}
}

// draft is a generated diagram before it is titled and assigned to a session.
type draft struct {
	code       string
	kind       model.DiagramKind
	source     model.Source
	confidence float64
}

// Generate produces a diagram for req and stores it as the session's
// current diagram. Identical concurrent requests share one generation.
func (p *Pipeline) Generate(ctx context.Context, sessionID string, req model.GenerateRequest) (*model.Diagram, error) {
	if !diagram.ValidateText(req.Input) {
		return nil, ErrEmptyInput
	}

	// The shared generation outlives any single caller; a caller that gives
	// up leaves it running for the others.
	ch := p.group.DoChan(fingerprint(req), func() (any, error) {
		return p.generate(context.WithoutCancel(ctx), req)
	})

	var res singleflight.Result
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res = <-ch:
	}
	if res.Err != nil {
		return nil, res.Err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	dr := res.Val.(draft)

	d := model.Diagram{
		ID:         uuid.NewString(),
		Code:       dr.code,
		Kind:       dr.kind,
		Title:      p.titler.Title(req.Input, dr.kind),
		Source:     dr.source,
		Confidence: dr.confidence,
		CreatedAt:  p.now().UTC(),
	}

	if err := p.store.Put(ctx, sessionID, d); err != nil {
		return nil, fmt.Errorf("storing diagram: %w", err)
	}

	p.metrics.DiagramsGenerated.WithLabelValues(string(d.Source), string(d.Kind)).Inc()
	slog.Info("diagram generated",
		"id", d.ID,
		"kind", d.Kind,
		"source", d.Source,
		"shared", res.Shared,
	)
	return &d, nil
}

func (p *Pipeline) generate(ctx context.Context, req model.GenerateRequest) (draft, error) {
	resp, err := p.callAI(ctx, req)
	if err == nil && !resp.DiagramType.Valid() {
		err = fmt.Errorf("%w: unknown diagram type %q", ai.ErrInvalidResponse, resp.DiagramType)
	}
	if err == nil {
		dr := draft{
			code:       resp.MermaidCode,
			kind:       resp.DiagramType,
			source:     model.SourceAI,
			confidence: resp.Confidence,
		}
		return p.finish(dr), nil
	}

	if p.cfg.Fallback == PolicyNone {
		return draft{}, fmt.Errorf("%w: %w", ErrAIFailed, err)
	}

	reason := fallbackReason(err)
	p.metrics.Fallbacks.WithLabelValues(reason).Inc()
	slog.Warn("AI generation failed, using heuristic", "provider", p.ai.Name(), "reason", reason, "error", err)

	c := diagram.Classify(req.Input)
	return p.finish(draft{code: c.Markup, kind: c.Kind, source: model.SourceHeuristic}), nil
}

func (p *Pipeline) finish(dr draft) draft {
	if p.cfg.Styling {
		dr.code = diagram.ApplyStyling(dr.code)
	}
	return dr
}

func (p *Pipeline) callAI(ctx context.Context, req model.GenerateRequest) (*model.GenerateResponse, error) {
	// The timeout covers waiting for a slot as well as the call itself.
	ctx, cancel := context.WithTimeout(ctx, p.cfg.AITimeout)
	defer cancel()

	if err := p.sem.Acquire(ctx, 1); err != nil {
		return nil, fmt.Errorf("waiting for AI slot: %w", err)
	}
	defer p.sem.Release(1)

	provider := p.ai.Name()
	start := time.Now()
	resp, err := p.ai.Generate(ctx, req)
	p.metrics.AIDuration.WithLabelValues(provider).Observe(time.Since(start).Seconds())

	outcome := "success"
	if err != nil {
		outcome = fallbackReason(err)
	}
	p.metrics.AIRequests.WithLabelValues(provider, outcome).Inc()
	return resp, err
}

func fallbackReason(err error) string {
	switch {
	case errors.Is(err, ai.ErrNotConfigured):
		return "not_configured"
	case errors.Is(err, ai.ErrInvalidResponse):
		return "invalid_response"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	default:
		return "error"
	}
}

// fingerprint identifies a request for deduplication.
func fingerprint(req model.GenerateRequest) string {
	sum := blake3.Sum256([]byte(req.Input + "\x00" + req.Context))
	return hex.EncodeToString(sum[:])
}

// Current returns the session's current diagram.
func (p *Pipeline) Current(ctx context.Context, sessionID string) (*model.Diagram, error) {
	return p.store.Get(ctx, sessionID)
}

// Clear drops the session's current diagram.
func (p *Pipeline) Clear(ctx context.Context, sessionID string) error {
	return p.store.Delete(ctx, sessionID)
}

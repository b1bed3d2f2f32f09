package model

import "time"

// DiagramKind is the closed set of Mermaid diagram types the service emits.
type DiagramKind string

const (
	KindFlowchart    DiagramKind = "flowchart"
	KindSequence     DiagramKind = "sequence"
	KindClassDiagram DiagramKind = "classDiagram"
	KindERDiagram    DiagramKind = "erDiagram"
	KindJourney      DiagramKind = "journey"
	KindGantt        DiagramKind = "gantt"
	KindPie          DiagramKind = "pie"
	KindGitGraph     DiagramKind = "gitgraph"
)

// Valid reports whether k is one of the known diagram kinds.
func (k DiagramKind) Valid() bool {
	switch k {
	case KindFlowchart, KindSequence, KindClassDiagram, KindERDiagram,
		KindJourney, KindGantt, KindPie, KindGitGraph:
		return true
	}
	return false
}

// Source records which generator produced a diagram.
type Source string

const (
	SourceAI        Source = "ai"
	SourceHeuristic Source = "heuristic"
)

// Classification is the output of the keyword heuristic.
type Classification struct {
	Markup string      `json:"markup"`
	Kind   DiagramKind `json:"kind"`
}

// Diagram is a generated diagram held as a session's current artifact.
type Diagram struct {
	ID         string      `json:"id"`
	Code       string      `json:"code"`
	Kind       DiagramKind `json:"type"`
	Title      string      `json:"title"`
	Source     Source      `json:"source"`
	Confidence float64     `json:"confidence"`
	CreatedAt  time.Time   `json:"createdAt"`
}

// GenerateRequest is the input handed to a diagram generator.
type GenerateRequest struct {
	Input   string `json:"input"`
	Context string `json:"context,omitempty"`
}

// GenerateResponse is what an AI generator returns on success.
type GenerateResponse struct {
	MermaidCode string      `json:"mermaidCode"`
	DiagramType DiagramKind `json:"diagramType"`
	Confidence  float64     `json:"confidence"`
}

// APIResponse is the JSON envelope returned by every API endpoint.
type APIResponse[T any] struct {
	Success bool   `json:"success"`
	Data    *T     `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

package diagram

import (
	"fmt"
	"strings"

	"github.com/fredericrous/texto-diagrama/internal/model"
)

// mermaidKeywords are the diagram declarations recognised as Mermaid markup.
var mermaidKeywords = []string{
	"graph", "flowchart", "sequenceDiagram", "classDiagram",
	"erDiagram", "journey", "gantt", "pie", "gitgraph",
}

// quote wraps a string in double quotes for Mermaid labels.
func quote(s string) string {
	return fmt.Sprintf(`"%s"`, s)
}

// ValidateText reports whether the input has any non-blank content.
func ValidateText(s string) bool {
	return strings.TrimSpace(s) != ""
}

// ValidateMermaid is a loose syntax check: the code must mention a diagram keyword.
func ValidateMermaid(code string) bool {
	for _, kw := range mermaidKeywords {
		if strings.Contains(code, kw) {
			return true
		}
	}
	return false
}

// StripAngleBrackets trims the input and drops '<' and '>' so user text
// cannot smuggle markup into a prompt or a label.
func StripAngleBrackets(s string) string {
	return strings.NewReplacer("<", "", ">", "").Replace(strings.TrimSpace(s))
}

// KindOf infers the diagram kind from the markup's leading declaration,
// skipping a %%{init}%% theme block and %% comments.
func KindOf(markup string) model.DiagramKind {
	for _, line := range strings.Split(markup, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "%%") {
			continue
		}
		switch {
		case strings.HasPrefix(line, "classDiagram"):
			return model.KindClassDiagram
		case strings.HasPrefix(line, "sequenceDiagram"):
			return model.KindSequence
		case strings.HasPrefix(line, "erDiagram"):
			return model.KindERDiagram
		case strings.HasPrefix(line, "journey"):
			return model.KindJourney
		case strings.HasPrefix(line, "gantt"):
			return model.KindGantt
		case strings.HasPrefix(line, "pie"):
			return model.KindPie
		case strings.HasPrefix(line, "gitGraph"), strings.HasPrefix(line, "gitgraph"):
			return model.KindGitGraph
		}
		return model.KindFlowchart
	}
	return model.KindFlowchart
}

// isFlowchart reports whether the markup uses the directed-graph form.
func isFlowchart(markup string) bool {
	trimmed := strings.TrimSpace(markup)
	return strings.HasPrefix(trimmed, "graph") || strings.HasPrefix(trimmed, "flowchart")
}

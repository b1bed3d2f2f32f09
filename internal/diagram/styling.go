package diagram

import (
	"fmt"
	"regexp"
	"strings"
)

const themeMarker = "%%{init"

const themeHeader = `%%{init: {"theme": "base", "themeVariables": {` +
	`"primaryColor": "#1f2937", "primaryTextColor": "#f9fafb", ` +
	`"primaryBorderColor": "#6366f1", "lineColor": "#9ca3af", ` +
	`"fontFamily": "Inter, sans-serif"}}}%%` + "\n"

// styleCategory pairs trigger keywords with a node style. Order is priority.
type styleCategory struct {
	name     string
	keywords []string
}

var styleCategories = []styleCategory{
	{"process", []string{"start", "inicio"}},
	{"input", []string{"recording", "input", "entrada"}},
	{"ai", []string{"transcribe", "ai", "modelo"}},
	{"generation", []string{"generate", "create", "process"}},
	{"decision", []string{"select", "choose", "¿"}},
	{"storage", []string{"save", "database", "store"}},
	{"management", []string{"management", "admin", "configure"}},
	{"search", []string{"search", "query"}},
}

var styleFills = map[string]string{
	"process":    "fill:#4f46e5,stroke:#312e81,color:#ffffff",
	"input":      "fill:#0891b2,stroke:#164e63,color:#ffffff",
	"ai":         "fill:#9333ea,stroke:#581c87,color:#ffffff",
	"generation": "fill:#16a34a,stroke:#14532d,color:#ffffff",
	"decision":   "fill:#d97706,stroke:#78350f,color:#ffffff",
	"storage":    "fill:#475569,stroke:#1e293b,color:#ffffff",
	"management": "fill:#db2777,stroke:#831843,color:#ffffff",
	"search":     "fill:#0d9488,stroke:#134e4a,color:#ffffff",
	"action":     "fill:#374151,stroke:#111827,color:#f9fafb",
}

// nodeDef matches a node definition: an id followed by [label], (label),
// {label} or the asymmetric >label].
var nodeDef = regexp.MustCompile(`([A-Za-z][A-Za-z0-9_]*)\s*(?:\[[^\]]*\]|\([^\)]*\)|\{[^\}]*\}|>[^\]]*\])`)

// edgeLabel matches |text| labels on links, which never define nodes.
var edgeLabel = regexp.MustCompile(`\|[^|]*\|`)

// inlineEdgeLabel matches the "-- text -->" link form (also == text ==> and
// -. text .->). The leading rune keeps --- and --> arrows from opening a match.
var inlineEdgeLabel = regexp.MustCompile(`(?:^|[^-=.])(?:--|==|-\.)\s+.*?\s+(?:-->|---|==>|===|\.->)`)

// ApplyStyling prepends the theme header and, for flowcharts, appends one
// style directive per defined node. Markup that already carries a theme
// block is returned unchanged, which makes the function idempotent.
func ApplyStyling(markup string) string {
	if strings.Contains(markup, themeMarker) {
		return markup
	}

	if !isFlowchart(markup) {
		return themeHeader + markup
	}

	var directives []string
	seen := make(map[string]bool)
	for _, line := range strings.Split(markup, "\n") {
		matches := nodeDef.FindAllStringSubmatch(stripEdgeLabels(line), -1)
		if len(matches) == 0 {
			continue
		}
		category := inferStyleCategory(strings.ToLower(line))
		for _, m := range matches {
			id := m[1]
			if seen[id] {
				continue
			}
			seen[id] = true
			directives = append(directives, fmt.Sprintf("  style %s %s", id, styleFills[category]))
		}
	}

	var b strings.Builder
	b.WriteString(themeHeader)
	b.WriteString(strings.TrimRight(markup, "\n"))
	b.WriteString("\n")
	for _, d := range directives {
		b.WriteString(d)
		b.WriteString("\n")
	}
	return b.String()
}

// stripEdgeLabels removes link labels so their text is not read as nodes.
func stripEdgeLabels(line string) string {
	line = edgeLabel.ReplaceAllString(line, "")
	return inlineEdgeLabel.ReplaceAllString(line, " ")
}

func inferStyleCategory(lowered string) string {
	for _, c := range styleCategories {
		for _, kw := range c.keywords {
			if strings.Contains(lowered, kw) {
				return c.name
			}
		}
	}
	return "action"
}

package diagram

import (
	_ "embed"
	"fmt"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"

	"github.com/fredericrous/texto-diagrama/internal/model"
)

//go:embed rules.yaml
var rulesYAML []byte

// Rule maps a set of trigger substrings to a fixed diagram template.
type Rule struct {
	Name     string   `yaml:"name"`
	Triggers []string `yaml:"triggers"`
	Template string   `yaml:"template"`
}

// matches reports whether any trigger is a substring of lowered.
func (r Rule) matches(lowered string) bool {
	for _, t := range r.Triggers {
		if strings.Contains(lowered, t) {
			return true
		}
	}
	return false
}

var rules = mustLoadRules(rulesYAML)

func mustLoadRules(data []byte) []Rule {
	var file struct {
		Rules []Rule `yaml:"rules"`
	}
	if err := yaml.Unmarshal(data, &file); err != nil {
		panic(fmt.Sprintf("parsing embedded rules: %v", err))
	}
	if len(file.Rules) == 0 {
		panic("embedded rules: no rules defined")
	}
	return file.Rules
}

var stopWords = map[string]bool{
	"para": true, "pero": true, "este": true, "esta": true, "solo": true,
	"cada": true, "todo": true, "todos": true, "todas": true,
}

// slotDefaults fill the word template when fewer than four words qualify.
var slotDefaults = [4]string{"Inicio", "Proceso", "Análisis", "Resultado"}

const defaultTemplate = "graph TD\n" +
	"  A[Inicio] --> B[Proceso]\n" +
	"  B --> C[Resultado]\n" +
	"  C --> D[Fin]\n"

// Classify turns raw text into a canned Mermaid diagram. Keyword rules are
// tried in priority order; without a match the most significant words of
// the input become the nodes of a linear flow. It never fails.
func Classify(raw string) model.Classification {
	sanitized := Sanitize(raw)
	lowered := strings.ToLower(sanitized)

	markup := ""
	for _, r := range rules {
		if r.matches(lowered) {
			markup = r.Template
			break
		}
	}
	if markup == "" {
		markup = wordTemplate(significantWords(sanitized, 4))
	}

	kind := model.KindFlowchart
	if strings.HasPrefix(markup, "classDiagram") {
		kind = model.KindClassDiagram
	}
	return model.Classification{Markup: markup, Kind: kind}
}

// significantWords returns up to limit title-cased words longer than three
// runes that are not stop words, in input order.
func significantWords(text string, limit int) []string {
	var words []string
	for _, w := range strings.Fields(text) {
		if utf8.RuneCountInString(w) <= 3 || stopWords[strings.ToLower(w)] {
			continue
		}
		words = append(words, titleCase(w))
		if len(words) == limit {
			break
		}
	}
	return words
}

// titleCase upper-cases the first rune and lower-cases the rest.
// Casers keep state, so a fresh pair is built per call.
func titleCase(w string) string {
	r, size := utf8.DecodeRuneInString(w)
	if r == utf8.RuneError {
		return w
	}
	upper := cases.Upper(language.Spanish)
	lower := cases.Lower(language.Spanish)
	return upper.String(w[:size]) + lower.String(w[size:])
}

func wordTemplate(words []string) string {
	if len(words) < 2 {
		return defaultTemplate
	}

	labels := slotDefaults
	copy(labels[:], words)

	var b strings.Builder
	b.WriteString("graph TD\n")
	b.WriteString(fmt.Sprintf("  A[%s] --> B[%s]\n", quote(labels[0]), quote(labels[1])))
	b.WriteString(fmt.Sprintf("  B --> C[%s]\n", quote(labels[2])))
	b.WriteString(fmt.Sprintf("  C --> D[%s]\n", quote(labels[3])))
	return b.String()
}

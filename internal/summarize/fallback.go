package summarize

import (
	"context"
	"encoding/json"
	"strings"
	"unicode"
)

// FallbackProvider classifies purely from keyword and label matching. It
// makes no network calls, always succeeds, and is always available. The
// structured unit context arrives on the request directly; prompts are
// ignored.
type FallbackProvider struct {
	model string
}

// NewFallbackProvider builds the heuristic provider; model only labels the
// output, it changes no behavior.
func NewFallbackProvider(model string) *FallbackProvider {
	if model == "" {
		model = "fallback"
	}
	return &FallbackProvider{model: model}
}

// Name implements Provider.
func (p *FallbackProvider) Name() string { return "fallback" }

// DefaultModel implements Provider.
func (p *FallbackProvider) DefaultModel() string { return p.model }

// Generate implements Provider.
func (p *FallbackProvider) Generate(_ context.Context, req Request) (Response, error) {
	unit := UnitContext{}
	if req.Context != nil {
		unit = *req.Context
	}

	payload := heuristicSummary(unit)
	encoded, err := json.Marshal(payload)
	if err != nil {
		return Response{}, err
	}
	model := req.Model
	if model == "" {
		model = p.model
	}
	return Response{Model: model, Payload: encoded}, nil
}

func heuristicSummary(unit UnitContext) summaryPayload {
	title := unit.Title
	if title == "" {
		title = firstLine(unit.Message)
	}
	title = strings.TrimRight(strings.TrimSpace(title), ".")

	labels := make([]string, 0, len(unit.Labels))
	for _, label := range unit.Labels {
		labels = append(labels, strings.ToLower(label))
	}

	class := classifyFromText(title, unit.Body, labels)
	visibility := string(VisibilityUser)
	if class == string(ClassInternal) {
		visibility = string(VisibilityInternal)
	}

	summary := title
	if summary == "" {
		summary = "Update"
	}
	summary = capitalize(summary)

	return summaryPayload{
		Summary:    summary,
		Class:      class,
		Visibility: visibility,
		Refs:       unit.Refs,
	}
}

func classifyFromText(title, body string, labels []string) string {
	text := strings.ToLower(title + "\n" + body)
	switch {
	case anyLabelContains(labels, "break") || strings.Contains(text, "breaking"):
		return string(ClassBreaking)
	case anyLabelIn(labels, "feature", "enhancement", "feat") || strings.Contains(text, "feature"):
		return string(ClassFeature)
	case anyLabelIn(labels, "bug", "fix") || strings.Contains(text, "fix") || strings.Contains(text, "bug"):
		return string(ClassFix)
	case strings.Contains(text, "doc") || anyLabelContains(labels, "doc"):
		return string(ClassDocs)
	case strings.Contains(text, "perf") || anyLabelContains(labels, "perf"):
		return string(ClassPerf)
	case strings.Contains(text, "security") || anyLabelContains(labels, "security"):
		return string(ClassSecurity)
	case strings.Contains(text, "refactor") || anyLabelIn(labels, "chore", "internal"):
		return string(ClassInternal)
	}
	return string(ClassFeature)
}

func anyLabelContains(labels []string, fragment string) bool {
	for _, label := range labels {
		if strings.Contains(label, fragment) {
			return true
		}
	}
	return false
}

func anyLabelIn(labels []string, values ...string) bool {
	for _, label := range labels {
		for _, value := range values {
			if label == value {
				return true
			}
		}
	}
	return false
}

func firstLine(text string) string {
	if idx := strings.IndexByte(text, '\n'); idx != -1 {
		return text[:idx]
	}
	return text
}

func capitalize(s string) string {
	runes := []rune(s)
	if len(runes) == 0 || unicode.IsUpper(runes[0]) {
		return s
	}
	runes[0] = unicode.ToUpper(runes[0])
	return string(runes)
}

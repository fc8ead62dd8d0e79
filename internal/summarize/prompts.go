package summarize

import (
	"encoding/json"
	"fmt"
)

// MapSystemPrompt primes the provider for changelog-blurb writing.
const MapSystemPrompt = "You write concise changelog blurbs that clearly state what changed."

// MapSchema is the JSON schema the provider's output must satisfy.
var MapSchema = map[string]any{
	"name": "MapSummary",
	"type": "object",
	"properties": map[string]any{
		"summary": map[string]any{"type": "string"},
		"class": map[string]any{
			"type": "string",
			"enum": []string{"feature", "fix", "perf", "docs", "security", "breaking", "internal"},
		},
		"visibility": map[string]any{
			"type": "string",
			"enum": []string{"user-visible", "internal"},
		},
		"refs": map[string]any{
			"type":  "array",
			"items": map[string]any{"type": "string"},
		},
	},
	"required": []string{"summary", "class", "visibility", "refs"},
}

// BuildMapUserPrompt renders the user prompt for one change unit.
func BuildMapUserPrompt(unit UnitContext) string {
	contextJSON, err := json.MarshalIndent(unit, "", "  ")
	if err != nil {
		contextJSON = []byte("{}")
	}
	return fmt.Sprintf(
		"Given this change context (title, body, labels, linked issues, file paths, diff stats, and selected code hunks),\n"+
			"- Write ONE short sentence (<=18 words) that states the actual change.\n"+
			"- Do not copy commit or PR titles verbatim; synthesize the core change instead.\n"+
			"- Classify one of: feature, fix, perf, docs, security, breaking, internal.\n"+
			"- Set visibility to internal only if the change has no external effect.\n"+
			"Return JSON: {\"summary\":\"...\", \"class\":\"...\", \"visibility\":\"user-visible|internal\", \"refs\":[...]}.\n"+
			"\nchange context:\n%s\n",
		contextJSON,
	)
}

package summarize

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFallbackClassification(t *testing.T) {
	tests := map[string]struct {
		unit           UnitContext
		wantClass      string
		wantVisibility string
	}{
		"breaking keyword in title": {
			unit:           UnitContext{Type: SourceCommit, Message: "breaking: remove v1 endpoints"},
			wantClass:      "breaking",
			wantVisibility: "user-visible",
		},
		"breaking label wins over fix text": {
			unit:           UnitContext{Type: SourcePullRequest, Title: "Fix pagination", Labels: []string{"breaking-change"}},
			wantClass:      "breaking",
			wantVisibility: "user-visible",
		},
		"fix keyword": {
			unit:           UnitContext{Type: SourceCommit, Message: "fix: handle empty input"},
			wantClass:      "fix",
			wantVisibility: "user-visible",
		},
		"bug label": {
			unit:           UnitContext{Type: SourcePullRequest, Title: "Handle nil pointer", Labels: []string{"bug"}},
			wantClass:      "fix",
			wantVisibility: "user-visible",
		},
		"docs keyword": {
			unit:           UnitContext{Type: SourceCommit, Message: "docs: update quickstart"},
			wantClass:      "docs",
			wantVisibility: "user-visible",
		},
		"perf keyword": {
			unit:           UnitContext{Type: SourceCommit, Message: "perf: reduce allocations in parser"},
			wantClass:      "perf",
			wantVisibility: "user-visible",
		},
		"security keyword": {
			unit:           UnitContext{Type: SourceCommit, Message: "security: bound header size"},
			wantClass:      "security",
			wantVisibility: "user-visible",
		},
		"refactor is internal": {
			unit:           UnitContext{Type: SourceCommit, Message: "refactor config loading"},
			wantClass:      "internal",
			wantVisibility: "internal",
		},
		"chore label is internal": {
			unit:           UnitContext{Type: SourcePullRequest, Title: "Bump toolchain", Labels: []string{"chore"}},
			wantClass:      "internal",
			wantVisibility: "internal",
		},
		"enhancement label is a feature": {
			unit:           UnitContext{Type: SourcePullRequest, Title: "Add CSV export", Labels: []string{"enhancement"}},
			wantClass:      "feature",
			wantVisibility: "user-visible",
		},
		"no signal defaults to feature": {
			unit:           UnitContext{Type: SourceCommit, Message: "add onboarding flow"},
			wantClass:      "feature",
			wantVisibility: "user-visible",
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			payload := heuristicSummary(tt.unit)
			assert.Equal(t, tt.wantClass, payload.Class)
			assert.Equal(t, tt.wantVisibility, payload.Visibility)
		})
	}
}

func TestFallbackSummaryText(t *testing.T) {
	tests := map[string]struct {
		unit UnitContext
		want string
	}{
		"title wins over message": {
			unit: UnitContext{Title: "add retry to uploader", Message: "something else"},
			want: "Add retry to uploader",
		},
		"first line of message": {
			unit: UnitContext{Message: "handle empty input\n\nLong body here."},
			want: "Handle empty input",
		},
		"trailing period trimmed": {
			unit: UnitContext{Title: "Add retry to uploader."},
			want: "Add retry to uploader",
		},
		"empty context": {
			unit: UnitContext{},
			want: "Update",
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, tt.want, heuristicSummary(tt.unit).Summary)
		})
	}
}

func TestFallbackGenerate(t *testing.T) {
	provider := NewFallbackProvider("")
	assert.Equal(t, "fallback", provider.Name())
	assert.Equal(t, "fallback", provider.DefaultModel())

	unit := UnitContext{
		Type:    SourceCommit,
		SHA:     "abc123def456",
		Message: "fix: handle empty input",
		Refs:    []string{"abc123d"},
	}
	resp, err := provider.Generate(context.Background(), Request{Context: &unit})
	require.NoError(t, err)

	var payload summaryPayload
	require.NoError(t, json.Unmarshal(resp.Payload, &payload))
	assert.Equal(t, "Fix: handle empty input", payload.Summary)
	assert.Equal(t, "fix", payload.Class)
	assert.Equal(t, []string{"abc123d"}, payload.Refs)
}

func TestFallbackGenerateNilContext(t *testing.T) {
	provider := NewFallbackProvider("heuristic-v1")
	resp, err := provider.Generate(context.Background(), Request{})
	require.NoError(t, err)
	assert.Equal(t, "heuristic-v1", resp.Model)

	var payload summaryPayload
	require.NoError(t, json.Unmarshal(resp.Payload, &payload))
	assert.Equal(t, "Update", payload.Summary)
}

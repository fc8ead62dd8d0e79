// Package summarize implements the map/reduce summarization pipeline: each
// change unit (pull request, else commit) is condensed into a cached
// one-line mini-summary, then the mini-summaries are merged into ordered,
// deduplicated sections.
package summarize

import (
	"whatsnew/internal/diff"
)

// Classification buckets a change unit. The six-way taxonomy is canonical.
type Classification string

const (
	ClassFeature  Classification = "feature"
	ClassFix      Classification = "fix"
	ClassPerf     Classification = "perf"
	ClassDocs     Classification = "docs"
	ClassSecurity Classification = "security"
	ClassBreaking Classification = "breaking"
	ClassInternal Classification = "internal"
)

var validClassifications = map[Classification]bool{
	ClassFeature:  true,
	ClassFix:      true,
	ClassPerf:     true,
	ClassDocs:     true,
	ClassSecurity: true,
	ClassBreaking: true,
	ClassInternal: true,
}

// Visibility marks whether a change has an external effect.
type Visibility string

const (
	VisibilityUser     Visibility = "user-visible"
	VisibilityInternal Visibility = "internal"
)

// Source kinds for change units.
const (
	SourcePullRequest = "pull_request"
	SourceCommit      = "commit"
)

// IssueRef is a linked issue included in a unit's bounded context.
type IssueRef struct {
	Number int      `json:"number"`
	Title  string   `json:"title"`
	Labels []string `json:"labels,omitempty"`
}

// UnitContext is the bounded context handed to the summarization provider
// for one change unit. It is also the canonical input that the cache
// fingerprints.
type UnitContext struct {
	Type     string          `json:"type"`
	Number   int             `json:"number,omitempty"`
	SHA      string          `json:"sha,omitempty"`
	Title    string          `json:"title,omitempty"`
	Body     string          `json:"body,omitempty"`
	Message  string          `json:"message,omitempty"`
	Author   string          `json:"author,omitempty"`
	Labels   []string        `json:"labels,omitempty"`
	Refs     []string        `json:"refs"`
	Issues   []IssueRef      `json:"issues,omitempty"`
	Files    []diff.FileStat `json:"files,omitempty"`
	Snippets []diff.Snippet  `json:"snippets,omitempty"`
}

// MapItem is the mini-summary for one change unit. Immutable once built.
type MapItem struct {
	SourceID       string
	SourceType     string
	Summary        string
	Classification Classification
	Visibility     Visibility
	Refs           []string
	Metadata       map[string]string
}

// summaryPayload is the provider wire format, also the shape stored in the
// cache as canonical JSON.
type summaryPayload struct {
	Summary    string   `json:"summary"`
	Class      string   `json:"class"`
	Visibility string   `json:"visibility"`
	Refs       []string `json:"refs"`
}

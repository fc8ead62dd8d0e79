// Package outputs renders the reduce result for downstream consumers:
// terminal, Markdown, and JSON. Renderers consume the section list and run
// metadata unchanged; they never reclassify or reorder.
package outputs

import (
	"time"

	"whatsnew/internal/collect"
	"whatsnew/internal/summarize"
)

// RepositoryInfo is the repository slice of a report.
type RepositoryInfo struct {
	Root          string `json:"root"`
	Owner         string `json:"owner,omitempty"`
	Name          string `json:"name,omitempty"`
	DefaultBranch string `json:"default_branch,omitempty"`
	RemoteURL     string `json:"remote_url,omitempty"`
}

// Meta carries run metadata stamped into every rendering.
type Meta struct {
	GeneratedAt     string `json:"generated_at"`
	DroppedInternal int    `json:"dropped_internal"`
	CommitCount     int    `json:"commit_count"`
	PRCount         int    `json:"pr_count"`
	Model           string `json:"model"`
	Tag             string `json:"tag,omitempty"`
	ReleasedAt      string `json:"released_at,omitempty"`
}

// Report is the complete render input for one run.
type Report struct {
	Repository RepositoryInfo      `json:"repository"`
	Range      collect.RangeInfo   `json:"range"`
	Sections   []summarize.Section `json:"sections"`
	Meta       Meta                `json:"meta"`
}

// BuildReport assembles a report from the change set and reduce result.
func BuildReport(changes *collect.ChangeSet, result summarize.Result, model string) Report {
	return Report{
		Repository: RepositoryInfo{
			Root:          changes.Repository.Root,
			Owner:         changes.Repository.Owner,
			Name:          changes.Repository.Name,
			DefaultBranch: changes.Repository.DefaultBranch,
			RemoteURL:     changes.Repository.RemoteURL,
		},
		Range:    changes.Range,
		Sections: result.Sections,
		Meta: Meta{
			GeneratedAt:     result.GeneratedAt.Format(time.RFC3339),
			DroppedInternal: result.DroppedInternal,
			CommitCount:     len(changes.Commits),
			PRCount:         len(changes.Pulls),
			Model:           model,
		},
	}
}

// StampRelease records release metadata for the release subcommand.
func (r *Report) StampRelease(tag string, at time.Time) {
	r.Meta.Tag = tag
	r.Meta.ReleasedAt = at.UTC().Format(time.RFC3339)
}

package summarize

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/sync/errgroup"

	"whatsnew/internal/cache"
	"whatsnew/internal/collect"
	"whatsnew/internal/diff"
	"whatsnew/internal/errors"
	"whatsnew/internal/github"
	"whatsnew/internal/gitrepo"
)

// warnLogger receives map-step warnings (corrupt cache payloads).
var warnLogger func(format string, args ...any)

// SetWarnLogger configures where map-step warnings are reported.
func SetWarnLogger(logger func(format string, args ...any)) {
	warnLogger = logger
}

func logWarn(format string, args ...any) {
	if warnLogger != nil {
		warnLogger(format, args...)
	}
}

// cachePayload is the canonical input fingerprinted by the cache store.
type cachePayload struct {
	Context UnitContext `json:"context"`
}

// RunMap produces one mini-summary per change unit: every pull request
// first, then every commit not already represented by a pull request, in
// that fixed order. Summarization runs on a bounded worker pool; the
// returned order matches unit order regardless of completion order.
func RunMap(ctx context.Context, store *cache.Store, provider Provider, changes *collect.ChangeSet, workers int) ([]MapItem, error) {
	if workers <= 0 {
		workers = 1
	}

	units := buildUnits(changes)
	results := make([]*MapItem, len(units))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, unit := range units {
		i, unit := i, unit
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			item, err := summarizeUnit(gctx, store, provider, unit)
			if err != nil {
				return err
			}
			results[i] = item
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	items := make([]MapItem, 0, len(results))
	for _, item := range results {
		if item != nil {
			items = append(items, *item)
		}
	}
	return items, nil
}

// unit pairs a cache key with its bounded context and metadata.
type unit struct {
	key      string
	context  UnitContext
	metadata map[string]string
}

// buildUnits derives the ordered change-unit list from a change set.
func buildUnits(changes *collect.ChangeSet) []unit {
	issueLookup := map[int]github.IssueInfo{}
	for _, issue := range changes.Issues {
		issueLookup[issue.Number] = issue
	}

	prNumbers := map[int]bool{}
	mergeSHAs := map[string]bool{}
	for _, pr := range changes.Pulls {
		prNumbers[pr.Number] = true
		if pr.MergeCommitSHA != "" {
			mergeSHAs[pr.MergeCommitSHA] = true
		}
	}

	var units []unit
	for _, pr := range changes.Pulls {
		refs := []string{fmt.Sprintf("PR#%d", pr.Number)}
		units = append(units, unit{
			key: fmt.Sprintf("pr:%d", pr.Number),
			context: UnitContext{
				Type:     SourcePullRequest,
				Number:   pr.Number,
				Title:    pr.Title,
				Body:     pr.Body,
				Labels:   pr.Labels,
				Refs:     refs,
				Issues:   linkedIssues(issueLookup, pr.Title, pr.Body),
				Files:    changes.Files,
				Snippets: changes.Snippets,
			},
			metadata: map[string]string{
				"type":   SourcePullRequest,
				"number": strconv.Itoa(pr.Number),
			},
		})
	}

	for _, commit := range changes.Commits {
		if representedByPull(commit, prNumbers, mergeSHAs) {
			continue
		}
		snippets := snippetsForCommit(changes, commit.SHA)
		units = append(units, unit{
			key: "commit:" + commit.SHA,
			context: UnitContext{
				Type:     SourceCommit,
				SHA:      commit.SHA,
				Message:  commit.Message,
				Author:   commit.AuthorName,
				Refs:     []string{commit.ShortSHA()},
				Issues:   linkedIssues(issueLookup, commit.Message),
				Files:    changes.Files,
				Snippets: snippets,
			},
			metadata: map[string]string{
				"type": SourceCommit,
				"sha":  commit.SHA,
				"date": commit.When.Format("2006-01-02T15:04:05Z"),
			},
		})
	}
	return units
}

// representedByPull reports whether a commit is already covered by a
// collected pull request: it is the PR's merge commit, or its message
// references the PR number.
func representedByPull(commit gitrepo.CommitInfo, prNumbers map[int]bool, mergeSHAs map[string]bool) bool {
	if mergeSHAs[commit.SHA] {
		return true
	}
	for _, n := range github.ExtractIssueNumbers(commit.Message) {
		if prNumbers[n] {
			return true
		}
	}
	return false
}

// snippetsForCommit filters the shared snippets to the commit's own sha;
// when none match, the first two global snippets are reused as context.
func snippetsForCommit(changes *collect.ChangeSet, sha string) []diff.Snippet {
	var own []diff.Snippet
	for _, snippet := range changes.Snippets {
		if snippet.SHA == sha {
			own = append(own, snippet)
		}
	}
	if len(own) > 0 {
		return own
	}
	if len(changes.Snippets) > 2 {
		return changes.Snippets[:2]
	}
	return changes.Snippets
}

func linkedIssues(lookup map[int]github.IssueInfo, texts ...string) []IssueRef {
	var refs []IssueRef
	for _, number := range github.ExtractIssueNumbers(texts...) {
		if issue, ok := lookup[number]; ok {
			refs = append(refs, IssueRef{
				Number: issue.Number,
				Title:  issue.Title,
				Labels: issue.Labels,
			})
		}
	}
	return refs
}

// summarizeUnit runs one change unit through the cache and provider. A
// cached payload that fails to parse is invalidated and regenerated once;
// a second failure indicates generator contract breakage and surfaces as
// an error rather than a silent empty result.
func summarizeUnit(ctx context.Context, store *cache.Store, provider Provider, u unit) (*MapItem, error) {
	payload := cachePayload{Context: u.context}

	generator := func() (cache.Generated, error) {
		resp, err := provider.Generate(ctx, Request{
			Model:        provider.DefaultModel(),
			SystemPrompt: MapSystemPrompt,
			UserPrompt:   BuildMapUserPrompt(u.context),
			Schema:       MapSchema,
			Context:      &u.context,
		})
		if err != nil {
			return cache.Generated{}, errors.WrapWithMessage(err, errors.Provider,
				fmt.Sprintf("summarizing %s", u.key))
		}
		sanitized := sanitizePayload(resp.Payload, u.context)
		encoded, err := json.Marshal(sanitized)
		if err != nil {
			return cache.Generated{}, err
		}
		return cache.Generated{MiniSummary: string(encoded), Model: resp.Model}, nil
	}

	const maxRetries = 1
	for attempt := 0; attempt <= maxRetries; attempt++ {
		entry, err := store.GetOrGenerate(u.key, payload, generator)
		if err != nil {
			return nil, err
		}

		var data summaryPayload
		if err := json.Unmarshal([]byte(entry.MiniSummary), &data); err != nil {
			logWarn("invalid cached summary for %s; regenerating", u.key)
			if err := store.Invalidate(u.key); err != nil {
				return nil, err
			}
			continue
		}

		summary := strings.TrimSpace(data.Summary)
		if summary == "" {
			return nil, nil
		}
		classification := Classification(data.Class)
		if !validClassifications[classification] {
			classification = ClassFeature
		}
		visibility := Visibility(data.Visibility)
		if visibility != VisibilityUser && visibility != VisibilityInternal {
			visibility = VisibilityUser
		}
		refs := data.Refs
		if len(refs) == 0 {
			refs = u.context.Refs
		}

		return &MapItem{
			SourceID:       u.key,
			SourceType:     u.context.Type,
			Summary:        summary,
			Classification: classification,
			Visibility:     visibility,
			Refs:           refs,
			Metadata:       u.metadata,
		}, nil
	}
	return nil, errors.NewProviderError(
		fmt.Sprintf("cached summary for %s is invalid after regeneration", u.key))
}

// sanitizePayload forces an untrusted provider payload into the expected
// shape, defaulting missing fields from the unit context.
func sanitizePayload(raw json.RawMessage, unit UnitContext) summaryPayload {
	var data summaryPayload
	// Undecodable payloads fall through to pure defaulting.
	_ = json.Unmarshal(raw, &data)

	summary := strings.TrimSpace(data.Summary)
	if summary == "" {
		summary = strings.TrimSpace(unit.Title)
	}
	if summary == "" {
		summary = strings.TrimSpace(firstLine(unit.Message))
	}
	if summary == "" {
		summary = "Change"
	}

	class := strings.ToLower(strings.TrimSpace(data.Class))
	if !validClassifications[Classification(class)] {
		class = string(ClassFeature)
	}

	visibility := strings.ToLower(strings.TrimSpace(data.Visibility))
	if visibility != string(VisibilityUser) && visibility != string(VisibilityInternal) {
		visibility = string(VisibilityUser)
	}

	refs := data.Refs
	if len(refs) == 0 {
		refs = unit.Refs
	}

	return summaryPayload{
		Summary:    summary,
		Class:      class,
		Visibility: visibility,
		Refs:       refs,
	}
}

// Package collect composes the repository reader, diff curator, and
// reference fetcher into one unified change set, the sole input to the
// summarization map step.
package collect

import (
	"context"
	"fmt"
	"sort"
	"time"

	"whatsnew/internal/config"
	"whatsnew/internal/diff"
	"whatsnew/internal/github"
	"whatsnew/internal/gitrepo"
	"whatsnew/internal/rangespec"
)

// RangeInfo describes the resolved range for display and metadata.
type RangeInfo struct {
	Mode         rangespec.Mode `json:"mode"`
	Summary      string         `json:"summary"`
	StartRef     string         `json:"start_ref,omitempty"`
	EndRef       string         `json:"end_ref"`
	FallbackUsed bool           `json:"fallback_used"`
}

// ChangeSet is the collector's output: everything the map step needs.
type ChangeSet struct {
	Repository gitrepo.Metadata
	Range      RangeInfo
	Commits    []gitrepo.CommitInfo
	Pulls      []github.PullRequestInfo
	Issues     []github.IssueInfo
	Files      []diff.FileStat
	Snippets   []diff.Snippet
}

// ReferenceFetcher is the remote lookup surface the collector depends on.
// *github.Client satisfies it; tests substitute stubs.
type ReferenceFetcher interface {
	PullsForCommits(ctx context.Context, shas []string) map[string][]github.PullRequestInfo
	Issues(ctx context.Context, numbers []int) map[int]github.IssueInfo
}

// Collector gathers git and GitHub data for a resolved range request.
type Collector struct {
	Config *config.Configuration

	// NewFetcher builds the reference fetcher for a repository. Nil means
	// no remote enrichment (e.g. repository without an origin remote).
	NewFetcher func(owner, repo, token string) ReferenceFetcher

	// Now supplies the current time; defaults to time.Now.
	Now func() time.Time
}

// New returns a Collector wired to the real GitHub client.
func New(cfg *config.Configuration) Collector {
	return Collector{
		Config: cfg,
		NewFetcher: func(owner, repo, token string) ReferenceFetcher {
			var opts []github.Option
			if token != "" {
				opts = append(opts, github.WithToken(token))
			}
			return github.NewClient(owner, repo, opts...)
		},
	}
}

// Collect resolves the range against the repository and assembles the
// change set. Reference fetching is best-effort; git failures are fatal.
func (c Collector) Collect(ctx context.Context, req rangespec.Request) (*ChangeSet, error) {
	now := time.Now().UTC()
	if c.Now != nil {
		now = c.Now().UTC()
	}

	repo, err := gitrepo.Open(c.Config.RepoRoot)
	if err != nil {
		return nil, err
	}
	meta, err := gitrepo.Describe(c.Config.RepoRoot)
	if err != nil {
		return nil, err
	}

	commitRange, err := gitrepo.CommitsInRange(repo, req, now)
	if err != nil {
		return nil, fmt.Errorf("resolving commit range: %w", err)
	}

	changes := &ChangeSet{
		Repository: meta,
		Range: RangeInfo{
			Mode:         req.Mode,
			Summary:      rangespec.Describe(req),
			StartRef:     commitRange.StartRef,
			EndRef:       commitRange.EndRef,
			FallbackUsed: commitRange.FallbackUsed,
		},
		Commits: commitRange.Commits,
	}

	shas := make([]string, 0, len(changes.Commits))
	for _, commit := range changes.Commits {
		shas = append(shas, commit.SHA)
	}

	if len(shas) > 0 {
		files, snippets, err := diff.Collect(repo, shas, diff.Options{
			MaxHunksPerItem: c.Config.MaxHunksPerItem,
			CharBudget:      c.Config.SnippetCharBudget,
		})
		if err != nil {
			return nil, fmt.Errorf("curating diffs: %w", err)
		}
		changes.Files = files
		if c.Config.IncludeCodeHunks {
			changes.Snippets = snippets
		}
	}

	if c.NewFetcher != nil && meta.Owner != "" && meta.Name != "" && len(shas) > 0 {
		fetcher := c.NewFetcher(meta.Owner, meta.Name, c.Config.Credentials.GitHubToken)
		c.fetchReferences(ctx, fetcher, changes, shas)
	}

	return changes, nil
}

// fetchReferences pulls PRs for each commit and the issues they mention.
// Anything it cannot retrieve is simply absent from the change set.
func (c Collector) fetchReferences(ctx context.Context, fetcher ReferenceFetcher, changes *ChangeSet, shas []string) {
	byNumber := map[int]github.PullRequestInfo{}
	for _, prs := range fetcher.PullsForCommits(ctx, shas) {
		for _, pr := range prs {
			byNumber[pr.Number] = pr
		}
	}

	numbers := make([]int, 0, len(byNumber))
	for number := range byNumber {
		numbers = append(numbers, number)
	}
	sort.Ints(numbers)
	for _, number := range numbers {
		changes.Pulls = append(changes.Pulls, byNumber[number])
	}

	var texts []string
	for _, pr := range changes.Pulls {
		texts = append(texts, pr.Title, pr.Body)
	}
	for _, commit := range changes.Commits {
		texts = append(texts, commit.Message)
	}
	issueNumbers := github.ExtractIssueNumbers(texts...)
	if len(issueNumbers) == 0 {
		return
	}

	issues := fetcher.Issues(ctx, issueNumbers)
	keys := make([]int, 0, len(issues))
	for number := range issues {
		keys = append(keys, number)
	}
	sort.Ints(keys)
	for _, number := range keys {
		changes.Issues = append(changes.Issues, issues[number])
	}
}

package collect

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	gitconfig "github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"whatsnew/internal/config"
	"whatsnew/internal/github"
	"whatsnew/internal/rangespec"
)

// stubFetcher serves canned reference data and records the lookups it saw.
type stubFetcher struct {
	pulls       map[string][]github.PullRequestInfo
	issues      map[int]github.IssueInfo
	gotSHAs     []string
	gotIssueIDs []int
}

func (s *stubFetcher) PullsForCommits(_ context.Context, shas []string) map[string][]github.PullRequestInfo {
	s.gotSHAs = shas
	return s.pulls
}

func (s *stubFetcher) Issues(_ context.Context, numbers []int) map[int]github.IssueInfo {
	s.gotIssueIDs = numbers
	return s.issues
}

func initRepo(t *testing.T) (*git.Repository, string) {
	t.Helper()
	dir := t.TempDir()
	repo, err := git.PlainInit(dir, false)
	require.NoError(t, err)
	_, err = repo.CreateRemote(&gitconfig.RemoteConfig{
		Name: "origin",
		URLs: []string{"https://github.com/acme/widgets.git"},
	})
	require.NoError(t, err)
	return repo, dir
}

func addCommit(t *testing.T, repo *git.Repository, dir, name, content, message string, when time.Time) string {
	t.Helper()
	full := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
	require.NoError(t, os.WriteFile(full, []byte(content), 0o644))
	wt, err := repo.Worktree()
	require.NoError(t, err)
	_, err = wt.Add(name)
	require.NoError(t, err)
	sig := &object.Signature{Name: "dev", Email: "dev@example.com", When: when}
	hash, err := wt.Commit(message, &git.CommitOptions{Author: sig, Committer: sig})
	require.NoError(t, err)
	return hash.String()
}

func testConfig(root string) *config.Configuration {
	return &config.Configuration{
		IncludeCodeHunks:  true,
		MaxHunksPerItem:   2,
		SnippetCharBudget: 4000,
		RepoRoot:          root,
	}
}

func TestCollect(t *testing.T) {
	repo, dir := initRepo(t)
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	sha1 := addCommit(t, repo, dir, "api/export.go", "package api\n\nfunc Export() {}\n", "feat: add export (#42)", base)
	sha2 := addCommit(t, repo, dir, "docs/quickstart.md", "# Quickstart\n", "docs: quickstart, closes #7", base.Add(time.Hour))

	fetcher := &stubFetcher{
		pulls: map[string][]github.PullRequestInfo{
			sha1: {{Number: 42, Title: "Add export", Body: "Implements #7", MergeCommitSHA: sha1}},
		},
		issues: map[int]github.IssueInfo{
			7: {Number: 7, Title: "Export missing"},
		},
	}

	collector := Collector{
		Config: testConfig(dir),
		NewFetcher: func(owner, repoName, token string) ReferenceFetcher {
			assert.Equal(t, "acme", owner)
			assert.Equal(t, "widgets", repoName)
			return fetcher
		},
		Now: func() time.Time { return base.Add(2 * time.Hour) },
	}

	req := rangespec.Request{Mode: rangespec.Window, Window: 30 * 24 * time.Hour}
	changes, err := collector.Collect(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, "acme", changes.Repository.Owner)
	assert.Equal(t, rangespec.Window, changes.Range.Mode)

	require.Len(t, changes.Commits, 2)
	assert.Equal(t, sha1, changes.Commits[0].SHA)
	assert.Equal(t, sha2, changes.Commits[1].SHA)
	assert.Equal(t, []string{sha1, sha2}, fetcher.gotSHAs)

	require.Len(t, changes.Pulls, 1)
	assert.Equal(t, 42, changes.Pulls[0].Number)

	// Issue numbers come from PR title/body and commit messages.
	assert.ElementsMatch(t, []int{7, 42}, fetcher.gotIssueIDs)
	require.Len(t, changes.Issues, 1)
	assert.Equal(t, 7, changes.Issues[0].Number)

	// Both files pass the curation filter; the export hunk is curated.
	require.Len(t, changes.Files, 2)
	assert.Equal(t, "api/export.go", changes.Files[0].Path)
	assert.NotEmpty(t, changes.Snippets)
}

func TestCollectWithoutCodeHunks(t *testing.T) {
	repo, dir := initRepo(t)
	addCommit(t, repo, dir, "api/export.go", "package api\n", "feat: add export", time.Now().Add(-time.Hour))

	cfg := testConfig(dir)
	cfg.IncludeCodeHunks = false
	collector := Collector{Config: cfg}

	req := rangespec.Request{Mode: rangespec.Window, Window: 30 * 24 * time.Hour}
	changes, err := collector.Collect(context.Background(), req)
	require.NoError(t, err)

	assert.NotEmpty(t, changes.Files, "file stats are always collected")
	assert.Empty(t, changes.Snippets, "snippets are omitted when code hunks are disabled")
}

func TestCollectDeduplicatesPullsByNumber(t *testing.T) {
	repo, dir := initRepo(t)
	base := time.Now().Add(-2 * time.Hour)
	sha1 := addCommit(t, repo, dir, "a.go", "package a\n", "first", base)
	sha2 := addCommit(t, repo, dir, "a.go", "package a\n\nvar X = 1\n", "second", base.Add(time.Minute))

	pr := github.PullRequestInfo{Number: 42, Title: "Add export"}
	fetcher := &stubFetcher{
		pulls: map[string][]github.PullRequestInfo{
			sha1: {pr},
			sha2: {pr, {Number: 9, Title: "Earlier work"}},
		},
	}
	collector := Collector{
		Config:     testConfig(dir),
		NewFetcher: func(string, string, string) ReferenceFetcher { return fetcher },
	}

	req := rangespec.Request{Mode: rangespec.Window, Window: 30 * 24 * time.Hour}
	changes, err := collector.Collect(context.Background(), req)
	require.NoError(t, err)

	require.Len(t, changes.Pulls, 2)
	assert.Equal(t, 9, changes.Pulls[0].Number, "pulls are ordered by number")
	assert.Equal(t, 42, changes.Pulls[1].Number)
}

func TestCollectEmptyRange(t *testing.T) {
	repo, dir := initRepo(t)
	addCommit(t, repo, dir, "a.go", "package a\n", "old", time.Now().AddDate(0, 0, -60))

	fetcher := &stubFetcher{}
	collector := Collector{
		Config:     testConfig(dir),
		NewFetcher: func(string, string, string) ReferenceFetcher { return fetcher },
	}

	req := rangespec.Request{Mode: rangespec.Window, Window: 24 * time.Hour}
	changes, err := collector.Collect(context.Background(), req)
	require.NoError(t, err)

	assert.Empty(t, changes.Commits)
	assert.Empty(t, changes.Files)
	assert.Nil(t, fetcher.gotSHAs, "no remote calls for an empty range")
}

func TestCollectMissingRepository(t *testing.T) {
	collector := Collector{Config: testConfig(t.TempDir())}
	_, err := collector.Collect(context.Background(), rangespec.Request{Mode: rangespec.SinceLastTag})
	require.Error(t, err)
}

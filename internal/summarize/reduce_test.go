package summarize

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"whatsnew/internal/cache"
	"whatsnew/internal/collect"
	"whatsnew/internal/config"
	"whatsnew/internal/gitrepo"
)

func reduceConfig() *config.Configuration {
	return &config.Configuration{
		DropInternal:    true,
		SectionMaxItems: 5,
		DedupeBy:        "class",
	}
}

func item(summary string, class Classification, vis Visibility) MapItem {
	return MapItem{
		SourceID:       "commit:" + summary,
		SourceType:     SourceCommit,
		Summary:        summary,
		Classification: class,
		Visibility:     vis,
		Refs:           []string{"abc1234"},
	}
}

func TestRunReduceDropsInternal(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	items := []MapItem{
		item("Add CSV export", ClassFeature, VisibilityUser),
		item("Refactor config loading", ClassInternal, VisibilityInternal),
		item("Reduce parser allocations", ClassPerf, VisibilityInternal),
		item("Bound header size", ClassSecurity, VisibilityInternal),
	}

	result := RunReduce(reduceConfig(), items, now)

	assert.Equal(t, 1, result.DroppedInternal)
	titles := sectionTitles(result)
	assert.Equal(t, []string{"Features", "Performance", "Security"}, titles)
	assert.Equal(t, now, result.GeneratedAt)
}

func TestRunReduceKeepsInternalWhenConfigured(t *testing.T) {
	cfg := reduceConfig()
	cfg.DropInternal = false
	cfg.SectionOrder = []string{"Features", "Internal"}

	items := []MapItem{
		item("Add CSV export", ClassFeature, VisibilityUser),
		item("Refactor config loading", ClassInternal, VisibilityInternal),
	}

	result := RunReduce(cfg, items, time.Now())
	assert.Equal(t, 0, result.DroppedInternal)
	assert.Equal(t, []string{"Features", "Internal"}, sectionTitles(result))
}

func TestRunReduceDedupeByClass(t *testing.T) {
	items := []MapItem{
		item("Add CSV export", ClassFeature, VisibilityUser),
		item("add csv   EXPORT", ClassFeature, VisibilityUser),
		item("Add CSV export", ClassFix, VisibilityUser),
	}

	result := RunReduce(reduceConfig(), items, time.Now())
	require.Equal(t, []string{"Features", "Fixes"}, sectionTitles(result))
	assert.Len(t, result.Sections[0].Items, 1)
	assert.Equal(t, "Add CSV export", result.Sections[0].Items[0].Summary, "first occurrence wins")
	assert.Len(t, result.Sections[1].Items, 1)
}

func TestRunReduceDedupeByRefs(t *testing.T) {
	cfg := reduceConfig()
	cfg.DedupeBy = "refs"

	a := item("Add CSV export", ClassFeature, VisibilityUser)
	a.Refs = []string{"PR#9", "abc1234"}
	b := item("add csv export", ClassFix, VisibilityUser)
	b.Refs = []string{"abc1234", "PR#9"}
	c := item("Add CSV export", ClassFeature, VisibilityUser)
	c.Refs = []string{"PR#10"}

	result := RunReduce(cfg, []MapItem{a, b, c}, time.Now())
	// a and b share sorted refs and normalized text; c differs by refs.
	total := 0
	for _, s := range result.Sections {
		total += len(s.Items)
	}
	assert.Equal(t, 2, total)
}

func TestRunReduceSectionCap(t *testing.T) {
	cfg := reduceConfig()
	cfg.SectionMaxItems = 2

	items := []MapItem{
		item("Feature one", ClassFeature, VisibilityUser),
		item("Feature two", ClassFeature, VisibilityUser),
		item("Feature three", ClassFeature, VisibilityUser),
	}

	result := RunReduce(cfg, items, time.Now())
	require.Len(t, result.Sections, 1)
	assert.Len(t, result.Sections[0].Items, 2)
}

func TestRunReduceSectionOrderAndLabels(t *testing.T) {
	items := []MapItem{
		item("Update quickstart", ClassDocs, VisibilityUser),
		item("Handle empty input", ClassFix, VisibilityUser),
		item("Remove legacy endpoint", ClassBreaking, VisibilityUser),
		item("Reduce allocations", ClassPerf, VisibilityUser),
	}

	result := RunReduce(reduceConfig(), items, time.Now())
	assert.Equal(t, []string{"Breaking changes", "Fixes", "Performance", "Docs"}, sectionTitles(result))

	byTitle := map[string]Section{}
	for _, s := range result.Sections {
		byTitle[s.Title] = s
	}
	assert.Equal(t, []string{"Breaking change"}, byTitle["Breaking changes"].Items[0].Labels)
	assert.Equal(t, []string{"Improvement"}, byTitle["Performance"].Items[0].Labels)
}

func TestRunReducePullRequestsSortFirst(t *testing.T) {
	commit := item("A commit-sourced feature", ClassFeature, VisibilityUser)
	pr := MapItem{
		SourceID:       "pr:9",
		SourceType:     SourcePullRequest,
		Summary:        "Z pull-request-sourced feature",
		Classification: ClassFeature,
		Visibility:     VisibilityUser,
		Refs:           []string{"PR#9"},
	}

	result := RunReduce(reduceConfig(), []MapItem{commit, pr}, time.Now())
	require.Len(t, result.Sections, 1)
	require.Len(t, result.Sections[0].Items, 2)
	assert.Equal(t, "Z pull-request-sourced feature", result.Sections[0].Items[0].Summary)
}

func TestRunReduceUnknownClassificationBucketsAsFix(t *testing.T) {
	odd := item("Mystery change", Classification("banana"), VisibilityUser)
	result := RunReduce(reduceConfig(), []MapItem{odd}, time.Now())
	require.Equal(t, []string{"Fixes"}, sectionTitles(result))
}

func TestRunReduceEmptyInput(t *testing.T) {
	result := RunReduce(reduceConfig(), nil, time.Now())
	assert.Empty(t, result.Sections)
	assert.Zero(t, result.DroppedInternal)
}

// End-to-end over the map and reduce steps with the heuristic provider:
// three conventional commits land in their three sections.
func TestMapReducePipeline(t *testing.T) {
	store, err := cache.NewStore(t.TempDir())
	require.NoError(t, err)

	changes := &collect.ChangeSet{
		Commits: []gitrepo.CommitInfo{
			testCommit("aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa", "feat: add onboarding flow"),
			testCommit("bbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb", "fix: handle empty input"),
			testCommit("cccccccccccccccccccccccccccccccccccccccc", "docs: update quickstart"),
		},
	}

	items, err := RunMap(context.Background(), store, NewFallbackProvider(""), changes, 4)
	require.NoError(t, err)
	require.Len(t, items, 3)

	result := RunReduce(reduceConfig(), items, time.Now())
	require.Equal(t, []string{"Features", "Fixes", "Docs"}, sectionTitles(result))
	for _, section := range result.Sections {
		assert.Len(t, section.Items, 1, section.Title)
	}
	assert.Equal(t, "Fix: handle empty input", result.Sections[1].Items[0].Summary)
	assert.Equal(t, []string{"bbbbbbb"}, result.Sections[1].Items[0].Refs)
}

func sectionTitles(result Result) []string {
	titles := make([]string, 0, len(result.Sections))
	for _, s := range result.Sections {
		titles = append(titles, s.Title)
	}
	return titles
}

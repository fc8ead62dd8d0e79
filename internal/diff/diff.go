// Package diff curates commit diffs for summarization: per-file change
// statistics aggregated across the range, and a budget-limited list of
// representative code hunks scored by a relevance heuristic.
package diff

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
)

// debugLogger logs curation diagnostics when set (see gitrepo.SetDebugLogger).
var debugLogger func(format string, args ...any)

// SetDebugLogger configures the debug logger for diff curation.
func SetDebugLogger(logger func(format string, args ...any)) {
	debugLogger = logger
}

func logDebug(format string, args ...any) {
	if debugLogger != nil {
		debugLogger(format, args...)
	}
}

// FileStat aggregates added/deleted line counts for one path across the
// whole commit range.
type FileStat struct {
	Path      string `json:"path"`
	Additions int    `json:"adds"`
	Deletions int    `json:"dels"`
}

// Snippet is one curated hunk attributed to its originating commit.
type Snippet struct {
	Path string `json:"path"`
	SHA  string `json:"sha"`
	Hunk string `json:"hunk"`
}

// Options bound the curation pass.
type Options struct {
	// MaxHunksPerItem caps top-scoring hunks kept per commit.
	MaxHunksPerItem int
	// CharBudget is the shared character allowance across all commits.
	CharBudget int
}

// DefaultOptions mirror the configured curation defaults.
func DefaultOptions() Options {
	return Options{MaxHunksPerItem: 2, CharBudget: 4000}
}

var allowedSuffixes = map[string]bool{
	".py": true, ".ts": true, ".tsx": true, ".js": true, ".go": true,
	".rs": true, ".java": true, ".rb": true, ".cs": true, ".hpp": true,
	".h": true, ".c": true, ".md": true, ".yml": true, ".yaml": true,
	".json": true, ".proto": true, ".graphql": true, ".sql": true,
}

var skipPatterns = []string{"vendor/", "node_modules/", "generated/"}

var skipSuffixes = []string{
	".lock", ".min.js", ".min.css", ".png", ".jpg", ".jpeg", ".gif", ".ico",
}

var priorityPathSegments = []string{"api/", "public/", "cli/", "docs/", "schema/"}

var (
	definitionRe = regexp.MustCompile(`(?m)^\+.*(def |class |function |export )`)
	visibilityRe = regexp.MustCompile(`(?m)^@@.*(public|export|class|function)`)
)

// budget is the explicit accumulator for the shared character allowance.
// It is threaded through the pass instead of shared mutable state so a
// single commit's curation stays testable in isolation.
type budget struct {
	remaining int
}

// candidate is one scored hunk awaiting selection.
type candidate struct {
	score float64
	path  string
	hunk  string
}

// Collect returns aggregated file stats and curated snippets for the given
// commit SHAs. Commits are processed in the given (oldest-first) order; the
// budget is cumulative across the whole pass, so later commits may receive
// fewer or zero snippets once it is exhausted.
func Collect(repo *git.Repository, shas []string, opts Options) ([]FileStat, []Snippet, error) {
	if opts.MaxHunksPerItem <= 0 {
		opts.MaxHunksPerItem = DefaultOptions().MaxHunksPerItem
	}
	if opts.CharBudget <= 0 {
		opts.CharBudget = DefaultOptions().CharBudget
	}

	aggregated := map[string]*FileStat{}
	var snippets []Snippet
	b := budget{remaining: opts.CharBudget}

	for _, sha := range shas {
		commit, err := repo.CommitObject(plumbing.NewHash(sha))
		if err != nil {
			logDebug("[diff] unable to load commit %s: %v", sha, err)
			continue
		}
		patch, err := commitPatch(commit)
		if err != nil {
			logDebug("[diff] unable to diff commit %s: %v", sha, err)
			continue
		}

		mergeStats(aggregated, patch.Stats())
		snippets = append(snippets, curateCommit(sha, patch, opts, &b)...)
	}

	files := make([]FileStat, 0, len(aggregated))
	for _, stat := range aggregated {
		files = append(files, *stat)
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })

	sort.Slice(snippets, func(i, j int) bool {
		if snippets[i].Path != snippets[j].Path {
			return snippets[i].Path < snippets[j].Path
		}
		return snippets[i].SHA < snippets[j].SHA
	})
	return files, snippets, nil
}

// commitPatch diffs a commit against its first parent, or against the
// empty tree for a root commit.
func commitPatch(commit *object.Commit) (*object.Patch, error) {
	tree, err := commit.Tree()
	if err != nil {
		return nil, fmt.Errorf("loading tree: %w", err)
	}
	var parentTree *object.Tree
	if commit.NumParents() > 0 {
		parent, err := commit.Parent(0)
		if err != nil {
			return nil, fmt.Errorf("loading parent: %w", err)
		}
		parentTree, err = parent.Tree()
		if err != nil {
			return nil, fmt.Errorf("loading parent tree: %w", err)
		}
	}
	changes, err := object.DiffTree(parentTree, tree)
	if err != nil {
		return nil, fmt.Errorf("diffing trees: %w", err)
	}
	return changes.Patch()
}

// curateCommit selects this commit's top-scoring hunks against the shared
// budget, truncating the hunk that exhausts it.
func curateCommit(sha string, patch *object.Patch, opts Options, b *budget) []Snippet {
	var candidates []candidate
	for _, fp := range parsePatchText(patch.String()) {
		if !includePath(fp.path) {
			continue
		}
		for _, hunk := range ExtractHunks(fp.text) {
			candidates = append(candidates, candidate{
				score: ScoreHunk(fp.path, hunk),
				path:  fp.path,
				hunk:  hunk,
			})
		}
	}
	return selectCandidates(sha, candidates, opts, b)
}

// selectCandidates keeps the top-scoring candidates up to the per-commit cap
// and charges them against the shared budget.
func selectCandidates(sha string, candidates []candidate, opts Options, b *budget) []Snippet {
	if len(candidates) == 0 {
		return nil
	}

	// Highest score wins; insertion order breaks ties.
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].score > candidates[j].score
	})
	if len(candidates) > opts.MaxHunksPerItem {
		candidates = candidates[:opts.MaxHunksPerItem]
	}

	var selected []Snippet
	for _, cand := range candidates {
		if b.remaining <= 0 {
			break
		}
		text := strings.TrimSpace(cand.hunk)
		length := utf8.RuneCountInString(text)
		if length > b.remaining {
			runes := []rune(text)
			keep := b.remaining - 1
			if keep < 0 {
				keep = 0
			}
			text = string(runes[:keep]) + "…"
			length = utf8.RuneCountInString(text)
		}
		selected = append(selected, Snippet{Path: cand.path, SHA: sha, Hunk: text})
		b.remaining -= length
	}
	return selected
}

// filePatch is one file's unified diff text in patch order.
type filePatch struct {
	path string
	text string
}

// parsePatchText splits unified diff text into per-file sections,
// attributed to the post-image path (pre-image for deletions). Order
// follows the patch so tie-breaking stays deterministic.
//
// ---/+++ lines count as headers only inside the preamble between
// `diff --git` and the first @@; an added content line that happens to
// start with "++ b/" renders as "+++ b/" and must not switch files.
func parsePatchText(text string) []filePatch {
	const devNull = "/dev/null"
	var result []filePatch
	var path string
	var current []string
	inHeader := false

	flush := func() {
		if path != "" && len(current) > 0 {
			result = append(result, filePatch{path: path, text: strings.Join(current, "\n") + "\n"})
		}
		current = nil
	}

	for _, line := range strings.Split(text, "\n") {
		switch {
		case strings.HasPrefix(line, "diff --git "):
			flush()
			path = ""
			inHeader = true
		case inHeader && strings.HasPrefix(line, "--- a/"):
			if path == "" {
				path = strings.TrimPrefix(line, "--- a/")
			}
		case inHeader && strings.HasPrefix(line, "+++ b/"):
			path = strings.TrimPrefix(line, "+++ b/")
			inHeader = false
		case inHeader && (strings.HasPrefix(line, "+++ "+devNull) || strings.HasPrefix(line, "--- "+devNull)):
			// keep the path from the surviving side
			if strings.HasPrefix(line, "+++ ") {
				inHeader = false
			}
		default:
			if strings.HasPrefix(line, "@@") {
				inHeader = false
			}
			if path != "" {
				current = append(current, line)
			}
		}
	}
	flush()
	return result
}

// ExtractHunks splits unified diff text at each @@ header boundary.
func ExtractHunks(patchText string) []string {
	var hunks []string
	var current []string
	for _, line := range strings.Split(patchText, "\n") {
		if strings.HasPrefix(line, "@@") {
			if len(current) > 0 {
				hunks = append(hunks, strings.Join(current, "\n"))
				current = nil
			}
			current = append(current, line)
		} else if len(current) > 0 {
			current = append(current, line)
		}
	}
	if len(current) > 0 {
		hunks = append(hunks, strings.Join(current, "\n"))
	}
	return hunks
}

// ScoreHunk assigns the relevance heuristic: public-surface path segments,
// added definition lines, visibility keywords in the hunk header, and a
// size-proportional bonus capped at 0.5.
func ScoreHunk(path, hunk string) float64 {
	score := 0.0
	for _, segment := range priorityPathSegments {
		if strings.Contains(path, segment) {
			score += 1.0
			break
		}
	}
	if definitionRe.MatchString(hunk) {
		score += 1.5
	}
	if visibilityRe.MatchString(hunk) {
		score += 0.5
	}
	size := len(hunk)
	if size > 500 {
		size = 500
	}
	score += float64(size) / 1000.0
	return score
}

// IncludePath reports whether a path participates in stats and snippet
// candidacy: not under a vendored/generated directory, not a lock or
// binary artifact, and carrying a recognized source/doc/config suffix.
func IncludePath(path string) bool {
	return includePath(path)
}

func includePath(path string) bool {
	lowered := strings.ToLower(path)
	for _, pattern := range skipPatterns {
		if strings.Contains(lowered, pattern) {
			return false
		}
	}
	for _, suffix := range skipSuffixes {
		if strings.HasSuffix(lowered, suffix) {
			return false
		}
	}
	if strings.HasSuffix(path, "/") {
		return false
	}
	idx := strings.LastIndex(lowered, ".")
	if idx == -1 {
		return false
	}
	return allowedSuffixes[lowered[idx:]]
}

func mergeStats(target map[string]*FileStat, stats object.FileStats) {
	for _, stat := range stats {
		if !includePath(stat.Name) {
			continue
		}
		if entry, ok := target[stat.Name]; ok {
			entry.Additions += stat.Addition
			entry.Deletions += stat.Deletion
		} else {
			target[stat.Name] = &FileStat{
				Path:      stat.Name,
				Additions: stat.Addition,
				Deletions: stat.Deletion,
			}
		}
	}
}

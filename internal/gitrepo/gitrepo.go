// Package gitrepo provides read access to the target git repository for
// whatsnew: repository metadata, tag listings, and commit-range selection.
// It uses the go-git library so no git CLI installation is required.
package gitrepo

import (
	"fmt"
	"os"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"

	"whatsnew/internal/rangespec"
)

// debugLogger logs debug messages when debug mode is enabled.
// By default it is a no-op. Set it via SetDebugLogger to enable output.
var debugLogger func(format string, args ...any)

// SetDebugLogger configures the debug logger for repository operations.
// Pass nil to disable debug logging.
func SetDebugLogger(logger func(format string, args ...any)) {
	debugLogger = logger
}

func logDebug(format string, args ...any) {
	if debugLogger != nil {
		debugLogger(format, args...)
	}
}

// Metadata describes the repository whatsnew operates on.
type Metadata struct {
	Root          string
	RemoteURL     string
	Owner         string
	Name          string
	DefaultBranch string
}

// CommitInfo is the normalized commit data used by downstream summarization.
type CommitInfo struct {
	SHA        string    `json:"sha"`
	ParentSHAs []string  `json:"parents"`
	AuthorName string    `json:"author_name"`
	AuthorMail string    `json:"author_email"`
	When       time.Time `json:"date"`
	Message    string    `json:"message"`
}

// ShortSHA returns the abbreviated commit identifier used in references.
func (c CommitInfo) ShortSHA() string {
	if len(c.SHA) > 7 {
		return c.SHA[:7]
	}
	return c.SHA
}

// CommitRange is a resolved commit selection along with its boundaries.
// Commits are ordered oldest first.
type CommitRange struct {
	Commits      []CommitInfo
	Mode         rangespec.Mode
	StartRef     string
	EndRef       string
	FallbackUsed bool
}

// Open opens the git repository at path (or the current working directory
// when path is empty), traversing upward to find the repository root.
func Open(path string) (*git.Repository, error) {
	if path == "" {
		var err error
		path, err = os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("getting current directory: %w", err)
		}
	}

	logDebug("[gitrepo] opening repository at %s", path)

	repo, err := git.PlainOpenWithOptions(path, &git.PlainOpenOptions{
		DetectDotGit: true,
	})
	if err != nil {
		return nil, fmt.Errorf("opening repository at %s: %w", path, err)
	}
	return repo, nil
}

// Describe returns metadata for the repository rooted at path. Remote and
// default-branch details are best-effort and empty when unavailable.
func Describe(path string) (Metadata, error) {
	repo, err := Open(path)
	if err != nil {
		return Metadata{}, err
	}

	meta := Metadata{Root: path}
	if wt, err := repo.Worktree(); err == nil {
		meta.Root = wt.Filesystem.Root()
	}

	meta.RemoteURL = remoteURL(repo)
	if meta.RemoteURL != "" {
		meta.Owner, meta.Name = SplitRemote(meta.RemoteURL)
	}
	meta.DefaultBranch = defaultBranch(repo)
	return meta, nil
}

func remoteURL(repo *git.Repository) string {
	remote, err := repo.Remote("origin")
	if err != nil {
		return ""
	}
	urls := remote.Config().URLs
	if len(urls) == 0 {
		return ""
	}
	return urls[0]
}

func defaultBranch(repo *git.Repository) string {
	// refs/remotes/origin/HEAD is a symbolic ref to the default branch.
	if ref, err := repo.Reference(plumbing.ReferenceName("refs/remotes/origin/HEAD"), false); err == nil {
		if target := ref.Target(); target != "" {
			parts := strings.Split(target.String(), "/")
			return parts[len(parts)-1]
		}
	}
	if head, err := repo.Head(); err == nil && head.Name().IsBranch() {
		return head.Name().Short()
	}
	return ""
}

// SplitRemote extracts owner and repository name from a git remote URL.
// Supports ssh (git@host:owner/repo.git) and http(s) forms.
func SplitRemote(remote string) (owner, name string) {
	var path string
	switch {
	case strings.HasPrefix(remote, "git@"):
		if idx := strings.Index(remote, ":"); idx != -1 {
			path = remote[idx+1:]
		}
	case strings.HasPrefix(remote, "https://"), strings.HasPrefix(remote, "http://"):
		trimmed := remote[strings.Index(remote, "://")+3:]
		if idx := strings.Index(trimmed, "/"); idx != -1 {
			path = trimmed[idx+1:]
		}
	default:
		path = remote
	}

	path = strings.TrimSuffix(strings.TrimRight(path, "/"), ".git")
	parts := strings.Split(path, "/")
	if len(parts) >= 2 {
		return parts[len(parts)-2], parts[len(parts)-1]
	}
	return "", ""
}

var semverRe = regexp.MustCompile(`^v?(\d+)(?:\.(\d+))?(?:\.(\d+))?(?:[-+].*)?$`)

type tagKey struct {
	semver              bool
	major, minor, patch int
	name                string
}

func tagSortKey(name string) tagKey {
	match := semverRe.FindStringSubmatch(name)
	if match == nil {
		return tagKey{name: name}
	}
	key := tagKey{semver: true, name: name}
	key.major, _ = strconv.Atoi(match[1])
	if match[2] != "" {
		key.minor, _ = strconv.Atoi(match[2])
	}
	if match[3] != "" {
		key.patch, _ = strconv.Atoi(match[3])
	}
	return key
}

// less orders keys so that sorting descending puts the newest semver tag
// first and non-semver tags after all semver tags, reverse-lexicographic.
func (k tagKey) less(other tagKey) bool {
	if k.semver != other.semver {
		return !k.semver
	}
	if k.major != other.major {
		return k.major < other.major
	}
	if k.minor != other.minor {
		return k.minor < other.minor
	}
	if k.patch != other.patch {
		return k.patch < other.patch
	}
	return k.name < other.name
}

// ListTags returns repository tag names sorted descending: semver-aware
// first, non-semver tags after, in reverse lexicographic order.
func ListTags(repo *git.Repository) ([]string, error) {
	iter, err := repo.Tags()
	if err != nil {
		return nil, fmt.Errorf("listing tags: %w", err)
	}
	var names []string
	err = iter.ForEach(func(ref *plumbing.Reference) error {
		names = append(names, ref.Name().Short())
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("iterating tags: %w", err)
	}

	sort.Slice(names, func(i, j int) bool {
		return tagSortKey(names[j]).less(tagSortKey(names[i]))
	})
	return names, nil
}

// CommitsInRange resolves the range request against actual repository state.
// The underlying traversal is newest-first; the returned commits are
// inverted to oldest-first.
func CommitsInRange(repo *git.Repository, req rangespec.Request, now time.Time) (CommitRange, error) {
	now = now.UTC()
	result := CommitRange{Mode: req.Mode, EndRef: "HEAD"}
	if req.ToSHA != "" {
		result.EndRef = req.ToSHA
	}

	var commits []*object.Commit
	var err error

	switch req.Mode {
	case rangespec.SinceSpecificTag:
		if req.Tag == "" {
			return result, fmt.Errorf("tag-based range requested without a tag value")
		}
		result.StartRef = req.Tag
		commits, err = commitsBetween(repo, req.Tag, "HEAD")

	case rangespec.SinceLastTag:
		var tags []string
		tags, err = ListTags(repo)
		if err != nil {
			break
		}
		if len(tags) > 0 {
			result.StartRef = tags[0]
			commits, err = commitsBetween(repo, tags[0], "HEAD")
		} else {
			logDebug("[gitrepo] no tags found, falling back to %dd window", req.FallbackWindowDays)
			result.FallbackUsed = true
			commits, err = commitsSince(repo, windowStart(now, req.FallbackWindowDays))
		}

	case rangespec.SHARange:
		result.StartRef = req.FromSHA
		end := req.ToSHA
		if end == "" {
			end = "HEAD"
		}
		commits, err = commitsBetween(repo, req.FromSHA, end)

	case rangespec.DateRange:
		commits, err = commitsFiltered(repo, req.Since, req.Until)
		if err == nil && len(commits) == 0 && req.FallbackWindowDays > 0 {
			logDebug("[gitrepo] date range matched no commits, falling back to %dd window", req.FallbackWindowDays)
			result.FallbackUsed = true
			commits, err = commitsSince(repo, windowStart(now, req.FallbackWindowDays))
		}

	case rangespec.Window:
		commits, err = commitsSince(repo, now.Add(-req.Window))

	default:
		commits, err = commitsFiltered(repo, time.Time{}, time.Time{})
	}

	if err != nil {
		return result, err
	}

	// Invert traversal order: newest-first to oldest-first.
	result.Commits = make([]CommitInfo, 0, len(commits))
	for i := len(commits) - 1; i >= 0; i-- {
		result.Commits = append(result.Commits, normalizeCommit(commits[i]))
	}
	return result, nil
}

func windowStart(now time.Time, days int) time.Time {
	if days <= 0 {
		return time.Time{}
	}
	return now.AddDate(0, 0, -days)
}

// commitsBetween implements ancestry exclusion from..to: commits reachable
// from "to" but not from "from".
func commitsBetween(repo *git.Repository, from, to string) ([]*object.Commit, error) {
	fromHash, err := repo.ResolveRevision(plumbing.Revision(from))
	if err != nil {
		return nil, fmt.Errorf("resolving %q: %w", from, err)
	}
	toHash, err := repo.ResolveRevision(plumbing.Revision(to))
	if err != nil {
		return nil, fmt.Errorf("resolving %q: %w", to, err)
	}

	excluded := map[plumbing.Hash]bool{}
	fromIter, err := repo.Log(&git.LogOptions{From: *fromHash})
	if err != nil {
		return nil, fmt.Errorf("walking ancestors of %q: %w", from, err)
	}
	err = fromIter.ForEach(func(c *object.Commit) error {
		excluded[c.Hash] = true
		return nil
	})
	if err != nil {
		return nil, err
	}

	toIter, err := repo.Log(&git.LogOptions{From: *toHash})
	if err != nil {
		return nil, fmt.Errorf("walking history of %q: %w", to, err)
	}
	var commits []*object.Commit
	err = toIter.ForEach(func(c *object.Commit) error {
		if !excluded[c.Hash] {
			commits = append(commits, c)
		}
		return nil
	})
	return commits, err
}

func commitsSince(repo *git.Repository, since time.Time) ([]*object.Commit, error) {
	return commitsFiltered(repo, since, time.Time{})
}

// commitsFiltered walks HEAD filtering by committer timestamp bounds.
// Zero bounds are open.
func commitsFiltered(repo *git.Repository, since, until time.Time) ([]*object.Commit, error) {
	head, err := repo.Head()
	if err != nil {
		return nil, fmt.Errorf("resolving HEAD: %w", err)
	}
	opts := &git.LogOptions{From: head.Hash()}
	if !since.IsZero() {
		s := since
		opts.Since = &s
	}
	if !until.IsZero() {
		u := until
		opts.Until = &u
	}
	iter, err := repo.Log(opts)
	if err != nil {
		return nil, fmt.Errorf("walking history: %w", err)
	}
	var commits []*object.Commit
	err = iter.ForEach(func(c *object.Commit) error {
		commits = append(commits, c)
		return nil
	})
	return commits, err
}

func normalizeCommit(c *object.Commit) CommitInfo {
	parents := make([]string, 0, len(c.ParentHashes))
	for _, hash := range c.ParentHashes {
		parents = append(parents, hash.String())
	}
	return CommitInfo{
		SHA:        c.Hash.String(),
		ParentSHAs: parents,
		AuthorName: c.Author.Name,
		AuthorMail: c.Author.Email,
		When:       c.Committer.When.UTC(),
		Message:    strings.TrimSpace(c.Message),
	}
}

// Package github is a minimal GitHub REST client used to enrich a commit
// range with its pull requests and referenced issues. All calls are
// best-effort: HTTP 404 means "not found", any other failure is logged and
// surfaces as missing data, never as a fatal error for the run.
package github

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"sort"
	"strconv"
	"time"
)

// warnLogger receives best-effort failure messages. Defaults to a no-op.
var warnLogger func(format string, args ...any)

// SetWarnLogger configures where fetch failures are reported.
func SetWarnLogger(logger func(format string, args ...any)) {
	warnLogger = logger
}

func logWarn(format string, args ...any) {
	if warnLogger != nil {
		warnLogger(format, args...)
	}
}

// PullRequestInfo is a lightweight representation of a pull request.
type PullRequestInfo struct {
	Number         int      `json:"number"`
	Title          string   `json:"title"`
	Body           string   `json:"body"`
	Labels         []string `json:"labels"`
	Merged         bool     `json:"merged"`
	State          string   `json:"state"`
	URL            string   `json:"url"`
	MergeCommitSHA string   `json:"merge_commit_sha,omitempty"`
	HeadRef        string   `json:"head_ref,omitempty"`
	BaseRef        string   `json:"base_ref,omitempty"`
}

// IssueInfo is a lightweight representation of an issue.
type IssueInfo struct {
	Number int      `json:"number"`
	Title  string   `json:"title"`
	Body   string   `json:"body"`
	Labels []string `json:"labels"`
	State  string   `json:"state"`
	URL    string   `json:"url"`
}

// Client talks to the GitHub REST API for one owner/repo pair.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// Option customizes a Client.
type Option func(*Client)

// WithToken sets the bearer token used for authentication.
func WithToken(token string) Option {
	return func(c *Client) { c.token = token }
}

// WithBaseURL overrides the API base URL (used in tests).
func WithBaseURL(baseURL string) Option {
	return func(c *Client) { c.baseURL = baseURL }
}

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) { c.httpClient = httpClient }
}

// NewClient builds a client scoped to owner/repo.
func NewClient(owner, repo string, opts ...Option) *Client {
	c := &Client{
		baseURL: fmt.Sprintf("https://api.github.com/repos/%s/%s", owner, repo),
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// PullsForCommits returns the pull requests associated with each commit
// SHA. Commits whose lookup fails are absent from the result.
func (c *Client) PullsForCommits(ctx context.Context, shas []string) map[string][]PullRequestInfo {
	results := map[string][]PullRequestInfo{}
	for _, sha := range shas {
		var payload []pullPayload
		found, err := c.get(ctx, fmt.Sprintf("/commits/%s/pulls", sha), &payload)
		if err != nil {
			logWarn("failed to fetch pull requests for %s: %v", sha, err)
			continue
		}
		if !found || len(payload) == 0 {
			continue
		}
		prs := make([]PullRequestInfo, 0, len(payload))
		for _, p := range payload {
			prs = append(prs, p.toInfo())
		}
		results[sha] = prs
	}
	return results
}

// Pull fetches a single pull request by number. Returns nil when absent.
func (c *Client) Pull(ctx context.Context, number int) *PullRequestInfo {
	var payload pullPayload
	found, err := c.get(ctx, fmt.Sprintf("/pulls/%d", number), &payload)
	if err != nil {
		logWarn("failed to fetch PR #%d: %v", number, err)
		return nil
	}
	if !found {
		return nil
	}
	info := payload.toInfo()
	return &info
}

// Issues fetches the given issue numbers, skipping pull requests returned
// from the issues endpoint. Failed or absent numbers are omitted.
func (c *Client) Issues(ctx context.Context, numbers []int) map[int]IssueInfo {
	results := map[int]IssueInfo{}
	for _, number := range numbers {
		var payload issuePayload
		found, err := c.get(ctx, fmt.Sprintf("/issues/%d", number), &payload)
		if err != nil {
			logWarn("failed to fetch issue #%d: %v", number, err)
			continue
		}
		if !found || payload.PullRequest != nil {
			continue
		}
		results[number] = payload.toInfo()
	}
	return results
}

// get performs a GET request. The boolean result is false for HTTP 404.
func (c *Client) get(ctx context.Context, path string, out any) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return false, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false, fmt.Errorf("calling github: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return false, nil
	}
	if resp.StatusCode >= 400 {
		return false, fmt.Errorf("github responded with status %s", resp.Status)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return false, fmt.Errorf("reading response: %w", err)
	}
	if len(body) == 0 {
		return false, nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return false, fmt.Errorf("decoding response: %w", err)
	}
	return true, nil
}

var issueRefRe = regexp.MustCompile(`#(\d+)`)

// ExtractIssueNumbers collects issue numbers referenced as #123 across the
// given texts, deduplicated and sorted ascending.
func ExtractIssueNumbers(texts ...string) []int {
	seen := map[int]bool{}
	for _, text := range texts {
		for _, match := range issueRefRe.FindAllStringSubmatch(text, -1) {
			if n, err := strconv.Atoi(match[1]); err == nil {
				seen[n] = true
			}
		}
	}
	numbers := make([]int, 0, len(seen))
	for n := range seen {
		numbers = append(numbers, n)
	}
	sort.Ints(numbers)
	return numbers
}

type labelPayload struct {
	Name string `json:"name"`
}

type pullPayload struct {
	Number         int            `json:"number"`
	Title          string         `json:"title"`
	Body           string         `json:"body"`
	Labels         []labelPayload `json:"labels"`
	Merged         bool           `json:"merged"`
	State          string         `json:"state"`
	HTMLURL        string         `json:"html_url"`
	MergeCommitSHA string         `json:"merge_commit_sha"`
	Head           struct {
		Ref string `json:"ref"`
	} `json:"head"`
	Base struct {
		Ref string `json:"ref"`
	} `json:"base"`
}

func (p pullPayload) toInfo() PullRequestInfo {
	return PullRequestInfo{
		Number:         p.Number,
		Title:          p.Title,
		Body:           p.Body,
		Labels:         labelNames(p.Labels),
		Merged:         p.Merged,
		State:          p.State,
		URL:            p.HTMLURL,
		MergeCommitSHA: p.MergeCommitSHA,
		HeadRef:        p.Head.Ref,
		BaseRef:        p.Base.Ref,
	}
}

type issuePayload struct {
	Number      int            `json:"number"`
	Title       string         `json:"title"`
	Body        string         `json:"body"`
	Labels      []labelPayload `json:"labels"`
	State       string         `json:"state"`
	HTMLURL     string         `json:"html_url"`
	PullRequest *struct{}      `json:"pull_request"`
}

func (p issuePayload) toInfo() IssueInfo {
	return IssueInfo{
		Number: p.Number,
		Title:  p.Title,
		Body:   p.Body,
		Labels: labelNames(p.Labels),
		State:  p.State,
		URL:    p.HTMLURL,
	}
}

func labelNames(labels []labelPayload) []string {
	names := make([]string, 0, len(labels))
	for _, label := range labels {
		if label.Name != "" {
			names = append(names, label.Name)
		}
	}
	return names
}

// Package rangespec resolves ambiguous range flags and config defaults into
// one unambiguous commit-selection request. It is pure: repository state is
// never consulted here, only downstream by the repository reader.
package rangespec

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"whatsnew/internal/errors"
)

// Mode enumerates the supported range selection modes.
type Mode string

const (
	// SinceLastTag selects commits since the most recent tag.
	SinceLastTag Mode = "since-tag"
	// SinceSpecificTag selects commits since a named tag (exclusive).
	SinceSpecificTag Mode = "tag"
	// SHARange selects commits via ancestry exclusion from..to.
	SHARange Mode = "sha"
	// DateRange selects commits between two committer timestamps.
	DateRange Mode = "dates"
	// Window selects commits within a trailing duration from now.
	Window Mode = "window"
)

// validModes is the set of modes a config default may name.
var validModes = map[Mode]bool{
	SinceLastTag:     true,
	SinceSpecificTag: true,
	SHARange:         true,
	DateRange:        true,
	Window:           true,
}

// Options carries the caller-supplied range flags. Empty strings mean the
// flag was not given.
type Options struct {
	Tag       string
	FromSHA   string
	ToSHA     string
	SinceDate string
	UntilDate string
	Window    string
}

// Defaults carries the configured fallbacks applied when no flag is given.
type Defaults struct {
	// DefaultRange names the mode used when no range flag is supplied.
	// Unrecognized values fall back to since-tag.
	DefaultRange string
	// FallbackWindowDays is the lookback period used when a date bound or
	// window token is absent, and when a repository has no tags.
	FallbackWindowDays int
}

// Request is the normalized, immutable representation of the desired range.
// Exactly one mode is active; the remaining fields are populated per mode.
type Request struct {
	Mode               Mode
	Tag                string
	FromSHA            string
	ToSHA              string
	Since              time.Time
	Until              time.Time
	Window             time.Duration
	// WindowToken is the normalized window flag as the user gave it
	// (e.g. "7d"), kept so descriptions echo the flag instead of a
	// re-derived duration. Empty when the window came from config.
	WindowToken        string
	FallbackWindowDays int
}

var windowRe = regexp.MustCompile(`^(\d+)([dhw])$`)

// Resolve determines the effective range request from flags and config.
// Mutual exclusion between flag groups is validated before any default is
// applied, so a conflict is always reported even when config would have
// resolved it.
func Resolve(opts Options, defaults Defaults, now time.Time) (Request, error) {
	now = now.UTC()

	var supplied []Mode
	if strings.TrimSpace(opts.Tag) != "" {
		supplied = append(supplied, SinceSpecificTag)
	}
	if strings.TrimSpace(opts.FromSHA) != "" || strings.TrimSpace(opts.ToSHA) != "" {
		supplied = append(supplied, SHARange)
	}
	if strings.TrimSpace(opts.SinceDate) != "" || strings.TrimSpace(opts.UntilDate) != "" {
		supplied = append(supplied, DateRange)
	}
	if strings.TrimSpace(opts.Window) != "" {
		supplied = append(supplied, Window)
	}

	if len(supplied) > 1 {
		return Request{}, errors.NewInputError(
			"range flags are mutually exclusive: choose only one of --tag, --from-sha/--to-sha, --since-date/--until-date, or --window",
			"Remove all but one range selection flag group",
		)
	}

	fallbackDays := defaults.FallbackWindowDays
	if fallbackDays < 0 {
		fallbackDays = 0
	}

	var mode Mode
	fromFlag := len(supplied) == 1
	if fromFlag {
		mode = supplied[0]
	} else {
		mode = Mode(defaults.DefaultRange)
		if !validModes[mode] {
			mode = SinceLastTag
		}
	}

	switch mode {
	case SinceSpecificTag:
		tag := strings.TrimSpace(opts.Tag)
		if tag == "" {
			// Reached via config default without a tag value.
			return Request{}, errors.NewInputError(
				"configuration default_range=tag requires --tag",
				"Pass --tag <name> or change default_range in whatsnew.config.yml",
			)
		}
		return Request{Mode: mode, Tag: tag, FallbackWindowDays: fallbackDays}, nil

	case SinceLastTag:
		return Request{Mode: mode, FallbackWindowDays: fallbackDays}, nil

	case SHARange:
		from := strings.TrimSpace(opts.FromSHA)
		if from == "" {
			return Request{}, errors.NewInputError(
				"--from-sha is required when selecting a commit SHA range",
				"Pass --from-sha <sha>; --to-sha defaults to HEAD",
			)
		}
		return Request{Mode: mode, FromSHA: from, ToSHA: strings.TrimSpace(opts.ToSHA)}, nil

	case DateRange:
		since, err := parseDateOrDefault(opts.SinceDate, now, fallbackDays)
		if err != nil {
			return Request{}, err
		}
		until, err := parseDateOrDefault(opts.UntilDate, now, 0)
		if err != nil {
			return Request{}, err
		}
		if !since.IsZero() && !until.IsZero() && since.After(until) {
			return Request{}, errors.NewInputError(
				"--since-date must be earlier than --until-date",
			)
		}
		return Request{Mode: mode, Since: since, Until: until, FallbackWindowDays: fallbackDays}, nil

	case Window:
		window, err := parseWindow(opts.Window, fallbackDays)
		if err != nil {
			return Request{}, err
		}
		return Request{
			Mode:        mode,
			Window:      window,
			WindowToken: strings.TrimSpace(strings.ToLower(opts.Window)),
		}, nil
	}

	return Request{Mode: SinceLastTag, FallbackWindowDays: fallbackDays}, nil
}

// Describe produces a short human-readable description of the resolved
// range, used only for display.
func Describe(req Request) string {
	switch req.Mode {
	case SinceLastTag:
		return "since last tag"
	case SinceSpecificTag:
		if req.Tag != "" {
			return fmt.Sprintf("since tag %s", req.Tag)
		}
		return "since tag"
	case SHARange:
		if req.FromSHA == "" {
			return "commit range"
		}
		suffix := "..HEAD"
		if req.ToSHA != "" {
			suffix = ".." + shortSHA(req.ToSHA)
		}
		return fmt.Sprintf("commits %s%s", shortSHA(req.FromSHA), suffix)
	case DateRange:
		var parts []string
		if !req.Since.IsZero() {
			parts = append(parts, "since "+req.Since.Format("2006-01-02"))
		}
		if !req.Until.IsZero() {
			parts = append(parts, "until "+req.Until.Format("2006-01-02"))
		}
		if len(parts) == 0 {
			return "date range"
		}
		return strings.Join(parts, " ")
	case Window:
		if req.WindowToken != "" {
			return "last " + req.WindowToken
		}
		return "last " + formatWindow(req.Window)
	}
	return string(req.Mode)
}

func shortSHA(sha string) string {
	if len(sha) > 7 {
		return sha[:7]
	}
	return sha
}

func formatWindow(window time.Duration) string {
	const week = 7 * 24 * time.Hour
	const day = 24 * time.Hour
	if window >= week && window%week == 0 {
		return fmt.Sprintf("%dw", int(window/week))
	}
	if window >= day && window%time.Hour == 0 && window%day == 0 {
		return fmt.Sprintf("%dd", int(window/day))
	}
	return fmt.Sprintf("%dh", int(window/time.Hour))
}

// dateLayouts are tried in order when parsing --since-date/--until-date.
var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

func parseDateOrDefault(raw string, now time.Time, fallbackDays int) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw != "" {
		parsed, err := parseDate(raw)
		if err != nil {
			return time.Time{}, err
		}
		return parsed.UTC(), nil
	}
	if fallbackDays > 0 {
		return now.AddDate(0, 0, -fallbackDays), nil
	}
	return time.Time{}, nil
}

func parseDate(raw string) (time.Time, error) {
	for _, layout := range dateLayouts {
		if parsed, err := time.Parse(layout, raw); err == nil {
			return parsed, nil
		}
	}
	return time.Time{}, errors.NewInputError(
		fmt.Sprintf("unable to parse date %q: provide ISO 8601 format (YYYY-MM-DD)", raw),
	)
}

func parseWindow(raw string, fallbackDays int) (time.Duration, error) {
	raw = strings.TrimSpace(strings.ToLower(raw))
	if raw == "" {
		// No token: the configured fallback window applies. A zero
		// fallback yields a zero-length window.
		return time.Duration(fallbackDays) * 24 * time.Hour, nil
	}
	match := windowRe.FindStringSubmatch(raw)
	if match == nil {
		return 0, errors.NewInputError(
			"--window must be specified as <number><unit> where unit is one of d, h, w",
			"Examples: 24h, 14d, 2w",
		)
	}
	value, err := strconv.Atoi(match[1])
	if err != nil {
		return 0, errors.NewInputError(fmt.Sprintf("invalid window value %q", match[1]))
	}
	switch match[2] {
	case "h":
		return time.Duration(value) * time.Hour, nil
	case "d":
		return time.Duration(value) * 24 * time.Hour, nil
	case "w":
		return time.Duration(value) * 7 * 24 * time.Hour, nil
	}
	return 0, errors.NewInputError("unsupported window unit; use d, h, or w")
}

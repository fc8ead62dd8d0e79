package cli

import (
	"fmt"
	"log"
	"time"

	"github.com/spf13/cobra"

	"whatsnew/internal/cache"
	"whatsnew/internal/collect"
	"whatsnew/internal/config"
	"whatsnew/internal/diff"
	"whatsnew/internal/errors"
	"whatsnew/internal/github"
	"whatsnew/internal/gitrepo"
	"whatsnew/internal/outputs"
	"whatsnew/internal/rangespec"
	"whatsnew/internal/summarize"
)

// addRangeFlags registers the range selection flag group. The release
// subcommand repurposes --tag, so it opts out of the range variant.
func addRangeFlags(cmd *cobra.Command, includeTag bool) {
	if includeTag {
		cmd.Flags().String("tag", "", "Generate notes since the specified tag (exclusive)")
	}
	cmd.Flags().String("from-sha", "", "Start commit SHA for the range")
	cmd.Flags().String("to-sha", "", "End commit SHA for the range (defaults to HEAD)")
	cmd.Flags().String("since-date", "", "Earliest commit date (ISO 8601)")
	cmd.Flags().String("until-date", "", "Latest commit date (ISO 8601)")
	cmd.Flags().String("window", "", "Time window to include (e.g. 7d, 24h)")
}

// addOutputFlags registers output and privacy flags shared by the
// generating commands.
func addOutputFlags(cmd *cobra.Command) {
	cmd.Flags().Bool("json", false, "Output the changelog in JSON format")
	cmd.Flags().Bool("md", false, "Output the changelog in Markdown format")
	cmd.MarkFlagsMutuallyExclusive("json", "md")

	cmd.Flags().Bool("no-code", false, "Disable sending code hunks to the summarizer")
	cmd.Flags().Bool("include-internal", false, "Include internal-only changes in the output")
	cmd.Flags().Bool("drop-internal", false, "Hide internal-only changes (default)")
	cmd.MarkFlagsMutuallyExclusive("include-internal", "drop-internal")
}

// rangeOptions reads the range flag group into resolver options.
func rangeOptions(cmd *cobra.Command, includeTag bool) rangespec.Options {
	opts := rangespec.Options{}
	if includeTag {
		opts.Tag, _ = cmd.Flags().GetString("tag")
	}
	opts.FromSHA, _ = cmd.Flags().GetString("from-sha")
	opts.ToSHA, _ = cmd.Flags().GetString("to-sha")
	opts.SinceDate, _ = cmd.Flags().GetString("since-date")
	opts.UntilDate, _ = cmd.Flags().GetString("until-date")
	opts.Window, _ = cmd.Flags().GetString("window")
	return opts
}

// loadConfiguration loads config and applies CLI overrides.
func loadConfiguration(cmd *cobra.Command) (*config.Configuration, error) {
	configPath, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, errors.Wrap(err, errors.Environment,
			"Check the config file path and YAML syntax")
	}

	cfg.RepoRoot, _ = cmd.Flags().GetString("repo-root")

	if noCode, _ := cmd.Flags().GetBool("no-code"); noCode {
		cfg.IncludeCodeHunks = false
	}
	if includeInternal, _ := cmd.Flags().GetBool("include-internal"); includeInternal {
		cfg.DropInternal = false
	}
	if dropInternal, _ := cmd.Flags().GetBool("drop-internal"); dropInternal {
		cfg.DropInternal = true
	}
	if jsonOut, _ := cmd.Flags().GetBool("json"); jsonOut {
		cfg.Output.Format = "json"
	}
	if mdOut, _ := cmd.Flags().GetBool("md"); mdOut {
		cfg.Output.Format = "markdown"
	}
	return cfg, nil
}

// wireLoggers routes component warnings (and debug output when requested)
// to stderr.
func wireLoggers(cmd *cobra.Command) {
	level, _ := cmd.Flags().GetString("log-level")

	warn := func(format string, args ...any) {
		log.Printf("whatsnew: warning: "+format, args...)
	}
	if level == "quiet" {
		warn = nil
	}
	github.SetWarnLogger(warn)
	cache.SetWarnLogger(warn)
	summarize.SetWarnLogger(warn)

	if level == "debug" {
		debug := func(format string, args ...any) {
			log.Printf(format, args...)
		}
		gitrepo.SetDebugLogger(debug)
		diff.SetDebugLogger(debug)
	}
}

// runGenerate executes the full pipeline: resolve, collect, map, reduce,
// render. releaseTag, when non-empty, stamps release metadata.
func runGenerate(cmd *cobra.Command, releaseTag string) error {
	wireLoggers(cmd)

	cfg, err := loadConfiguration(cmd)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	includeTag := releaseTag == ""
	request, err := rangespec.Resolve(rangeOptions(cmd, includeTag), rangespec.Defaults{
		DefaultRange:       cfg.DefaultRange,
		FallbackWindowDays: cfg.DateWindowDays,
	}, now)
	if err != nil {
		return err
	}

	stop := status("collecting git history...")
	changes, err := collect.New(cfg).Collect(cmd.Context(), request)
	stop()
	if err != nil {
		if cliErr := errors.AsCLIError(err); cliErr != nil {
			return cliErr
		}
		return errors.WrapWithMessage(err, errors.Environment, "failed to collect git changes",
			"Verify the directory is a git repository with at least one commit")
	}

	warnf := func(format string, args ...any) {
		log.Printf("whatsnew: warning: "+format, args...)
	}
	provider := summarize.FromConfig(cfg, warnf)

	store, err := cache.NewStore(changes.Repository.Root)
	if err != nil {
		return errors.Wrap(err, errors.Environment)
	}

	stop = status("summarizing individual changes...")
	items, err := summarize.RunMap(cmd.Context(), store, provider, changes, cfg.MapWorkers)
	stop()
	if err != nil {
		if cliErr := errors.AsCLIError(err); cliErr != nil {
			return cliErr
		}
		return errors.Wrap(err, errors.Provider)
	}

	result := summarize.RunReduce(cfg, items, time.Now().UTC())
	report := outputs.BuildReport(changes, result, provider.DefaultModel())
	if releaseTag != "" {
		report.StampRelease(releaseTag, time.Now().UTC())
	}

	return render(cmd, cfg, report)
}

func render(cmd *cobra.Command, cfg *config.Configuration, report outputs.Report) error {
	switch cfg.Output.Format {
	case "json":
		payload, err := outputs.RenderJSON(report)
		if err != nil {
			return err
		}
		fmt.Fprint(cmd.OutOrStdout(), payload)
	case "markdown":
		fmt.Fprint(cmd.OutOrStdout(), outputs.RenderMarkdown(report))
	default:
		fmt.Fprint(cmd.OutOrStdout(), outputs.RenderTerminal(report))
	}
	return nil
}

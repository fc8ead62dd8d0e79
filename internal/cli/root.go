// Package cli wires the whatsnew commands: the root changelog generator
// plus the release and check subcommands.
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"whatsnew/internal/errors"
	"whatsnew/internal/version"
)

var rootCmd = &cobra.Command{
	Use:     "whatsnew",
	Short:   "Generate concise, user-facing changelogs from git activity",
	Version: version.Version,
	Long: `whatsnew turns raw version-control activity into a curated changelog.

It extracts commits, linked pull requests and issues, and representative
code diffs for a commit range, condenses each change into a one-line
summary through a summarization provider, and merges the results into
ordered, deduplicated sections.

Examples:
  whatsnew                         # changes since the last tag
  whatsnew --window 14d            # changes from the last two weeks
  whatsnew --tag v1.2.0 --md       # Markdown changelog since v1.2.0
  whatsnew release --tag v1.3.0    # render release notes for a tag`,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runGenerate(cmd, "")
	},
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "Path to a whatsnew.config.yml file")
	rootCmd.PersistentFlags().String("repo-root", "", "Explicitly set the repository root (defaults to auto-detect)")
	rootCmd.PersistentFlags().String("log-level", "warning", "Logging level: debug, warning, or quiet")
	addRangeFlags(rootCmd, true)
	addOutputFlags(rootCmd)
}

// Execute runs the CLI. Interrupts cancel the pipeline between units so a
// long batch can be aborted without corrupting the cache.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := rootCmd.ExecuteContext(ctx)
	if err != nil {
		if cliErr := errors.AsCLIError(err); cliErr != nil {
			errors.PrintError(cliErr)
		} else {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
	}
	return err
}

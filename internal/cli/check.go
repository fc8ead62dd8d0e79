package cli

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"whatsnew/internal/errors"
	"whatsnew/internal/gitrepo"
)

var (
	okLabel   = color.New(color.FgGreen).SprintFunc()
	warnLabel = color.New(color.FgYellow).SprintFunc()
	errLabel  = color.New(color.FgRed).SprintFunc()
)

type checkResult struct {
	status  string // ok | warn | error
	message string
}

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Run environment diagnostics",
	Long: `Verify the environment whatsnew depends on: a readable git
repository, a configured remote, and credentials for the GitHub API and
the summarization provider. Warnings indicate degraded behavior; errors
indicate the pipeline cannot run.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfiguration(cmd)
		if err != nil {
			return err
		}

		results := runChecks(cfg.RepoRoot, cfg.Credentials.GitHubToken,
			cfg.Credentials.OpenAIAPIKey, cfg.Credentials.AnthropicAPIKey)

		hasError := false
		for _, result := range results {
			prefix := okLabel("[OK]")
			switch result.status {
			case "warn":
				prefix = warnLabel("[WARN]")
			case "error":
				prefix = errLabel("[ERROR]")
				hasError = true
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", prefix, result.message)
		}

		if hasError {
			return errors.NewEnvironmentError("environment diagnostics reported errors")
		}
		return nil
	},
}

func runChecks(repoRoot, githubToken, openAIKey, anthropicKey string) []checkResult {
	var results []checkResult

	meta, err := gitrepo.Describe(repoRoot)
	if err != nil {
		results = append(results, checkResult{"error", fmt.Sprintf("failed to open repository: %v", err)})
		return results
	}
	results = append(results, checkResult{"ok", "Repository root: " + meta.Root})

	if meta.RemoteURL != "" {
		results = append(results, checkResult{"ok", "Remote origin: " + meta.RemoteURL})
	} else {
		results = append(results, checkResult{"warn", "No git remote configured; pull request enrichment will be skipped."})
	}

	if githubToken != "" {
		results = append(results, checkResult{"ok", "GitHub token detected."})
	} else {
		results = append(results, checkResult{"warn", "GH_TOKEN not found; GitHub API calls may be rate-limited."})
	}

	if openAIKey != "" || anthropicKey != "" {
		results = append(results, checkResult{"ok", "Summarization provider credential detected."})
	} else {
		results = append(results, checkResult{"warn", "No provider API key found; falling back to heuristic summaries."})
	}

	return results
}

func init() {
	rootCmd.AddCommand(checkCmd)
}

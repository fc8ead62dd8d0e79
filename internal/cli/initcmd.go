package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"whatsnew/internal/config"
	"whatsnew/internal/errors"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a commented whatsnew.config.yml",
	Long: `Create a project configuration file with every option documented
and set to its default. The file is written to the repository root
(or --repo-root) and refuses to overwrite an existing config unless
--force is given.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		root, _ := cmd.Flags().GetString("repo-root")
		if root == "" {
			var err error
			root, err = os.Getwd()
			if err != nil {
				return fmt.Errorf("getting current directory: %w", err)
			}
		}

		force, _ := cmd.Flags().GetBool("force")
		path, err := writeConfigTemplate(root, force)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Created %s\n", path)
		return nil
	},
}

func writeConfigTemplate(root string, force bool) (string, error) {
	path := filepath.Join(root, "whatsnew.config.yml")
	if !force {
		if _, err := os.Stat(path); err == nil {
			return "", errors.NewInputError(
				fmt.Sprintf("config file already exists: %s", path),
				"Pass --force to overwrite it",
			)
		}
	}
	if err := os.WriteFile(path, []byte(config.GetDefaultConfigTemplate()), 0o644); err != nil {
		return "", fmt.Errorf("writing config template: %w", err)
	}
	return path, nil
}

func init() {
	initCmd.Flags().Bool("force", false, "Overwrite an existing config file")
	rootCmd.AddCommand(initCmd)
}

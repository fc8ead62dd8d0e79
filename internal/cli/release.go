package cli

import (
	"github.com/spf13/cobra"
)

var releaseCmd = &cobra.Command{
	Use:   "release",
	Short: "Render the changelog for a specific tag",
	Long: `Render release notes stamped with a tag and release timestamp.

The commit range follows the usual resolution rules (range flags, then
config default); --tag here names the release being cut, it does not
select the range.

Examples:
  whatsnew release --tag v1.3.0
  whatsnew release --tag v1.3.0 --window 30d --md`,
	RunE: func(cmd *cobra.Command, args []string) error {
		tag, _ := cmd.Flags().GetString("tag")
		return runGenerate(cmd, tag)
	},
}

func init() {
	releaseCmd.Flags().String("tag", "", "Tag to generate release notes for")
	releaseCmd.MarkFlagRequired("tag")
	addRangeFlags(releaseCmd, false)
	addOutputFlags(releaseCmd)
	rootCmd.AddCommand(releaseCmd)
}

package cli

import (
	"os"

	"branchwarden/internal/engine"

	"github.com/spf13/cobra"
)

var pruneCmd = &cobra.Command{
	Use:   "prune-backups",
	Short: "Delete backup tags older than safety.backup_ttl_days",
	Long: `Delete backup tags whose date suffix is more than safety.backup_ttl_days
old. Only tags under safety.backup_tag_prefix with a parseable date are
considered. The cleanup command runs the same pass after each repository.

A backup_ttl_days of 0 disables pruning.

Exit codes:
	0 = clean run
	1 = a repository's tags could not be listed
	2 = fatal error`,
	Run: func(cmd *cobra.Command, args []string) {
		os.Exit(runEngine(cmd, &opts, (*engine.Engine).Prune))
	},
}

func init() {
	rootCmd.AddCommand(pruneCmd)
	addRunFlags(pruneCmd, &opts)
}

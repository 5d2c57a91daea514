package cli

import (
	"os"

	"branchwarden/internal/engine"

	"github.com/spf13/cobra"
)

var cleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Delete merged bot branches that are safe to remove",
	Long: `Delete branches of merged bot pull requests across the configured repositories.

A branch is deleted only when it still exists, is not protected, was merged at
least safety.minimum_age_days ago, has no commits missing from the default
branch, and does not match a branches.exclude pattern. Its head is tagged as
<backup_tag_prefix>/<branch>/<YYYYMMDD> first; if the tag cannot be created the
branch is left in place.

Repositories where the token cannot delete branches get one remediation issue
per run (permissions.create_issues).

Authentication:
  Token sources, in order: GITHUB_TOKEN, GH_TOKEN, then the GitHub CLI
  (gh auth token). When auth.app_id is configured the tool authenticates as
  that GitHub App installation instead.

  The token needs Contents: write (create tags, delete branches), Issues: write
  (remediation issues) and, for enabling auto-delete, Administration: write.

Output:
  --dry-run performs every read and decision and logs the intended mutations.
  It writes no report files.

  Otherwise a directory <output_dir>/<YYYYMMDD-HHMMSS>/ receives report.json,
  report.csv (reporting.write_csv) and summary.md.

Exit codes:
	0 = clean run
	1 = at least one branch or repository ended in an error
	2 = fatal error (configuration or credentials; nothing was processed)

Examples:
  export GITHUB_TOKEN="<your_token>"
  branchwarden cleanup --config branchwarden.yaml --dry-run

  branchwarden cleanup --repos acme/api,acme/web --concurrency 2
`,
	Run: func(cmd *cobra.Command, args []string) {
		os.Exit(runEngine(cmd, &opts, (*engine.Engine).Run))
	},
}

func init() {
	rootCmd.AddCommand(cleanupCmd)
	addRunFlags(cleanupCmd, &opts)
}

package cli

import (
	"fmt"
	"os"

	"branchwarden/internal/flags"

	"github.com/spf13/cobra"
)

var (
	buildVersion = "dev"
	buildCommit  = "unknown"
	buildDate    = "unknown"
)

var rootCmd = &cobra.Command{
	Use:   "branchwarden",
	Short: "Delete merged bot branches safely, with backups and an audit report",
	Long: `Branchwarden finds branches left behind by merged bot pull requests
(Dependabot, Renovate, ...) across a fleet of GitHub repositories, checks that
each one is safe to remove, tags its head as a backup, deletes it, and writes
an audit report of everything it decided.

Examples:
	# Show available commands and global flags
	branchwarden --help

	# Preview a cleanup without changing anything
	branchwarden cleanup --config branchwarden.yaml --dry-run

	# Clean up two repositories of one organization
	branchwarden cleanup --org acme --repos api,web

	# Remove expired backup tags
	branchwarden prune-backups --config branchwarden.yaml

	# Print the effective configuration
	branchwarden config show

Output:
	Logs go to stderr. The run summary is printed to stdout and the audit
	report is written below reporting.output_dir.`,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&opts.configPath, flags.FlagConfig, "", "Path to the YAML config file (default: ./branchwarden.yaml or $HOME/.config/branchwarden/branchwarden.yaml)")
	rootCmd.PersistentFlags().BoolVar(&opts.verbose, flags.FlagVerbose, false, "Log every GitHub API call")
	rootCmd.PersistentFlags().StringVar(&opts.logLevel, flags.FlagLogLevel, "info", "Log level: debug|info|warn|error")
	rootCmd.PersistentFlags().StringVar(&opts.logFormat, flags.FlagLogFormat, "console", "Log format: console|structured")
}

func SetBuildInfo(version, commit, date string) {
	if version != "" {
		buildVersion = version
	}
	if commit != "" {
		buildCommit = commit
	}
	if date != "" {
		buildDate = date
	}

	rootCmd.Version = fmt.Sprintf("%s (%s) %s", buildVersion, buildCommit, buildDate)
	rootCmd.SetVersionTemplate("{{.Version}}\n")
}

func BuildInfo() (version, commit, date string) {
	return buildVersion, buildCommit, buildDate
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
}

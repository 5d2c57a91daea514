package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"branchwarden/internal/config"
	"branchwarden/internal/engine"
	"branchwarden/internal/flags"
	gh "branchwarden/internal/github"
	"branchwarden/internal/logging"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// runOptions holds flag values. File values are overridden only by flags the
// user actually set.
type runOptions struct {
	configPath  string
	org         string
	repos       []string
	dryRun      bool
	outputDir   string
	noConsole   bool
	logLevel    string
	logFormat   string
	verbose     bool
	concurrency int
	timeout     time.Duration
}

var opts runOptions

// addRunFlags registers the flags shared by commands that process
// repositories.
func addRunFlags(cmd *cobra.Command, o *runOptions) {
	// MAINTAINER NOTE: keep applyFlagOverrides in sync with this list.
	cmd.Flags().StringVar(&o.org, flags.FlagOrg, "", "Organization owning --repos (name or URL); replaces the configured targets")
	cmd.Flags().StringSliceVar(&o.repos, flags.FlagRepos, nil, "Repositories to process (repeatable; comma-separated accepted). OWNER/REPO when --org is not set")
	cmd.Flags().BoolVar(&o.dryRun, flags.FlagDryRun, false, "Perform every read and decision but no mutation; no report files are written")
	cmd.Flags().StringVar(&o.outputDir, flags.FlagOutputDir, "", "Directory receiving the run report directory")
	cmd.Flags().BoolVar(&o.noConsole, flags.FlagNoConsole, false, "Suppress the console summary")
	cmd.Flags().IntVar(&o.concurrency, flags.FlagConcurrency, 0, "Repositories processed in parallel")
	cmd.Flags().DurationVar(&o.timeout, flags.FlagTimeout, 0, "Global run timeout")
}

// loadConfig reads the config file and environment, applies explicitly set
// flags and validates the result.
func loadConfig(cmd *cobra.Command, o *runOptions) (*config.Config, string, error) {
	cfg, used, err := config.NewLoader().Load(o.configPath)
	if err != nil {
		return nil, "", err
	}
	if err := applyFlagOverrides(cmd, o, cfg); err != nil {
		return nil, "", err
	}
	if err := cfg.Validate(); err != nil {
		return nil, "", err
	}
	return cfg, used, nil
}

func applyFlagOverrides(cmd *cobra.Command, o *runOptions, cfg *config.Config) error {
	changed := func(name string) bool {
		f := cmd.Flags().Lookup(name)
		return f != nil && f.Changed
	}

	if changed(flags.FlagOrg) || changed(flags.FlagRepos) {
		targets, err := targetsFromFlags(o.org, o.repos)
		if err != nil {
			return err
		}
		cfg.Targets = targets
	}
	if changed(flags.FlagDryRun) {
		cfg.DryRun = o.dryRun
	}
	if changed(flags.FlagOutputDir) {
		cfg.Reporting.OutputDir = o.outputDir
	}
	if changed(flags.FlagConcurrency) {
		cfg.Runtime.Concurrency = o.concurrency
	}
	if changed(flags.FlagTimeout) {
		cfg.Runtime.Timeout = o.timeout
	}
	if changed(flags.FlagVerbose) {
		cfg.Runtime.Verbose = o.verbose
	}
	if changed(flags.FlagLogLevel) {
		cfg.Logging.Level = o.logLevel
	}
	if changed(flags.FlagLogFormat) {
		cfg.Logging.Format = o.logFormat
	}
	return nil
}

// targetsFromFlags builds targets from --org and --repos. Without --org every
// repository must be written as OWNER/REPO.
func targetsFromFlags(org string, repos []string) ([]config.Target, error) {
	org = strings.TrimSpace(org)
	if org != "" {
		if len(repos) == 0 {
			return nil, fmt.Errorf("--%s requires --%s", flags.FlagOrg, flags.FlagRepos)
		}
		return []config.Target{{Organization: org, Repositories: repos}}, nil
	}

	var targets []config.Target
	for _, raw := range repos {
		for _, r := range strings.Split(raw, ",") {
			r = strings.TrimSpace(r)
			if r == "" {
				continue
			}
			owner, _, ok := strings.Cut(r, "/")
			if !ok || owner == "" {
				return nil, fmt.Errorf("repository %q must be OWNER/REPO when --%s is not set", r, flags.FlagOrg)
			}
			targets = append(targets, config.Target{Organization: owner, Repositories: []string{r}})
		}
	}
	if len(targets) == 0 {
		return nil, fmt.Errorf("--%s must list at least one repository", flags.FlagRepos)
	}
	return targets, nil
}

func newLogger(cfg *config.Config, w io.Writer) (*zap.Logger, error) {
	level, err := logging.ParseLevel(cfg.Logging.Level)
	if err != nil {
		return nil, err
	}
	format, err := logging.ParseFormat(cfg.Logging.Format)
	if err != nil {
		return nil, err
	}
	return logging.NewFactory(w).CreateLogger(level, format)
}

var errTokenRequired = errors.New("GitHub auth token is required (set GITHUB_TOKEN or GH_TOKEN, run 'gh auth login', or configure auth.app_id)")

func newGitHubClient(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*gh.Client, error) {
	clientOpts := []gh.Option{
		gh.WithVerbose(cfg.Runtime.Verbose),
		gh.WithLogger(logger),
	}

	if cfg.UsesAppAuth() {
		clientOpts = append(clientOpts, gh.WithAppInstallation(cfg.Auth.AppID, cfg.Auth.InstallationID, cfg.Auth.PrivateKeyPath))
		logger.Debug("authenticating as GitHub App installation", zap.Int64("app_id", cfg.Auth.AppID))
	} else {
		token, source, err := gh.ResolveAuthToken(ctx, "")
		if err != nil {
			return nil, fmt.Errorf("failed to resolve GitHub auth token: %w", err)
		}
		if strings.TrimSpace(token) == "" {
			return nil, errTokenRequired
		}
		clientOpts = append(clientOpts, gh.WithToken(token))
		logger.Debug("authenticating with token", zap.String("source", string(source)))
	}

	client, err := gh.NewClient(ctx, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create GitHub client: %w", err)
	}
	return client, nil
}

// runEngine wires config, logger and client, then runs pass. It returns the
// process exit code; setup failures are fatal.
func runEngine(cmd *cobra.Command, o *runOptions, pass func(*engine.Engine, context.Context) int) int {
	stderr := cmd.ErrOrStderr()

	cfg, used, err := loadConfig(cmd, o)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return engine.ExitFatal
	}

	logger, err := newLogger(cfg, stderr)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return engine.ExitFatal
	}
	defer func() { _ = logger.Sync() }()
	if used != "" {
		logger.Info("configuration loaded", zap.String("file", used))
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	client, err := newGitHubClient(ctx, cfg, logger)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return engine.ExitFatal
	}

	eng, err := engine.NewEngine(client, cfg, engine.Options{
		Logger:       logger,
		Console:      cmd.OutOrStdout(),
		NoConsole:    o.noConsole,
		PlainConsole: os.Getenv("NO_COLOR") != "",
	})
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return engine.ExitFatal
	}
	return pass(eng, ctx)
}

// Package engine drives a cleanup run: it schedules repositories on a
// bounded worker pool, walks each repository through its pass, and feeds
// every result to the reporter.
package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"strings"
	"time"

	"branchwarden/internal/cleanup"
	"branchwarden/internal/config"
	"branchwarden/internal/logging"
	"branchwarden/internal/model"
	"branchwarden/internal/permissions"
	"branchwarden/internal/report"
	"branchwarden/internal/safety"

	"go.uber.org/zap"
)

// API is the repository client surface a run needs.
type API interface {
	cleanup.API
	permissions.API
	MergedPullRequests(ctx context.Context, repo model.RepositoryRef, base string) iter.Seq2[[]model.MergedPullRequest, error]
	GetBranchInfo(ctx context.Context, repo model.RepositoryRef, branch string) (model.BranchInfo, error)
	CompareAncestry(ctx context.Context, repo model.RepositoryRef, base, head string) (model.Ancestry, error)
}

// Exit codes.
const (
	ExitOK    = 0
	ExitError = 1
	ExitFatal = 2
)

func exitCodeForRun(fatal, hasErrors bool) int {
	if fatal {
		return ExitFatal
	}
	if hasErrors {
		return ExitError
	}
	return ExitOK
}

type Options struct {
	Logger *zap.Logger
	Now    func() time.Time
	// Console receives the run summary. nil means stdout.
	Console   io.Writer
	NoConsole bool
	// PlainConsole disables colors in the console summary.
	PlainConsole bool
	// Sleep waits between mutations. nil means a context-aware timer.
	Sleep func(ctx context.Context, d time.Duration) error
}

type Engine struct {
	api       API
	cfg       *config.Config
	opts      Options
	logger    *zap.Logger
	filter    CandidateFilter
	evaluator *safety.Evaluator
	cleaner   *cleanup.Cleaner
	gate      *permissions.Gate
	reporter  *report.Reporter
}

// NewEngine wires the run's components from a validated config.
func NewEngine(api API, cfg *config.Config, opts Options) (*Engine, error) {
	if api == nil {
		return nil, errors.New("engine: api is nil")
	}
	if cfg == nil {
		return nil, errors.New("engine: config is nil")
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Sleep == nil {
		opts.Sleep = sleepCtx
	}
	logger := logging.OrNop(opts.Logger)

	return &Engine{
		api:    api,
		cfg:    cfg,
		opts:   opts,
		logger: logger,
		filter: CandidateFilter{
			Include: safety.NewMatcher(cfg.Branches.Include),
			Authors: safety.NewMatcher(cfg.Branches.Authors),
		},
		evaluator: safety.NewEvaluator(cfg.Safety.MinimumAgeDays, cfg.Branches.Exclude, opts.Now),
		cleaner: cleanup.New(api, cleanup.Options{
			CreateBackupTag: cfg.Safety.CreateBackupTag,
			BackupTagPrefix: cfg.Safety.BackupTagPrefix,
			BackupTTLDays:   cfg.Safety.BackupTTLDays,
			Now:             opts.Now,
			Logger:          logger,
		}),
		gate: permissions.NewGate(api, permissions.Options{
			Labels: cfg.Permissions.IssueLabels,
			Title:  cfg.Permissions.IssueTitle,
			DryRun: cfg.DryRun,
			Logger: logger,
		}),
		reporter: report.New(report.Options{
			OutputDir: cfg.Reporting.OutputDir,
			WriteJSON: cfg.Reporting.WriteJSON,
			WriteCSV:  cfg.Reporting.WriteCSV,
			DryRun:    cfg.DryRun,
			Now:       opts.Now,
			Logger:    logger,
		}),
	}, nil
}

func (e *Engine) Reporter() *report.Reporter {
	return e.reporter
}

// Repositories flattens the configured targets in config order.
func Repositories(cfg *config.Config) []model.RepositoryRef {
	var out []model.RepositoryRef
	for _, t := range cfg.Targets {
		for _, name := range t.Repositories {
			out = append(out, model.RepositoryRef{Owner: t.Organization, Name: name})
		}
	}
	return out
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run performs the cleanup pass over every configured repository and
// returns the process exit code.
func (e *Engine) Run(ctx context.Context) int {
	return e.run(ctx, "cleanup", e.processRepository)
}

// Prune runs only the backup tag prune pass over every configured
// repository.
func (e *Engine) Prune(ctx context.Context) int {
	return e.run(ctx, "prune", e.pruneRepository)
}

func (e *Engine) run(ctx context.Context, mode string, fn RepoFunc) int {
	if ctx == nil {
		e.logger.Error("run aborted: context is nil")
		return exitCodeForRun(true, false)
	}

	runCtx, cancel := context.WithTimeout(ctx, e.cfg.Runtime.Timeout)
	defer cancel()

	repos := Repositories(e.cfg)
	scheduler, err := NewScheduler(e.cfg.Runtime.Concurrency)
	if err != nil {
		e.logger.Error("run aborted", zap.Error(err))
		return exitCodeForRun(true, false)
	}

	e.logger.Info("run started",
		zap.String("run_id", e.reporter.RunID()),
		zap.String("mode", mode),
		zap.Int("repositories", len(repos)),
		zap.Int("concurrency", e.cfg.Runtime.Concurrency),
		zap.Bool("dry_run", e.cfg.DryRun),
	)

	results, err := scheduler.Execute(runCtx, repos, fn)
	if err != nil {
		e.logger.Error("run aborted", zap.Error(err))
		return exitCodeForRun(true, false)
	}

	// This loop is the only writer to the reporter.
	seen := make(map[string]bool, len(repos))
	for res := range results {
		seen[strings.ToLower(res.Repo.FullName())] = true
		for _, rec := range res.Records {
			e.reporter.AddRecord(rec)
		}
		e.reporter.AddPrune(res.Prunes...)
		for _, re := range res.Errors {
			e.reporter.AddRepositoryError(res.Repo, re.Stage, re.Err)
		}
		e.logger.Info("repository done",
			zap.String("repository", res.Repo.FullName()),
			zap.Int("records", len(res.Records)),
			zap.Int("pruned", len(res.Prunes)),
			zap.Int("errors", len(res.Errors)),
		)
	}

	if runErr := runCtx.Err(); runErr != nil {
		for _, repo := range repos {
			if !seen[strings.ToLower(repo.FullName())] {
				e.reporter.AddRepositoryError(repo, stageSchedule, fmt.Errorf("not processed: %w", runErr))
			}
		}
		e.logger.Warn("run ended early; report is partial", zap.Error(runErr))
	}

	e.reporter.Finish()
	if !e.opts.NoConsole {
		if err := e.reporter.PrintSummary(e.opts.Console, e.opts.PlainConsole); err != nil {
			e.logger.Warn("printing summary failed", zap.Error(err))
		}
	}

	writeFailed := false
	dir, err := e.reporter.WriteReports()
	if err != nil {
		e.logger.Error("writing reports failed", zap.Error(err))
		writeFailed = true
	} else if dir != "" {
		e.logger.Info("report directory", zap.String("dir", dir))
	}

	code := exitCodeForRun(false, writeFailed || e.reporter.HasErrors())
	e.logger.Info("run finished", zap.String("run_id", e.reporter.RunID()), zap.Int("exit_code", code))
	return code
}

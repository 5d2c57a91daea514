// Package permissions checks what the token may do in a repository and
// escalates, once per repository per run, when deletions are blocked.
package permissions

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	gh "branchwarden/internal/github"
	"branchwarden/internal/logging"
	"branchwarden/internal/model"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

type API interface {
	GetSettings(ctx context.Context, repo model.RepositoryRef) (model.RepoSettings, bool, error)
	EnableDeleteBranchOnMerge(ctx context.Context, repo model.RepositoryRef) error
	FindOpenIssue(ctx context.Context, repo model.RepositoryRef, title string, labels []string) (int, bool, error)
	CreateIssue(ctx context.Context, repo model.RepositoryRef, title, body string, labels []string) (int, string, error)
}

// Status is the result of CheckPermissions. Err is set instead of being
// returned; CanDelete is then false.
type Status struct {
	CanDelete         bool
	CanAdmin          bool
	AutoDeleteEnabled bool
	Archived          bool
	DefaultBranch     string
	Err               error
}

// Escalation describes why a repository needs a remediation issue.
type Escalation struct {
	// CanDelete is false when the pre-check already showed no push access.
	CanDelete bool
	// Blocked counts blocked deletions by action.
	Blocked map[model.Action]int
	// Branches lists the blocked branch names.
	Branches []string
}

// IssueResult reports what CreatePermissionIssue did.
type IssueResult struct {
	Number   int
	URL      string
	Created  bool
	Existing bool
	DryRun   bool
}

type Options struct {
	Labels []string
	Title  string
	DryRun bool
	Logger *zap.Logger
}

// Gate is run-scoped: its handled sets live as long as one run.
type Gate struct {
	api    API
	opts   Options
	logger *zap.Logger

	mu          sync.Mutex
	issues      map[string]IssueResult
	autoDeleted map[string]bool
	flight      singleflight.Group
}

func NewGate(api API, opts Options) *Gate {
	if api == nil {
		panic("permissions.NewGate: api must not be nil")
	}
	return &Gate{
		api:         api,
		opts:        opts,
		logger:      logging.OrNop(opts.Logger),
		issues:      make(map[string]IssueResult),
		autoDeleted: make(map[string]bool),
	}
}

// CheckPermissions reads the repository's settings and the token's access.
func (g *Gate) CheckPermissions(ctx context.Context, repo model.RepositoryRef) Status {
	settings, found, err := g.api.GetSettings(ctx, repo)
	if err != nil {
		return Status{Err: err}
	}
	if !found {
		return Status{Err: fmt.Errorf("repository %s not found or not visible to this token", repo.FullName())}
	}
	return Status{
		CanDelete:         settings.CanPush && !settings.Archived,
		CanAdmin:          settings.CanAdmin,
		AutoDeleteEnabled: settings.DeleteBranchOnMerge,
		Archived:          settings.Archived,
		DefaultBranch:     settings.DefaultBranch,
	}
}

// EnableAutoDelete turns on delete_branch_on_merge. It is attempted at most
// once per repository per run; later calls report the first result.
func (g *Gate) EnableAutoDelete(ctx context.Context, repo model.RepositoryRef) error {
	key := strings.ToLower(repo.FullName())
	g.mu.Lock()
	if g.autoDeleted[key] {
		g.mu.Unlock()
		return nil
	}
	g.autoDeleted[key] = true
	g.mu.Unlock()

	log := g.logger.With(zap.String("repository", repo.FullName()))
	if g.opts.DryRun {
		log.Info("dry run: would enable delete_branch_on_merge")
		return nil
	}
	if err := g.api.EnableDeleteBranchOnMerge(ctx, repo); err != nil {
		log.Warn("enabling delete_branch_on_merge failed", zap.String("error", gh.ErrorMessage(err)))
		return err
	}
	log.Info("enabled delete_branch_on_merge")
	return nil
}

// CreatePermissionIssue files the remediation issue for repo unless this run
// already handled it or an open issue with the same title and labels exists.
// Concurrent calls for the same repository share one attempt.
func (g *Gate) CreatePermissionIssue(ctx context.Context, repo model.RepositoryRef, esc Escalation) (IssueResult, error) {
	key := strings.ToLower(repo.FullName())

	g.mu.Lock()
	if res, ok := g.issues[key]; ok {
		g.mu.Unlock()
		return res, nil
	}
	g.mu.Unlock()

	v, err, _ := g.flight.Do(key, func() (any, error) {
		g.mu.Lock()
		if res, ok := g.issues[key]; ok {
			g.mu.Unlock()
			return res, nil
		}
		g.mu.Unlock()

		res, err := g.fileIssue(ctx, repo, esc)
		if err != nil {
			return IssueResult{}, err
		}
		g.mu.Lock()
		g.issues[key] = res
		g.mu.Unlock()
		return res, nil
	})
	if err != nil {
		return IssueResult{}, err
	}
	return v.(IssueResult), nil
}

func (g *Gate) fileIssue(ctx context.Context, repo model.RepositoryRef, esc Escalation) (IssueResult, error) {
	log := g.logger.With(zap.String("repository", repo.FullName()))

	number, found, err := g.api.FindOpenIssue(ctx, repo, g.opts.Title, g.opts.Labels)
	if err != nil {
		return IssueResult{}, fmt.Errorf("look up existing permission issue: %w", err)
	}
	if found {
		log.Info("permission issue already open", zap.Int("issue", number))
		return IssueResult{Number: number, Existing: true}, nil
	}

	body := IssueBody(repo, esc)
	if g.opts.DryRun {
		log.Info("dry run: would open permission issue", zap.String("title", g.opts.Title))
		return IssueResult{DryRun: true}, nil
	}

	number, url, err := g.api.CreateIssue(ctx, repo, g.opts.Title, body, g.opts.Labels)
	if err != nil {
		return IssueResult{}, fmt.Errorf("create permission issue: %w", err)
	}
	log.Info("opened permission issue", zap.Int("issue", number), zap.String("url", url))
	return IssueResult{Number: number, URL: url, Created: true}, nil
}

// IssueBody renders the remediation issue text.
func IssueBody(repo model.RepositoryRef, esc Escalation) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Automated branch cleanup could not delete merged bot branches in `%s`.\n\n", repo.FullName())

	if !esc.CanDelete {
		b.WriteString("The cleanup token does not have push access to this repository, so no branches were processed.\n\n")
	}

	if len(esc.Blocked) > 0 {
		b.WriteString("Blocked deletions:\n\n")
		actions := make([]string, 0, len(esc.Blocked))
		for a := range esc.Blocked {
			actions = append(actions, string(a))
		}
		sort.Strings(actions)
		for _, a := range actions {
			fmt.Fprintf(&b, "- `%s`: %d\n", a, esc.Blocked[model.Action(a)])
		}
		b.WriteString("\n")
	}

	if len(esc.Branches) > 0 {
		branches := append([]string(nil), esc.Branches...)
		sort.Strings(branches)
		b.WriteString("Affected branches:\n\n")
		for _, br := range branches {
			fmt.Fprintf(&b, "- `%s`\n", br)
		}
		b.WriteString("\n")
	}

	b.WriteString("To resolve, either:\n\n")
	b.WriteString("1. Grant the cleanup token or app `contents: write` on this repository, and allow it to bypass branch protection or rulesets that cover these branches; or\n")
	b.WriteString("2. Enable **Automatically delete head branches** in the repository settings so merged branches are removed by GitHub.\n")
	return b.String()
}

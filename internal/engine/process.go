package engine

import (
	"context"
	"fmt"

	gh "branchwarden/internal/github"
	"branchwarden/internal/model"
	"branchwarden/internal/permissions"
	"branchwarden/internal/safety"

	"go.uber.org/zap"
)

// Repository error stages.
const (
	stagePermissions = "permissions"
	stageDiscovery   = "discovery"
	stageAutoDelete  = "auto_delete"
	stageEscalation  = "escalation"
	stagePrune       = "prune"
	stageInterrupted = "interrupted"
	stageSchedule    = "schedule"
)

// processRepository walks one repository through its pass:
//
//	permissions checked -> (stop unless deletable) -> candidates processed
//	-> auto delete attempted -> escalated if blocked -> backups pruned
func (e *Engine) processRepository(ctx context.Context, repo model.RepositoryRef) RepoResult {
	res := RepoResult{Repo: repo}
	log := e.logger.With(zap.String("repository", repo.FullName()))

	status := e.gate.CheckPermissions(ctx, repo)
	if status.Err != nil {
		log.Warn("permission check failed", zap.String("error", gh.ErrorMessage(status.Err)))
		res.fail(stagePermissions, status.Err)
		return res
	}
	if status.Archived {
		log.Info("repository is archived; skipping")
		return res
	}
	if !status.CanDelete {
		log.Warn("token cannot push to repository; skipping branches")
		e.escalate(ctx, &res, permissions.Escalation{CanDelete: false})
		return res
	}

	candidates, err := e.discoverCandidates(ctx, repo, status.DefaultBranch)
	if err != nil {
		log.Warn("candidate discovery failed", zap.Error(err))
		res.fail(stageDiscovery, err)
		return res
	}
	log.Info("candidates discovered", zap.Int("candidates", len(candidates)), zap.String("default_branch", status.DefaultBranch))

	for _, c := range candidates {
		if ctx.Err() != nil {
			log.Warn("stopping repository pass early", zap.Error(ctx.Err()))
			break
		}
		rec, mutated := e.processCandidate(ctx, repo, status.DefaultBranch, c)
		res.Records = append(res.Records, rec)
		if mutated {
			if err := e.opts.Sleep(ctx, e.cfg.Runtime.OperationDelay); err != nil {
				break
			}
		}
	}
	if err := ctx.Err(); err != nil {
		res.fail(stageInterrupted, fmt.Errorf("repository pass incomplete: %w", err))
		return res
	}

	if e.cfg.Permissions.EnableAutoDelete && status.CanAdmin && !status.AutoDeleteEnabled {
		if err := e.gate.EnableAutoDelete(ctx, repo); err != nil {
			res.fail(stageAutoDelete, err)
		}
	}

	if blocked := res.Blocked(); len(blocked) > 0 {
		var branches []string
		for _, rec := range res.Records {
			if rec.Action.Blocked() {
				branches = append(branches, rec.Branch)
			}
		}
		e.escalate(ctx, &res, permissions.Escalation{CanDelete: true, Blocked: blocked, Branches: branches})
	}

	e.prune(ctx, &res)
	return res
}

func (e *Engine) escalate(ctx context.Context, res *RepoResult, esc permissions.Escalation) {
	if !e.cfg.Permissions.CreateIssues {
		return
	}
	if _, err := e.gate.CreatePermissionIssue(ctx, res.Repo, esc); err != nil {
		e.logger.Warn("permission escalation failed",
			zap.String("repository", res.Repo.FullName()),
			zap.Error(err),
		)
		res.fail(stageEscalation, err)
	}
}

func (e *Engine) prune(ctx context.Context, res *RepoResult) {
	if e.cfg.Safety.BackupTTLDays <= 0 || e.cfg.Safety.BackupTagPrefix == "" {
		return
	}
	prunes, err := e.cleaner.PruneExpiredBackupTags(ctx, res.Repo, e.cfg.DryRun)
	res.Prunes = append(res.Prunes, prunes...)
	res.fail(stagePrune, err)
}

// pruneRepository is the pass used by the standalone prune command.
func (e *Engine) pruneRepository(ctx context.Context, repo model.RepositoryRef) RepoResult {
	res := RepoResult{Repo: repo}
	e.prune(ctx, &res)
	return res
}

// processCandidate decides and, when safe, acts on one candidate. Branch
// state is read live for every candidate. mutated reports whether a mutating
// request was issued.
func (e *Engine) processCandidate(ctx context.Context, repo model.RepositoryRef, defaultBranch string, c model.BranchCandidate) (rec model.CleanupRecord, mutated bool) {
	rec = model.CleanupRecord{
		Organization:   repo.Owner,
		Repository:     repo.Name,
		Branch:         c.BranchName,
		HeadSHA:        c.HeadSHA,
		MergedPRNumber: c.MergedPRNumber,
		MergedAt:       c.MergedAt,
		Author:         c.Author,
		DefaultBranch:  defaultBranch,
		DryRun:         e.cfg.DryRun,
	}
	log := e.logger.With(zap.String("repository", repo.FullName()), zap.String("branch", c.BranchName))
	defer func() { rec.RecordedAt = e.opts.Now().UTC() }()

	info, err := e.api.GetBranchInfo(ctx, repo, c.BranchName)
	if err != nil {
		rec.Action = model.ActionError
		rec.Error = "branch lookup: " + gh.ErrorMessage(err)
		log.Warn("branch lookup failed", zap.Error(err))
		return rec, false
	}
	rec.Protected = info.Protected
	if info.HeadSHA != "" {
		rec.HeadSHA = info.HeadSHA
	}

	in := safety.Input{Candidate: c, Info: info}
	d, decided := e.evaluator.Gate(in)
	if !decided {
		anc, err := e.api.CompareAncestry(ctx, repo, defaultBranch, c.BranchName)
		if err != nil {
			rec.Action = model.ActionError
			rec.Error = "ancestry comparison: " + gh.ErrorMessage(err)
			log.Warn("ancestry comparison failed", zap.Error(err))
			return rec, false
		}
		in.Ancestry = anc
		rec.Ancestry = anc.String()
		d = e.evaluator.Evaluate(in)
	}

	switch d {
	case model.DispositionProceed:
		out := e.cleaner.BackupAndDelete(ctx, repo, c.BranchName, rec.HeadSHA, e.cfg.DryRun)
		rec.Action = out.Kind.Action()
		rec.BackupTag = out.BackupTag
		if out.Kind != model.OutcomeDeleted {
			rec.Error = out.Message
		}
		return rec, !e.cfg.DryRun
	case model.DispositionAlreadyDeleted,
		model.DispositionSkippedProtected,
		model.DispositionSkippedTooRecent,
		model.DispositionSkippedUnsafe,
		model.DispositionSkippedExcluded:
		action, _ := d.Action()
		rec.Action = action
		log.Debug("candidate skipped", zap.Stringer("disposition", d))
		return rec, false
	default:
		panic(fmt.Sprintf("engine: unhandled disposition %d", int(d)))
	}
}


// Package cleanup performs the only mutations of a run: backup tag
// creation, branch deletion and expired backup pruning.
package cleanup

import (
	"context"
	"fmt"
	"time"

	gh "branchwarden/internal/github"
	"branchwarden/internal/logging"
	"branchwarden/internal/model"

	"go.uber.org/zap"
)

// API is the subset of the repository client that mutates refs.
type API interface {
	CreateBackupTag(ctx context.Context, repo model.RepositoryRef, tag, sha, message string) error
	DeleteBranch(ctx context.Context, repo model.RepositoryRef, branch string) error
	ListTagRefs(ctx context.Context, repo model.RepositoryRef, prefix string) ([]model.TagRef, error)
	DeleteTag(ctx context.Context, repo model.RepositoryRef, tag string) error
}

type Options struct {
	CreateBackupTag bool
	BackupTagPrefix string
	BackupTTLDays   int
	Now             func() time.Time
	Logger          *zap.Logger
}

type Cleaner struct {
	api    API
	opts   Options
	logger *zap.Logger
}

func New(api API, opts Options) *Cleaner {
	if api == nil {
		panic("cleanup.New: api must not be nil")
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Cleaner{api: api, opts: opts, logger: logging.OrNop(opts.Logger)}
}

func backupMessage(branch, sha string) string {
	return fmt.Sprintf("Backup of branch %s at %s taken before automated cleanup.", branch, sha)
}

// BackupAndDelete tags sha (when backups are enabled) and then deletes the
// branch. A failed backup ends the attempt before deletion. Under dryRun no
// request is made and the outcome reports what would have happened.
func (c *Cleaner) BackupAndDelete(ctx context.Context, repo model.RepositoryRef, branch, sha string, dryRun bool) model.DeletionOutcome {
	log := c.logger.With(zap.String("repository", repo.FullName()), zap.String("branch", branch))

	var out model.DeletionOutcome
	if c.opts.CreateBackupTag {
		if sha == "" {
			return model.DeletionOutcome{Kind: model.OutcomeError, Message: "no head commit to back up"}
		}
		out.BackupTag = BackupTagName(c.opts.BackupTagPrefix, branch, c.opts.Now())
	}

	if dryRun {
		log.Info("dry run: would delete branch", zap.String("backup_tag", out.BackupTag))
		out.Kind = model.OutcomeDeleted
		out.Message = "dry run"
		return out
	}

	if out.BackupTag != "" {
		if err := c.api.CreateBackupTag(ctx, repo, out.BackupTag, sha, backupMessage(branch, sha)); err != nil {
			out.Kind = classifyBackupError(err)
			out.Message = "backup tag: " + gh.ErrorMessage(err)
			log.Warn("backup tag failed; branch left in place", zap.String("backup_tag", out.BackupTag), zap.Error(err))
			return out
		}
		log.Debug("backup tag created", zap.String("backup_tag", out.BackupTag))
	}

	if err := c.api.DeleteBranch(ctx, repo, branch); err != nil {
		out.Kind = ClassifyDeleteError(err)
		out.Message = gh.ErrorMessage(err)
		log.Warn("branch deletion failed", zap.Stringer("outcome", out.Kind), zap.String("error", out.Message))
		return out
	}

	out.Kind = model.OutcomeDeleted
	log.Info("branch deleted", zap.String("backup_tag", out.BackupTag))
	return out
}

package cleanup

import (
	"context"
	"fmt"

	gh "branchwarden/internal/github"
	"branchwarden/internal/model"
	"branchwarden/internal/safety"

	"go.uber.org/zap"
)

// PruneExpiredBackupTags deletes backup tags under the configured prefix
// whose embedded date is more than BackupTTLDays old. Tags that do not parse
// are left alone. A TTL of zero disables pruning. Per-tag deletion failures
// are recorded and do not stop the pass; only a listing failure is returned.
func (c *Cleaner) PruneExpiredBackupTags(ctx context.Context, repo model.RepositoryRef, dryRun bool) ([]model.PruneRecord, error) {
	ttl := c.opts.BackupTTLDays
	if ttl <= 0 {
		return nil, nil
	}
	log := c.logger.With(zap.String("repository", repo.FullName()))

	tags, err := c.api.ListTagRefs(ctx, repo, c.opts.BackupTagPrefix+"/")
	if err != nil {
		return nil, fmt.Errorf("list backup tags: %w", err)
	}

	now := c.opts.Now()
	var records []model.PruneRecord
	for _, tag := range tags {
		taggedOn, ok := ParseTagDate(c.opts.BackupTagPrefix, tag.Name)
		if !ok {
			log.Debug("skipping tag without a date suffix", zap.String("tag", tag.Name))
			continue
		}
		if safety.AgeDays(taggedOn, now) <= ttl {
			continue
		}

		rec := model.PruneRecord{
			Organization: repo.Owner,
			Repository:   repo.Name,
			Tag:          tag.Name,
			TaggedOn:     taggedOn,
			DryRun:       dryRun,
		}
		if dryRun {
			log.Info("dry run: would prune backup tag", zap.String("tag", tag.Name))
			rec.Deleted = true
			records = append(records, rec)
			continue
		}
		if err := ctx.Err(); err != nil {
			return records, err
		}
		if err := c.api.DeleteTag(ctx, repo, tag.Name); err != nil {
			rec.Error = gh.ErrorMessage(err)
			log.Warn("pruning backup tag failed", zap.String("tag", tag.Name), zap.Error(err))
		} else {
			rec.Deleted = true
			log.Info("pruned backup tag", zap.String("tag", tag.Name))
		}
		records = append(records, rec)
	}
	return records, nil
}

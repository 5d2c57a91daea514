package engine

import (
	"context"
	"errors"
	"fmt"

	"branchwarden/internal/model"

	"golang.org/x/sync/errgroup"
)

// RepoFunc processes one repository. It never fails; problems are carried on
// the result.
type RepoFunc func(ctx context.Context, repo model.RepositoryRef) RepoResult

type Scheduler struct {
	concurrency int
}

func NewScheduler(concurrency int) (*Scheduler, error) {
	if concurrency <= 0 {
		return nil, fmt.Errorf("concurrency must be >= 1, got %d", concurrency)
	}
	return &Scheduler{concurrency: concurrency}, nil
}

// Execute runs fn for each repository with at most concurrency in flight and
// streams one RepoResult per started repository. Within a repository work is
// sequential; fn owns that.
//
// Once ctx is done no further repositories are started. Results of
// repositories already running are still delivered, so the caller must drain
// the channel until it is closed.
func (s *Scheduler) Execute(ctx context.Context, repos []model.RepositoryRef, fn RepoFunc) (<-chan RepoResult, error) {
	if s == nil {
		return nil, errors.New("scheduler is nil")
	}
	if ctx == nil {
		return nil, errors.New("context is nil")
	}
	if fn == nil {
		return nil, errors.New("repo func is nil")
	}

	results := make(chan RepoResult, s.concurrency)
	go func() {
		defer close(results)

		var g errgroup.Group
		g.SetLimit(s.concurrency)
		for _, repo := range repos {
			if ctx.Err() != nil {
				break
			}
			g.Go(func() error {
				if ctx.Err() != nil {
					return nil
				}
				results <- fn(ctx, repo)
				return nil
			})
		}
		_ = g.Wait()
	}()
	return results, nil
}

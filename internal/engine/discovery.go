package engine

import (
	"context"
	"fmt"
	"sort"

	"branchwarden/internal/model"
	"branchwarden/internal/safety"
)

// CandidateFilter selects candidates from merged pull request history.
type CandidateFilter struct {
	Include *safety.Matcher
	// Authors restricts candidates to matching pull request authors. An empty
	// matcher accepts any author.
	Authors *safety.Matcher
}

// DiscoverCandidates turns merged pull requests into branch candidates.
//
// Pull requests from forks, pull requests whose head is the default branch
// and branches not matching an include pattern are dropped. When several
// pull requests used the same branch the most recently merged one wins.
// The result is ordered by merge time, newest first.
func DiscoverCandidates(prs []model.MergedPullRequest, defaultBranch string, f CandidateFilter) []model.BranchCandidate {
	byBranch := make(map[string]model.BranchCandidate)
	for _, pr := range prs {
		if pr.IsCrossRepository || pr.HeadRefName == "" || pr.HeadRefName == defaultBranch {
			continue
		}
		if _, ok := f.Include.Match(pr.HeadRefName); !ok {
			continue
		}
		if !f.Authors.Empty() {
			if _, ok := f.Authors.Match(pr.Author); !ok {
				continue
			}
		}

		c := model.BranchCandidate{
			BranchName:     pr.HeadRefName,
			HeadSHA:        pr.HeadSHA,
			MergedPRNumber: pr.Number,
			MergedAt:       pr.MergedAt,
			Author:         pr.Author,
		}
		if prev, ok := byBranch[c.BranchName]; ok && !newer(c, prev) {
			continue
		}
		byBranch[c.BranchName] = c
	}

	out := make([]model.BranchCandidate, 0, len(byBranch))
	for _, c := range byBranch {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].MergedAt.Equal(out[j].MergedAt) {
			return out[i].MergedAt.After(out[j].MergedAt)
		}
		return out[i].BranchName < out[j].BranchName
	})
	return out
}

func newer(a, b model.BranchCandidate) bool {
	if !a.MergedAt.Equal(b.MergedAt) {
		return a.MergedAt.After(b.MergedAt)
	}
	return a.MergedPRNumber > b.MergedPRNumber
}

// discoverCandidates drains the merged pull request pages for repo. A failed
// page fails discovery for the whole repository.
func (e *Engine) discoverCandidates(ctx context.Context, repo model.RepositoryRef, defaultBranch string) ([]model.BranchCandidate, error) {
	var prs []model.MergedPullRequest
	for page, err := range e.api.MergedPullRequests(ctx, repo, defaultBranch) {
		if err != nil {
			return nil, fmt.Errorf("list merged pull requests: %w", err)
		}
		prs = append(prs, page...)
	}
	return DiscoverCandidates(prs, defaultBranch, e.filter), nil
}

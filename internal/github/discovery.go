package github

import (
	"context"
	"fmt"
	"iter"

	"branchwarden/internal/model"

	"github.com/shurcooL/githubv4"
)

const mergedPullRequestsPageSize = 100

type mergedPullRequestsQuery struct {
	Repository struct {
		PullRequests struct {
			Nodes []struct {
				Number            int
				HeadRefName       string
				HeadRefOid        string
				MergedAt          *githubv4.DateTime
				IsCrossRepository bool
				Author            *struct {
					Login string
				}
			}
			PageInfo struct {
				HasNextPage bool
				EndCursor   githubv4.String
			}
		} `graphql:"pullRequests(states: MERGED, baseRefName: $base, first: $first, after: $cursor, orderBy: {field: UPDATED_AT, direction: DESC})"`
	} `graphql:"repository(owner: $owner, name: $name)"`
}

// MergedPullRequests returns the merged pull requests targeting base, one page
// per iteration. Pages are fetched lazily and ranging again starts over from
// the first page. A failed page is yielded as an error and ends the sequence.
func (c *Client) MergedPullRequests(ctx context.Context, repo model.RepositoryRef, base string) iter.Seq2[[]model.MergedPullRequest, error] {
	return func(yield func([]model.MergedPullRequest, error) bool) {
		vars := map[string]any{
			"owner":  githubv4.String(repo.Owner),
			"name":   githubv4.String(repo.Name),
			"base":   githubv4.String(base),
			"first":  githubv4.Int(mergedPullRequestsPageSize),
			"cursor": (*githubv4.String)(nil),
		}

		for {
			var q mergedPullRequestsQuery
			if err := c.GraphQL.Query(ctx, &q, vars); err != nil {
				yield(nil, fmt.Errorf("merged pull requests %s: %w", repo.FullName(), err))
				return
			}

			conn := q.Repository.PullRequests
			page := make([]model.MergedPullRequest, 0, len(conn.Nodes))
			for _, n := range conn.Nodes {
				pr := model.MergedPullRequest{
					Number:            n.Number,
					HeadRefName:       n.HeadRefName,
					HeadSHA:           n.HeadRefOid,
					IsCrossRepository: n.IsCrossRepository,
				}
				if n.MergedAt != nil {
					pr.MergedAt = n.MergedAt.Time.UTC()
				}
				if n.Author != nil {
					pr.Author = n.Author.Login
				}
				page = append(page, pr)
			}

			if !yield(page, nil) {
				return
			}
			if !conn.PageInfo.HasNextPage {
				return
			}
			cursor := conn.PageInfo.EndCursor
			vars["cursor"] = githubv4.NewString(cursor)
		}
	}
}

// CollectMergedPullRequests drains MergedPullRequests. Any page error fails
// the whole collection.
func (c *Client) CollectMergedPullRequests(ctx context.Context, repo model.RepositoryRef, base string) ([]model.MergedPullRequest, error) {
	var all []model.MergedPullRequest
	for page, err := range c.MergedPullRequests(ctx, repo, base) {
		if err != nil {
			return nil, err
		}
		all = append(all, page...)
	}
	return all, nil
}

package github

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"branchwarden/internal/model"

	"github.com/google/go-github/v81/github"
	"go.uber.org/zap"
)

// repoPayload is decoded from GET /repos/{owner}/{repo}. Only the fields the
// cleanup reads are declared.
type repoPayload struct {
	DefaultBranch       string `json:"default_branch"`
	Archived            bool   `json:"archived"`
	DeleteBranchOnMerge bool   `json:"delete_branch_on_merge"`
	Permissions         struct {
		Admin    bool `json:"admin"`
		Maintain bool `json:"maintain"`
		Push     bool `json:"push"`
	} `json:"permissions"`
}

// GetSettings fetches the repository settings and the caller's permissions.
// found is false when the repository does not exist or is not visible.
func (c *Client) GetSettings(ctx context.Context, repo model.RepositoryRef) (settings model.RepoSettings, found bool, err error) {
	u := fmt.Sprintf("repos/%s/%s", url.PathEscape(repo.Owner), url.PathEscape(repo.Name))
	req, err := c.Client.NewRequest(http.MethodGet, u, nil)
	if err != nil {
		return model.RepoSettings{}, false, err
	}

	var payload repoPayload
	if _, err := c.Client.Do(ctx, req, &payload); err != nil {
		if IsNotFound(err) {
			return model.RepoSettings{}, false, nil
		}
		return model.RepoSettings{}, false, fmt.Errorf("get repository %s: %w", repo.FullName(), err)
	}

	return model.RepoSettings{
		DefaultBranch:       payload.DefaultBranch,
		CanPush:             payload.Permissions.Push || payload.Permissions.Maintain || payload.Permissions.Admin,
		CanAdmin:            payload.Permissions.Admin,
		DeleteBranchOnMerge: payload.DeleteBranchOnMerge,
		Archived:            payload.Archived,
	}, true, nil
}

// DefaultBranch returns the repository's default branch name.
func (c *Client) DefaultBranch(ctx context.Context, repo model.RepositoryRef) (string, bool, error) {
	settings, found, err := c.GetSettings(ctx, repo)
	if err != nil || !found {
		return "", found, err
	}
	return settings.DefaultBranch, true, nil
}

// GetBranchInfo returns a live snapshot of branch. A missing branch is not an
// error; Exists is false instead. GitHub follows renames on this endpoint, so
// a response for a different name also counts as missing.
func (c *Client) GetBranchInfo(ctx context.Context, repo model.RepositoryRef, branch string) (model.BranchInfo, error) {
	// GetBranch reports non-200 statuses as a plain error, so a missing
	// branch is recognized by the response status.
	b, resp, err := c.Client.Repositories.GetBranch(ctx, repo.Owner, repo.Name, branch, 1)
	if err != nil {
		if IsNotFound(err) || (resp != nil && resp.StatusCode == http.StatusNotFound) {
			return model.BranchInfo{Name: branch}, nil
		}
		return model.BranchInfo{}, fmt.Errorf("get branch %s@%s: %w", repo.FullName(), branch, err)
	}
	if b.GetName() != "" && b.GetName() != branch {
		c.logger.Debug("branch request followed a rename",
			zap.String("repository", repo.FullName()),
			zap.String("branch", branch),
			zap.String("resolved", b.GetName()),
		)
		return model.BranchInfo{Name: branch}, nil
	}
	return model.BranchInfo{
		Name:      branch,
		Exists:    true,
		Protected: b.GetProtected(),
		HeadSHA:   b.GetCommit().GetSHA(),
	}, nil
}

// CompareAncestry compares head against base. A 404 (unrelated histories or a
// ref that vanished between calls) is reported as diverged.
func (c *Client) CompareAncestry(ctx context.Context, repo model.RepositoryRef, base, head string) (model.Ancestry, error) {
	cmp, _, err := c.Client.Repositories.CompareCommits(ctx, repo.Owner, repo.Name, base, head, &github.ListOptions{PerPage: 1})
	if err != nil {
		if IsNotFound(err) {
			return model.AncestryDiverged, nil
		}
		return model.AncestryDiverged, fmt.Errorf("compare %s %s...%s: %w", repo.FullName(), base, head, err)
	}
	return model.ParseAncestry(cmp.GetStatus()), nil
}

type createTagRequest struct {
	Tag     string `json:"tag"`
	Message string `json:"message"`
	Object  string `json:"object"`
	Type    string `json:"type"`
}

type createRefRequest struct {
	Ref string `json:"ref"`
	SHA string `json:"sha"`
}

type objectResponse struct {
	SHA string `json:"sha"`
}

// CreateBackupTag creates an annotated tag object pointing at sha and the
// refs/tags/<tag> reference for it. An existing reference with the same name
// counts as success so reruns on the same day are harmless.
func (c *Client) CreateBackupTag(ctx context.Context, repo model.RepositoryRef, tag, sha, message string) error {
	base := fmt.Sprintf("repos/%s/%s/git", url.PathEscape(repo.Owner), url.PathEscape(repo.Name))

	req, err := c.Client.NewRequest(http.MethodPost, base+"/tags", &createTagRequest{
		Tag:     tag,
		Message: message,
		Object:  sha,
		Type:    "commit",
	})
	if err != nil {
		return err
	}
	var obj objectResponse
	if _, err := c.Client.Do(ctx, req, &obj); err != nil {
		return fmt.Errorf("create tag object %s: %w", tag, err)
	}

	target := obj.SHA
	if target == "" {
		target = sha
	}
	req, err = c.Client.NewRequest(http.MethodPost, base+"/refs", &createRefRequest{
		Ref: "refs/tags/" + tag,
		SHA: target,
	})
	if err != nil {
		return err
	}
	if _, err := c.Client.Do(ctx, req, nil); err != nil {
		if IsAlreadyExists(err) {
			c.logger.Debug("backup tag already exists",
				zap.String("repository", repo.FullName()),
				zap.String("tag", tag),
			)
			return nil
		}
		return fmt.Errorf("create tag ref %s: %w", tag, err)
	}
	return nil
}

// DeleteBranch deletes refs/heads/<branch>. Errors are returned unclassified.
func (c *Client) DeleteBranch(ctx context.Context, repo model.RepositoryRef, branch string) error {
	_, err := c.Client.Git.DeleteRef(ctx, repo.Owner, repo.Name, "heads/"+branch)
	return err
}

type refPayload struct {
	Ref    string `json:"ref"`
	Object struct {
		SHA string `json:"sha"`
	} `json:"object"`
}

// ListTagRefs lists tags whose name starts with prefix.
func (c *Client) ListTagRefs(ctx context.Context, repo model.RepositoryRef, prefix string) ([]model.TagRef, error) {
	u := fmt.Sprintf("repos/%s/%s/git/matching-refs/tags/%s",
		url.PathEscape(repo.Owner), url.PathEscape(repo.Name), escapeRefPath(prefix))
	req, err := c.Client.NewRequest(http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}

	var refs []refPayload
	if _, err := c.Client.Do(ctx, req, &refs); err != nil {
		if IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("list tags %s %s*: %w", repo.FullName(), prefix, err)
	}

	out := make([]model.TagRef, 0, len(refs))
	for _, r := range refs {
		name := strings.TrimPrefix(r.Ref, "refs/tags/")
		if name == r.Ref || !strings.HasPrefix(name, prefix) {
			continue
		}
		out = append(out, model.TagRef{Name: name, SHA: r.Object.SHA})
	}
	return out, nil
}

// DeleteTag deletes refs/tags/<tag>.
func (c *Client) DeleteTag(ctx context.Context, repo model.RepositoryRef, tag string) error {
	_, err := c.Client.Git.DeleteRef(ctx, repo.Owner, repo.Name, "tags/"+tag)
	return err
}

// EnableDeleteBranchOnMerge turns on automatic head branch deletion.
func (c *Client) EnableDeleteBranchOnMerge(ctx context.Context, repo model.RepositoryRef) error {
	_, _, err := c.Client.Repositories.Edit(ctx, repo.Owner, repo.Name, &github.Repository{
		DeleteBranchOnMerge: github.Ptr(true),
	})
	if err != nil {
		return fmt.Errorf("enable delete_branch_on_merge on %s: %w", repo.FullName(), err)
	}
	return nil
}

// FindOpenIssue looks for an open issue (not a pull request) with exactly the
// given title carrying all labels.
func (c *Client) FindOpenIssue(ctx context.Context, repo model.RepositoryRef, title string, labels []string) (number int, found bool, err error) {
	opts := &github.IssueListByRepoOptions{
		State:       "open",
		Labels:      labels,
		ListOptions: github.ListOptions{PerPage: 100},
	}
	for {
		issues, resp, err := c.Client.Issues.ListByRepo(ctx, repo.Owner, repo.Name, opts)
		if err != nil {
			return 0, false, fmt.Errorf("list issues %s: %w", repo.FullName(), err)
		}
		for _, is := range issues {
			if is.IsPullRequest() {
				continue
			}
			if strings.TrimSpace(is.GetTitle()) == strings.TrimSpace(title) {
				return is.GetNumber(), true, nil
			}
		}
		if resp == nil || resp.NextPage == 0 {
			return 0, false, nil
		}
		opts.ListOptions.Page = resp.NextPage
	}
}

// CreateIssue opens an issue and returns its number and URL.
func (c *Client) CreateIssue(ctx context.Context, repo model.RepositoryRef, title, body string, labels []string) (int, string, error) {
	req := &github.IssueRequest{
		Title: github.Ptr(title),
		Body:  github.Ptr(body),
	}
	if len(labels) > 0 {
		l := append([]string(nil), labels...)
		req.Labels = &l
	}
	is, _, err := c.Client.Issues.Create(ctx, repo.Owner, repo.Name, req)
	if err != nil {
		return 0, "", fmt.Errorf("create issue on %s: %w", repo.FullName(), err)
	}
	return is.GetNumber(), is.GetHTMLURL(), nil
}

// escapeRefPath escapes each segment of a ref name, keeping the separators.
func escapeRefPath(ref string) string {
	parts := strings.Split(ref, "/")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	return strings.Join(parts, "/")
}

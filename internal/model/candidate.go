package model

import "time"

// RepositoryRef identifies one configured repository.
type RepositoryRef struct {
	Owner string
	Name  string
}

func (r RepositoryRef) FullName() string {
	return r.Owner + "/" + r.Name
}

// MergedPullRequest is one entry of the merged pull request history for a
// repository's default branch.
type MergedPullRequest struct {
	Number            int
	HeadRefName       string
	HeadSHA           string
	Author            string
	MergedAt          time.Time
	IsCrossRepository bool
}

// BranchCandidate is a branch discovered from merged pull request history.
// Candidates are deduplicated by BranchName within one repository pass; the
// most recently merged pull request wins.
type BranchCandidate struct {
	BranchName     string
	HeadSHA        string
	MergedPRNumber int
	MergedAt       time.Time
	Author         string
}

// BranchInfo is a live snapshot of a branch fetched right before acting on
// it. It is never cached across candidates.
type BranchInfo struct {
	Name      string
	Protected bool
	Exists    bool
	HeadSHA   string
}

// RepoSettings is the subset of repository settings the cleanup needs.
type RepoSettings struct {
	DefaultBranch       string
	CanPush             bool
	CanAdmin            bool
	DeleteBranchOnMerge bool
	Archived            bool
}

// TagRef is a tag reference as listed by the git refs API.
type TagRef struct {
	// Name is the tag name without the refs/tags/ prefix.
	Name string
	SHA  string
}

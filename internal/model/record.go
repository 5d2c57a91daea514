package model

import "time"

// CleanupRecord is the durable audit unit: one per candidate branch per run.
// Records are append-only and never mutated after creation.
type CleanupRecord struct {
	Organization   string    `json:"organization"`
	Repository     string    `json:"repository"`
	Branch         string    `json:"branch"`
	HeadSHA        string    `json:"head_sha"`
	MergedPRNumber int       `json:"merged_pr_number"`
	MergedAt       time.Time `json:"merged_at"`
	Author         string    `json:"author,omitempty"`
	DefaultBranch  string    `json:"default_branch"`
	Protected      bool      `json:"protected"`
	Ancestry       string    `json:"ancestry,omitempty"`
	Action         Action    `json:"action"`
	BackupTag      string    `json:"backup_tag,omitempty"`
	Error          string    `json:"error,omitempty"`
	DryRun         bool      `json:"dry_run"`
	RecordedAt     time.Time `json:"recorded_at"`
}

// FullName returns OWNER/REPO for the record.
func (r CleanupRecord) FullName() string {
	return r.Organization + "/" + r.Repository
}

// PruneRecord describes one expired backup tag handled by a prune pass.
type PruneRecord struct {
	Organization string    `json:"organization"`
	Repository   string    `json:"repository"`
	Tag          string    `json:"tag"`
	TaggedOn     time.Time `json:"tagged_on"`
	Deleted      bool      `json:"deleted"`
	Error        string    `json:"error,omitempty"`
	DryRun       bool      `json:"dry_run"`
}

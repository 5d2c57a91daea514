package report

import (
	"time"

	"branchwarden/internal/model"
)

// RunIDLayout formats run IDs and run directory names.
const RunIDLayout = "20060102-150405"

type RunInfo struct {
	ID         string    `json:"id"`
	DryRun     bool      `json:"dry_run"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}

// RepositoryError is a failure that stopped part of a repository's pass
// outside any single candidate, such as a failed settings read or
// discovery page.
type RepositoryError struct {
	Organization string `json:"organization"`
	Repository   string `json:"repository"`
	Stage        string `json:"stage"`
	Error        string `json:"error"`
}

// Document is the structured record-and-summary artifact of one run.
type Document struct {
	Run     RunInfo               `json:"run"`
	Summary Summary               `json:"summary"`
	Records []model.CleanupRecord `json:"records"`
	Prunes  []model.PruneRecord   `json:"prunes"`
	Errors  []RepositoryError     `json:"repository_errors"`
}

package engine

import "branchwarden/internal/model"

// RepoError is a failure outside candidate processing.
type RepoError struct {
	Stage string
	Err   error
}

// RepoResult is everything one repository pass produced. Workers send it to
// the single goroutine that owns the reporter.
type RepoResult struct {
	Repo    model.RepositoryRef
	Records []model.CleanupRecord
	Prunes  []model.PruneRecord
	Errors  []RepoError
}

func (r *RepoResult) fail(stage string, err error) {
	if err != nil {
		r.Errors = append(r.Errors, RepoError{Stage: stage, Err: err})
	}
}

// Blocked counts records whose deletion was refused for permission reasons.
func (r *RepoResult) Blocked() map[model.Action]int {
	out := make(map[model.Action]int)
	for _, rec := range r.Records {
		if rec.Action.Blocked() {
			out[rec.Action]++
		}
	}
	return out
}

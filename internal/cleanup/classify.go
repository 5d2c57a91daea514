package cleanup

import (
	"net/http"

	gh "branchwarden/internal/github"
	"branchwarden/internal/model"
)

// ClassifyDeleteError maps a failed branch deletion onto an outcome.
//
//	403 naming protection or a ruleset  -> ProtectedRuleBlocked
//	403 otherwise                       -> TokenInsufficient
//	404, 422 (ref already gone)         -> AlreadyDeleted
//	anything else                       -> Error
func ClassifyDeleteError(err error) model.OutcomeKind {
	if err == nil {
		return model.OutcomeDeleted
	}
	switch gh.StatusCode(err) {
	case http.StatusForbidden:
		if gh.MentionsProtection(err) {
			return model.OutcomeProtectedRuleBlocked
		}
		return model.OutcomeTokenInsufficient
	case http.StatusNotFound, http.StatusUnprocessableEntity:
		return model.OutcomeAlreadyDeleted
	default:
		return model.OutcomeError
	}
}

// classifyBackupError maps a failed backup. Deletion is never attempted
// after one of these.
func classifyBackupError(err error) model.OutcomeKind {
	if gh.StatusCode(err) == http.StatusForbidden {
		return model.OutcomeTokenInsufficient
	}
	return model.OutcomeError
}

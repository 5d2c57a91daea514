// Package safety decides, without any I/O, whether a merged branch may be
// deleted.
package safety

import (
	"time"

	"branchwarden/internal/model"
)

const day = 24 * time.Hour

// AgeDays is the number of whole days between mergedAt and now. A zero or
// future merge time yields 0 so an unknown merge date never looks old.
func AgeDays(mergedAt, now time.Time) int {
	if mergedAt.IsZero() || now.Before(mergedAt) {
		return 0
	}
	return int(now.Sub(mergedAt) / day)
}

// Input is everything the evaluator looks at for one candidate. Info must
// be a live snapshot taken for this candidate.
type Input struct {
	Candidate model.BranchCandidate
	Info      model.BranchInfo
	Ancestry  model.Ancestry
}

type Evaluator struct {
	MinimumAgeDays int
	Exclude        *Matcher
	Now            func() time.Time
}

func NewEvaluator(minimumAgeDays int, exclude []string, now func() time.Time) *Evaluator {
	if now == nil {
		now = time.Now
	}
	return &Evaluator{
		MinimumAgeDays: minimumAgeDays,
		Exclude:        NewMatcher(exclude),
		Now:            now,
	}
}

// Gate applies the checks that need no ancestry comparison: existence,
// protection, then age. decided is false when the candidate passes all of
// them and still needs a comparison before Evaluate can finish.
func (e *Evaluator) Gate(in Input) (d model.Disposition, decided bool) {
	switch {
	case !in.Info.Exists:
		return model.DispositionAlreadyDeleted, true
	case in.Info.Protected:
		return model.DispositionSkippedProtected, true
	case AgeDays(in.Candidate.MergedAt, e.Now()) < e.MinimumAgeDays:
		return model.DispositionSkippedTooRecent, true
	default:
		return model.DispositionProceed, false
	}
}

// Evaluate returns the disposition for in. The first failing check wins:
// missing, protected, too recent, not contained in the default branch,
// excluded by name. Anything else proceeds.
func (e *Evaluator) Evaluate(in Input) model.Disposition {
	if d, decided := e.Gate(in); decided {
		return d
	}
	if !in.Ancestry.Contained() {
		return model.DispositionSkippedUnsafe
	}
	if _, excluded := e.Exclude.Match(in.Candidate.BranchName); excluded {
		return model.DispositionSkippedExcluded
	}
	return model.DispositionProceed
}

package engine

import (
	"testing"
	"time"

	"branchwarden/internal/model"
	"branchwarden/internal/safety"
)

func TestDiscoverCandidates(t *testing.T) {
	base := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)
	prs := []model.MergedPullRequest{
		{Number: 1, HeadRefName: "dependabot/a", HeadSHA: "old", Author: "dependabot[bot]", MergedAt: base},
		{Number: 2, HeadRefName: "dependabot/a", HeadSHA: "new", Author: "dependabot[bot]", MergedAt: base.Add(48 * time.Hour)},
		{Number: 3, HeadRefName: "renovate/b", Author: "renovate[bot]", MergedAt: base.Add(24 * time.Hour)},
		{Number: 4, HeadRefName: "dependabot/fork", Author: "dependabot[bot]", MergedAt: base, IsCrossRepository: true},
		{Number: 5, HeadRefName: "feature/x", Author: "dependabot[bot]", MergedAt: base},
		{Number: 6, HeadRefName: "dependabot/human", Author: "alice", MergedAt: base},
		{Number: 7, HeadRefName: "main", Author: "dependabot[bot]", MergedAt: base},
		{Number: 8, HeadRefName: "", Author: "dependabot[bot]", MergedAt: base},
	}
	f := CandidateFilter{
		Include: safety.NewMatcher([]string{"dependabot/*", "renovate/*", "main"}),
		Authors: safety.NewMatcher([]string{"*[bot]"}),
	}

	got := DiscoverCandidates(prs, "main", f)
	if len(got) != 2 {
		t.Fatalf("expected 2 candidates, got %d: %+v", len(got), got)
	}
	if got[0].BranchName != "dependabot/a" || got[0].MergedPRNumber != 2 || got[0].HeadSHA != "new" {
		t.Fatalf("expected newest merge of dependabot/a first, got %+v", got[0])
	}
	if got[1].BranchName != "renovate/b" {
		t.Fatalf("unexpected second candidate: %+v", got[1])
	}
}

func TestDiscoverCandidates_EmptyAuthorsAcceptsAnyone(t *testing.T) {
	at := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)
	prs := []model.MergedPullRequest{
		{Number: 1, HeadRefName: "dependabot/a", Author: "alice", MergedAt: at},
		{Number: 2, HeadRefName: "dependabot/b", Author: "", MergedAt: at},
	}
	got := DiscoverCandidates(prs, "main", CandidateFilter{Include: safety.NewMatcher([]string{"dependabot/*"})})
	if len(got) != 2 {
		t.Fatalf("expected 2 candidates, got %+v", got)
	}
	// Equal merge times fall back to name order.
	if got[0].BranchName != "dependabot/a" || got[1].BranchName != "dependabot/b" {
		t.Fatalf("unexpected order: %+v", got)
	}
}

func TestDiscoverCandidates_SameMergeTimePrefersHigherNumber(t *testing.T) {
	at := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)
	prs := []model.MergedPullRequest{
		{Number: 9, HeadRefName: "dependabot/a", HeadSHA: "nine", MergedAt: at},
		{Number: 4, HeadRefName: "dependabot/a", HeadSHA: "four", MergedAt: at},
	}
	got := DiscoverCandidates(prs, "main", CandidateFilter{Include: safety.NewMatcher([]string{"*"})})
	if len(got) != 1 || got[0].MergedPRNumber != 9 {
		t.Fatalf("expected PR 9 to win, got %+v", got)
	}
}

func TestDiscoverCandidates_ExcludedBranchesAreStillDiscovered(t *testing.T) {
	prs := []model.MergedPullRequest{{Number: 1, HeadRefName: "dependabot/keep", MergedAt: time.Now()}}
	got := DiscoverCandidates(prs, "main", CandidateFilter{Include: safety.NewMatcher([]string{"dependabot/*"})})
	if len(got) != 1 {
		t.Fatalf("expected candidate to be discovered, got %+v", got)
	}
}

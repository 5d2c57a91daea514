package safety

import (
	"testing"
	"time"

	"branchwarden/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)

func fixedNow() time.Time { return now }

func candidate(name string, age time.Duration) model.BranchCandidate {
	return model.BranchCandidate{
		BranchName:     name,
		HeadSHA:        "abc",
		MergedPRNumber: 1,
		MergedAt:       now.Add(-age),
	}
}

func liveBranch() model.BranchInfo {
	return model.BranchInfo{Name: "x", Exists: true, HeadSHA: "abc"}
}

func TestAgeDays(t *testing.T) {
	tests := []struct {
		name     string
		mergedAt time.Time
		want     int
	}{
		{"exactly seven days", now.Add(-7 * day), 7},
		{"one second short of seven", now.Add(-7*day + time.Second), 6},
		{"same instant", now, 0},
		{"future merge", now.Add(time.Hour), 0},
		{"zero time", time.Time{}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, AgeDays(tt.mergedAt, now))
		})
	}
}

func TestEvaluate_Precedence(t *testing.T) {
	e := NewEvaluator(7, []string{"dependabot/keep-*"}, fixedNow)

	tests := []struct {
		name string
		in   Input
		want model.Disposition
	}{
		{
			name: "missing beats everything",
			in: Input{
				Candidate: candidate("dependabot/keep-me", time.Hour),
				Info:      model.BranchInfo{Exists: false, Protected: true},
				Ancestry:  model.AncestryDiverged,
			},
			want: model.DispositionAlreadyDeleted,
		},
		{
			name: "protected beats age and ancestry",
			in: Input{
				Candidate: candidate("dependabot/a", time.Hour),
				Info:      model.BranchInfo{Exists: true, Protected: true},
				Ancestry:  model.AncestryAhead,
			},
			want: model.DispositionSkippedProtected,
		},
		{
			name: "too recent beats ancestry",
			in: Input{
				Candidate: candidate("dependabot/a", 3*day),
				Info:      liveBranch(),
				Ancestry:  model.AncestryDiverged,
			},
			want: model.DispositionSkippedTooRecent,
		},
		{
			name: "ahead is unsafe",
			in: Input{
				Candidate: candidate("dependabot/a", 30*day),
				Info:      liveBranch(),
				Ancestry:  model.AncestryAhead,
			},
			want: model.DispositionSkippedUnsafe,
		},
		{
			name: "unsafe beats excluded",
			in: Input{
				Candidate: candidate("dependabot/keep-me", 30*day),
				Info:      liveBranch(),
				Ancestry:  model.AncestryDiverged,
			},
			want: model.DispositionSkippedUnsafe,
		},
		{
			name: "excluded after all safety gates",
			in: Input{
				Candidate: candidate("dependabot/keep-me", 30*day),
				Info:      liveBranch(),
				Ancestry:  model.AncestryBehind,
			},
			want: model.DispositionSkippedExcluded,
		},
		{
			name: "behind proceeds",
			in: Input{
				Candidate: candidate("dependabot/npm/lodash", 10*day),
				Info:      liveBranch(),
				Ancestry:  model.AncestryBehind,
			},
			want: model.DispositionProceed,
		},
		{
			name: "identical proceeds at exactly minimum age",
			in: Input{
				Candidate: candidate("renovate/go", 7*day),
				Info:      liveBranch(),
				Ancestry:  model.AncestryIdentical,
			},
			want: model.DispositionProceed,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, e.Evaluate(tt.in))
		})
	}
}

// Every combination of inputs: protected branches, young branches and
// non-contained branches never proceed, and Gate agrees with Evaluate
// whenever it decides.
func TestEvaluate_NeverProceedsUnsafely(t *testing.T) {
	e := NewEvaluator(7, []string{"*/excluded"}, fixedNow)
	ages := []time.Duration{0, 6 * day, 7 * day, 8 * day, 365 * day}
	names := []string{"dependabot/a", "dependabot/excluded"}
	ancestries := []model.Ancestry{model.AncestryDiverged, model.AncestryAhead, model.AncestryBehind, model.AncestryIdentical}

	for _, exists := range []bool{true, false} {
		for _, protected := range []bool{true, false} {
			for _, age := range ages {
				for _, name := range names {
					for _, anc := range ancestries {
						in := Input{
							Candidate: candidate(name, age),
							Info:      model.BranchInfo{Exists: exists, Protected: protected},
							Ancestry:  anc,
						}
						got := e.Evaluate(in)

						if got == model.DispositionProceed {
							assert.True(t, exists)
							assert.False(t, protected)
							assert.GreaterOrEqual(t, AgeDays(in.Candidate.MergedAt, now), 7)
							assert.True(t, anc.Contained())
							assert.NotEqual(t, "dependabot/excluded", name)
						}

						if d, decided := e.Gate(in); decided {
							assert.Equal(t, d, got)
						}
					}
				}
			}
		}
	}
}

func TestEvaluate_Deterministic(t *testing.T) {
	e := NewEvaluator(7, nil, fixedNow)
	in := Input{Candidate: candidate("dependabot/a", 9*day), Info: liveBranch(), Ancestry: model.AncestryBehind}
	first := e.Evaluate(in)
	for range 10 {
		require.Equal(t, first, e.Evaluate(in))
	}
}

func TestNewEvaluator_DefaultsClock(t *testing.T) {
	e := NewEvaluator(0, nil, nil)
	require.NotNil(t, e.Now)
	assert.True(t, e.Exclude.Empty())
}

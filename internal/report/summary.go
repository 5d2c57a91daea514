package report

import (
	"sort"

	"branchwarden/internal/model"

	"github.com/montanaflynn/stats"
)

// AgeStats describes how long deleted branches sat after their merge, in
// whole days. Dry-run records are not counted since nothing was deleted.
type AgeStats struct {
	Count  int     `json:"count"`
	Mean   float64 `json:"mean"`
	Median float64 `json:"median"`
	P90    float64 `json:"p90"`
}

type RepoSummary struct {
	Repository string               `json:"repository"`
	Total      int                  `json:"total"`
	ByAction   map[model.Action]int `json:"by_action"`
}

func (r RepoSummary) Blocked() int {
	return r.ByAction[model.ActionProtectedRuleBlocked] + r.ByAction[model.ActionTokenInsufficient]
}

func (r RepoSummary) Skipped() int {
	return r.ByAction[model.ActionSkippedProtected] +
		r.ByAction[model.ActionSkippedTooRecent] +
		r.ByAction[model.ActionSkippedUnsafe] +
		r.ByAction[model.ActionSkippedExcluded]
}

type Summary struct {
	Total         int                  `json:"total"`
	ByAction      map[model.Action]int `json:"by_action"`
	Repositories  []RepoSummary        `json:"repositories"`
	DeletedAge    AgeStats             `json:"deleted_merge_age_days"`
	PrunedTags    int                  `json:"pruned_tags"`
	PruneFailures int                  `json:"prune_failures"`
}

func newActionCounts() map[model.Action]int {
	m := make(map[model.Action]int, len(model.Actions))
	for _, a := range model.Actions {
		m[a] = 0
	}
	return m
}

// Summarize aggregates records and prunes from scratch. The result does not
// depend on the order of either slice.
func Summarize(records []model.CleanupRecord, prunes []model.PruneRecord) Summary {
	s := Summary{ByAction: newActionCounts()}
	perRepo := make(map[string]*RepoSummary)
	var ages []float64

	for _, r := range records {
		s.Total++
		s.ByAction[r.Action]++

		name := r.FullName()
		rs, ok := perRepo[name]
		if !ok {
			rs = &RepoSummary{Repository: name, ByAction: newActionCounts()}
			perRepo[name] = rs
		}
		rs.Total++
		rs.ByAction[r.Action]++

		if r.Action == model.ActionDeleted && !r.DryRun && !r.MergedAt.IsZero() && !r.RecordedAt.IsZero() {
			ages = append(ages, float64(int(r.RecordedAt.Sub(r.MergedAt).Hours())/24))
		}
	}

	names := make([]string, 0, len(perRepo))
	for name := range perRepo {
		names = append(names, name)
	}
	sort.Strings(names)
	s.Repositories = make([]RepoSummary, 0, len(names))
	for _, name := range names {
		s.Repositories = append(s.Repositories, *perRepo[name])
	}

	s.DeletedAge = ageStats(ages)

	for _, p := range prunes {
		if p.Deleted {
			s.PrunedTags++
		}
		if p.Error != "" {
			s.PruneFailures++
		}
	}
	return s
}

func ageStats(days []float64) AgeStats {
	if len(days) == 0 {
		return AgeStats{}
	}
	data := stats.Float64Data(days)
	out := AgeStats{Count: len(days)}
	out.Mean, _ = stats.Mean(data)
	out.Median, _ = stats.Median(data)
	out.P90, _ = stats.Percentile(data, 90)
	return out
}

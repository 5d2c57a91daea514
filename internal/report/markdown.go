package report

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"

	"branchwarden/internal/model"
)

// SummarySink writes the human readable summary.md.
type SummarySink struct {
	mu   sync.Mutex
	file *os.File
}

func NewSummarySink(path string) (*SummarySink, error) {
	f, err := createFile(path)
	if err != nil {
		return nil, err
	}
	return &SummarySink{file: f}, nil
}

func (s *SummarySink) Write(doc *Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.file.WriteString(RenderMarkdown(doc))
	return err
}

func (s *SummarySink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.file.Close()
}

// RenderMarkdown renders the run summary: totals, a per-repository table,
// merge age statistics, and the most common failure reasons.
func RenderMarkdown(doc *Document) string {
	var b strings.Builder
	sum := doc.Summary

	b.WriteString("# Branch Cleanup Report\n\n")
	fmt.Fprintf(&b, "- Run: `%s`\n", doc.Run.ID)
	if doc.Run.DryRun {
		b.WriteString("- Mode: **dry run** (no changes were made)\n")
	}
	fmt.Fprintf(&b, "- Started: %s\n", formatTime(doc.Run.StartedAt))
	fmt.Fprintf(&b, "- Finished: %s\n", formatTime(doc.Run.FinishedAt))
	fmt.Fprintf(&b, "- Candidates: %d across %d repositories\n\n", sum.Total, len(sum.Repositories))

	b.WriteString("## Actions\n\n")
	b.WriteString("| Action | Count |\n|---|---:|\n")
	for _, a := range model.Actions {
		if n := sum.ByAction[a]; n > 0 {
			fmt.Fprintf(&b, "| %s | %d |\n", a, n)
		}
	}
	b.WriteString("\n")

	if len(sum.Repositories) > 0 {
		b.WriteString("## Repositories\n\n")
		deleted := "Deleted"
		if doc.Run.DryRun {
			deleted = "Would delete"
		}
		fmt.Fprintf(&b, "| Repository | Total | %s | Skipped | Blocked | Errors |\n|---|---:|---:|---:|---:|---:|\n", deleted)
		for _, r := range sum.Repositories {
			fmt.Fprintf(&b, "| %s | %d | %d | %d | %d | %d |\n",
				r.Repository, r.Total, r.ByAction[model.ActionDeleted], r.Skipped(), r.Blocked(), r.ByAction[model.ActionError])
		}
		b.WriteString("\n")
	}

	if sum.DeletedAge.Count > 0 {
		b.WriteString("## Merge age of deleted branches\n\n")
		fmt.Fprintf(&b, "Mean %.1f days, median %.1f days, p90 %.1f days (%d branches).\n\n",
			sum.DeletedAge.Mean, sum.DeletedAge.Median, sum.DeletedAge.P90, sum.DeletedAge.Count)
	}

	if len(doc.Prunes) > 0 {
		b.WriteString("## Backup tag pruning\n\n")
		fmt.Fprintf(&b, "%d expired tags pruned, %d failed.\n\n", sum.PrunedTags, sum.PruneFailures)
	}

	if len(doc.Errors) > 0 {
		b.WriteString("## Repository errors\n\n")
		for _, e := range doc.Errors {
			fmt.Fprintf(&b, "- %s/%s (%s): %s\n", e.Organization, e.Repository, e.Stage, normalizeErrorReason(e.Error))
		}
		b.WriteString("\n")
	}

	if reasons := topErrorReasons(doc.Records, 5); len(reasons) > 0 {
		b.WriteString("## Top failure reasons\n\n")
		for _, r := range reasons {
			fmt.Fprintf(&b, "- %s (%d)\n", r.reason, r.count)
		}
		b.WriteString("\n")
	}
	return b.String()
}

type reasonCount struct {
	reason string
	count  int
}

func topErrorReasons(records []model.CleanupRecord, n int) []reasonCount {
	counts := make(map[string]int)
	for _, r := range records {
		if r.Error == "" {
			continue
		}
		counts[normalizeErrorReason(r.Error)]++
	}
	out := make([]reasonCount, 0, len(counts))
	for reason, c := range counts {
		out = append(out, reasonCount{reason: reason, count: c})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].count != out[j].count {
			return out[i].count > out[j].count
		}
		return out[i].reason < out[j].reason
	})
	if len(out) > n {
		out = out[:n]
	}
	return out
}

// normalizeErrorReason collapses whitespace and truncates long messages so
// similar failures group together.
func normalizeErrorReason(errText string) string {
	s := strings.Join(strings.Fields(errText), " ")
	if len(s) > 120 {
		return s[:117] + "..."
	}
	return s
}

package report

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"branchwarden/internal/model"

	"github.com/fatih/color"
)

type palette struct {
	good, warn, bad, blocked, dim, bold *color.Color
}

// newPalette returns console colors. When plain is set every color is
// disabled regardless of terminal detection.
func newPalette(plain bool) palette {
	p := palette{
		good:    color.New(color.FgGreen),
		warn:    color.New(color.FgYellow),
		bad:     color.New(color.FgRed, color.Bold),
		blocked: color.New(color.FgMagenta),
		dim:     color.New(color.Faint),
		bold:    color.New(color.Bold),
	}
	if plain {
		for _, c := range []*color.Color{p.good, p.warn, p.bad, p.blocked, p.dim, p.bold} {
			c.DisableColor()
		}
	}
	return p
}

func (p palette) forAction(a model.Action) *color.Color {
	switch a {
	case model.ActionDeleted:
		return p.good
	case model.ActionAlreadyDeleted:
		return p.dim
	case model.ActionSkippedProtected, model.ActionSkippedTooRecent, model.ActionSkippedUnsafe, model.ActionSkippedExcluded:
		return p.warn
	case model.ActionProtectedRuleBlocked, model.ActionTokenInsufficient:
		return p.blocked
	case model.ActionError:
		return p.bad
	default:
		panic(fmt.Sprintf("report: unhandled action %q", a))
	}
}

// PrintSummary writes the colored run summary. A nil writer means stdout.
func PrintSummary(w io.Writer, doc *Document, plain bool) error {
	if w == nil {
		w = os.Stdout
	}
	p := newPalette(plain)
	sum := doc.Summary

	title := "Branch cleanup " + doc.Run.ID
	if doc.Run.DryRun {
		title += " (dry run)"
	}
	if _, err := p.bold.Fprintln(w, title); err != nil {
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	for _, a := range model.Actions {
		n := sum.ByAction[a]
		if n == 0 {
			continue
		}
		fmt.Fprintf(tw, "  %s\t%d\n", p.forAction(a).Sprint(string(a)), n)
	}
	fmt.Fprintf(tw, "  %s\t%d\n", p.bold.Sprint("total"), sum.Total)
	if err := tw.Flush(); err != nil {
		return err
	}

	if len(sum.Repositories) > 0 {
		fmt.Fprintln(w)
		tw = tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		deleted := "DELETED"
		if doc.Run.DryRun {
			deleted = "WOULD DELETE"
		}
		fmt.Fprintf(tw, "  REPOSITORY\tTOTAL\t%s\tSKIPPED\tBLOCKED\tERRORS\n", deleted)
		for _, r := range sum.Repositories {
			errs := fmt.Sprint(r.ByAction[model.ActionError])
			if r.ByAction[model.ActionError] > 0 {
				errs = p.bad.Sprint(errs)
			}
			fmt.Fprintf(tw, "  %s\t%d\t%d\t%d\t%d\t%s\n",
				r.Repository, r.Total, r.ByAction[model.ActionDeleted], r.Skipped(), r.Blocked(), errs)
		}
		if err := tw.Flush(); err != nil {
			return err
		}
	}

	if sum.DeletedAge.Count > 0 {
		fmt.Fprintf(w, "\nMerge age of deleted branches: mean %.1fd, median %.1fd, p90 %.1fd\n",
			sum.DeletedAge.Mean, sum.DeletedAge.Median, sum.DeletedAge.P90)
	}
	for _, e := range doc.Errors {
		fmt.Fprintf(w, "%s %s/%s (%s): %s\n", p.bad.Sprint("error"), e.Organization, e.Repository, e.Stage, e.Error)
	}
	if sum.PrunedTags > 0 || sum.PruneFailures > 0 {
		fmt.Fprintf(w, "Backup tags pruned: %d (%d failed)\n", sum.PrunedTags, sum.PruneFailures)
	}
	return flushIfPossible(w)
}

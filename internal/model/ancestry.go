package model

import "fmt"

// Ancestry is the relationship of a branch head to the default branch, as
// reported by a two-ref comparison with the default branch as base.
type Ancestry int

const (
	// AncestryDiverged is the zero value so an unset comparison is unsafe.
	AncestryDiverged Ancestry = iota
	AncestryAhead
	AncestryBehind
	AncestryIdentical
)

// ParseAncestry maps a compare API status onto the four known states.
// Unknown statuses are treated as diverged.
func ParseAncestry(status string) Ancestry {
	switch status {
	case "ahead":
		return AncestryAhead
	case "behind":
		return AncestryBehind
	case "identical":
		return AncestryIdentical
	default:
		return AncestryDiverged
	}
}

// Contained reports whether every commit of the branch is reachable from the
// default branch.
func (a Ancestry) Contained() bool {
	switch a {
	case AncestryBehind, AncestryIdentical:
		return true
	case AncestryAhead, AncestryDiverged:
		return false
	default:
		panic(fmt.Sprintf("model: unhandled ancestry %d", int(a)))
	}
}

func (a Ancestry) String() string {
	switch a {
	case AncestryAhead:
		return "ahead"
	case AncestryBehind:
		return "behind"
	case AncestryIdentical:
		return "identical"
	case AncestryDiverged:
		return "diverged"
	default:
		return fmt.Sprintf("Ancestry(%d)", int(a))
	}
}

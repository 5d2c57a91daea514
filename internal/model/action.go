package model

import (
	"fmt"
	"strings"
)

// Disposition is the safety-gate decision for a candidate, made before any
// mutation is attempted. Exactly one applies per candidate.
type Disposition int

const (
	DispositionProceed Disposition = iota
	DispositionAlreadyDeleted
	DispositionSkippedProtected
	DispositionSkippedTooRecent
	DispositionSkippedUnsafe
	DispositionSkippedExcluded
)

// Dispositions lists every disposition in precedence order, Proceed last.
var Dispositions = []Disposition{
	DispositionAlreadyDeleted,
	DispositionSkippedProtected,
	DispositionSkippedTooRecent,
	DispositionSkippedUnsafe,
	DispositionSkippedExcluded,
	DispositionProceed,
}

// Action maps a terminal disposition onto the recorded action. Proceed has no
// terminal action of its own; callers record the mutation outcome instead.
func (d Disposition) Action() (Action, bool) {
	switch d {
	case DispositionProceed:
		return "", false
	case DispositionAlreadyDeleted:
		return ActionAlreadyDeleted, true
	case DispositionSkippedProtected:
		return ActionSkippedProtected, true
	case DispositionSkippedTooRecent:
		return ActionSkippedTooRecent, true
	case DispositionSkippedUnsafe:
		return ActionSkippedUnsafe, true
	case DispositionSkippedExcluded:
		return ActionSkippedExcluded, true
	default:
		panic(fmt.Sprintf("model: unhandled disposition %d", int(d)))
	}
}

func (d Disposition) String() string {
	if d == DispositionProceed {
		return "proceed"
	}
	a, _ := d.Action()
	return string(a)
}

// OutcomeKind is the result of a backup-and-delete attempt. It is produced
// only for candidates whose disposition is Proceed.
type OutcomeKind int

const (
	OutcomeDeleted OutcomeKind = iota
	OutcomeAlreadyDeleted
	OutcomeProtectedRuleBlocked
	OutcomeTokenInsufficient
	OutcomeError
)

var OutcomeKinds = []OutcomeKind{
	OutcomeDeleted,
	OutcomeAlreadyDeleted,
	OutcomeProtectedRuleBlocked,
	OutcomeTokenInsufficient,
	OutcomeError,
}

func (k OutcomeKind) Action() Action {
	switch k {
	case OutcomeDeleted:
		return ActionDeleted
	case OutcomeAlreadyDeleted:
		return ActionAlreadyDeleted
	case OutcomeProtectedRuleBlocked:
		return ActionProtectedRuleBlocked
	case OutcomeTokenInsufficient:
		return ActionTokenInsufficient
	case OutcomeError:
		return ActionError
	default:
		panic(fmt.Sprintf("model: unhandled outcome %d", int(k)))
	}
}

// Blocked reports whether the outcome indicates a systemic permission
// problem worth escalating once per repository.
func (k OutcomeKind) Blocked() bool {
	switch k {
	case OutcomeProtectedRuleBlocked, OutcomeTokenInsufficient:
		return true
	case OutcomeDeleted, OutcomeAlreadyDeleted, OutcomeError:
		return false
	default:
		panic(fmt.Sprintf("model: unhandled outcome %d", int(k)))
	}
}

func (k OutcomeKind) String() string {
	return string(k.Action())
}

// DeletionOutcome is the result of BackupAndDelete.
type DeletionOutcome struct {
	Kind      OutcomeKind
	BackupTag string
	Message   string
}

// Action is the final action recorded for a candidate in the audit report.
type Action string

const (
	ActionDeleted              Action = "deleted"
	ActionAlreadyDeleted       Action = "already_deleted"
	ActionSkippedProtected     Action = "skipped_protected"
	ActionSkippedTooRecent     Action = "skipped_too_recent"
	ActionSkippedUnsafe        Action = "skipped_unsafe"
	ActionSkippedExcluded      Action = "skipped_excluded"
	ActionProtectedRuleBlocked Action = "protected_rule_blocked"
	ActionTokenInsufficient    Action = "token_insufficient"
	ActionError                Action = "error"
)

// Actions lists every recordable action in report order.
var Actions = []Action{
	ActionDeleted,
	ActionAlreadyDeleted,
	ActionSkippedProtected,
	ActionSkippedTooRecent,
	ActionSkippedUnsafe,
	ActionSkippedExcluded,
	ActionProtectedRuleBlocked,
	ActionTokenInsufficient,
	ActionError,
}

// ParseAction returns the action with the given name.
func ParseAction(raw string) (Action, error) {
	want := Action(strings.ToLower(strings.TrimSpace(raw)))
	for _, a := range Actions {
		if a == want {
			return a, nil
		}
	}
	return "", fmt.Errorf("unknown action %q", raw)
}

// Blocked reports whether the action counts toward permission escalation.
func (a Action) Blocked() bool {
	return a == ActionProtectedRuleBlocked || a == ActionTokenInsufficient
}

// Package policy implements the ordered rule set: a
// prioritised list of policies, each with conditions that must all match and
// actions whose primary action follows a fixed precedence.
package policy

import "github.com/proxilion/grc-gateway/pkg/scanner"

// Comparator is the closed set of condition comparators.
type Comparator string

const (
	CmpEq       Comparator = "eq"
	CmpNe       Comparator = "ne"
	CmpGt       Comparator = "gt"
	CmpGte      Comparator = "gte"
	CmpLt       Comparator = "lt"
	CmpLte      Comparator = "lte"
	CmpIn       Comparator = "in"
	CmpContains Comparator = "contains"
	CmpMatches  Comparator = "matches"
)

// Subject is the closed set of values a condition can inspect.
type Subject string

const (
	SubjectThreatLevel Subject = "threat-level"
	SubjectScanner     Subject = "scanner"
	SubjectUser        Subject = "user"
	SubjectTime        Subject = "time"
	SubjectTool        Subject = "tool"
)

// Condition is one clause of a policy. ScannerID is only meaningful when
// Subject == SubjectScanner (selects which scanner's result to inspect).
type Condition struct {
	Subject    Subject
	ScannerID  string
	Comparator Comparator
	Value      string
}

// Action is one of the fixed action verbs a policy can declare.
type Action string

const (
	ActionAllow    Action = "allow"
	ActionBlock    Action = "block"
	ActionModify   Action = "modify"
	ActionAlert    Action = "alert"
	ActionLog      Action = "log"
	ActionQueue    Action = "queue"
	ActionRedirect Action = "redirect"
)

// precedence implements "block > queue > modify > redirect > alert > log >
// allow" as a total order, lowest number wins.
var precedence = map[Action]int{
	ActionBlock:    0,
	ActionQueue:    1,
	ActionModify:   2,
	ActionRedirect: 3,
	ActionAlert:    4,
	ActionLog:      5,
	ActionAllow:    6,
}

// PrimaryAction picks the single primary action from a policy's declared
// action list per the fixed precedence order.
func PrimaryAction(actions []Action) Action {
	best := ActionAllow
	bestRank, ok := precedence[best]
	if !ok {
		bestRank = len(precedence)
	}
	found := false
	for _, a := range actions {
		rank, ok := precedence[a]
		if !ok {
			continue
		}
		if !found || rank < bestRank {
			best, bestRank, found = a, rank, true
		}
	}
	if !found && len(actions) > 0 {
		return actions[0]
	}
	return best
}

// Policy is one rule in the ordered set.
type Policy struct {
	ID         string
	Name       string
	Priority   int
	Enabled    bool
	Conditions []Condition
	Actions    []Action
}

// threatRank implements "none=0, low=1, medium=2, high=3, critical=4".
func threatRank(s scanner.Severity) int { return int(s) }

// Decision is the output of evaluating the policy set against a request and
// verdict.
type Decision struct {
	PolicyID          string
	Action            Action
	Reason            string
	MatchedConditions []Condition
	Metadata          map[string]any
}

package policy

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"github.com/proxilion/grc-gateway/pkg/normalize"
	"github.com/proxilion/grc-gateway/pkg/scanner"
)

// EvalContext carries the request-independent inputs a condition may need
// (the current time, primarily) so Evaluate stays a pure function of its
// arguments.
type EvalContext struct {
	Now time.Time
}

// Engine holds the ordered policy set and evaluates it against a request
// and verdict. Updates are atomic with respect to an in-flight Evaluate
// call: Evaluate always sees one complete, sorted snapshot of
// the set, never a partially mutated one, because the snapshot is swapped
// via a single atomic pointer store rather than mutated in place.
type Engine struct {
	set atomic.Pointer[[]Policy]
	cel *celMatcher
}

// NewEngine builds an Engine. cel may be nil if CEL-backed "matches"
// evaluation isn't needed (falls back to plain regexp).
func NewEngine() *Engine {
	e := &Engine{}
	empty := []Policy{}
	e.set.Store(&empty)
	m, err := newCELMatcher()
	if err == nil {
		e.cel = m
	}
	return e
}

// Load atomically replaces the entire policy set, sorted by descending
// priority (ties keep their relative Load order, which is deterministic
// because sort.SliceStable is used).
func (e *Engine) Load(policies []Policy) {
	cp := append([]Policy(nil), policies...)
	sort.SliceStable(cp, func(i, j int) bool { return cp[i].Priority > cp[j].Priority })
	e.set.Store(&cp)
}

// Add appends a policy and re-sorts, atomically.
func (e *Engine) Add(p Policy) {
	cur := *e.set.Load()
	next := append(append([]Policy(nil), cur...), p)
	sort.SliceStable(next, func(i, j int) bool { return next[i].Priority > next[j].Priority })
	e.set.Store(&next)
}

// Update replaces the policy with the same ID, atomically. No-op if the ID
// is unknown.
func (e *Engine) Update(p Policy) {
	cur := *e.set.Load()
	next := make([]Policy, len(cur))
	copy(next, cur)
	for i, existing := range next {
		if existing.ID == p.ID {
			next[i] = p
		}
	}
	sort.SliceStable(next, func(i, j int) bool { return next[i].Priority > next[j].Priority })
	e.set.Store(&next)
}

// Remove deletes the policy with the given ID, atomically.
func (e *Engine) Remove(id string) {
	cur := *e.set.Load()
	next := make([]Policy, 0, len(cur))
	for _, p := range cur {
		if p.ID != id {
			next = append(next, p)
		}
	}
	e.set.Store(&next)
}

// List returns a snapshot copy of the current policy set, highest priority
// first.
func (e *Engine) List() []Policy {
	cur := *e.set.Load()
	return append([]Policy(nil), cur...)
}

// Evaluate walks the policy list in priority order and returns the first
// enabled policy whose conditions all match. When nothing matches, the
// default is block.
func (e *Engine) Evaluate(r *normalize.Request, v scanner.Verdict, ectx EvalContext) Decision {
	policies := *e.set.Load()

	for _, p := range policies {
		if !p.Enabled {
			continue
		}
		matched, matchedConds := e.matchAll(p.Conditions, r, v, ectx)
		if matched {
			return Decision{
				PolicyID:          p.ID,
				Action:            PrimaryAction(p.Actions),
				Reason:            fmt.Sprintf("matched policy %q", p.Name),
				MatchedConditions: matchedConds,
			}
		}
	}

	return Decision{
		PolicyID: "",
		Action:   ActionBlock,
		Reason:   "no policy matched; default-block",
	}
}

func (e *Engine) matchAll(conds []Condition, r *normalize.Request, v scanner.Verdict, ectx EvalContext) (bool, []Condition) {
	matched := make([]Condition, 0, len(conds))
	for _, c := range conds {
		ok := e.matchOne(c, r, v, ectx)
		if !ok {
			return false, nil
		}
		matched = append(matched, c)
	}
	return true, matched
}

func (e *Engine) matchOne(c Condition, r *normalize.Request, v scanner.Verdict, ectx EvalContext) bool {
	switch c.Subject {
	case SubjectThreatLevel:
		return compareInt(threatRank(v.OverallThreatLevel), threatRank(scanner.ParseSeverity(c.Value)), c.Comparator)
	case SubjectScanner:
		for _, res := range v.Results {
			if res.ScannerID == c.ScannerID {
				return compareInt(threatRank(res.ThreatLevel), threatRank(scanner.ParseSeverity(c.Value)), c.Comparator)
			}
		}
		return false
	case SubjectUser:
		return e.compareString(r.Metadata.UserID, c.Value, c.Comparator)
	case SubjectTool:
		for _, name := range r.ToolNames() {
			if e.compareString(name, c.Value, c.Comparator) {
				return true
			}
		}
		return false
	case SubjectTime:
		return compareTime(ectx.Now, c.Value, c.Comparator)
	default:
		return false
	}
}

func compareInt(actual, want int, cmp Comparator) bool {
	switch cmp {
	case CmpEq:
		return actual == want
	case CmpNe:
		return actual != want
	case CmpGt:
		return actual > want
	case CmpGte:
		return actual >= want
	case CmpLt:
		return actual < want
	case CmpLte:
		return actual <= want
	default:
		return false
	}
}

func (e *Engine) compareString(actual, value string, cmp Comparator) bool {
	switch cmp {
	case CmpEq:
		return actual == value
	case CmpNe:
		return actual != value
	case CmpIn:
		for _, v := range strings.Split(value, ",") {
			if strings.TrimSpace(v) == actual {
				return true
			}
		}
		return false
	case CmpContains:
		return strings.Contains(actual, value)
	case CmpMatches:
		if e.cel != nil {
			ok, err := e.cel.Matches(actual, value)
			if err == nil {
				return ok
			}
		}
		return regexMatches(actual, value)
	default:
		return false
	}
}

func compareTime(now time.Time, value string, cmp Comparator) bool {
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return false
	}
	switch cmp {
	case CmpEq:
		return now.Equal(t)
	case CmpNe:
		return !now.Equal(t)
	case CmpGt:
		return now.After(t)
	case CmpGte:
		return now.After(t) || now.Equal(t)
	case CmpLt:
		return now.Before(t)
	case CmpLte:
		return now.Before(t) || now.Equal(t)
	default:
		return false
	}
}

// regexMatches is the fallback for "matches" when CEL construction failed
// at start-up (a config/build issue, not something expected at runtime), so
// the comparator still behaves as a plain regular-expression match.
func regexMatches(actual, pattern string) bool {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return false
	}
	return re.MatchString(actual)
}

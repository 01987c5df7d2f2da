package policy

import (
	"testing"
	"time"

	"github.com/proxilion/grc-gateway/pkg/normalize"
	"github.com/proxilion/grc-gateway/pkg/scanner"
)

func verdictWithThreat(level scanner.Severity) scanner.Verdict {
	return scanner.Verdict{OverallThreatLevel: level}
}

func TestEvaluateDefaultBlockWhenNoPolicyMatches(t *testing.T) {
	e := NewEngine()
	d := e.Evaluate(&normalize.Request{}, verdictWithThreat(scanner.SeverityNone), EvalContext{Now: time.Now()})
	if d.Action != ActionBlock {
		t.Fatalf("expected default-block, got %v", d.Action)
	}
}

func TestEvaluatePicksHighestPriorityMatch(t *testing.T) {
	e := NewEngine()
	e.Load([]Policy{
		{ID: "allow-all", Priority: 0, Enabled: true, Actions: []Action{ActionAllow}},
		{
			ID: "block-critical", Priority: 100, Enabled: true,
			Conditions: []Condition{{Subject: SubjectThreatLevel, Comparator: CmpGte, Value: "critical"}},
			Actions:    []Action{ActionBlock},
		},
	})

	d := e.Evaluate(&normalize.Request{}, verdictWithThreat(scanner.SeverityCritical), EvalContext{Now: time.Now()})
	if d.Action != ActionBlock || d.PolicyID != "block-critical" {
		t.Fatalf("expected block-critical to win, got %+v", d)
	}

	d = e.Evaluate(&normalize.Request{}, verdictWithThreat(scanner.SeverityLow), EvalContext{Now: time.Now()})
	if d.Action != ActionAllow || d.PolicyID != "allow-all" {
		t.Fatalf("expected allow-all fallback, got %+v", d)
	}
}

func TestEvaluateDisabledPolicySkipped(t *testing.T) {
	e := NewEngine()
	e.Load([]Policy{
		{ID: "disabled-block", Priority: 100, Enabled: false, Actions: []Action{ActionBlock}},
	})
	d := e.Evaluate(&normalize.Request{}, verdictWithThreat(scanner.SeverityNone), EvalContext{Now: time.Now()})
	if d.Action != ActionBlock || d.PolicyID != "" {
		t.Fatalf("expected default-block fallthrough, got %+v", d)
	}
}

func TestSubjectToolBlocksByName(t *testing.T) {
	e := NewEngine()
	e.Load([]Policy{
		{
			ID: "block-exec-tool", Priority: 100, Enabled: true,
			Conditions: []Condition{{Subject: SubjectTool, Comparator: CmpIn, Value: "exec,shell"}},
			Actions:    []Action{ActionBlock},
		},
		{ID: "allow-all", Priority: 0, Enabled: true, Actions: []Action{ActionAllow}},
	})

	req := &normalize.Request{Tools: []normalize.ToolDescriptor{{Name: "exec"}}}
	d := e.Evaluate(req, verdictWithThreat(scanner.SeverityNone), EvalContext{Now: time.Now()})
	if d.Action != ActionBlock {
		t.Fatalf("expected block on exec tool, got %v", d.Action)
	}

	safeReq := &normalize.Request{Tools: []normalize.ToolDescriptor{{Name: "search"}}}
	d = e.Evaluate(safeReq, verdictWithThreat(scanner.SeverityNone), EvalContext{Now: time.Now()})
	if d.Action != ActionAllow {
		t.Fatalf("expected allow-all fallthrough for unmatched tool, got %v", d.Action)
	}
}

func TestPrimaryActionPrecedence(t *testing.T) {
	got := PrimaryAction([]Action{ActionLog, ActionBlock, ActionAllow})
	if got != ActionBlock {
		t.Fatalf("expected block to win precedence, got %v", got)
	}
}

func TestAddUpdateRemove(t *testing.T) {
	e := NewEngine()
	e.Add(Policy{ID: "p1", Priority: 1, Enabled: true, Actions: []Action{ActionAllow}})
	if len(e.List()) != 1 {
		t.Fatalf("expected 1 policy after Add")
	}

	e.Update(Policy{ID: "p1", Priority: 1, Enabled: true, Actions: []Action{ActionBlock}})
	list := e.List()
	if len(list) != 1 || list[0].Actions[0] != ActionBlock {
		t.Fatalf("expected p1 updated to block, got %+v", list)
	}

	e.Remove("p1")
	if len(e.List()) != 0 {
		t.Fatalf("expected policy set empty after Remove")
	}
}

// Package scanner implements the scan protocol and its parallel
// orchestrator. Concrete scanner bodies are deliberately light — detailed
// PII/DLP/toxicity/prompt-injection detection is out of scope for the core,
// which only binds the {id, name, scan(R) -> SR} protocol.
package scanner

import (
	"context"
	"time"

	"github.com/proxilion/grc-gateway/pkg/normalize"
)

// Severity is a closed enumeration ordered none < low < medium < high <
// critical, matching the total ordering the policy engine compares against.
type Severity int

const (
	SeverityNone Severity = iota
	SeverityLow
	SeverityMedium
	SeverityHigh
	SeverityCritical
)

func (s Severity) String() string {
	switch s {
	case SeverityNone:
		return "none"
	case SeverityLow:
		return "low"
	case SeverityMedium:
		return "medium"
	case SeverityHigh:
		return "high"
	case SeverityCritical:
		return "critical"
	default:
		return "none"
	}
}

// ParseSeverity parses the wire/config spelling of a severity, defaulting to
// SeverityNone on an unrecognised value.
func ParseSeverity(s string) Severity {
	switch s {
	case "low":
		return SeverityLow
	case "medium":
		return SeverityMedium
	case "high":
		return SeverityHigh
	case "critical":
		return SeverityCritical
	default:
		return SeverityNone
	}
}

// Finding is one piece of evidence a scanner reports.
type Finding struct {
	Type       string
	Severity   Severity
	Message    string
	Evidence   string // masked; never the raw offending span
	Location   string // path into R, e.g. "messages[2].content"
	Confidence float64
	Metadata   map[string]any
}

// Result is one scanner's verdict on a request.
// Invariant: Passed <=> ThreatLevel == SeverityNone; ThreatLevel equals the
// maximum severity across Findings. Build results with NewResult so this
// invariant can't be violated by hand-built structs.
type Result struct {
	ScannerID     string
	Passed        bool
	ThreatLevel   Severity
	Score         float64 // 0..100
	Findings      []Finding
	ExecutionTime time.Duration
}

// NewResult derives ThreatLevel and Passed from findings, enforcing the
// invariant described above.
func NewResult(scannerID string, findings []Finding, score float64, exec time.Duration) Result {
	max := SeverityNone
	for _, f := range findings {
		if f.Severity > max {
			max = f.Severity
		}
	}
	return Result{
		ScannerID:     scannerID,
		Passed:        max == SeverityNone,
		ThreatLevel:   max,
		Score:         score,
		Findings:      findings,
		ExecutionTime: exec,
	}
}

// Neutral is the contribution a failed, cancelled, or timed-out scanner
// makes to the aggregated verdict — a no-op, not a pipeline error: one
// buggy scanner must never fail the whole pipeline open unsafely.
func Neutral(scannerID string, exec time.Duration) Result {
	return Result{ScannerID: scannerID, Passed: true, ThreatLevel: SeverityNone, Score: 0, ExecutionTime: exec}
}

// Scanner is the external plugin contract. Implementations
// must be side-effect-free with respect to r and safe for concurrent reuse
// across requests.
type Scanner interface {
	ID() string
	Name() string
	Scan(ctx context.Context, r *normalize.Request, text string) Result
}

// Verdict is the aggregated result of running every registered scanner on a
// request.
type Verdict struct {
	OverallThreatLevel Severity
	OverallScore       float64
	Results            []Result
	Findings           []Finding
	TotalExecutionTime time.Duration
	Timestamp          time.Time
}

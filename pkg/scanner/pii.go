package scanner

import (
	"context"
	"regexp"
	"time"

	"github.com/proxilion/grc-gateway/pkg/normalize"
)

// Reference regex bank adapted from the teacher's guardrails/pii.go, moved
// here behind the Scanner protocol instead of living inline in the proxy
// handler.
var (
	ssnRegex   = regexp.MustCompile(`\b\d{3}-\d{2}-\d{4}\b`)
	ccRegex    = regexp.MustCompile(`\b(?:\d[ -]*?){13,19}\b`)
	emailRegex = regexp.MustCompile(`\b[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}\b`)
	phoneRegex = regexp.MustCompile(`\b(?:\(\d{3}\)\s?|\d{3}[-.])\d{3}[-.]?\d{4}\b`)
)

// PIIScanner detects common personally-identifiable-information patterns in
// the request's text projection. It is side-effect-free with respect to R:
// it only reads the pre-extracted text, never R itself.
type PIIScanner struct{}

func NewPIIScanner() *PIIScanner { return &PIIScanner{} }

func (s *PIIScanner) ID() string   { return "pii" }
func (s *PIIScanner) Name() string { return "PII Detector" }

func (s *PIIScanner) Scan(_ context.Context, _ *normalize.Request, text string) Result {
	start := time.Now()
	var findings []Finding

	if ssnRegex.MatchString(text) {
		findings = append(findings, Finding{
			Type: "US Social Security Number", Severity: SeverityHigh,
			Message: "text contains a US SSN-shaped pattern", Confidence: 0.9,
		})
	}
	if emailRegex.MatchString(text) {
		findings = append(findings, Finding{
			Type: "Email Address", Severity: SeverityMedium,
			Message: "text contains an email address", Confidence: 0.95,
		})
	}
	if ccRegex.MatchString(text) {
		findings = append(findings, Finding{
			Type: "Credit Card Number", Severity: SeverityHigh,
			Message: "text contains a credit-card-shaped digit run", Confidence: 0.6,
		})
	}
	if phoneRegex.MatchString(text) {
		findings = append(findings, Finding{
			Type: "Phone Number", Severity: SeverityLow,
			Message: "text contains a US phone number pattern", Confidence: 0.7,
		})
	}

	score := 0.0
	for _, f := range findings {
		score += float64(f.Severity) * 20
	}
	return NewResult(s.ID(), findings, score, time.Since(start))
}

package scanner

import (
	"context"
	"regexp"
	"time"

	"github.com/proxilion/grc-gateway/pkg/normalize"
)

// Well-known secret-shaped token patterns. Not exhaustive by design — the
// exact pattern bank is configuration, not core behaviour.
var secretPatterns = []struct {
	name  string
	regex *regexp.Regexp
}{
	{"AWS Access Key", regexp.MustCompile(`\bAKIA[0-9A-Z]{16}\b`)},
	{"Generic API Key", regexp.MustCompile(`\b(?:sk|pk|api)[-_][A-Za-z0-9]{20,}\b`)},
	{"Private Key Block", regexp.MustCompile(`-----BEGIN (?:RSA |EC )?PRIVATE KEY-----`)},
	{"Slack Token", regexp.MustCompile(`\bxox[baprs]-[A-Za-z0-9-]{10,}\b`)},
}

// SecretsScanner is a lightweight DLP scanner for credential-shaped tokens
// leaking into a prompt.
type SecretsScanner struct{}

func NewSecretsScanner() *SecretsScanner { return &SecretsScanner{} }

func (s *SecretsScanner) ID() string   { return "secrets" }
func (s *SecretsScanner) Name() string { return "Secret Pattern Detector" }

func (s *SecretsScanner) Scan(_ context.Context, _ *normalize.Request, text string) Result {
	start := time.Now()
	var findings []Finding
	for _, p := range secretPatterns {
		if p.regex.MatchString(text) {
			findings = append(findings, Finding{
				Type: p.name, Severity: SeverityCritical,
				Message:    "text contains a pattern matching " + p.name,
				Confidence: 0.85,
			})
		}
	}
	return NewResult(s.ID(), findings, float64(len(findings))*100, time.Since(start))
}

package scanner

import (
	"strings"

	"github.com/proxilion/grc-gateway/pkg/normalize"
)

// ExtractText builds the shared textual projection of a request that every
// scanner consumes. The orchestrator calls this exactly once per request and
// hands the same string to every scanner.
func ExtractText(r *normalize.Request) string {
	var b strings.Builder
	for _, m := range r.Messages {
		if m.Content.IsText() {
			b.WriteString(m.Content.Text)
			b.WriteByte('\n')
			continue
		}
		for _, p := range m.Content.Parts {
			if p.Kind == normalize.ContentText {
				b.WriteString(p.Payload)
				b.WriteByte('\n')
			}
		}
	}
	return b.String()
}

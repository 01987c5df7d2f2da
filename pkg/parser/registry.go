// Package parser implements the Parser Registry: dispatch by
// URL/host shape and body heuristics into one of the dialect-specific
// parsers, generalising the teacher's inferProvider (pkg/proxy/proxy.go),
// which only inferred a provider label for tracing rather than producing a
// structured request.
package parser

import (
	"net/http"

	"github.com/proxilion/grc-gateway/internal/pipeerr"
	"github.com/proxilion/grc-gateway/pkg/normalize"
)

// Parser attempts to lift a raw inbound request into normalised form. It
// returns ok=false (never an error) when the payload simply isn't this
// dialect, so the registry can try the next one; an error is reserved for
// a dialect match that's then found to be malformed.
type Parser interface {
	ID() string
	TryParse(r *http.Request, body []byte) (req *normalize.Request, ok bool, err error)
}

// Registry holds a priority-ordered list of parsers. The first one to
// return ok=true wins; adding a parser never requires editing another.
type Registry struct {
	parsers []Parser
}

// NewRegistry builds a Registry from parsers in priority order (most
// specific dialects first; a catch-all custom/generic parser last).
func NewRegistry(parsers ...Parser) *Registry {
	return &Registry{parsers: parsers}
}

// Register appends a parser to the end of the dispatch list.
func (reg *Registry) Register(p Parser) {
	reg.parsers = append(reg.parsers, p)
}

// Parse dispatches r/body through the registry in order. If every parser
// declines, or the one matching dialect is malformed, the request is
// rejected outright — there is no pass-through for unparseable payloads.
func (reg *Registry) Parse(r *http.Request, body []byte) (*normalize.Request, error) {
	for _, p := range reg.parsers {
		req, ok, err := p.TryParse(r, body)
		if err != nil {
			return nil, pipeerr.Wrap(pipeerr.ParseFailure, "parser "+p.ID()+" matched dialect but failed to parse", err)
		}
		if ok {
			return req, nil
		}
	}
	return nil, pipeerr.New(pipeerr.ParseFailure, "no registered parser recognised this request")
}

package parser

import (
	"encoding/json"

	"github.com/proxilion/grc-gateway/pkg/normalize"
	"net/http"
)

// CustomParser is the last-resort dialect: a bare top-level "prompt"
// string, the classic text-completion shape used by a long tail of
// self-hosted and legacy providers. It never matches on host, only on body
// shape, and it is registered last so every more specific dialect gets a
// chance first.
//
// It deliberately does not accept arbitrary JSON — an empty or
// unrecognisable body still falls through to the registry's parse-failure
// path; "custom" is a dialect, not a permissive catch-all.
type CustomParser struct{}

func NewCustomParser() *CustomParser { return &CustomParser{} }

func (p *CustomParser) ID() string { return "custom" }

type customWire struct {
	Model       string   `json:"model"`
	Prompt      string   `json:"prompt"`
	Stream      bool     `json:"stream"`
	Temperature *float64 `json:"temperature"`
	MaxTokens   *int     `json:"max_tokens"`
}

func (p *CustomParser) TryParse(_ *http.Request, body []byte) (*normalize.Request, bool, error) {
	var wire customWire
	if err := json.Unmarshal(body, &wire); err != nil || wire.Prompt == "" {
		return nil, false, nil
	}

	return &normalize.Request{
		Provider:  normalize.ProviderCustom,
		Model:     wire.Model,
		Streaming: wire.Stream,
		Messages:  []normalize.Message{{Role: normalize.RoleUser, Content: normalize.Content{Text: wire.Prompt}}},
		Params: normalize.GenParams{
			Temperature: wire.Temperature,
			MaxTokens:   wire.MaxTokens,
		},
	}, true, nil
}

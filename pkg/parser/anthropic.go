package parser

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/proxilion/grc-gateway/pkg/normalize"
)

// AnthropicParser recognises the Messages API shape: top-level "messages"
// plus an optional top-level "system" string, distinct from OpenAI's
// embedded system-role message.
type AnthropicParser struct{}

func NewAnthropicParser() *AnthropicParser { return &AnthropicParser{} }

func (p *AnthropicParser) ID() string { return "anthropic" }

type anthropicWire struct {
	Model       string             `json:"model"`
	System      string             `json:"system"`
	Messages    []anthropicMessage `json:"messages"`
	Stream      bool               `json:"stream"`
	Temperature *float64           `json:"temperature"`
	TopP        *float64           `json:"top_p"`
	TopK        *int               `json:"top_k"`
	MaxTokens   *int               `json:"max_tokens"`
	StopSeqs    []string           `json:"stop_sequences"`
}

type anthropicMessage struct {
	Role    string          `json:"role"`
	Content json.RawMessage `json:"content"`
}

func (p *AnthropicParser) TryParse(r *http.Request, body []byte) (*normalize.Request, bool, error) {
	hostMatch := strings.Contains(r.Host, "anthropic.com") || strings.Contains(r.URL.Path, "/v1/messages")

	var wire anthropicWire
	if err := json.Unmarshal(body, &wire); err != nil || (len(wire.Messages) == 0 && wire.System == "") {
		if hostMatch {
			return nil, true, firstNonNilErr(err, errEmptyMessages)
		}
		return nil, false, nil
	}
	if !hostMatch && !hasAnthropicShape(body) {
		return nil, false, nil
	}

	req := &normalize.Request{
		Provider:  normalize.ProviderAnthropic,
		Model:     wire.Model,
		Streaming: wire.Stream,
		Params: normalize.GenParams{
			Temperature:   wire.Temperature,
			TopP:          wire.TopP,
			TopK:          wire.TopK,
			MaxTokens:     wire.MaxTokens,
			StopSequences: wire.StopSeqs,
		},
	}
	if wire.System != "" {
		req.Messages = append(req.Messages, normalize.Message{
			Role: normalize.RoleSystem, Content: normalize.Content{Text: wire.System},
		})
	}
	for _, m := range wire.Messages {
		req.Messages = append(req.Messages, normalize.Message{
			Role:    normalize.Role(m.Role),
			Content: decodeAnthropicContent(m.Content),
		})
	}
	return req, true, nil
}

// hasAnthropicShape is the body-heuristic fallback for transparent-mode
// requests (no recognisable host) that carry a top-level "system" field, a
// detail specific enough to the Messages API that it won't misfire on an
// OpenAI-shaped body.
func hasAnthropicShape(body []byte) bool {
	var probe struct {
		System any `json:"system"`
	}
	_ = json.Unmarshal(body, &probe)
	return probe.System != nil
}

func decodeAnthropicContent(raw json.RawMessage) normalize.Content {
	var text string
	if err := json.Unmarshal(raw, &text); err == nil {
		return normalize.Content{Text: text}
	}

	var blocks []struct {
		Type   string `json:"type"`
		Text   string `json:"text"`
		Source struct {
			Data string `json:"data"`
		} `json:"source"`
	}
	if err := json.Unmarshal(raw, &blocks); err == nil {
		c := normalize.Content{}
		for _, b := range blocks {
			switch b.Type {
			case "text":
				c.Parts = append(c.Parts, normalize.ContentPart{Kind: normalize.ContentText, Payload: b.Text})
			case "image":
				c.Parts = append(c.Parts, normalize.ContentPart{Kind: normalize.ContentImage, Payload: b.Source.Data})
			default:
				c.Parts = append(c.Parts, normalize.ContentPart{Kind: normalize.ContentDocument, Payload: b.Text})
			}
		}
		return c
	}
	return normalize.Content{}
}

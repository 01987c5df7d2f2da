package parser

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/proxilion/grc-gateway/pkg/normalize"
)

// OpenAIParser recognises the OpenAI chat-completions wire shape: a
// top-level "messages" array of {role, content}. Matched by host/path first
// (api.openai.com/v1/chat/completions, /v1/responses), then by body shape
// for transparent-mode requests whose host isn't known in advance.
type OpenAIParser struct{}

func NewOpenAIParser() *OpenAIParser { return &OpenAIParser{} }

func (p *OpenAIParser) ID() string { return "openai" }

type openaiWire struct {
	Model       string          `json:"model"`
	Messages    []openaiMessage `json:"messages"`
	Stream      bool            `json:"stream"`
	Temperature *float64        `json:"temperature"`
	TopP        *float64        `json:"top_p"`
	MaxTokens   *int            `json:"max_tokens"`
	Stop        json.RawMessage `json:"stop"`
	Tools       []openaiTool    `json:"tools"`
}

type openaiMessage struct {
	Role    string          `json:"role"`
	Content json.RawMessage `json:"content"`
}

type openaiTool struct {
	Type     string `json:"type"`
	Function struct {
		Name        string         `json:"name"`
		Description string         `json:"description"`
		Parameters  map[string]any `json:"parameters"`
	} `json:"function"`
}

func (p *OpenAIParser) TryParse(r *http.Request, body []byte) (*normalize.Request, bool, error) {
	hostMatch := strings.Contains(r.Host, "openai.com") || strings.HasPrefix(r.URL.Path, "/v1/chat/completions") || strings.HasPrefix(r.URL.Path, "/v1/responses")

	var wire openaiWire
	if err := json.Unmarshal(body, &wire); err != nil || len(wire.Messages) == 0 {
		if hostMatch {
			return nil, true, firstNonNilErr(err, errEmptyMessages)
		}
		return nil, false, nil
	}

	req := &normalize.Request{
		Provider: normalize.ProviderOpenAI,
		Model:    wire.Model,
		Streaming: wire.Stream,
		Params: normalize.GenParams{
			Temperature: wire.Temperature,
			TopP:        wire.TopP,
			MaxTokens:   wire.MaxTokens,
		},
	}
	if len(wire.Stop) > 0 {
		req.Params.StopSequences = decodeStopSequences(wire.Stop)
	}
	for _, m := range wire.Messages {
		req.Messages = append(req.Messages, normalize.Message{
			Role:    normalize.Role(m.Role),
			Content: decodeOpenAIContent(m.Content),
		})
	}
	for _, t := range wire.Tools {
		req.Tools = append(req.Tools, normalize.ToolDescriptor{
			Name: t.Function.Name, Description: t.Function.Description, Parameters: t.Function.Parameters,
		})
	}
	return req, true, nil
}

func decodeStopSequences(raw json.RawMessage) []string {
	var single string
	if err := json.Unmarshal(raw, &single); err == nil {
		return []string{single}
	}
	var many []string
	_ = json.Unmarshal(raw, &many)
	return many
}

func decodeOpenAIContent(raw json.RawMessage) normalize.Content {
	var text string
	if err := json.Unmarshal(raw, &text); err == nil {
		return normalize.Content{Text: text}
	}

	var parts []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	}
	if err := json.Unmarshal(raw, &parts); err == nil {
		c := normalize.Content{}
		for _, part := range parts {
			kind := normalize.ContentImage
			if part.Type == "text" {
				kind = normalize.ContentText
			}
			c.Parts = append(c.Parts, normalize.ContentPart{Kind: kind, Payload: part.Text})
		}
		return c
	}
	return normalize.Content{}
}

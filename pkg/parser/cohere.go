package parser

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/proxilion/grc-gateway/pkg/normalize"
)

// CohereParser recognises the Chat API shape: a top-level "message" string
// plus an optional "chat_history" array, a layout distinct enough from the
// messages-array dialects to dispatch on body shape alone.
type CohereParser struct{}

func NewCohereParser() *CohereParser { return &CohereParser{} }

func (p *CohereParser) ID() string { return "cohere" }

type cohereWire struct {
	Model       string              `json:"model"`
	Message     string              `json:"message"`
	ChatHistory []cohereHistoryTurn `json:"chat_history"`
	Stream      bool                `json:"stream"`
	Temperature *float64            `json:"temperature"`
	P           *float64            `json:"p"`
	K           *int                `json:"k"`
	MaxTokens   *int                `json:"max_tokens"`
	StopSeqs    []string            `json:"stop_sequences"`
}

type cohereHistoryTurn struct {
	Role    string `json:"role"`
	Message string `json:"message"`
}

func (p *CohereParser) TryParse(r *http.Request, body []byte) (*normalize.Request, bool, error) {
	hostMatch := strings.Contains(r.Host, "api.cohere.ai") || strings.Contains(r.URL.Path, "/v1/chat")

	var wire cohereWire
	if err := json.Unmarshal(body, &wire); err != nil || wire.Message == "" {
		if hostMatch {
			return nil, true, firstNonNilErr(err, errEmptyMessages)
		}
		return nil, false, nil
	}
	if !hostMatch {
		return nil, false, nil
	}

	req := &normalize.Request{
		Provider:  normalize.ProviderCohere,
		Model:     wire.Model,
		Streaming: wire.Stream,
		Params: normalize.GenParams{
			Temperature:   wire.Temperature,
			TopP:          wire.P,
			TopK:          wire.K,
			MaxTokens:     wire.MaxTokens,
			StopSequences: wire.StopSeqs,
		},
	}
	for _, turn := range wire.ChatHistory {
		role := normalize.RoleUser
		if turn.Role == "CHATBOT" || turn.Role == "assistant" {
			role = normalize.RoleAssistant
		} else if turn.Role == "SYSTEM" || turn.Role == "system" {
			role = normalize.RoleSystem
		}
		req.Messages = append(req.Messages, normalize.Message{Role: role, Content: normalize.Content{Text: turn.Message}})
	}
	req.Messages = append(req.Messages, normalize.Message{Role: normalize.RoleUser, Content: normalize.Content{Text: wire.Message}})
	return req, true, nil
}

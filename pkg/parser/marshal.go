package parser

import (
	"encoding/json"
	"fmt"

	"github.com/proxilion/grc-gateway/pkg/normalize"
)

// Marshal re-serialises a normalized request back into its provider's wire
// shape. Used on the modify action path, where the forwarded body must
// reflect redactions applied after parsing rather than the original bytes.
func Marshal(r *normalize.Request) ([]byte, error) {
	switch r.Provider {
	case normalize.ProviderOpenAI:
		return marshalOpenAI(r)
	case normalize.ProviderAnthropic:
		return marshalAnthropic(r)
	case normalize.ProviderGoogle:
		return marshalGoogle(r)
	case normalize.ProviderCohere:
		return marshalCohere(r)
	case normalize.ProviderHuggingFace:
		return marshalHuggingFace(r)
	case normalize.ProviderCustom:
		return marshalCustom(r)
	default:
		return nil, fmt.Errorf("parser: no wire encoding for provider %q", r.Provider)
	}
}

func contentText(c normalize.Content) string {
	if c.IsText() {
		return c.Text
	}
	for _, p := range c.Parts {
		if p.Kind == normalize.ContentText {
			return p.Payload
		}
	}
	return ""
}

func marshalOpenAI(r *normalize.Request) ([]byte, error) {
	wire := openaiWire{
		Model: r.Model, Stream: r.Streaming,
		Temperature: r.Params.Temperature, TopP: r.Params.TopP, MaxTokens: r.Params.MaxTokens,
	}
	for _, m := range r.Messages {
		text, _ := json.Marshal(contentText(m.Content))
		wire.Messages = append(wire.Messages, openaiMessage{Role: string(m.Role), Content: text})
	}
	return json.Marshal(wire)
}

func marshalAnthropic(r *normalize.Request) ([]byte, error) {
	wire := anthropicWire{
		Model: r.Model, Stream: r.Streaming,
		Temperature: r.Params.Temperature, TopP: r.Params.TopP, TopK: r.Params.TopK,
		MaxTokens: r.Params.MaxTokens, StopSeqs: r.Params.StopSequences,
	}
	for _, m := range r.Messages {
		if m.Role == normalize.RoleSystem && wire.System == "" {
			wire.System = contentText(m.Content)
			continue
		}
		text, _ := json.Marshal(contentText(m.Content))
		wire.Messages = append(wire.Messages, anthropicMessage{Role: string(m.Role), Content: text})
	}
	return json.Marshal(wire)
}

func marshalGoogle(r *normalize.Request) ([]byte, error) {
	wire := googleWire{}
	for _, m := range r.Messages {
		role := "user"
		if m.Role == normalize.RoleAssistant {
			role = "model"
		}
		wire.Contents = append(wire.Contents, googleContent{
			Role:  role,
			Parts: []googlePart{{Text: contentText(m.Content)}},
		})
	}
	if r.Params.Temperature != nil || r.Params.TopP != nil || r.Params.TopK != nil || r.Params.MaxTokens != nil {
		wire.GenerationConfig = &struct {
			Temperature     *float64 `json:"temperature"`
			TopP            *float64 `json:"topP"`
			TopK            *int     `json:"topK"`
			MaxOutputTokens *int     `json:"maxOutputTokens"`
			StopSequences   []string `json:"stopSequences"`
		}{
			Temperature: r.Params.Temperature, TopP: r.Params.TopP, TopK: r.Params.TopK,
			MaxOutputTokens: r.Params.MaxTokens, StopSequences: r.Params.StopSequences,
		}
	}
	return json.Marshal(wire)
}

func marshalCohere(r *normalize.Request) ([]byte, error) {
	wire := cohereWire{
		Model: r.Model, Stream: r.Streaming,
		Temperature: r.Params.Temperature, P: r.Params.TopP, K: r.Params.TopK,
		MaxTokens: r.Params.MaxTokens, StopSeqs: r.Params.StopSequences,
	}
	if len(r.Messages) > 0 {
		last := r.Messages[len(r.Messages)-1]
		wire.Message = contentText(last.Content)
		for _, m := range r.Messages[:len(r.Messages)-1] {
			role := "USER"
			switch m.Role {
			case normalize.RoleAssistant:
				role = "CHATBOT"
			case normalize.RoleSystem:
				role = "SYSTEM"
			}
			wire.ChatHistory = append(wire.ChatHistory, cohereHistoryTurn{Role: role, Message: contentText(m.Content)})
		}
	}
	return json.Marshal(wire)
}

func marshalHuggingFace(r *normalize.Request) ([]byte, error) {
	inputs := r.LastUserText()
	inputsJSON, err := json.Marshal(inputs)
	if err != nil {
		return nil, err
	}
	wire := hfWire{Inputs: inputsJSON}
	if r.Params.Temperature != nil || r.Params.TopP != nil || r.Params.TopK != nil || r.Params.MaxTokens != nil {
		wire.Parameters = &struct {
			Temperature *float64 `json:"temperature"`
			TopP        *float64 `json:"top_p"`
			TopK        *int     `json:"top_k"`
			MaxNewToks  *int     `json:"max_new_tokens"`
		}{
			Temperature: r.Params.Temperature, TopP: r.Params.TopP, TopK: r.Params.TopK,
			MaxNewToks: r.Params.MaxTokens,
		}
	}
	return json.Marshal(wire)
}

func marshalCustom(r *normalize.Request) ([]byte, error) {
	wire := customWire{
		Model: r.Model, Prompt: r.LastUserText(), Stream: r.Streaming,
		Temperature: r.Params.Temperature, MaxTokens: r.Params.MaxTokens,
	}
	return json.Marshal(wire)
}

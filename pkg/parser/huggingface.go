package parser

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/proxilion/grc-gateway/pkg/normalize"
)

// HuggingFaceParser recognises the Inference API shape: a bare top-level
// "inputs" string (or array of strings), with no "messages"/"contents"
// structure at all.
type HuggingFaceParser struct{}

func NewHuggingFaceParser() *HuggingFaceParser { return &HuggingFaceParser{} }

func (p *HuggingFaceParser) ID() string { return "huggingface" }

type hfWire struct {
	Inputs     json.RawMessage `json:"inputs"`
	Parameters *struct {
		Temperature *float64 `json:"temperature"`
		TopP        *float64 `json:"top_p"`
		TopK        *int     `json:"top_k"`
		MaxNewToks  *int     `json:"max_new_tokens"`
	} `json:"parameters"`
}

func (p *HuggingFaceParser) TryParse(r *http.Request, body []byte) (*normalize.Request, bool, error) {
	hostMatch := strings.Contains(r.Host, "api-inference.huggingface.co") || strings.Contains(r.URL.Path, "/models/")

	var wire hfWire
	if err := json.Unmarshal(body, &wire); err != nil || len(wire.Inputs) == 0 {
		if hostMatch {
			return nil, true, firstNonNilErr(err, errEmptyMessages)
		}
		return nil, false, nil
	}

	text, ok := decodeHFInputs(wire.Inputs)
	if !ok {
		if hostMatch {
			return nil, true, errEmptyMessages
		}
		return nil, false, nil
	}

	req := &normalize.Request{
		Provider:  normalize.ProviderHuggingFace,
		Model:     modelFromPath(r.URL.Path),
		Messages:  []normalize.Message{{Role: normalize.RoleUser, Content: normalize.Content{Text: text}}},
	}
	if wire.Parameters != nil {
		req.Params = normalize.GenParams{
			Temperature: wire.Parameters.Temperature,
			TopP:        wire.Parameters.TopP,
			TopK:        wire.Parameters.TopK,
			MaxTokens:   wire.Parameters.MaxNewToks,
		}
	}
	return req, true, nil
}

func decodeHFInputs(raw json.RawMessage) (string, bool) {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s, true
	}
	var list []string
	if err := json.Unmarshal(raw, &list); err == nil && len(list) > 0 {
		return strings.Join(list, "\n"), true
	}
	return "", false
}

package parser

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/proxilion/grc-gateway/pkg/normalize"
)

// GoogleParser recognises the Gemini generateContent shape: top-level
// "contents" array of {role, parts: [{text}]}.
type GoogleParser struct{}

func NewGoogleParser() *GoogleParser { return &GoogleParser{} }

func (p *GoogleParser) ID() string { return "google" }

type googleWire struct {
	Contents         []googleContent `json:"contents"`
	GenerationConfig *struct {
		Temperature     *float64 `json:"temperature"`
		TopP            *float64 `json:"topP"`
		TopK            *int     `json:"topK"`
		MaxOutputTokens *int     `json:"maxOutputTokens"`
		StopSequences   []string `json:"stopSequences"`
	} `json:"generationConfig"`
}

type googleContent struct {
	Role  string       `json:"role"`
	Parts []googlePart `json:"parts"`
}

type googlePart struct {
	Text string `json:"text"`
}

func (p *GoogleParser) TryParse(r *http.Request, body []byte) (*normalize.Request, bool, error) {
	hostMatch := strings.Contains(r.Host, "generativelanguage.googleapis.com") || strings.Contains(r.URL.Path, ":generateContent") || strings.Contains(r.URL.Path, ":streamGenerateContent")

	var wire googleWire
	if err := json.Unmarshal(body, &wire); err != nil || len(wire.Contents) == 0 {
		if hostMatch {
			return nil, true, firstNonNilErr(err, errEmptyMessages)
		}
		return nil, false, nil
	}
	if !hostMatch {
		return nil, false, nil
	}

	model := modelFromPath(r.URL.Path)
	req := &normalize.Request{
		Provider:  normalize.ProviderGoogle,
		Model:     model,
		Streaming: strings.Contains(r.URL.Path, "streamGenerateContent"),
	}
	if wire.GenerationConfig != nil {
		req.Params = normalize.GenParams{
			Temperature:   wire.GenerationConfig.Temperature,
			TopP:          wire.GenerationConfig.TopP,
			TopK:          wire.GenerationConfig.TopK,
			MaxTokens:     wire.GenerationConfig.MaxOutputTokens,
			StopSequences: wire.GenerationConfig.StopSequences,
		}
	}
	for _, c := range wire.Contents {
		content := normalize.Content{}
		if len(c.Parts) == 1 {
			content.Text = c.Parts[0].Text
		} else {
			for _, part := range c.Parts {
				content.Parts = append(content.Parts, normalize.ContentPart{Kind: normalize.ContentText, Payload: part.Text})
			}
		}
		role := normalize.RoleUser
		if c.Role == "model" {
			role = normalize.RoleAssistant
		}
		req.Messages = append(req.Messages, normalize.Message{Role: role, Content: content})
	}
	return req, true, nil
}

// modelFromPath extracts the Gemini model name from a path like
// "/v1beta/models/gemini-1.5-pro:generateContent".
func modelFromPath(path string) string {
	const marker = "/models/"
	idx := strings.Index(path, marker)
	if idx < 0 {
		return ""
	}
	rest := path[idx+len(marker):]
	if colon := strings.Index(rest, ":"); colon >= 0 {
		rest = rest[:colon]
	}
	return rest
}

package parser

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/proxilion/grc-gateway/pkg/normalize"
)

func TestGoogleParserParsesGenerateContent(t *testing.T) {
	p := NewGoogleParser()
	body := `{"contents":[{"role":"user","parts":[{"text":"hello"}]}],"generationConfig":{"temperature":0.5}}`
	r := httptest.NewRequest(http.MethodPost, "/v1beta/models/gemini-1.5-pro:generateContent", strings.NewReader(body))
	r.Host = "generativelanguage.googleapis.com"

	out, matched, err := p.TryParse(r, []byte(body))
	if err != nil || !matched {
		t.Fatalf("expected a match, got matched=%v err=%v", matched, err)
	}
	if out.Model != "gemini-1.5-pro" {
		t.Fatalf("expected model extracted from path, got %q", out.Model)
	}
	if len(out.Messages) != 1 || out.Messages[0].Content.Text != "hello" {
		t.Fatalf("unexpected messages: %+v", out.Messages)
	}
}

func TestGoogleParserDeclinesNonMatchingBody(t *testing.T) {
	p := NewGoogleParser()
	r := httptest.NewRequest(http.MethodPost, "/anything", strings.NewReader(`{"prompt":"hi"}`))
	r.Host = "gateway.internal"

	_, matched, err := p.TryParse(r, []byte(`{"prompt":"hi"}`))
	if matched || err != nil {
		t.Fatalf("expected a clean decline, got matched=%v err=%v", matched, err)
	}
}

func TestCohereParserParsesChatShape(t *testing.T) {
	p := NewCohereParser()
	body := `{"model":"command-r","message":"what's up","chat_history":[{"role":"USER","message":"hi"},{"role":"CHATBOT","message":"hello"}]}`
	r := httptest.NewRequest(http.MethodPost, "/v1/chat", strings.NewReader(body))
	r.Host = "api.cohere.ai"

	out, matched, err := p.TryParse(r, []byte(body))
	if err != nil || !matched {
		t.Fatalf("expected a match, got matched=%v err=%v", matched, err)
	}
	if len(out.Messages) != 3 {
		t.Fatalf("expected history + trailing message, got %d messages", len(out.Messages))
	}
	if out.Messages[1].Role != "assistant" {
		t.Fatalf("expected CHATBOT mapped to assistant, got %q", out.Messages[1].Role)
	}
	if out.Messages[2].Content.Text != "what's up" {
		t.Fatalf("expected trailing message to be the current turn, got %+v", out.Messages[2])
	}
}

func TestHuggingFaceParserParsesBareInputsString(t *testing.T) {
	p := NewHuggingFaceParser()
	body := `{"inputs":"translate this","parameters":{"temperature":0.7}}`
	r := httptest.NewRequest(http.MethodPost, "/models/gpt2", strings.NewReader(body))
	r.Host = "api-inference.huggingface.co"

	out, matched, err := p.TryParse(r, []byte(body))
	if err != nil || !matched {
		t.Fatalf("expected a match, got matched=%v err=%v", matched, err)
	}
	if out.Messages[0].Content.Text != "translate this" {
		t.Fatalf("unexpected message text: %+v", out.Messages)
	}
	if out.Model != "gpt2" {
		t.Fatalf("expected model from path, got %q", out.Model)
	}
}

func TestHuggingFaceParserJoinsArrayInputs(t *testing.T) {
	p := NewHuggingFaceParser()
	body := `{"inputs":["line one","line two"]}`
	r := httptest.NewRequest(http.MethodPost, "/models/gpt2", strings.NewReader(body))
	r.Host = "api-inference.huggingface.co"

	out, matched, err := p.TryParse(r, []byte(body))
	if err != nil || !matched {
		t.Fatalf("expected a match, got matched=%v err=%v", matched, err)
	}
	if out.Messages[0].Content.Text != "line one\nline two" {
		t.Fatalf("expected joined array inputs, got %q", out.Messages[0].Content.Text)
	}
}

func TestMarshalOpenAIRoundTrip(t *testing.T) {
	reg := NewRegistry(NewOpenAIParser())
	body := `{"model":"gpt-4","messages":[{"role":"user","content":"hi"}]}`
	r := httptest.NewRequest(http.MethodPost, "/v1/chat/completions", strings.NewReader(body))
	r.Host = "api.openai.com"

	out, err := reg.Parse(r, []byte(body))
	if err != nil {
		t.Fatalf("unexpected parse error: %v", err)
	}

	reparsed, err := Marshal(out)
	if err != nil {
		t.Fatalf("unexpected marshal error: %v", err)
	}
	if !strings.Contains(string(reparsed), `"model":"gpt-4"`) {
		t.Fatalf("expected re-marshaled body to preserve model, got %s", reparsed)
	}
}

func TestMarshalUnknownProviderErrors(t *testing.T) {
	_, err := Marshal(&normalize.Request{Provider: normalize.ProviderUnknown})
	if err == nil {
		t.Fatal("expected an error marshaling an unrecognised provider")
	}
}

package parser

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/proxilion/grc-gateway/pkg/normalize"
)

func req(t *testing.T, host, path, body string) (*http.Request, []byte) {
	t.Helper()
	r := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	r.Host = host
	return r, []byte(body)
}

func TestRegistryParsesOpenAIByHost(t *testing.T) {
	reg := NewRegistry(NewOpenAIParser(), NewCustomParser())
	r, body := req(t, "api.openai.com", "/v1/chat/completions", `{"model":"gpt-4","messages":[{"role":"user","content":"hi"}]}`)

	out, err := reg.Parse(r, body)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Model != "gpt-4" || len(out.Messages) != 1 {
		t.Fatalf("unexpected parse result: %+v", out)
	}
}

func TestRegistryFallsThroughToNextParser(t *testing.T) {
	// CustomParser only recognises a bare "prompt" field, so it declines
	// this Anthropic-shaped body and dispatch falls through to AnthropicParser.
	reg := NewRegistry(NewCustomParser(), NewAnthropicParser())
	r, body := req(t, "api.anthropic.com", "/v1/messages", `{"model":"claude-3","messages":[{"role":"user","content":"hi"}]}`)

	out, err := reg.Parse(r, body)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Provider != "anthropic" {
		t.Fatalf("expected anthropic provider, got %v", out.Provider)
	}
}

func TestRegistryRejectsUnrecognisedRequest(t *testing.T) {
	reg := NewRegistry(NewOpenAIParser(), NewAnthropicParser())
	r, body := req(t, "unknown.example.com", "/whatever", `not json`)

	if _, err := reg.Parse(r, body); err == nil {
		t.Fatal("expected an error when no parser recognises the request")
	}
}

func TestRegisterAppendsParser(t *testing.T) {
	reg := NewRegistry(NewOpenAIParser())
	reg.Register(NewCustomParser())

	r, body := req(t, "gateway.internal", "/anything", `{"model":"m","prompt":"hi"}`)
	out, err := reg.Parse(r, body)
	if err != nil {
		t.Fatalf("expected the custom fallback parser to accept a generic payload: %v", err)
	}
	if out.Provider != normalize.ProviderCustom {
		t.Fatalf("expected custom provider, got %v", out.Provider)
	}
}

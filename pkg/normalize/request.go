// Package normalize defines the provider-agnostic representation of an
// inbound LLM call and the invariants later pipeline stages
// depend on: once built, R holds no reference to the raw request bytes, and
// every optional field is a Go zero value rather than a sentinel string.
package normalize

import "time"

// Provider is the recognised vendor dialect a request was parsed from.
type Provider string

const (
	ProviderOpenAI      Provider = "openai"
	ProviderAnthropic   Provider = "anthropic"
	ProviderGoogle      Provider = "google"
	ProviderCohere      Provider = "cohere"
	ProviderHuggingFace Provider = "huggingface"
	ProviderCustom      Provider = "custom"
	ProviderUnknown     Provider = "unknown"
)

// Role is the speaker of one message in the conversation.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleFunction  Role = "function"
	RoleTool      Role = "tool"
)

// ContentKind discriminates the variants of a ContentPart. A closed
// enumeration rather than a string-typed field keeps every downstream
// switch total.
type ContentKind string

const (
	ContentText     ContentKind = "text"
	ContentImage    ContentKind = "image"
	ContentDocument ContentKind = "document"
)

// ContentPart is one piece of a (possibly multi-modal) message body.
type ContentPart struct {
	Kind    ContentKind
	Payload string // text content, or a URI/base64 payload for image/document
}

// Content is a message's body: either plain text, or an ordered list of
// content parts. Exactly one of Text/Parts is meaningful; IsText reports
// which.
type Content struct {
	Text  string
	Parts []ContentPart
}

// IsText reports whether this content is a plain string rather than a part
// list.
func (c Content) IsText() bool { return c.Parts == nil }

// Message is one turn in the conversation.
type Message struct {
	Role    Role
	Content Content
}

// GenParams are optional generation parameters. Pointer fields distinguish
// "unset" from the zero value, since 0 is a meaningful temperature/top-p.
type GenParams struct {
	Temperature      *float64
	MaxTokens        *int
	TopP             *float64
	TopK             *int
	FrequencyPenalty *float64
	PresencePenalty  *float64
	StopSequences    []string
}

// ToolDescriptor is a tool/function the model may call.
type ToolDescriptor struct {
	Name        string
	Description string
	Parameters  map[string]any
}

// Metadata carries request provenance that must never influence the cache
// fingerprint.
type Metadata struct {
	UserID    string
	Tenant    string
	SourceIP  string
	UserAgent string
	Timestamp time.Time
	Tags      []string
}

// Request is the normalised request, R.
type Request struct {
	CorrelationID string
	Provider      Provider
	Model         string
	Messages      []Message
	Params        GenParams
	Streaming     bool
	Tools         []ToolDescriptor
	Metadata      Metadata
}

// Clone returns a deep-enough copy of r suitable for the modify/redact
// action path: R is treated as immutable once produced, so
// redaction must build a new value rather than mutate in place.
func (r *Request) Clone() *Request {
	cp := *r
	cp.Messages = make([]Message, len(r.Messages))
	for i, m := range r.Messages {
		nm := m
		if m.Content.Parts != nil {
			nm.Content.Parts = append([]ContentPart(nil), m.Content.Parts...)
		}
		cp.Messages[i] = nm
	}
	if r.Params.StopSequences != nil {
		cp.Params.StopSequences = append([]string(nil), r.Params.StopSequences...)
	}
	if r.Tools != nil {
		cp.Tools = append([]ToolDescriptor(nil), r.Tools...)
	}
	if r.Metadata.Tags != nil {
		cp.Metadata.Tags = append([]string(nil), r.Metadata.Tags...)
	}
	return &cp
}

// LastUserText returns the text of the most recent user message, descending
// into the first text content part when content is multi-part. Used by
// scanners and guardrail-style heuristics that only care about the user's
// latest turn.
func (r *Request) LastUserText() string {
	for i := len(r.Messages) - 1; i >= 0; i-- {
		m := r.Messages[i]
		if m.Role != RoleUser {
			continue
		}
		if m.Content.IsText() {
			return m.Content.Text
		}
		for _, p := range m.Content.Parts {
			if p.Kind == ContentText {
				return p.Payload
			}
		}
	}
	return ""
}

// ToolNames returns the names of every tool descriptor on the request.
func (r *Request) ToolNames() []string {
	if len(r.Tools) == 0 {
		return nil
	}
	names := make([]string, 0, len(r.Tools))
	for _, t := range r.Tools {
		if t.Name != "" {
			names = append(names, t.Name)
		}
	}
	return names
}

package normalize

import "testing"

func baseRequest() *Request {
	return &Request{
		Provider: ProviderOpenAI,
		Model:    "gpt-4",
		Messages: []Message{
			{Role: RoleUser, Content: Content{Text: "hello"}},
		},
	}
}

func TestFingerprintOfIgnoresStreamingFlag(t *testing.T) {
	a := baseRequest()
	a.Streaming = false

	b := baseRequest()
	b.Streaming = true

	if FingerprintOf(a) != FingerprintOf(b) {
		t.Fatal("expected requests differing only in Streaming to fingerprint identically")
	}
}

func TestFingerprintOfDiffersOnModel(t *testing.T) {
	a := baseRequest()
	b := baseRequest()
	b.Model = "gpt-3.5-turbo"

	if FingerprintOf(a) == FingerprintOf(b) {
		t.Fatal("expected requests with different models to fingerprint differently")
	}
}

func TestFingerprintOfIgnoresMetadata(t *testing.T) {
	a := baseRequest()
	b := baseRequest()
	b.CorrelationID = "some-id"
	b.Metadata.UserID = "user-123"

	if FingerprintOf(a) != FingerprintOf(b) {
		t.Fatal("expected requests differing only in metadata to fingerprint identically")
	}
}

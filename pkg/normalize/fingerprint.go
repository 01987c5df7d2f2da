package normalize

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"
)

// Fingerprint is a stable digest over the semantically significant fields of
// a Request: provider, model, canonicalised messages, canonicalised
// parameters. Metadata (correlation id, user, tenant, timestamp, tags) and
// the streaming flag are excluded so that two requests differing only in
// those fields collide — this is the cache and dedup key.
type Fingerprint string

type canonicalMessage struct {
	Role  string   `json:"role"`
	Text  string   `json:"text,omitempty"`
	Parts []string `json:"parts,omitempty"` // "kind:payload" pairs, in order
}

type canonicalParams struct {
	Temperature      *float64 `json:"temperature,omitempty"`
	MaxTokens        *int     `json:"max_tokens,omitempty"`
	TopP             *float64 `json:"top_p,omitempty"`
	TopK             *int     `json:"top_k,omitempty"`
	FrequencyPenalty *float64 `json:"frequency_penalty,omitempty"`
	PresencePenalty  *float64 `json:"presence_penalty,omitempty"`
	StopSequences    []string `json:"stop_sequences,omitempty"`
}

type canonicalForm struct {
	Provider string             `json:"provider"`
	Model    string             `json:"model"`
	Messages []canonicalMessage `json:"messages"`
	Params   canonicalParams    `json:"params"`
}

// Canonicalize builds the deterministic, metadata-free projection of r used
// for fingerprinting. Map-shaped fields are not part of R today, but any
// future map-valued field must sort its keys here to keep this a pure
// function of semantic content.
func Canonicalize(r *Request) []byte {
	cf := canonicalForm{
		Provider: string(r.Provider),
		Model:    r.Model,
		Params: canonicalParams{
			Temperature:      r.Params.Temperature,
			MaxTokens:        r.Params.MaxTokens,
			TopP:             r.Params.TopP,
			TopK:             r.Params.TopK,
			FrequencyPenalty: r.Params.FrequencyPenalty,
			PresencePenalty:  r.Params.PresencePenalty,
			StopSequences:    append([]string(nil), r.Params.StopSequences...),
		},
	}
	sort.Strings(cf.Params.StopSequences)

	cf.Messages = make([]canonicalMessage, len(r.Messages))
	for i, m := range r.Messages {
		cm := canonicalMessage{Role: string(m.Role)}
		if m.Content.IsText() {
			cm.Text = m.Content.Text
		} else {
			for _, p := range m.Content.Parts {
				cm.Parts = append(cm.Parts, string(p.Kind)+":"+p.Payload)
			}
		}
		cf.Messages[i] = cm
	}

	// json.Marshal sorts map keys by default; struct field order is fixed
	// by declaration above, which is what makes this deterministic.
	data, _ := json.Marshal(cf)
	return data
}

// FingerprintOf computes the stable digest used as the cache and dedup key.
func FingerprintOf(r *Request) Fingerprint {
	sum := sha256.Sum256(Canonicalize(r))
	return Fingerprint(hex.EncodeToString(sum[:]))
}

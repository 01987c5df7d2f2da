package audit

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"
)

// EvidencePackage bundles the audit chain, compliance report, and
// verification result into one exportable, self-attesting JSON document for
// offline review.
type EvidencePackage struct {
	ExportedAt       time.Time         `json:"exportedAt"`
	GatewayID        string            `json:"gatewayId"`
	ChainLength      int64             `json:"chainLength"`
	ChainValid       bool              `json:"chainValid"`
	ChainBrokenAt    int64             `json:"chainBrokenAt,omitempty"`
	Entries          []ChainEntry      `json:"entries"`
	ComplianceReport *ComplianceReport `json:"complianceReport,omitempty"`
	TimeRange        TimeRange         `json:"timeRange"`
	Attestation      string            `json:"attestation"`
}

// TimeRange captures the earliest and latest timestamps in an exported
// chain segment.
type TimeRange struct {
	Earliest time.Time `json:"earliest"`
	Latest   time.Time `json:"latest"`
}

// GenerateEvidencePackage builds a signed export of the current chain state
// and an optional compliance report, HMAC-signed with secret so a
// regulator (or auditctl) can confirm the export itself hasn't been
// altered after the fact.
func GenerateEvidencePackage(chain *Chain, compliance *ComplianceReport, gatewayID, secret string) *EvidencePackage {
	entries := chain.Entries()
	valid, brokenAt, _ := chain.Verify()

	tr := TimeRange{}
	if len(entries) > 0 {
		tr.Earliest = entries[0].Timestamp
		tr.Latest = entries[len(entries)-1].Timestamp
	}

	pkg := &EvidencePackage{
		ExportedAt:       time.Now().UTC(),
		GatewayID:        gatewayID,
		ChainLength:      chain.Len(),
		ChainValid:       valid,
		ChainBrokenAt:    brokenAt,
		Entries:          entries,
		ComplianceReport: compliance,
		TimeRange:        tr,
	}
	pkg.Attestation = signPackage(pkg, secret)
	return pkg
}

// VerifyAttestation reports whether pkg's attestation matches its current
// contents.
func VerifyAttestation(pkg *EvidencePackage, secret string) bool {
	saved := pkg.Attestation
	pkg.Attestation = ""
	expected := signPackage(pkg, secret)
	pkg.Attestation = saved
	return saved == expected
}

func signPackage(pkg *EvidencePackage, secret string) string {
	data, _ := json.Marshal(pkg)
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(data)
	return hex.EncodeToString(mac.Sum(nil))
}

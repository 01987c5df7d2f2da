package audit

import "time"

// ControlStatus is whether a compliance control is currently satisfied.
type ControlStatus string

const (
	ControlPass    ControlStatus = "pass"
	ControlFail    ControlStatus = "fail"
	ControlPartial ControlStatus = "partial"
)

// Control is one compliance control mapped onto a gateway capability.
type Control struct {
	ID             string        `json:"id"`
	Framework      string        `json:"framework"`
	Name           string        `json:"name"`
	Description    string        `json:"description"`
	Status         ControlStatus `json:"status"`
	Evidence       string        `json:"evidence"`
	GatewayFeature string        `json:"gatewayFeature"`
}

// ComplianceReport evaluates the gateway's current configuration against
// one or more compliance frameworks.
type ComplianceReport struct {
	GeneratedAt time.Time `json:"generatedAt"`
	Frameworks  []string  `json:"frameworks"`
	Controls    []Control `json:"controls"`
	Summary     Summary   `json:"summary"`
}

// Summary is the aggregate pass/fail counts for a ComplianceReport.
type Summary struct {
	TotalControls int     `json:"totalControls"`
	Passing       int     `json:"passing"`
	Failing       int     `json:"failing"`
	Partial       int     `json:"partial"`
	PassRate      float64 `json:"passRate"`
}

// ComplianceConfig holds which frameworks to evaluate.
type ComplianceConfig struct {
	Frameworks []string `yaml:"frameworks" json:"frameworks"`
}

// Capabilities describes which optional gateway layers are active, the
// inputs to control evaluation.
type Capabilities struct {
	ChainLen       int64
	HasVault       bool
	HasPolicyEngine bool
	HasScanners     bool
	HasRateLimiter  bool
}

// Evaluate maps gateway capabilities onto SOC 2 and ISO 27001 controls,
// following the teacher's EvaluateCompliance (pkg/trust/compliance.go),
// remapped from the teacher's guardrails/vault/analytics layers onto this
// gateway's policy-engine/scanner/rate-limiter/audit-chain layers.
func Evaluate(cfg ComplianceConfig, cap Capabilities) ComplianceReport {
	var controls []Control
	for _, fw := range cfg.Frameworks {
		switch fw {
		case "SOC2":
			controls = append(controls, evaluateSOC2(cap)...)
		case "ISO27001":
			controls = append(controls, evaluateISO27001(cap)...)
		}
	}

	summary := Summary{TotalControls: len(controls)}
	for _, c := range controls {
		switch c.Status {
		case ControlPass:
			summary.Passing++
		case ControlFail:
			summary.Failing++
		case ControlPartial:
			summary.Partial++
		}
	}
	if summary.TotalControls > 0 {
		summary.PassRate = float64(summary.Passing) / float64(summary.TotalControls) * 100
	}

	return ComplianceReport{
		GeneratedAt: time.Now().UTC(),
		Frameworks:  cfg.Frameworks,
		Controls:    controls,
		Summary:     summary,
	}
}

func evaluateSOC2(c Capabilities) []Control {
	return []Control{
		{
			ID: "CC6.1", Framework: "SOC2",
			Name:           "Logical Access Security",
			Description:    "The entity implements logical access security over protected information assets",
			Status:         boolStatus(c.HasRateLimiter),
			Evidence:       conditionalEvidence(c.HasRateLimiter, "Rate limiter enforces per-actor request quotas before any request reaches the pipeline", "Rate limiter not configured — no admission control"),
			GatewayFeature: "Rate Limiter",
		},
		{
			ID: "CC6.3", Framework: "SOC2",
			Name:           "Role-Based Access and Least Privilege",
			Description:    "The entity authorizes, modifies, or removes access to data based on roles",
			Status:         boolStatus(c.HasPolicyEngine),
			Evidence:       conditionalEvidence(c.HasPolicyEngine, "Policy engine evaluates user/tenant conditions before allowing, queueing, or blocking a request", "Policy engine not configured — no per-actor access decisions"),
			GatewayFeature: "Policy Engine",
		},
		{
			ID: "CC7.2", Framework: "SOC2",
			Name:           "System Monitoring",
			Description:    "The entity monitors system components for anomalies indicative of malicious acts",
			Status:         boolStatus(c.HasScanners),
			Evidence:       conditionalEvidence(c.HasScanners, "Scanner orchestrator inspects every request for PII, secrets, and prompt-injection signatures", "No scanners registered — no content monitoring"),
			GatewayFeature: "Scanner Orchestrator",
		},
		{
			ID: "CC4.1", Framework: "SOC2",
			Name:           "Monitoring of Controls",
			Description:    "The entity selects, develops, and performs evaluations to ascertain controls are present and functioning",
			Status:         chainStatus(c.ChainLen),
			Evidence:       conditionalEvidence(c.ChainLen > 0, "Cryptographic audit chain with HMAC-SHA256 signatures validates control integrity", "Audit chain empty — no records signed yet"),
			GatewayFeature: "Audit Chain",
		},
		{
			ID: "CC7.4", Framework: "SOC2",
			Name:           "Incident Response",
			Description:    "The entity responds to identified security incidents by executing defined procedures",
			Status:         boolStatus(c.HasPolicyEngine),
			Evidence:       conditionalEvidence(c.HasPolicyEngine, "Policy engine's block/alert/queue actions and audit webhook sink provide automated incident response", "Policy engine not configured — no automated incident response"),
			GatewayFeature: "Policy Engine",
		},
		{
			ID: "A1.2", Framework: "SOC2",
			Name:           "Recovery Mechanisms",
			Description:    "The entity implements recovery mechanisms to support system availability",
			Status:         boolStatus(c.HasVault),
			Evidence:       conditionalEvidence(c.HasVault, "auditctl can replay and verify any vaulted audit-chain entry offline", "Vault not configured — replay/recovery not available"),
			GatewayFeature: "Vault",
		},
	}
}

func evaluateISO27001(c Capabilities) []Control {
	return []Control{
		{
			ID: "A.12.4.1", Framework: "ISO27001",
			Name:           "Event Logging",
			Description:    "Event logs recording user activities, exceptions, faults shall be produced and kept",
			Status:         ControlPass,
			Evidence:       "Every request produces exactly one audit record with correlation id, decision, threat level, and duration",
			GatewayFeature: "Pipeline Driver",
		},
		{
			ID: "A.14.2.2", Framework: "ISO27001",
			Name:           "System Change Control Procedures",
			Description:    "Changes to systems shall be controlled by formal change control procedures",
			Status:         chainStatus(c.ChainLen),
			Evidence:       conditionalEvidence(c.ChainLen > 0, "Audit chain ensures integrity — any modified record breaks the HMAC chain", "Audit chain empty — no cryptographic change control yet"),
			GatewayFeature: "Audit Chain",
		},
		{
			ID: "A.18.1.3", Framework: "ISO27001",
			Name:           "Protection of Records",
			Description:    "Records shall be protected from loss, destruction, falsification, and unauthorized access",
			Status:         boolStatus(c.HasVault),
			Evidence:       conditionalEvidence(c.HasVault, "Vault stores evidence in S3-compatible storage with SHA-256 checksums", "Vault not configured — records not cryptographically protected"),
			GatewayFeature: "Vault",
		},
		{
			ID: "A.9.1.1", Framework: "ISO27001",
			Name:           "Access Control Policy",
			Description:    "An access control policy shall be established and documented",
			Status:         boolStatus(c.HasPolicyEngine),
			Evidence:       conditionalEvidence(c.HasPolicyEngine, "Policies are declared in YAML and evaluated in descending-priority order with a default-block fallback", "Policy engine not configured — no documented access control"),
			GatewayFeature: "Policy Engine",
		},
	}
}

func boolStatus(enabled bool) ControlStatus {
	if enabled {
		return ControlPass
	}
	return ControlFail
}

func chainStatus(chainLen int64) ControlStatus {
	if chainLen > 0 {
		return ControlPass
	}
	return ControlPartial
}

func conditionalEvidence(condition bool, pass, fail string) string {
	if condition {
		return pass
	}
	return fail
}

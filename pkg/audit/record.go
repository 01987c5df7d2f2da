// Package audit defines the audit record the pipeline driver emits exactly
// once per request and the sinks/chain/compliance machinery built around it.
package audit

import "time"

// Level mirrors a conventional structured-logging severity scale, reused
// here so audit records slot into the same log aggregation pipeline as
// everything else the gateway emits.
type Level string

const (
	LevelTrace    Level = "trace"
	LevelDebug    Level = "debug"
	LevelInfo     Level = "info"
	LevelWarn     Level = "warn"
	LevelError    Level = "error"
	LevelCritical Level = "critical"
)

// Finding is the audit-facing projection of a scanner finding — enough to
// explain a decision without carrying the full scan internals.
type Finding struct {
	ScannerID string  `json:"scannerId"`
	Type      string  `json:"type"`
	Severity  string  `json:"severity"`
	Message   string  `json:"message"`
	Confidence float64 `json:"confidence"`
}

// Record is the audit record shape, emitted exactly once per
// request regardless of which exit path the pipeline took.
type Record struct {
	ID            string    `json:"id"`
	RequestID     string    `json:"requestId"`
	Timestamp     time.Time `json:"timestamp"`
	Level         Level     `json:"level"`
	Type          string    `json:"type"`
	Message       string    `json:"message"`
	CorrelationID string    `json:"correlationId"`
	EventType     string    `json:"eventType"`
	Action        string    `json:"action"`
	Decision      string    `json:"decision"`
	ThreatLevel   string    `json:"threatLevel"`
	UserID        string    `json:"userId,omitempty"`
	SourceIP      string    `json:"sourceIp,omitempty"`
	Provider      string    `json:"provider"`
	Model         string    `json:"model"`
	Duration      time.Duration `json:"duration"`
	Findings      []Finding `json:"findings"`
	PolicyID      string    `json:"policyId"`
	TargetService string    `json:"targetService"`
}

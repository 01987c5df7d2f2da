// Package pipeerr defines the closed set of error kinds the pipeline
// recognises and the single place that maps them to client-visible
// HTTP statuses.
package pipeerr

import "errors"

// Kind is one of the error kinds the pipeline driver recognises.
type Kind string

const (
	ParseFailure        Kind = "parse-failure"
	RateLimited         Kind = "rate-limited"
	ScannerInternal     Kind = "scanner-internal"
	ScanTimeout         Kind = "scan-timeout"
	PolicyDefaultBlock  Kind = "policy-default-block"
	PolicyBlock         Kind = "policy-block"
	DedupTimeout        Kind = "dedup-timeout"
	PoolAcquireTimeout  Kind = "pool-acquire-timeout"
	CircuitOpen         Kind = "circuit-open"
	UpstreamTimeout     Kind = "upstream-timeout"
	UpstreamTransport   Kind = "upstream-transport"
	UpstreamStatus      Kind = "upstream-status"
	StreamTimeout       Kind = "stream-timeout"
	StreamBackpressure  Kind = "stream-backpressure"
	Internal            Kind = "internal"
)

// Error wraps a Kind with context. It is always returned by value-free
// pointer so errors.As works against *Error.
type Error struct {
	Kind    Kind
	Message string
	Wrapped error
}

func (e *Error) Error() string {
	if e.Message != "" {
		return string(e.Kind) + ": " + e.Message
	}
	return string(e.Kind)
}

func (e *Error) Unwrap() error { return e.Wrapped }

// New builds a pipeline error of the given kind.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap builds a pipeline error of the given kind wrapping an underlying
// error, preserving it for errors.Is/As chains.
func Wrap(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Wrapped: err}
}

// KindOf extracts the Kind from err if it is (or wraps) a *Error, with
// Internal as the fallback for anything unrecognised.
func KindOf(err error) Kind {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return Internal
}

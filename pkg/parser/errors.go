package parser

import "errors"

// errEmptyMessages is returned when a request matches a dialect by host or
// path but carries none of that dialect's expected conversational content
// — still a parse failure, not a silent empty-request success.
var errEmptyMessages = errors.New("parser: recognised dialect but request carries no messages")

// firstNonNilErr returns the first non-nil error, or nil if both are nil.
// Used when a host-matched dialect must report a failure even if the JSON
// itself decoded without error (e.g. valid JSON, wrong/empty shape).
func firstNonNilErr(errs ...error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

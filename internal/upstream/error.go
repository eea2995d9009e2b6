// Package upstream defines the error type shared by every external
// collaborator client (content source, completion API, speech synthesis,
// messaging platform). A non-success response or timeout from any of them is
// classified as an *Error carrying enough context for logging while the
// user-facing layers degrade to localized fallback messages.
package upstream

import "fmt"

// Error describes a failed call to an external collaborator.
//
// Status is the HTTP status code (0 for transport-level failures such as
// timeouts), Body a bounded excerpt of the response body. Neither is ever
// surfaced to end users; handlers log the error and answer with a generic,
// localized apology instead.
type Error struct {
	Service string // e.g. "cms", "llm", "tts", "whatsapp"
	Status  int
	Body    string
	Err     error // underlying transport error, if any
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Service, e.Err)
	}
	return fmt.Sprintf("%s: unexpected status %d: %s", e.Service, e.Status, e.Body)
}

// Unwrap exposes the underlying transport error for errors.Is/As.
func (e *Error) Unwrap() error { return e.Err }

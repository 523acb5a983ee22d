package store

import "fmt"

// BackendErrorKind classifies graph backend failures.
type BackendErrorKind string

const (
	BackendAuth              BackendErrorKind = "auth"
	BackendUnavailable       BackendErrorKind = "unavailable"
	BackendMissingCapability BackendErrorKind = "missing_capability"
	BackendUnknown           BackendErrorKind = "unknown"
)

// BackendError is a classified graph backend failure. Message is meant for
// operators and is shown to users as the task error.
type BackendError struct {
	Kind    BackendErrorKind
	Message string
	Err     error
}

func (e *BackendError) Error() string {
	if e.Err == nil {
		return e.Message
	}
	return fmt.Sprintf("%s: %v", e.Message, e.Err)
}

func (e *BackendError) Unwrap() error { return e.Err }

// Unavailable reports whether the backend could not serve the request at
// all, as opposed to rejecting it.
func (e *BackendError) Unavailable() bool {
	return e.Kind != BackendUnknown
}

package agent

import (
	"bytes"
	"errors"
)

// ConfigDocument carries the agent configuration content together with a
// shallow validity signal. Content is opaque; two documents are equal iff
// their bytes are identical.
type ConfigDocument struct {
	// Content is the raw configuration bytes.
	Content []byte

	// WellFormed reports whether the content passed shallow inspection
	// against the agent's expected configuration format. Content may be
	// persisted even when false; the flag exists for logging and operator
	// visibility.
	WellFormed bool
}

// Equal reports whether both documents carry byte-identical content.
func (document ConfigDocument) Equal(other ConfigDocument) bool {
	return bytes.Equal(document.Content, other.Content)
}

var (
	// ErrConfigFetchFailed indicates the desired configuration could not be
	// retrieved from its source.
	ErrConfigFetchFailed = errors.New("config fetch failed")

	// ErrConfigWriteFailed indicates the desired configuration could not be
	// persisted to its on-disk path.
	ErrConfigWriteFailed = errors.New("config write failed")
)

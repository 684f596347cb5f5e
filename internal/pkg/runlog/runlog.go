// Package runlog accumulates the ordered, timestamped record of a single
// reconciliation run and hands it to its sinks once at the end. The recorder
// is an explicit value threaded through the components; there is no ambient
// global log state.
package runlog

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Entry is a single timestamped run log message.
type Entry struct {
	At      time.Time
	Message string
}

// Recorder is the append-only in-memory run log. Not safe for concurrent
// use; the run is single-threaded by design.
type Recorder struct {
	runID   string
	clock   func() time.Time
	entries []Entry
}

// NewRecorder creates a Recorder with a fresh run identifier.
func NewRecorder() *Recorder {
	return &Recorder{
		runID: uuid.NewString(),
		clock: time.Now,
	}
}

// RunID returns the identifier attached to this run's log.
func (recorder *Recorder) RunID() string {
	return recorder.runID
}

// Record appends a formatted message with the current timestamp.
func (recorder *Recorder) Record(format string, args ...any) {
	recorder.entries = append(recorder.entries, Entry{
		At:      recorder.clock(),
		Message: fmt.Sprintf(format, args...),
	})
}

// Entries returns a copy of the accumulated entries in append order.
func (recorder *Recorder) Entries() []Entry {
	entries := make([]Entry, len(recorder.entries))
	copy(entries, recorder.entries)
	return entries
}

// Lines renders the accumulated entries as text lines for a sink.
func (recorder *Recorder) Lines() []string {
	lines := make([]string, 0, len(recorder.entries))
	for _, entry := range recorder.entries {
		lines = append(lines, fmt.Sprintf("%s %s", entry.At.Format(time.RFC3339), entry.Message))
	}
	return lines
}

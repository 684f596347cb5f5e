package runlog

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/afero"

	"github.com/orbiqd/orbiqd-sentrykit/internal/pkg/process"
)

// Sink persists the ordered run log lines at the end of a run. Sink failures
// must never affect the run's own outcome; EmitAll enforces that.
type Sink interface {
	Emit(ctx context.Context, runID string, lines []string) error
}

// EmitAll hands the recorder's lines to every sink. Errors are logged to the
// console and swallowed.
func EmitAll(ctx context.Context, recorder *Recorder, sinks ...Sink) {
	lines := recorder.Lines()

	for _, sink := range sinks {
		if err := sink.Emit(ctx, recorder.RunID(), lines); err != nil {
			slog.Warn("Run log sink failed.", slog.String("runId", recorder.RunID()), "error", err)
		}
	}
}

// SyslogSink forwards the run log to the system log via the logger(1)
// utility under a fixed tag.
type SyslogSink struct {
	runner process.Runner
	tag    string
}

// NewSyslogSink builds a syslog sink with the given tag.
func NewSyslogSink(runner process.Runner, tag string) *SyslogSink {
	return &SyslogSink{runner: runner, tag: tag}
}

// Emit writes each line to the system log.
func (sink *SyslogSink) Emit(ctx context.Context, runID string, lines []string) error {
	for _, line := range lines {
		if _, err := sink.runner.Run(ctx, "logger", "-t", sink.tag, "--", fmt.Sprintf("run %s: %s", runID, line)); err != nil {
			return fmt.Errorf("write syslog line: %w", err)
		}
	}

	return nil
}

// FileSink appends the run log to a file, one run per block.
type FileSink struct {
	fs   afero.Fs
	path string
}

// NewFileSink builds a file sink at the given path.
func NewFileSink(fs afero.Fs, path string) *FileSink {
	return &FileSink{fs: fs, path: path}
}

// Emit appends the run's lines to the log file.
func (sink *FileSink) Emit(ctx context.Context, runID string, lines []string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := sink.fs.MkdirAll(filepath.Dir(sink.path), 0o750); err != nil {
		return fmt.Errorf("create log directory: %w", err)
	}

	file, err := sink.fs.OpenFile(sink.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o640)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer func() {
		_ = file.Close()
	}()

	for _, line := range lines {
		if _, err := fmt.Fprintf(file, "run %s: %s\n", runID, line); err != nil {
			return fmt.Errorf("append log line: %w", err)
		}
	}

	return nil
}

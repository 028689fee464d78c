// Package recorder appends status lines to the shared imaging log.
//
// The log is written by many hosts at once with no locking protocol. Each
// line goes out in a single write on an O_APPEND descriptor, which is the
// only guarantee relied on: a line is never split, but lines from different
// hosts may land in any order.
package recorder

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/signalnine/autoback/internal/protocol"
)

var (
	// ErrLogUnavailable means the log path could not be opened
	ErrLogUnavailable = errors.New("log unavailable")
	// ErrWriteIncomplete means fewer bytes reached the log than were rendered
	ErrWriteIncomplete = errors.New("write incomplete")
)

// Append writes rec's log line to logPath, creating the file if needed and
// never truncating it. It returns the number of bytes written.
func Append(logPath string, rec protocol.StatusRecord, enc protocol.Encoding) (int, error) {
	data, err := enc.Encode(rec.LogLine())
	if err != nil {
		return 0, fmt.Errorf("encode log line: %w", err)
	}

	f, err := os.OpenFile(logPath, os.O_WRONLY|os.O_APPEND|os.O_CREATE, 0644)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrLogUnavailable, err)
	}

	n, err := writeLine(f, data)
	if cerr := f.Close(); cerr != nil && err == nil {
		// Network shares can report deferred write failures on close
		err = fmt.Errorf("%w: close: %w", ErrWriteIncomplete, cerr)
	}
	return n, err
}

// writeLine issues exactly one Write so the line stays indivisible
func writeLine(w io.Writer, data []byte) (int, error) {
	n, err := w.Write(data)
	if err != nil {
		return n, fmt.Errorf("%w: wrote %d of %d bytes: %w", ErrWriteIncomplete, n, len(data), err)
	}
	if n < len(data) {
		return n, fmt.Errorf("%w: wrote %d of %d bytes", ErrWriteIncomplete, n, len(data))
	}
	return n, nil
}

// IsUnavailable checks if the log could not be opened at all
func IsUnavailable(err error) bool {
	return errors.Is(err, ErrLogUnavailable)
}

// Package diag is the operator-facing diagnostic channel: human-readable
// text on stderr, optionally mirrored to a rotating file.
package diag

import (
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"sync/atomic"
	"syscall"

	"gopkg.in/natefinch/lumberjack.v2"
)

var verbose atomic.Bool

// Setup configures the standard logger. With a logfile, output is also
// written to a size-rotated file next to stderr. The returned closer releases
// the file and is safe to call when no file was configured.
func Setup(logfile string, debug bool) io.Closer {
	verbose.Store(debug)

	if debug {
		log.SetFlags(log.LstdFlags | log.Lshortfile)
	} else {
		log.SetFlags(log.LstdFlags)
	}

	if logfile == "" {
		log.SetOutput(os.Stderr)
		return nopCloser{}
	}

	lj := &lumberjack.Logger{
		Filename:   logfile,
		MaxSize:    20,
		MaxBackups: 3,
		MaxAge:     14,
	}
	log.SetOutput(io.MultiWriter(os.Stderr, lj))
	return lj
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// Debugf logs only when verbose output was requested
func Debugf(format string, args ...any) {
	if verbose.Load() {
		log.Output(2, "[DEBUG] "+fmt.Sprintf(format, args...))
	}
}

// Code returns the platform error code carried by err, if any
func Code(err error) (int, bool) {
	var errno syscall.Errno
	if errors.As(err, &errno) {
		return int(errno), true
	}
	return 0, false
}

// Describe renders err for an operator, appending the platform error code
// when one is available.
func Describe(err error) string {
	if code, ok := Code(err); ok {
		return fmt.Sprintf("%v (errno %d)", err, code)
	}
	return err.Error()
}

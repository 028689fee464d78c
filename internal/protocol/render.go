package protocol

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
)

// logTimeLayout renders MM-DD-YYYY, HH-mm
const logTimeLayout = "01-02-2006, 15-04"

var logLineRe = regexp.MustCompile(`^(\d{2}-\d{2}-\d{4}, \d{2}-\d{2}): Hostname: ([^,\r\n]+), Result: ([A-Za-z]+)(\r\n|\n)?$`)

// LogLine renders the human-readable line appended to the shared log
func (r StatusRecord) LogLine() string {
	var b strings.Builder
	b.WriteString(r.timestamp.Format(logTimeLayout))
	b.WriteString(": Hostname: ")
	b.WriteString(r.hostname)
	b.WriteString(", Result: ")
	b.WriteString(r.outcome.logLabel())
	b.WriteString("\r\n")
	return b.String()
}

// WireLine renders the compact line sent to the coordinator.
// An empty marker falls back to DefaultEOFMarker.
func (r StatusRecord) WireLine(marker string) string {
	if marker == "" {
		marker = DefaultEOFMarker
	}
	return r.hostname + ":" + r.outcome.String() + marker
}

// ParseLogLine recovers a record from a rendered log line. The timestamp is
// returned in loc (UTC when nil).
func ParseLogLine(line string, loc *time.Location) (StatusRecord, error) {
	if loc == nil {
		loc = time.UTC
	}
	m := logLineRe.FindStringSubmatch(line)
	if m == nil {
		return StatusRecord{}, errors.New("not a status log line")
	}

	ts, err := time.ParseInLocation(logTimeLayout, m[1], loc)
	if err != nil {
		return StatusRecord{}, fmt.Errorf("parse timestamp: %w", err)
	}
	outcome, err := ParseOutcome(m[3])
	if err != nil {
		return StatusRecord{}, err
	}
	return NewStatusRecord(ts, m[2], outcome)
}

// ParseWireLine splits a received message into hostname and outcome.
// The marker, if present, is stripped. Any result containing "success"
// (case-insensitive) counts as Success; everything else is Failure.
func ParseWireLine(msg, marker string) (string, Outcome, error) {
	if marker == "" {
		marker = DefaultEOFMarker
	}
	if i := strings.Index(msg, marker); i >= 0 {
		msg = msg[:i]
	}
	msg = strings.TrimRight(msg, "\x00\r\n")

	fields := strings.Split(msg, ":")
	if len(fields) != 2 {
		return "", 0, fmt.Errorf("malformed message %q: want host:result", msg)
	}
	host := strings.TrimSpace(fields[0])
	if err := ValidateHostname(host); err != nil {
		return "", 0, err
	}

	outcome := Failure
	if strings.Contains(strings.ToLower(fields[1]), "success") {
		outcome = Success
	}
	return host, outcome, nil
}

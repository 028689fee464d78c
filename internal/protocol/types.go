package protocol

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// MaxHostnameLength bounds the host identity carried in a record
const MaxHostnameLength = 255

// DefaultEOFMarker terminates a wire line
const DefaultEOFMarker = "<EOF>"

// Outcome is the result of the imaging job being reported
type Outcome int

const (
	Success Outcome = iota + 1
	Failure
)

// ErrInvalidOutcome is returned for anything other than success/failure
var ErrInvalidOutcome = errors.New("outcome must be success or failure")

// ParseOutcome accepts "success" or "failure" in any case
func ParseOutcome(s string) (Outcome, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "success":
		return Success, nil
	case "failure":
		return Failure, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidOutcome, s)
}

// Valid reports whether o is one of the two enumerated outcomes
func (o Outcome) Valid() bool {
	return o == Success || o == Failure
}

// String returns the wire form: SUCCESS or FAILURE
func (o Outcome) String() string {
	switch o {
	case Success:
		return "SUCCESS"
	case Failure:
		return "FAILURE"
	}
	return fmt.Sprintf("Outcome(%d)", int(o))
}

// logLabel is the wording used in the shared log file
func (o Outcome) logLabel() string {
	if o == Success {
		return "Success"
	}
	return "FAILURE"
}

// StatusRecord describes one run's outcome. Fields are captured once at
// construction and never re-queried, so both renderings agree.
type StatusRecord struct {
	timestamp time.Time
	hostname  string
	outcome   Outcome
}

// NewStatusRecord builds a record. The timestamp is truncated to the minute,
// the finest field either rendering carries.
func NewStatusRecord(ts time.Time, hostname string, outcome Outcome) (StatusRecord, error) {
	if !outcome.Valid() {
		return StatusRecord{}, ErrInvalidOutcome
	}
	if err := ValidateHostname(hostname); err != nil {
		return StatusRecord{}, err
	}
	return StatusRecord{
		timestamp: ts.Truncate(time.Minute),
		hostname:  hostname,
		outcome:   outcome,
	}, nil
}

// Timestamp returns the captured time
func (r StatusRecord) Timestamp() time.Time { return r.timestamp }

// Hostname returns the local host identity
func (r StatusRecord) Hostname() string { return r.hostname }

// Outcome returns the reported result
func (r StatusRecord) Outcome() Outcome { return r.outcome }

// ValidateHostname rejects names that would corrupt the log or wire line
func ValidateHostname(hostname string) error {
	if hostname == "" {
		return errors.New("hostname is empty")
	}
	if len(hostname) > MaxHostnameLength {
		return fmt.Errorf("hostname is %d bytes, limit is %d", len(hostname), MaxHostnameLength)
	}
	if strings.ContainsAny(hostname, ":,\r\n") {
		return fmt.Errorf("hostname %q contains a reserved character", hostname)
	}
	return nil
}

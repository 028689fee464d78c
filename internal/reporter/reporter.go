// Package reporter notifies the coordinator of a job outcome over TCP.
//
// An attempt walks INIT, SOCKET_OPEN, RESOLVE, CONNECT, SEND and
// SHUTDOWN_SEND in order. The first failing stage ends the attempt; there is
// no retry and no reply is read.
package reporter

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/netip"
	"strconv"

	"github.com/signalnine/autoback/internal/diag"
	"github.com/signalnine/autoback/internal/protocol"
)

// Stage identifies a step of a send attempt
type Stage int

const (
	StageInit Stage = iota
	StageSocketOpen
	StageResolve
	StageConnect
	StageSend
	StageShutdownSend
	StageDone
)

var stageNames = [...]string{"INIT", "SOCKET_OPEN", "RESOLVE", "CONNECT", "SEND", "SHUTDOWN_SEND", "DONE"}

func (s Stage) String() string {
	if s < 0 || int(s) >= len(stageNames) {
		return "Stage(" + strconv.Itoa(int(s)) + ")"
	}
	return stageNames[s]
}

var (
	ErrNetworkInitFailed  = errors.New("network init failed")
	ErrSocketCreateFailed = errors.New("socket create failed")
	ErrResolutionFailed   = errors.New("resolution failed")
	ErrConnectFailed      = errors.New("connect failed")
	ErrSendFailed         = errors.New("send failed")
	ErrShutdownFailed     = errors.New("shutdown failed")
)

var stageErrs = map[Stage]error{
	StageInit:         ErrNetworkInitFailed,
	StageSocketOpen:   ErrSocketCreateFailed,
	StageResolve:      ErrResolutionFailed,
	StageConnect:      ErrConnectFailed,
	StageSend:         ErrSendFailed,
	StageShutdownSend: ErrShutdownFailed,
}

// StageError reports which stage ended an attempt. It matches both the
// stage's sentinel and the underlying cause with errors.Is.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%v at %s: %v", stageErrs[e.Stage], e.Stage, e.Err)
}

func (e *StageError) Unwrap() []error {
	return []error{stageErrs[e.Stage], e.Err}
}

func fail(stage Stage, err error) error {
	return &StageError{Stage: stage, Err: err}
}

// FailedStage returns the stage that produced err, if it came from Send
func FailedStage(err error) (Stage, bool) {
	var se *StageError
	if errors.As(err, &se) {
		return se.Stage, true
	}
	return 0, false
}

// Endpoint is the configured coordinator address. Host is resolved on every
// attempt.
type Endpoint struct {
	Host string
	Port uint16
}

func (e Endpoint) String() string {
	return fmt.Sprintf("%s:%d", e.Host, e.Port)
}

// Ack describes a completed attempt. It is local only: the coordinator never
// answers.
type Ack struct {
	Addr      netip.AddrPort
	BytesSent int
}

// Reporter sends wire lines through a Transport
type Reporter struct {
	transport Transport
	encoding  protocol.Encoding
}

// New creates a reporter that encodes wire lines with enc
func New(t Transport, enc protocol.Encoding) *Reporter {
	return &Reporter{transport: t, encoding: enc}
}

// Send delivers wireLine to ep and half-closes the connection
func (r *Reporter) Send(ctx context.Context, ep Endpoint, wireLine string) (*Ack, error) {
	payload, err := r.encoding.Encode(wireLine)
	if err != nil {
		return nil, fail(StageInit, fmt.Errorf("encode wire line: %w", err))
	}

	release, err := r.transport.Init()
	if err != nil {
		return nil, fail(StageInit, err)
	}
	defer release()

	sock, err := r.transport.Socket()
	if err != nil {
		return nil, fail(StageSocketOpen, err)
	}
	defer sock.Close()

	ip, err := r.transport.Resolve(ctx, ep.Host)
	if err != nil {
		return nil, fail(StageResolve, err)
	}
	addr := netip.AddrPortFrom(ip, ep.Port)
	diag.Debugf("Resolved %s to %s", ep.Host, ip)

	conn, err := sock.Connect(ctx, addr)
	if err != nil {
		return nil, fail(StageConnect, err)
	}
	defer conn.Close()
	diag.Debugf("Connected to %s", addr)

	n, err := writeAll(conn, payload)
	if err != nil {
		return nil, fail(StageSend, err)
	}

	if err := conn.CloseWrite(); err != nil {
		return nil, fail(StageShutdownSend, err)
	}
	diag.Debugf("Sent %d bytes to %s", n, addr)

	return &Ack{Addr: addr, BytesSent: n}, nil
}

// writeAll keeps writing until every byte is flushed. An empty payload
// issues no write at all.
func writeAll(w io.Writer, b []byte) (int, error) {
	total := 0
	for total < len(b) {
		n, err := w.Write(b[total:])
		total += n
		if err != nil {
			return total, fmt.Errorf("sent %d of %d bytes: %w", total, len(b), err)
		}
		if n == 0 {
			return total, fmt.Errorf("sent %d of %d bytes: %w", total, len(b), io.ErrShortWrite)
		}
	}
	return total, nil
}

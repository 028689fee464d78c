package coordinator

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"os"
	"time"

	"github.com/signalnine/autoback/internal/diag"
	"github.com/signalnine/autoback/internal/protocol"
)

// ErrMalformed means a message did not have the host:result shape
var ErrMalformed = errors.New("malformed message")

// Store persists accepted reports
type Store interface {
	InsertReport(r *protocol.StoredReport) error
}

// ConnHandler reads one wire line per connection and stores it
type ConnHandler struct {
	store    Store
	encoding protocol.Encoding
	marker   string
	eof      []byte // marker in the wire encoding
	timeout  time.Duration
	maxBytes int
}

// NewConnHandler creates a handler. timeout bounds each read; maxBytes caps
// how much is read from one connection.
func NewConnHandler(store Store, enc protocol.Encoding, marker string, timeout time.Duration, maxBytes int) (*ConnHandler, error) {
	if marker == "" {
		marker = protocol.DefaultEOFMarker
	}
	eof, err := enc.Encode(marker)
	if err != nil {
		return nil, fmt.Errorf("encode EOF marker: %w", err)
	}
	return &ConnHandler{
		store:    store,
		encoding: enc,
		marker:   marker,
		eof:      eof,
		timeout:  timeout,
		maxBytes: maxBytes,
	}, nil
}

// Handle consumes conn and returns the stored report. The connection is
// always closed.
func (h *ConnHandler) Handle(conn net.Conn) (*protocol.StoredReport, error) {
	defer conn.Close()
	remote := conn.RemoteAddr().String()
	diag.Debugf("Received connection from %s", remote)

	data, err := h.receive(conn)
	if err != nil && len(data) == 0 {
		return nil, fmt.Errorf("receive from %s: %w", remote, err)
	}

	msg, err := h.encoding.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("%w from %s: %w", ErrMalformed, remote, err)
	}
	diag.Debugf("Received %q from %s", msg, remote)

	host, outcome, err := protocol.ParseWireLine(msg, h.marker)
	if err != nil {
		log.Printf("WARNING: Ignored malformed data from %s: %v", remote, err)
		return nil, fmt.Errorf("%w: %w", ErrMalformed, err)
	}

	report := &protocol.StoredReport{
		Hostname:   host,
		Outcome:    outcome,
		RemoteAddr: remote,
		ReceivedAt: time.Now(),
	}
	if err := h.store.InsertReport(report); err != nil {
		log.Printf("DB error: %v", err)
		return nil, err
	}

	log.Printf("Handled %s for %s", outcome, host)
	return report, nil
}

// receive reads until the EOF marker, the peer's half-close, or maxBytes.
// Data read before a timeout is still returned.
func (h *ConnHandler) receive(conn net.Conn) ([]byte, error) {
	var buf []byte
	chunk := make([]byte, 1024)

	for h.maxBytes <= 0 || len(buf) < h.maxBytes {
		if h.timeout > 0 {
			conn.SetReadDeadline(time.Now().Add(h.timeout))
		}
		want := chunk
		if h.maxBytes > 0 && h.maxBytes-len(buf) < len(want) {
			want = chunk[:h.maxBytes-len(buf)]
		}

		n, err := conn.Read(want)
		buf = append(buf, want[:n]...)
		if i := bytes.Index(buf, h.eof); i >= 0 {
			diag.Debugf("Got EOF marker, closing connection")
			return buf[:i+len(h.eof)], nil
		}
		if errors.Is(err, io.EOF) {
			return buf, nil
		}
		if err != nil {
			if errors.Is(err, os.ErrDeadlineExceeded) {
				return buf, fmt.Errorf("receive timeout after %s: %w", h.timeout, err)
			}
			return buf, err
		}
	}
	return buf, nil
}

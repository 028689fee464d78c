package coordinator

import (
	"errors"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/signalnine/autoback/internal/protocol"
)

type memStore struct {
	mu      sync.Mutex
	reports []protocol.StoredReport
	err     error
}

func (m *memStore) InsertReport(r *protocol.StoredReport) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.reports = append(m.reports, *r)
	return nil
}

// dial returns the server side of an in-memory connection after starting a
// client that writes payload and, if closeAfter, closes its end.
func dial(t *testing.T, payload []byte, closeAfter bool) net.Conn {
	t.Helper()
	server, client := net.Pipe()
	t.Cleanup(func() { client.Close() })
	go func() {
		client.Write(payload)
		if closeAfter {
			client.Close()
		}
	}()
	return server
}

func newHandler(t *testing.T, store Store, enc protocol.Encoding, timeout time.Duration, maxBytes int) *ConnHandler {
	t.Helper()
	h, err := NewConnHandler(store, enc, protocol.DefaultEOFMarker, timeout, maxBytes)
	require.NoError(t, err)
	return h
}

func TestHandleStopsAtMarker(t *testing.T) {
	store := &memStore{}
	h := newHandler(t, store, protocol.UTF8, 5*time.Second, 1024)

	// Client never closes; the marker alone ends the message
	report, err := h.Handle(dial(t, []byte("HOST7:SUCCESS<EOF>"), false))
	require.NoError(t, err)
	assert.Equal(t, "HOST7", report.Hostname)
	assert.Equal(t, protocol.Success, report.Outcome)
	require.Len(t, store.reports, 1)
	assert.Equal(t, "HOST7", store.reports[0].Hostname)
}

func TestHandleHalfCloseWithoutMarker(t *testing.T) {
	store := &memStore{}
	h := newHandler(t, store, protocol.UTF8, 5*time.Second, 1024)

	report, err := h.Handle(dial(t, []byte("HOST7:FAILURE"), true))
	require.NoError(t, err)
	assert.Equal(t, protocol.Failure, report.Outcome)
}

func TestHandleMalformed(t *testing.T) {
	store := &memStore{}
	h := newHandler(t, store, protocol.UTF8, 5*time.Second, 1024)

	for _, payload := range []string{"no delimiter<EOF>", "a:b:c<EOF>"} {
		_, err := h.Handle(dial(t, []byte(payload), true))
		assert.ErrorIs(t, err, ErrMalformed, "payload %q", payload)
	}
	assert.Empty(t, store.reports)
}

func TestHandleTimeoutWithoutData(t *testing.T) {
	store := &memStore{}
	h := newHandler(t, store, protocol.UTF8, 50*time.Millisecond, 1024)

	_, err := h.Handle(dial(t, nil, false))
	require.Error(t, err)
	assert.Empty(t, store.reports)
}

func TestHandleMaxBytes(t *testing.T) {
	store := &memStore{}
	h := newHandler(t, store, protocol.UTF8, 5*time.Second, 8)

	// Only "HOST7:SU" is read; it still contains a delimiter but no "success"
	report, err := h.Handle(dial(t, []byte("HOST7:SUCCESS<EOF>"), false))
	require.NoError(t, err)
	assert.Equal(t, protocol.Failure, report.Outcome)
}

func TestHandleUTF16(t *testing.T) {
	store := &memStore{}
	h := newHandler(t, store, protocol.UTF16LE, 5*time.Second, 1024)

	payload, err := protocol.UTF16LE.Encode("HOST7:SUCCESS<EOF>")
	require.NoError(t, err)

	report, err := h.Handle(dial(t, payload, false))
	require.NoError(t, err)
	assert.Equal(t, "HOST7", report.Hostname)
	assert.Equal(t, protocol.Success, report.Outcome)
}

func TestHandleStoreError(t *testing.T) {
	dbErr := errors.New("disk I/O error")
	h := newHandler(t, &memStore{err: dbErr}, protocol.UTF8, 5*time.Second, 1024)

	_, err := h.Handle(dial(t, []byte("HOST7:SUCCESS<EOF>"), true))
	assert.ErrorIs(t, err, dbErr)
}

package recorder

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/signalnine/autoback/internal/protocol"
)

func newRecord(t *testing.T, minute int, host string, outcome protocol.Outcome) protocol.StatusRecord {
	t.Helper()
	rec, err := protocol.NewStatusRecord(time.Date(2024, 3, 14, 9, minute, 0, 0, time.UTC), host, outcome)
	require.NoError(t, err)
	return rec
}

func TestAppendNLinesInOrder(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "ImageCreation.log")

	var want []protocol.StatusRecord
	for i := 0; i < 5; i++ {
		outcome := protocol.Success
		if i%2 == 1 {
			outcome = protocol.Failure
		}
		rec := newRecord(t, i, "HOST"+string(rune('A'+i)), outcome)
		n, err := Append(logPath, rec, protocol.UTF8)
		require.NoError(t, err)
		assert.Equal(t, len(rec.LogLine()), n)
		want = append(want, rec)
	}

	data, err := os.ReadFile(logPath)
	require.NoError(t, err)

	lines := strings.SplitAfter(string(data), "\r\n")
	// SplitAfter leaves a trailing empty element after the final CRLF
	require.Len(t, lines, len(want)+1)
	assert.Empty(t, lines[len(want)])

	for i, line := range lines[:len(want)] {
		got, err := protocol.ParseLogLine(line, time.UTC)
		require.NoError(t, err, "line %d: %q", i, line)
		assert.Equal(t, want[i].Hostname(), got.Hostname())
		assert.Equal(t, want[i].Outcome(), got.Outcome())
		assert.True(t, want[i].Timestamp().Equal(got.Timestamp()))
	}
}

func TestAppendPreservesExistingContent(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "ImageCreation.log")
	require.NoError(t, os.WriteFile(logPath, []byte("existing line\r\n"), 0644))

	rec := newRecord(t, 5, "HOST7", protocol.Success)
	_, err := Append(logPath, rec, protocol.UTF8)
	require.NoError(t, err)

	data, err := os.ReadFile(logPath)
	require.NoError(t, err)
	assert.Equal(t, "existing line\r\n03-14-2024, 09-05: Hostname: HOST7, Result: Success\r\n", string(data))
}

func TestAppendUnreachablePath(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "no-such-share", "ImageCreation.log")

	n, err := Append(logPath, newRecord(t, 5, "HOST7", protocol.Success), protocol.UTF8)
	require.Error(t, err)
	assert.Zero(t, n)
	assert.ErrorIs(t, err, ErrLogUnavailable)
	assert.True(t, IsUnavailable(err))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestAppendUTF16(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "ImageCreation.log")
	rec := newRecord(t, 5, "HOST7", protocol.Success)

	n, err := Append(logPath, rec, protocol.UTF16LE)
	require.NoError(t, err)
	assert.Equal(t, 2*len(rec.LogLine()), n)

	data, err := os.ReadFile(logPath)
	require.NoError(t, err)
	line, err := protocol.UTF16LE.Decode(data)
	require.NoError(t, err)
	assert.Equal(t, rec.LogLine(), line)
}

type shortWriter struct {
	limit int
	err   error
}

func (w shortWriter) Write(p []byte) (int, error) {
	if len(p) > w.limit {
		return w.limit, w.err
	}
	return len(p), nil
}

func TestWriteLineIncomplete(t *testing.T) {
	n, err := writeLine(shortWriter{limit: 3}, []byte("0123456789"))
	assert.Equal(t, 3, n)
	assert.ErrorIs(t, err, ErrWriteIncomplete)

	diskFull := errors.New("no space left on device")
	_, err = writeLine(shortWriter{limit: 4, err: diskFull}, []byte("0123456789"))
	assert.ErrorIs(t, err, ErrWriteIncomplete)
	assert.ErrorIs(t, err, diskFull)

	n, err = writeLine(shortWriter{limit: 100}, []byte("0123456789"))
	assert.NoError(t, err)
	assert.Equal(t, 10, n)
}

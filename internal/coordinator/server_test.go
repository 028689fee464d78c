package coordinator

import (
	"context"
	"net"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/signalnine/autoback/internal/config"
	"github.com/signalnine/autoback/internal/protocol"
	"github.com/signalnine/autoback/internal/reporter"
)

func TestServerReceivesReports(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "reports.db")
	cfg := &config.CoordinatorConfig{
		ListenAddr:      "127.0.0.1:0",
		DBPath:          dbPath,
		EOFMarker:       protocol.DefaultEOFMarker,
		ReceiveTimeout:  5 * time.Second,
		MaxMessageBytes: 1024,
	}

	srv, err := NewServer(cfg)
	require.NoError(t, err)

	addr, err := srv.Listen()
	require.NoError(t, err)
	port := uint16(addr.(*net.TCPAddr).Port)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx) }()

	r := reporter.New(&reporter.NetTransport{ConnectTimeout: 5 * time.Second}, protocol.UTF8)
	ep := reporter.Endpoint{Host: "127.0.0.1", Port: port}
	for _, line := range []string{"HOST1:SUCCESS<EOF>", "HOST2:FAILURE<EOF>", "HOST3:SUCCESS<EOF>"} {
		_, err := r.Send(context.Background(), ep, line)
		require.NoError(t, err)
	}

	require.Eventually(t, func() bool {
		counts, err := srv.DB().OutcomeCounts()
		return err == nil && counts["SUCCESS"] == 2 && counts["FAILURE"] == 1
	}, 5*time.Second, 20*time.Millisecond)

	failures, err := srv.DB().QueryFailures(10)
	require.NoError(t, err)
	require.Len(t, failures, 1)
	assert.Equal(t, "HOST2", failures[0].Hostname)
	assert.Contains(t, failures[0].RemoteAddr, "127.0.0.1:")

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}

func TestServeRequiresListen(t *testing.T) {
	srv, err := NewServer(&config.CoordinatorConfig{
		ListenAddr: "127.0.0.1:0",
		DBPath:     filepath.Join(t.TempDir(), "reports.db"),
	})
	require.NoError(t, err)
	assert.Error(t, srv.Serve(context.Background()))
	srv.DB().Close()
}

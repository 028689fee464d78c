package agent

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/signalnine/autoback/internal/config"
	"github.com/signalnine/autoback/internal/diag"
	"github.com/signalnine/autoback/internal/protocol"
	"github.com/signalnine/autoback/internal/recorder"
	"github.com/signalnine/autoback/internal/reporter"
)

// Agent records a job outcome to the shared log and notifies the coordinator
type Agent struct {
	cfg      *config.AgentConfig
	encoding protocol.Encoding
	reporter *reporter.Reporter
	now      func() time.Time
}

// Result is what one run produced. RecordErr and ReportErr are independent:
// a failed append still attempts the notification and vice versa.
type Result struct {
	Record       protocol.StatusRecord
	BytesWritten int
	Ack          *reporter.Ack
	RecordErr    error
	ReportErr    error
}

// New creates an agent using the real TCP transport
func New(cfg *config.AgentConfig) (*Agent, error) {
	return NewWithTransport(cfg, &reporter.NetTransport{
		SourceAddr:     cfg.SourceAddr,
		ResolverAddr:   cfg.Resolver,
		ConnectTimeout: cfg.ConnectTimeout,
	})
}

// NewWithTransport creates an agent that reports through t
func NewWithTransport(cfg *config.AgentConfig, t reporter.Transport) (*Agent, error) {
	enc, err := protocol.ParseEncoding(cfg.Encoding)
	if err != nil {
		return nil, err
	}
	return &Agent{
		cfg:      cfg,
		encoding: enc,
		reporter: reporter.New(t, enc),
		now:      time.Now,
	}, nil
}

// Run executes one report. The returned error is non-nil only when the
// outcome could not be recorded locally; notification failures are logged
// and left in Result.ReportErr.
func (a *Agent) Run(ctx context.Context, outcome protocol.Outcome) (*Result, error) {
	hostname, err := ResolveHostname(a.cfg.Hostname)
	if err != nil {
		return nil, err
	}

	rec, err := protocol.NewStatusRecord(a.now().In(a.cfg.Location()), hostname, outcome)
	if err != nil {
		return nil, err
	}
	res := &Result{Record: rec}

	log.Printf("Writing %q to %s", rec.LogLine(), a.cfg.LogPath)
	res.BytesWritten, res.RecordErr = recorder.Append(a.cfg.LogPath, rec, a.encoding)
	if res.RecordErr != nil {
		log.Printf("Recording error: %s", diag.Describe(res.RecordErr))
	} else {
		log.Printf("Wrote %d bytes to %s", res.BytesWritten, a.cfg.LogPath)
	}

	ep := reporter.Endpoint{Host: a.cfg.CoordinatorHost, Port: uint16(a.cfg.CoordinatorPort)}
	res.Ack, res.ReportErr = a.reporter.Send(ctx, ep, rec.WireLine(a.cfg.EOFMarker))
	if res.ReportErr != nil {
		log.Printf("Coordinator notification error (%s): %s", ep, diag.Describe(res.ReportErr))
	} else {
		log.Printf("Notified coordinator %s (%s): %s", ep, res.Ack.Addr, outcome)
	}

	if res.RecordErr != nil {
		return res, fmt.Errorf("record outcome: %w", res.RecordErr)
	}
	return res, nil
}

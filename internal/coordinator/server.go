package coordinator

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"sync"
	"time"

	"github.com/signalnine/autoback/internal/config"
	"github.com/signalnine/autoback/internal/protocol"
)

// Server is the coordinator's result listener
type Server struct {
	cfg     *config.CoordinatorConfig
	db      *DB
	handler *ConnHandler

	mu sync.Mutex
	ln net.Listener
	wg sync.WaitGroup
}

// NewServer creates a new coordinator server
func NewServer(cfg *config.CoordinatorConfig) (*Server, error) {
	enc, err := protocol.ParseEncoding(cfg.Encoding)
	if err != nil {
		return nil, err
	}

	db, err := NewDB(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	handler, err := NewConnHandler(db, enc, cfg.EOFMarker, cfg.ReceiveTimeout, cfg.MaxMessageBytes)
	if err != nil {
		db.Close()
		return nil, err
	}

	return &Server{
		cfg:     cfg,
		db:      db,
		handler: handler,
	}, nil
}

// Listen binds the configured address and returns the bound address
func (s *Server) Listen() (net.Addr, error) {
	ln, err := net.Listen("tcp", s.cfg.ListenAddr)
	if err != nil {
		return nil, fmt.Errorf("listen: %w", err)
	}
	s.mu.Lock()
	s.ln = ln
	s.mu.Unlock()
	return ln.Addr(), nil
}

// Run listens and serves until ctx is cancelled
func (s *Server) Run(ctx context.Context) error {
	if _, err := s.Listen(); err != nil {
		s.db.Close()
		return err
	}
	return s.Serve(ctx)
}

// Serve accepts connections on the listener from Listen until ctx is
// cancelled. Each connection is handled on its own goroutine. The database
// is closed once all in-flight connections finish.
func (s *Server) Serve(ctx context.Context) error {
	s.mu.Lock()
	ln := s.ln
	s.mu.Unlock()
	if ln == nil {
		return errors.New("serve called before listen")
	}
	defer s.db.Close()

	log.Printf("Coordinator listening on %s", ln.Addr())

	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			log.Println("Coordinator shutting down...")
		case <-stop:
		}
		ln.Close()
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				break
			}
			log.Printf("WARNING: Accept error: %v", err)
			time.Sleep(100 * time.Millisecond)
			continue
		}

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			if _, err := s.handler.Handle(conn); err != nil {
				log.Printf("Connection error: %v", err)
			}
		}()
	}

	s.wg.Wait()
	return nil
}

// DB returns the report store
func (s *Server) DB() *DB {
	return s.db
}

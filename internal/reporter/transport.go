package reporter

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/netip"
	"time"
)

// Transport is the network capability the reporter needs. Stages map one to
// one onto its methods so each failure point can be exercised with a fake.
type Transport interface {
	// Init brings up the network context. release must be called once the
	// attempt is over.
	Init() (release func(), err error)
	// Socket creates an unconnected stream socket
	Socket() (Socket, error)
	// Resolve returns the first IPv4 address for host
	Resolve(ctx context.Context, host string) (netip.Addr, error)
}

// Socket is an unconnected TCP socket
type Socket interface {
	Connect(ctx context.Context, addr netip.AddrPort) (Conn, error)
	Close() error
}

// Conn is a connected stream that supports half-close
type Conn interface {
	io.Writer
	CloseWrite() error
	Close() error
}

// NetTransport is the real TCP transport
type NetTransport struct {
	SourceAddr     string        // optional local IPv4 to bind
	ResolverAddr   string        // optional DNS server host:port
	ConnectTimeout time.Duration // 0 leaves it to the OS

	resolver *net.Resolver
	local    *net.TCPAddr
	ready    bool
}

var errNotInitialized = errors.New("network not initialized")

// Init validates the configured local address and resolver and prepares
// them for the attempt.
func (t *NetTransport) Init() (func(), error) {
	t.local = nil
	if t.SourceAddr != "" {
		ip, err := netip.ParseAddr(t.SourceAddr)
		if err != nil {
			return nil, fmt.Errorf("source address: %w", err)
		}
		if !ip.Unmap().Is4() {
			return nil, fmt.Errorf("source address %s is not IPv4", ip)
		}
		t.local = net.TCPAddrFromAddrPort(netip.AddrPortFrom(ip.Unmap(), 0))
	}

	t.resolver = net.DefaultResolver
	if t.ResolverAddr != "" {
		if _, _, err := net.SplitHostPort(t.ResolverAddr); err != nil {
			return nil, fmt.Errorf("resolver address: %w", err)
		}
		server := t.ResolverAddr
		t.resolver = &net.Resolver{
			PreferGo: true,
			Dial: func(ctx context.Context, network, _ string) (net.Conn, error) {
				var d net.Dialer
				return d.DialContext(ctx, network, server)
			},
		}
	}

	t.ready = true
	return func() {
		t.ready = false
		t.resolver = nil
		t.local = nil
	}, nil
}

// Socket returns a dialer bound to the configured source address
func (t *NetTransport) Socket() (Socket, error) {
	if !t.ready {
		return nil, errNotInitialized
	}
	return &netSocket{dialer: net.Dialer{
		LocalAddr: t.local,
		Timeout:   t.ConnectTimeout,
	}}, nil
}

// Resolve returns host itself when it is an IPv4 literal, otherwise the
// first IPv4 address the resolver returns.
func (t *NetTransport) Resolve(ctx context.Context, host string) (netip.Addr, error) {
	if !t.ready {
		return netip.Addr{}, errNotInitialized
	}
	if ip, err := netip.ParseAddr(host); err == nil {
		if ip.Unmap().Is4() {
			return ip.Unmap(), nil
		}
		return netip.Addr{}, fmt.Errorf("%s is not an IPv4 address", host)
	}

	addrs, err := t.resolver.LookupNetIP(ctx, "ip4", host)
	if err != nil {
		return netip.Addr{}, err
	}
	if len(addrs) == 0 {
		return netip.Addr{}, fmt.Errorf("no IPv4 address for %s", host)
	}
	return addrs[0].Unmap(), nil
}

type netSocket struct {
	dialer net.Dialer
	closed bool
}

func (s *netSocket) Connect(ctx context.Context, addr netip.AddrPort) (Conn, error) {
	if s.closed {
		return nil, net.ErrClosed
	}
	c, err := s.dialer.DialContext(ctx, "tcp4", addr.String())
	if err != nil {
		return nil, err
	}
	return c.(*net.TCPConn), nil
}

func (s *netSocket) Close() error {
	s.closed = true
	return nil
}

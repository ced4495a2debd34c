// Package connectivity answers whether the remote store is reachable.
package connectivity

import (
	"net"
	"sync"
	"sync/atomic"
	"time"
)

// Probe reports network availability. It must not block for long.
type Probe interface {
	IsOnline() bool
}

// Static always reports the same state.
type Static bool

// IsOnline implements Probe.
func (s Static) IsOnline() bool { return bool(s) }

// Switch is a toggleable probe for callers that track connectivity themselves.
type Switch struct {
	online atomic.Bool
}

// NewSwitch returns a Switch in the given state.
func NewSwitch(online bool) *Switch {
	s := &Switch{}
	s.online.Store(online)
	return s
}

// Set changes the reported state.
func (s *Switch) Set(online bool) { s.online.Store(online) }

// IsOnline implements Probe.
func (s *Switch) IsOnline() bool { return s.online.Load() }

// Dialer treats the network as up when a TCP connection to Addr succeeds.
// Results are cached for TTL so hot paths don't dial on every call.
type Dialer struct {
	Addr    string
	Timeout time.Duration
	TTL     time.Duration

	dial func(network, addr string, timeout time.Duration) (net.Conn, error)

	mu      sync.Mutex
	checked time.Time
	online  bool
}

// NewDialer returns a probe for addr (host:port).
func NewDialer(addr string) *Dialer {
	return &Dialer{
		Addr:    addr,
		Timeout: 2 * time.Second,
		TTL:     5 * time.Second,
		dial:    net.DialTimeout,
	}
}

// IsOnline implements Probe.
func (d *Dialer) IsOnline() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.checked.IsZero() && time.Since(d.checked) < d.TTL {
		return d.online
	}
	conn, err := d.dial("tcp", d.Addr, d.Timeout)
	d.online = err == nil
	if conn != nil {
		_ = conn.Close()
	}
	d.checked = time.Now()
	return d.online
}

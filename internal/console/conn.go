// Package console owns the UDP connection to the X32: sending OSC
// messages, the continuous receive loop with address dispatch, meter
// publication, and the /xremote keep-alive.
package console

import (
	"errors"
	"fmt"
	"net"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/wjensen/x32-scene-monitor/internal/osc"
)

const (
	// DefaultPort is the X32's OSC port.
	DefaultPort = 10023

	// remoteInterval is the /xremote refresh period. The console forgets a
	// remote listener after about 10 seconds, so the resend must stay under
	// that.
	remoteInterval = 8 * time.Second

	readTimeout  = 500 * time.Millisecond
	writeTimeout = time.Second
	recvBufSize  = 4096
)

// ErrNotConnected is returned by operations attempted while disconnected.
var ErrNotConnected = errors.New("console: not connected")

// ConnectionError wraps an OS-level socket failure. Reconnection is the
// caller's decision; the transport never retries on its own.
type ConnectionError struct {
	Op  string
	Err error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("console: %s: %v", e.Op, e.Err)
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}

// Handler receives messages dispatched by address.
type Handler func(*osc.Message)

// State is a snapshot of the connection for status reporting.
type State struct {
	Host      string `json:"host"`
	Port      int    `json:"port"`
	Connected bool   `json:"connected"`
	LastError string `json:"lastError,omitempty"`
}

// Stats counts transport-level events since Connect.
type Stats struct {
	Received     uint64 `json:"received"`
	Dropped      uint64 `json:"dropped"`
	DecodeErrors uint64 `json:"decodeErrors"`
	SendFailures uint64 `json:"sendFailures"`
	MeterFrames  uint64 `json:"meterFrames"`
}

// Conn is the UDP transport to one console. The socket binds an ephemeral
// local port; all state transitions go through Connect and Disconnect.
type Conn struct {
	host string
	port int

	mu        sync.RWMutex
	udp       *net.UDPConn
	connected bool
	lastErr   error
	done      chan struct{}
	loopDone  chan struct{}

	hmu      sync.RWMutex
	handlers map[string][]Handler

	received     atomic.Uint64
	dropped      atomic.Uint64
	decodeErrors atomic.Uint64
	sendFailures atomic.Uint64
	meterFrames  atomic.Uint64

	meterMu   sync.RWMutex
	lastMeter *osc.MeterFrame
	meterSubs []chan *osc.MeterFrame

	remoteMu     sync.Mutex
	remoteStop   chan struct{}
	remotePeriod time.Duration
}

// New returns an unconnected transport targeting host:port. A port of 0
// uses DefaultPort.
func New(host string, port int) *Conn {
	if port == 0 {
		port = DefaultPort
	}
	return &Conn{
		host:         host,
		port:         port,
		handlers:     make(map[string][]Handler),
		remotePeriod: remoteInterval,
	}
}

// Connect opens the UDP socket and starts the receive loop. Connecting an
// already-connected transport is an error.
func (c *Conn) Connect() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.connected {
		return fmt.Errorf("console: already connected to %s:%d", c.host, c.port)
	}

	addr, err := net.ResolveUDPAddr("udp", fmt.Sprintf("%s:%d", c.host, c.port))
	if err != nil {
		c.lastErr = err
		return &ConnectionError{Op: "resolve", Err: err}
	}
	udp, err := net.DialUDP("udp", nil, addr)
	if err != nil {
		c.lastErr = err
		return &ConnectionError{Op: "dial", Err: err}
	}

	c.udp = udp
	c.connected = true
	c.lastErr = nil
	c.done = make(chan struct{})
	c.loopDone = make(chan struct{})

	go c.receiveLoop(udp, c.done, c.loopDone)

	log.Info().Str("console", addr.String()).Str("local", udp.LocalAddr().String()).Msg("Console transport connected")
	return nil
}

// Disconnect stops the keep-alive and receive loop and closes the socket.
// In-flight sends finish or fail; new sends are rejected.
func (c *Conn) Disconnect() error {
	c.stopRemoteTimer()

	c.mu.Lock()
	if !c.connected {
		c.mu.Unlock()
		return nil
	}
	c.connected = false
	close(c.done)
	udp := c.udp
	loopDone := c.loopDone
	c.udp = nil
	c.mu.Unlock()

	err := udp.Close()
	<-loopDone
	log.Info().Msg("Console transport disconnected")
	return err
}

// LocalAddr returns the bound local address, or nil when disconnected.
func (c *Conn) LocalAddr() net.Addr {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.udp == nil {
		return nil
	}
	return c.udp.LocalAddr()
}

// Connected reports whether the transport is in the Connected state.
func (c *Conn) Connected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connected
}

// State returns the connection snapshot for status surfaces.
func (c *Conn) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s := State{Host: c.host, Port: c.port, Connected: c.connected}
	if c.lastErr != nil {
		s.LastError = c.lastErr.Error()
	}
	return s
}

// Stats returns transport counters.
func (c *Conn) Stats() Stats {
	return Stats{
		Received:     c.received.Load(),
		Dropped:      c.dropped.Load(),
		DecodeErrors: c.decodeErrors.Load(),
		SendFailures: c.sendFailures.Load(),
		MeterFrames:  c.meterFrames.Load(),
	}
}

// Send serializes and writes one datagram. It fails fast with
// ErrNotConnected when disconnected; an OS send failure increments the
// failure counter and comes back as a ConnectionError instead of
// propagating up the pipeline.
func (c *Conn) Send(m *osc.Message) error {
	c.mu.RLock()
	udp := c.udp
	connected := c.connected
	c.mu.RUnlock()

	if !connected || udp == nil {
		return ErrNotConnected
	}

	data, err := osc.Encode(m)
	if err != nil {
		return err
	}

	if err := udp.SetWriteDeadline(time.Now().Add(writeTimeout)); err == nil {
		_, err = udp.Write(data)
	}
	if err != nil {
		c.sendFailures.Add(1)
		c.mu.Lock()
		c.lastErr = err
		c.mu.Unlock()
		return &ConnectionError{Op: "send " + m.Address, Err: err}
	}
	return nil
}

// Handle registers a handler for an exact address. Multiple handlers per
// address are allowed; registration is valid in any state.
func (c *Conn) Handle(addr string, h Handler) {
	c.hmu.Lock()
	defer c.hmu.Unlock()
	c.handlers[addr] = append(c.handlers[addr], h)
}

// receiveLoop reads datagrams until the socket closes or Disconnect fires.
// Decode failures and unmatched addresses are counted, never fatal.
func (c *Conn) receiveLoop(udp *net.UDPConn, done, loopDone chan struct{}) {
	defer close(loopDone)
	buf := make([]byte, recvBufSize)
	for {
		select {
		case <-done:
			return
		default:
		}

		if err := udp.SetReadDeadline(time.Now().Add(readTimeout)); err != nil {
			return
		}
		n, err := udp.Read(buf)
		if err != nil {
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				continue
			}
			if errors.Is(err, net.ErrClosed) {
				return
			}
			c.mu.Lock()
			c.lastErr = err
			c.mu.Unlock()
			log.Warn().Err(err).Msg("Console receive error")
			continue
		}

		data := make([]byte, n)
		copy(data, buf[:n])
		c.dispatch(data)
	}
}

func (c *Conn) dispatch(data []byte) {
	m, err := osc.Decode(data)
	if err != nil {
		c.decodeErrors.Add(1)
		log.Debug().Err(err).Int("bytes", len(data)).Msg("Dropping undecodable datagram")
		return
	}
	c.received.Add(1)

	if isMeterAddress(m.Address) {
		c.handleMeter(m)
		return
	}

	c.hmu.RLock()
	hs := c.handlers[m.Address]
	c.hmu.RUnlock()

	if len(hs) == 0 {
		c.dropped.Add(1)
		return
	}
	for _, h := range hs {
		h(m)
	}
}

func isMeterAddress(addr string) bool {
	return addr == "/meters" || strings.HasPrefix(addr, "/meters/")
}

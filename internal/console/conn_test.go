package console

import (
	"encoding/binary"
	"errors"
	"math"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/wjensen/x32-scene-monitor/internal/osc"
)

// fakeConsole is a loopback UDP endpoint standing in for the X32.
type fakeConsole struct {
	pc net.PacketConn

	mu       sync.Mutex
	msgs     []*osc.Message
	lastAddr net.Addr
}

func newFakeConsole(t *testing.T) *fakeConsole {
	t.Helper()
	pc, err := net.ListenPacket("udp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	f := &fakeConsole{pc: pc}
	go func() {
		buf := make([]byte, 4096)
		for {
			n, addr, err := pc.ReadFrom(buf)
			if err != nil {
				return
			}
			m, err := osc.Decode(buf[:n])
			if err != nil {
				continue
			}
			f.mu.Lock()
			f.msgs = append(f.msgs, m)
			f.lastAddr = addr
			f.mu.Unlock()
		}
	}()
	t.Cleanup(func() { pc.Close() })
	return f
}

func (f *fakeConsole) port() int {
	return f.pc.LocalAddr().(*net.UDPAddr).Port
}

func (f *fakeConsole) messages() []*osc.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*osc.Message, len(f.msgs))
	copy(out, f.msgs)
	return out
}

// sendTo writes a message to the transport's local socket.
func (f *fakeConsole) sendTo(t *testing.T, addr net.Addr, m *osc.Message) {
	t.Helper()
	data, err := osc.Encode(m)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if _, err := f.pc.WriteTo(data, addr); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func connectedConn(t *testing.T, f *fakeConsole) *Conn {
	t.Helper()
	c := New("127.0.0.1", f.port())
	if err := c.Connect(); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	t.Cleanup(func() { c.Disconnect() })
	return c
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestSendReachesConsole(t *testing.T) {
	f := newFakeConsole(t)
	c := connectedConn(t, f)

	if err := c.Send(osc.NewMessage("/ch/02/mix/fader", float32(0.55))); err != nil {
		t.Fatalf("Send: %v", err)
	}

	waitFor(t, "datagram", func() bool { return len(f.messages()) == 1 })
	got := f.messages()[0]
	if got.Address != "/ch/02/mix/fader" {
		t.Errorf("address = %q", got.Address)
	}
	if v, ok := got.Arguments[0].(float32); !ok || v != 0.55 {
		t.Errorf("argument = %v", got.Arguments[0])
	}
}

func TestSendWhileDisconnectedFailsFast(t *testing.T) {
	c := New("127.0.0.1", DefaultPort)
	err := c.Send(osc.NewMessage("/xremote"))
	if !errors.Is(err, ErrNotConnected) {
		t.Errorf("Send while disconnected = %v, want ErrNotConnected", err)
	}
}

func TestSendAfterDisconnectFailsFast(t *testing.T) {
	f := newFakeConsole(t)
	c := connectedConn(t, f)

	if err := c.Disconnect(); err != nil {
		t.Fatalf("Disconnect: %v", err)
	}
	if err := c.Send(osc.NewMessage("/xremote")); !errors.Is(err, ErrNotConnected) {
		t.Errorf("Send after Disconnect = %v, want ErrNotConnected", err)
	}
	// Disconnect is idempotent.
	if err := c.Disconnect(); err != nil {
		t.Errorf("second Disconnect = %v", err)
	}
}

func TestDispatchByAddress(t *testing.T) {
	f := newFakeConsole(t)
	c := connectedConn(t, f)

	var mu sync.Mutex
	var seen []*osc.Message
	c.Handle("/ch/01/mix/fader", func(m *osc.Message) {
		mu.Lock()
		seen = append(seen, m)
		mu.Unlock()
	})

	f.sendTo(t, c.LocalAddr(), osc.NewMessage("/ch/01/mix/fader", float32(0.75)))
	f.sendTo(t, c.LocalAddr(), osc.NewMessage("/ch/09/mix/on", int32(1))) // no handler

	waitFor(t, "handler call", func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(seen) == 1
	})
	waitFor(t, "dropped counter", func() bool { return c.Stats().Dropped == 1 })
	if got := c.Stats().Received; got != 2 {
		t.Errorf("received = %d, want 2", got)
	}
}

func TestUndecodableDatagramCounted(t *testing.T) {
	f := newFakeConsole(t)
	c := connectedConn(t, f)

	if _, err := f.pc.WriteTo([]byte{0xff, 0x01, 0x02}, c.LocalAddr()); err != nil {
		t.Fatal(err)
	}
	waitFor(t, "decode error counter", func() bool { return c.Stats().DecodeErrors == 1 })
	if !c.Connected() {
		t.Error("transport disconnected by a bad datagram")
	}
}

func meterBlob() []byte {
	blob := make([]byte, osc.MeterValues*4)
	for i := 0; i < osc.MeterValues; i++ {
		binary.BigEndian.PutUint32(blob[i*4:], math.Float32bits(float32(i)))
	}
	return blob
}

func TestMeterPublication(t *testing.T) {
	f := newFakeConsole(t)
	c := connectedConn(t, f)
	sub := c.SubscribeMeters()

	f.sendTo(t, c.LocalAddr(), osc.NewMessage("/meters/1", meterBlob()))

	waitFor(t, "meter frame", func() bool { return c.LatestMeter() != nil })
	frame := c.LatestMeter()
	if frame.Input(1) != 1 || frame.Gate(0) != 32 || frame.Dynamics(0) != 64 {
		t.Errorf("frame banks wrong: in=%v gate=%v dyn=%v", frame.Input(1), frame.Gate(0), frame.Dynamics(0))
	}

	select {
	case got := <-sub:
		if got != frame {
			t.Error("subscriber got a different frame than LatestMeter")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("subscriber never received a frame")
	}
}

func TestMeterOverwriteLatestWins(t *testing.T) {
	f := newFakeConsole(t)
	c := connectedConn(t, f)
	sub := c.SubscribeMeters()

	// Publish several frames without draining the subscriber.
	for i := 0; i < 5; i++ {
		f.sendTo(t, c.LocalAddr(), osc.NewMessage("/meters/1", meterBlob()))
	}
	waitFor(t, "all frames", func() bool { return c.Stats().MeterFrames == 5 })

	// The channel holds at most one (the latest) frame.
	<-sub
	select {
	case <-sub:
		t.Error("subscriber channel queued more than one frame")
	default:
	}
}

func TestRemoteKeepAliveResends(t *testing.T) {
	f := newFakeConsole(t)
	c := connectedConn(t, f)
	c.remotePeriod = 50 * time.Millisecond

	if err := c.StartRemote(); err != nil {
		t.Fatalf("StartRemote: %v", err)
	}

	waitFor(t, "keep-alive resends", func() bool {
		n := 0
		for _, m := range f.messages() {
			if m.Address == "/xremote" && len(m.Arguments) == 0 {
				n++
			}
		}
		return n >= 3
	})

	if err := c.StopRemote(); err != nil {
		t.Fatalf("StopRemote: %v", err)
	}
	waitFor(t, "remote-disable message", func() bool {
		for _, m := range f.messages() {
			if m.Address == "/xremote" && len(m.Arguments) == 1 {
				if s, ok := m.Arguments[0].(string); ok && s == "" {
					return true
				}
			}
		}
		return false
	})
}

func TestRequestMeters(t *testing.T) {
	f := newFakeConsole(t)
	c := connectedConn(t, f)

	if err := c.RequestMeters("meters/1"); err != nil {
		t.Fatalf("RequestMeters: %v", err)
	}
	waitFor(t, "meters request", func() bool {
		msgs := f.messages()
		return len(msgs) == 1 && msgs[0].Address == "/meters" && msgs[0].Arguments[0] == "meters/1"
	})
}

func TestStateSnapshot(t *testing.T) {
	f := newFakeConsole(t)
	c := New("127.0.0.1", f.port())

	if s := c.State(); s.Connected {
		t.Error("new transport reports connected")
	}
	if err := c.Connect(); err != nil {
		t.Fatal(err)
	}
	defer c.Disconnect()
	s := c.State()
	if !s.Connected || s.Host != "127.0.0.1" || s.Port != f.port() {
		t.Errorf("state = %+v", s)
	}
}

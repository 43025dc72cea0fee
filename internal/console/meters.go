package console

import (
	"github.com/rs/zerolog/log"

	"github.com/wjensen/x32-scene-monitor/internal/osc"
)

// RequestMeters asks the console to stream meter replies. kind selects the
// meter bank, e.g. "meters/1" for the input/gate/dynamics set.
func (c *Conn) RequestMeters(kind string) error {
	return c.Send(osc.NewMessage("/meters", kind))
}

// StopMeters ends the meter stream.
func (c *Conn) StopMeters() error {
	return c.Send(osc.NewMessage("/meters", ""))
}

// LatestMeter returns the most recently published meter frame, or nil
// before the first reply arrives.
func (c *Conn) LatestMeter() *osc.MeterFrame {
	c.meterMu.RLock()
	defer c.meterMu.RUnlock()
	return c.lastMeter
}

// SubscribeMeters returns a channel carrying meter frames with
// overwrite semantics: a slow consumer sees the latest frame, never a
// backlog, and publication never blocks the receive loop.
func (c *Conn) SubscribeMeters() <-chan *osc.MeterFrame {
	ch := make(chan *osc.MeterFrame, 1)
	c.meterMu.Lock()
	c.meterSubs = append(c.meterSubs, ch)
	c.meterMu.Unlock()
	return ch
}

// handleMeter decodes a meter reply's blob argument and publishes the
// frame. Replies without a blob are counted as drops.
func (c *Conn) handleMeter(m *osc.Message) {
	var blob []byte
	for _, arg := range m.Arguments {
		if b, ok := arg.([]byte); ok {
			blob = b
			break
		}
	}
	if blob == nil {
		c.dropped.Add(1)
		return
	}

	frame, err := osc.DecodeMeterFrame(blob)
	if err != nil {
		c.decodeErrors.Add(1)
		log.Debug().Err(err).Msg("Dropping malformed meter blob")
		return
	}
	c.meterFrames.Add(1)

	c.meterMu.Lock()
	c.lastMeter = frame
	subs := c.meterSubs
	c.meterMu.Unlock()

	for _, ch := range subs {
		// Latest-wins: displace a pending frame rather than block.
		select {
		case ch <- frame:
		default:
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- frame:
			default:
			}
		}
	}
}

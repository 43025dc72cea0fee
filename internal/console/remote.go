package console

import (
	"time"

	"github.com/rs/zerolog/log"

	"github.com/wjensen/x32-scene-monitor/internal/osc"
)

// StartRemote puts the console in deferred-update mode and keeps it there:
// /xremote is sent immediately and then re-sent every remoteInterval, which
// stays under the console's ~10 second registration expiry. Calling
// StartRemote while the keep-alive is already running is a no-op.
func (c *Conn) StartRemote() error {
	c.remoteMu.Lock()
	if c.remoteStop != nil {
		c.remoteMu.Unlock()
		return nil
	}
	stop := make(chan struct{})
	c.remoteStop = stop
	period := c.remotePeriod
	c.remoteMu.Unlock()

	if err := c.Send(osc.NewMessage("/xremote")); err != nil {
		c.stopRemoteTimer()
		return err
	}

	go func() {
		ticker := time.NewTicker(period)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				if err := c.Send(osc.NewMessage("/xremote")); err != nil {
					log.Warn().Err(err).Msg("Remote keep-alive send failed")
				}
			}
		}
	}()

	log.Info().Dur("interval", period).Msg("Remote mode keep-alive started")
	return nil
}

// StopRemote cancels the keep-alive and tells the console to drop the
// registration by sending /xremote with an empty string argument.
func (c *Conn) StopRemote() error {
	if !c.stopRemoteTimer() {
		return nil
	}
	log.Info().Msg("Remote mode keep-alive stopped")
	return c.Send(osc.NewMessage("/xremote", ""))
}

// stopRemoteTimer cancels the keep-alive goroutine if running.
func (c *Conn) stopRemoteTimer() bool {
	c.remoteMu.Lock()
	defer c.remoteMu.Unlock()
	if c.remoteStop == nil {
		return false
	}
	close(c.remoteStop)
	c.remoteStop = nil
	return true
}

package apply

import (
	"github.com/rs/zerolog/log"

	"github.com/wjensen/x32-scene-monitor/internal/osc"
	"github.com/wjensen/x32-scene-monitor/internal/scene"
)

// Sender transmits one OSC message. Satisfied by *console.Conn.
type Sender interface {
	Send(*osc.Message) error
}

// Failure records one change that could not be sent.
type Failure struct {
	Change scene.Change
	Err    error
}

// Result aggregates the per-change outcomes of one batch. A failed send
// never aborts the rest of the batch.
type Result struct {
	Sent     int
	Failed   int
	Skipped  int
	Failures []Failure
}

// Applier turns parameter changes into console commands.
type Applier struct {
	sender Sender
}

// New returns an applier transmitting through sender.
func New(sender Sender) *Applier {
	return &Applier{sender: sender}
}

// Apply sends one command per change. Changes whose (class, field) pair has
// no protocol mapping are counted as skipped; transport failures are
// collected with their reason. Reapplying an unchanged change produces the
// identical message, so apply is idempotent from the console's side.
func (a *Applier) Apply(changes []scene.Change) Result {
	var res Result
	for _, c := range changes {
		r, ok := lookupRule(c.Path)
		if !ok {
			res.Skipped++
			log.Debug().Str("path", c.Path.String()).Msg("No protocol mapping, skipping")
			continue
		}

		arg, err := r.encode(c.New)
		if err != nil {
			res.Failed++
			res.Failures = append(res.Failures, Failure{Change: c, Err: err})
			log.Warn().Err(err).Str("path", c.Path.String()).Msg("Cannot encode change")
			continue
		}

		msg := osc.NewMessage(r.address(c.Path), arg)
		if err := a.sender.Send(msg); err != nil {
			res.Failed++
			res.Failures = append(res.Failures, Failure{Change: c, Err: err})
			log.Warn().Err(err).Str("path", c.Path.String()).Str("address", msg.Address).Msg("Send failed")
			continue
		}

		res.Sent++
		log.Debug().Str("path", c.Path.String()).Str("address", msg.Address).Str("value", c.New.String()).Msg("Change applied")
	}
	return res
}

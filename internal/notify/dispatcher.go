package notify

import (
	"context"

	"github.com/rs/zerolog/log"
)

// Dispatcher renders and sends transactional emails. Send failures are
// logged and swallowed: a mail outage must never abort a booking or a
// status transition. Callers invoke Dispatch after their transaction has
// committed.
type Dispatcher struct {
	provider Provider
}

func NewDispatcher(provider Provider) *Dispatcher {
	return &Dispatcher{provider: provider}
}

func (d *Dispatcher) Dispatch(ctx context.Context, ev Event, c Context) {
	msg, err := Render(ev, c)
	if err != nil {
		log.Error().Err(err).Str("event", string(ev)).Msg("render notification")
		return
	}

	if err := d.provider.Send(ctx, msg); err != nil {
		log.Error().Err(err).
			Str("event", string(ev)).
			Strs("to", msg.To).
			Msg("send notification")
	}
}

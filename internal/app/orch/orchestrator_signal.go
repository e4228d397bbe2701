package orch

import (
	"encoding/json"
	"fmt"

	"github.com/dkeye/Hangout/internal/app"
	"github.com/dkeye/Hangout/internal/core"
	"github.com/dkeye/Hangout/internal/domain"
	"github.com/dkeye/Hangout/internal/metrics"
	"github.com/rs/zerolog/log"
)

// Relay forwards a negotiation payload from one room member to another.
// description and candidate are passed through untouched. A target that
// is gone or outside the sender's room is dropped without telling anyone.
func (o *Orchestrator) Relay(from, to domain.ConnID, description, candidate json.RawMessage) error {
	if to == "" {
		return fmt.Errorf("%w: signal target is required", domain.ErrValidation)
	}
	room, ok := o.Sessions.RoomOf(from)
	if !ok {
		return fmt.Errorf("%w: join a room before signaling", domain.ErrForbidden)
	}

	peer, ok := o.Sessions.Get(to)
	if !ok || peer.State != app.StateInRoom || peer.Room != room || to == from {
		log.Debug().Str("module", "orch.relay").Str("sid", string(from)).Str("to", string(to)).Msg("signal dropped")
		return nil
	}

	err := o.Transport.Unicast(to, core.Event{Type: core.EvSignal, Data: core.SignalRelay{
		From:        from,
		Description: description,
		Candidate:   candidate,
	}})
	if err != nil {
		log.Debug().Err(err).Str("module", "orch.relay").Str("sid", string(from)).Str("to", string(to)).Msg("signal dropped")
		return nil
	}
	metrics.SignalsRelayed.Inc()
	log.Debug().Str("module", "orch.relay").Str("sid", string(from)).Str("to", string(to)).
		Int("description_bytes", len(description)).Int("candidate_bytes", len(candidate)).Msg("signal relayed")
	return nil
}

package app

import (
	"encoding/json"
	"fmt"

	"github.com/dkeye/peercall/internal/core"
	"github.com/dkeye/peercall/internal/domain"
	"github.com/rs/zerolog/log"
)

// Relay forwards opaque signaling payloads between registered connections.
// It never inspects or buffers what it forwards.
type Relay struct {
	Registry *Registry
	Out      core.Outbox
}

func NewRelay(reg *Registry, out core.Outbox) *Relay {
	return &Relay{Registry: reg, Out: out}
}

// Forward pushes ev to the connection to on behalf of from.
func (r *Relay) Forward(from, to domain.ConnID, ev core.Event) error {
	if !r.Registry.Has(to) {
		log.Warn().Str("module", "relay").Str("sid", string(from)).Str("peer", string(to)).Str("event", ev.Type).Msg("unknown target")
		return fmt.Errorf("forward %s to %s: %w", ev.Type, to, domain.ErrUnknownTarget)
	}
	if err := r.Out.Send(to, ev); err != nil {
		log.Warn().Err(err).Str("module", "relay").Str("sid", string(from)).Str("peer", string(to)).Str("event", ev.Type).Msg("forward failed")
		return err
	}
	log.Debug().Str("module", "relay").Str("sid", string(from)).Str("peer", string(to)).Str("event", ev.Type).Msg("forwarded")
	return nil
}

// Signal forwards a general-purpose signaling payload (SDP, ICE candidates).
func (r *Relay) Signal(from, to domain.ConnID, payload json.RawMessage) error {
	return r.Forward(from, to, core.Event{
		Type: core.EventSignal,
		Data: core.SignalData{From: from, Signal: payload},
	})
}

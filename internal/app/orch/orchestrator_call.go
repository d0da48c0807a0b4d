package orch

import (
	"encoding/json"
	"fmt"

	"github.com/dkeye/peercall/internal/core"
	"github.com/dkeye/peercall/internal/domain"
	"github.com/rs/zerolog/log"
)

// Signal relays a payload regardless of call state.
func (o *Orchestrator) Signal(from, to domain.ConnID, payload json.RawMessage) error {
	if err := o.requireRegistered(from); err != nil {
		return err
	}
	return o.forward(from, to, core.Event{
		Type: core.EventSignal,
		Data: core.SignalData{From: from, Signal: payload},
	})
}

// CallUser rings to with the caller's offer. The invite is delivered while
// the attempt is current, and dropped again if it cannot be delivered.
func (o *Orchestrator) CallUser(from, to domain.ConnID, payload json.RawMessage) error {
	caller, ok := o.Registry.Get(from)
	if !ok {
		return fmt.Errorf("call from %s: %w", from, domain.ErrNotRegistered)
	}
	attempted := false
	_, err := o.Calls.Invite(from, to, func(domain.CallAttempt) error {
		attempted = true
		return o.forward(from, to, core.Event{
			Type: core.EventIncomingCall,
			Data: core.IncomingCallData{From: from, Username: caller.DisplayName, Signal: payload},
		})
	})
	if err != nil {
		if !attempted {
			o.dropped(err)
		}
		return err
	}
	o.Metrics.CallTransition(domain.CallRinging.String())
	return nil
}

// AnswerCall accepts the ringing attempt placed by to.
func (o *Orchestrator) AnswerCall(from, to domain.ConnID, payload json.RawMessage) error {
	if err := o.requireRegistered(from); err != nil {
		return err
	}
	if _, err := o.Calls.Accept(from, to); err != nil {
		return err
	}
	o.Metrics.CallTransition(domain.CallActive.String())
	return o.forward(from, to, core.Event{
		Type: core.EventCallAnswered,
		Data: core.CallAnsweredData{From: from, Signal: payload},
	})
}

func (o *Orchestrator) RejectCall(from, to domain.ConnID) error {
	if err := o.requireRegistered(from); err != nil {
		return err
	}
	if _, err := o.Calls.Reject(from, to); err != nil {
		return err
	}
	o.Metrics.CallTransition(domain.CallEnded.String())
	return o.forward(from, to, core.Event{
		Type: core.EventCallRejected,
		Data: core.PeerData{From: from},
	})
}

// HangUp ends the live attempt between from and to, whoever placed it.
func (o *Orchestrator) HangUp(from, to domain.ConnID) error {
	if err := o.requireRegistered(from); err != nil {
		return err
	}
	call, err := o.Calls.Hangup(from, to)
	if err != nil {
		return err
	}
	o.Metrics.CallTransition(domain.CallEnded.String())
	log.Info().Str("module", "orch").Str("sid", string(from)).Str("peer", string(to)).Str("caller", string(call.Caller)).Msg("hung up")
	return o.forward(from, to, core.Event{
		Type: core.EventCallEnded,
		Data: core.PeerData{From: from},
	})
}

func (o *Orchestrator) requireRegistered(id domain.ConnID) error {
	if !o.Registry.Has(id) {
		return fmt.Errorf("%s: %w", id, domain.ErrNotRegistered)
	}
	return nil
}

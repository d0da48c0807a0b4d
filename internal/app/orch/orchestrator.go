package orch

import (
	"context"
	"errors"
	"sync"

	"github.com/dkeye/peercall/internal/app"
	"github.com/dkeye/peercall/internal/core"
	"github.com/dkeye/peercall/internal/domain"
	"github.com/dkeye/peercall/internal/metrics"
	"github.com/rs/zerolog/log"
)

// Orchestrator sequences the registry, room index, relay and call book for
// every inbound event and addresses the resulting outbound events.
type Orchestrator struct {
	Registry *app.Registry
	Rooms    *app.RoomIndex
	Sessions *app.Sessions
	Relay    *app.Relay
	Calls    *app.CallBook
	Metrics  *metrics.Metrics

	DefaultRoom domain.RoomID

	// membership makes a registry change and the matching room index change
	// one step for every observer that also takes it.
	membership sync.Mutex
}

func New(policy app.Policy, m *metrics.Metrics) *Orchestrator {
	reg := app.NewRegistry()
	sessions := app.NewSessions(policy)
	return &Orchestrator{
		Registry:    reg,
		Rooms:       app.NewRoomIndex(),
		Sessions:    sessions,
		Relay:       app.NewRelay(reg, sessions),
		Calls:       app.NewCallBook(reg.Has),
		Metrics:     m,
		DefaultRoom: domain.DefaultRoom,
	}
}

// Connect binds a fresh transport endpoint and tells the client its identity.
func (o *Orchestrator) Connect(id domain.ConnID, conn core.SignalConnection, cancel context.CancelFunc, client string) {
	o.Sessions.Bind(id, conn, cancel, client)
	o.Metrics.Connected()
	if err := o.Sessions.Send(id, core.Event{
		Type: core.EventConnected,
		Data: core.ConnectedData{UserID: id},
	}); err != nil {
		log.Warn().Err(err).Str("module", "orch").Str("sid", string(id)).Msg("connected event not sent")
	}
}

// Disconnect runs the cleanup for a closed transport. The profile and room
// membership go first and every call the connection took part in ends; only
// then are the room and the remaining call peers told. An invite delivered
// concurrently therefore always reaches its callee before user-left.
func (o *Orchestrator) Disconnect(id domain.ConnID) {
	if !o.Sessions.Unbind(id) {
		return
	}
	o.Metrics.Disconnected()

	o.membership.Lock()
	conn, registered := o.Registry.Unregister(id)
	if registered {
		o.Rooms.Leave(conn.Room, id)
	}
	o.membership.Unlock()

	ended := o.Calls.EndAll(id)

	left := core.Event{Type: core.EventUserLeft, Data: id}
	if registered {
		o.Broadcast(conn.Room, left)
	}

	for _, call := range ended {
		o.Metrics.CallTransition(domain.CallEnded.String())
		peer := call.Key().Peer(id)
		pc, ok := o.Registry.Get(peer)
		if !ok || (registered && pc.Room == conn.Room) {
			continue
		}
		if err := o.Sessions.Send(peer, left); err != nil {
			o.dropped(err)
		}
	}
	log.Info().Str("module", "orch").Str("sid", string(id)).Bool("registered", registered).Int("calls_ended", len(ended)).Msg("disconnected")
}

// Broadcast pushes ev to every member of room. Failed deliveries are logged
// and left to the transport policy.
func (o *Orchestrator) Broadcast(room domain.RoomID, ev core.Event) {
	frame, err := app.EncodeEvent(ev)
	if err != nil {
		log.Error().Err(err).Str("module", "orch").Str("room", string(room)).Msg("broadcast encode")
		return
	}
	for _, id := range o.Rooms.Members(room) {
		if err := o.Sessions.SendFrame(id, frame); err != nil {
			o.dropped(err)
			continue
		}
		o.Metrics.Forwarded(ev.Type)
	}
}

// Users lists registered connections for the REST API.
func (o *Orchestrator) Users() []core.UserInfo {
	conns := o.Registry.List()
	out := make([]core.UserInfo, 0, len(conns))
	for _, c := range conns {
		out = append(out, core.UserInfo{UserID: c.ID, Username: c.DisplayName, Room: c.Room})
	}
	return out
}

func (o *Orchestrator) RoomsInfo() []core.RoomInfo {
	return o.Rooms.List()
}

// Counts returns the number of registered users and non-empty rooms.
func (o *Orchestrator) Counts() (users, rooms int) {
	return o.Registry.Count(), o.Rooms.Count()
}

func (o *Orchestrator) forward(from, to domain.ConnID, ev core.Event) error {
	if err := o.Relay.Forward(from, to, ev); err != nil {
		o.dropped(err)
		return err
	}
	o.Metrics.Forwarded(ev.Type)
	return nil
}

func (o *Orchestrator) dropped(err error) {
	switch {
	case errors.Is(err, domain.ErrUnknownTarget):
		o.Metrics.Dropped(metrics.DropUnknownTarget)
	case errors.Is(err, domain.ErrTransport):
		o.Metrics.Dropped(metrics.DropTransport)
	}
}

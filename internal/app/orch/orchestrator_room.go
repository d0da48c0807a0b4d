package orch

import (
	"fmt"
	"strings"

	"github.com/dkeye/peercall/internal/core"
	"github.com/dkeye/peercall/internal/domain"
	"github.com/rs/zerolog/log"
)

// Register stores the profile of id and places it in room. Registering again
// overwrites the profile; a changed room is left first.
func (o *Orchestrator) Register(id domain.ConnID, username string, room domain.RoomID) (domain.Connection, error) {
	if strings.TrimSpace(string(room)) == "" {
		room = o.DefaultRoom
	}

	o.membership.Lock()
	if !o.Sessions.Connected(id) {
		o.membership.Unlock()
		return domain.Connection{}, fmt.Errorf("register %s: %w", id, domain.ErrTransport)
	}
	conn, prev, err := o.Registry.Register(id, username, room)
	if err != nil {
		o.membership.Unlock()
		return domain.Connection{}, err
	}
	moved := prev != nil && prev.Room != conn.Room
	if moved {
		o.Rooms.Leave(prev.Room, id)
	}
	o.Rooms.Join(conn.Room, id)
	o.membership.Unlock()

	if moved {
		log.Info().Str("module", "orch").Str("sid", string(id)).Str("from_room", string(prev.Room)).Str("room", string(conn.Room)).Msg("moved")
		o.Broadcast(prev.Room, core.Event{Type: core.EventUserLeft, Data: id})
	}

	o.Broadcast(conn.Room, core.Event{
		Type: core.EventUserJoined,
		Data: core.UserJoinedData{
			UserID:   conn.ID,
			Username: conn.DisplayName,
			Users:    o.roomUsers(conn.Room),
		},
	})
	return conn, nil
}

// ListUsers answers get-users privately. An empty room means the sender's own
// room, or the default room before registration.
func (o *Orchestrator) ListUsers(id domain.ConnID, room domain.RoomID) error {
	if strings.TrimSpace(string(room)) == "" {
		room = o.DefaultRoom
		if conn, ok := o.Registry.Get(id); ok {
			room = conn.Room
		}
	}
	return o.Sessions.Send(id, core.Event{
		Type: core.EventAllUsers,
		Data: o.roomUsers(room),
	})
}

func (o *Orchestrator) roomUsers(room domain.RoomID) []core.UserDTO {
	conns := o.Registry.ListByRoom(room)
	users := make([]core.UserDTO, 0, len(conns))
	for _, c := range conns {
		users = append(users, core.UserDTO{UserID: c.ID, Username: c.DisplayName})
	}
	return users
}

package app

import (
	"slices"
	"strings"
	"sync"

	"github.com/dkeye/peercall/internal/core"
	"github.com/dkeye/peercall/internal/domain"
	"github.com/rs/zerolog/log"
)

// RoomIndex maps a room to the connections currently in it. A room exists
// only while it has members.
type RoomIndex struct {
	mu    sync.RWMutex
	rooms map[domain.RoomID]*core.MemberSet
}

func NewRoomIndex() *RoomIndex {
	return &RoomIndex{rooms: make(map[domain.RoomID]*core.MemberSet)}
}

func (x *RoomIndex) Join(room domain.RoomID, id domain.ConnID) {
	x.mu.Lock()
	defer x.mu.Unlock()
	members, ok := x.rooms[room]
	if !ok {
		members = core.NewMemberSet()
		x.rooms[room] = members
		log.Info().Str("module", "app.rooms").Str("room", string(room)).Msg("room created")
	}
	if members.Add(id) {
		log.Debug().Str("module", "app.rooms").Str("room", string(room)).Str("sid", string(id)).Msg("member added")
	}
}

func (x *RoomIndex) Leave(room domain.RoomID, id domain.ConnID) {
	x.mu.Lock()
	defer x.mu.Unlock()
	members, ok := x.rooms[room]
	if !ok || !members.Remove(id) {
		return
	}
	log.Debug().Str("module", "app.rooms").Str("room", string(room)).Str("sid", string(id)).Msg("member removed")
	if members.Len() == 0 {
		delete(x.rooms, room)
		log.Info().Str("module", "app.rooms").Str("room", string(room)).Msg("room deleted")
	}
}

// Members returns the ids in room in join order; empty for an unknown room.
func (x *RoomIndex) Members(room domain.RoomID) []domain.ConnID {
	x.mu.RLock()
	defer x.mu.RUnlock()
	members, ok := x.rooms[room]
	if !ok {
		return []domain.ConnID{}
	}
	return members.Snapshot()
}

func (x *RoomIndex) Contains(room domain.RoomID, id domain.ConnID) bool {
	x.mu.RLock()
	defer x.mu.RUnlock()
	members, ok := x.rooms[room]
	return ok && members.Has(id)
}

func (x *RoomIndex) Exists(room domain.RoomID) bool {
	x.mu.RLock()
	defer x.mu.RUnlock()
	_, ok := x.rooms[room]
	return ok
}

// List returns every room sorted by id.
func (x *RoomIndex) List() []core.RoomInfo {
	x.mu.RLock()
	out := make([]core.RoomInfo, 0, len(x.rooms))
	for id, members := range x.rooms {
		out = append(out, core.RoomInfo{
			RoomID:    id,
			Name:      string(id),
			UserCount: members.Len(),
			Users:     members.Snapshot(),
		})
	}
	x.mu.RUnlock()
	slices.SortFunc(out, func(a, b core.RoomInfo) int {
		return strings.Compare(string(a.RoomID), string(b.RoomID))
	})
	return out
}

func (x *RoomIndex) Count() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.rooms)
}

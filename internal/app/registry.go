package app

import (
	"slices"
	"sync"

	"github.com/dkeye/peercall/internal/domain"
	"github.com/rs/zerolog/log"
)

type registryEntry struct {
	conn domain.Connection
	seq  uint64
}

// Registry is the Connection Registry: it owns the profile of every
// registered connection. Room membership is kept by RoomIndex; callers
// update both.
type Registry struct {
	mu    sync.RWMutex
	conns map[domain.ConnID]*registryEntry
	seq   uint64
}

func NewRegistry() *Registry {
	return &Registry{
		conns: make(map[domain.ConnID]*registryEntry),
	}
}

// Register inserts or overwrites the profile of id and returns the record it
// replaced, if any.
func (r *Registry) Register(id domain.ConnID, displayName string, room domain.RoomID) (domain.Connection, *domain.Connection, error) {
	conn, err := domain.NewConnection(id, displayName, room)
	if err != nil {
		return domain.Connection{}, nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	var prev *domain.Connection
	if e, ok := r.conns[id]; ok {
		old := e.conn
		prev = &old
	}
	r.seq++
	r.conns[id] = &registryEntry{conn: *conn, seq: r.seq}
	log.Info().Str("module", "app.registry").Str("sid", string(id)).Str("username", conn.DisplayName).Str("room", string(conn.Room)).Msg("registered")
	return *conn, prev, nil
}

// Unregister removes and returns the profile of id.
func (r *Registry) Unregister(id domain.ConnID) (domain.Connection, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.conns[id]
	if !ok {
		return domain.Connection{}, false
	}
	delete(r.conns, id)
	log.Info().Str("module", "app.registry").Str("sid", string(id)).Msg("unregistered")
	return e.conn, true
}

func (r *Registry) Get(id domain.ConnID) (domain.Connection, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.conns[id]
	if !ok {
		return domain.Connection{}, false
	}
	return e.conn, true
}

func (r *Registry) Has(id domain.ConnID) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.conns[id]
	return ok
}

// ListByRoom returns the profiles in room ordered by registration time.
func (r *Registry) ListByRoom(room domain.RoomID) []domain.Connection {
	r.mu.RLock()
	entries := make([]*registryEntry, 0, len(r.conns))
	for _, e := range r.conns {
		if e.conn.Room == room {
			entries = append(entries, e)
		}
	}
	r.mu.RUnlock()
	return sortedConns(entries)
}

// List returns every registered profile ordered by registration time.
func (r *Registry) List() []domain.Connection {
	r.mu.RLock()
	entries := make([]*registryEntry, 0, len(r.conns))
	for _, e := range r.conns {
		entries = append(entries, e)
	}
	r.mu.RUnlock()
	return sortedConns(entries)
}

func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}

func sortedConns(entries []*registryEntry) []domain.Connection {
	slices.SortFunc(entries, func(a, b *registryEntry) int {
		switch {
		case a.seq < b.seq:
			return -1
		case a.seq > b.seq:
			return 1
		default:
			return 0
		}
	})
	out := make([]domain.Connection, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.conn)
	}
	return out
}

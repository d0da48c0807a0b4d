package app

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/dkeye/peercall/internal/core"
	"github.com/dkeye/peercall/internal/domain"
	"github.com/rs/zerolog/log"
)

type sessionEntry struct {
	Conn   core.SignalConnection
	Cancel context.CancelFunc
	Client string
}

// Sessions tracks the transport endpoint of every live connection and is the
// Outbox used to push events to a single connection.
type Sessions struct {
	mu       sync.RWMutex
	sessions map[domain.ConnID]*sessionEntry
	policy   Policy
}

func NewSessions(policy Policy) *Sessions {
	if policy == nil {
		policy = SimplePolicy{}
	}
	return &Sessions{
		sessions: make(map[domain.ConnID]*sessionEntry),
		policy:   policy,
	}
}

// Bind attaches a transport endpoint to id. cancel must only tear the
// transport down; the adapter then runs the disconnect sequence from its own
// goroutine. It can be called while the call book is locked.
func (s *Sessions) Bind(id domain.ConnID, conn core.SignalConnection, cancel context.CancelFunc, client string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[id] = &sessionEntry{Conn: conn, Cancel: cancel, Client: client}
	log.Info().Str("module", "app.sessions").Str("sid", string(id)).Str("client", client).Msg("bound signal")
}

func (s *Sessions) Unbind(id domain.ConnID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[id]; !ok {
		return false
	}
	delete(s.sessions, id)
	log.Info().Str("module", "app.sessions").Str("sid", string(id)).Msg("unbind session")
	return true
}

func (s *Sessions) Connected(id domain.ConnID) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.sessions[id]
	return ok
}

// Cancel tears down the transport of id.
func (s *Sessions) Cancel(id domain.ConnID) bool {
	s.mu.RLock()
	e, ok := s.sessions[id]
	s.mu.RUnlock()
	if !ok {
		return false
	}
	if e.Cancel != nil {
		e.Cancel()
	}
	log.Info().Str("module", "app.sessions").Str("sid", string(id)).Msg("canceled session")
	return true
}

func (s *Sessions) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// Send encodes ev and enqueues it on the connection's transport.
func (s *Sessions) Send(id domain.ConnID, ev core.Event) error {
	frame, err := EncodeEvent(ev)
	if err != nil {
		return err
	}
	return s.SendFrame(id, frame)
}

func (s *Sessions) SendFrame(id domain.ConnID, f core.Frame) error {
	s.mu.RLock()
	e, ok := s.sessions[id]
	s.mu.RUnlock()
	if !ok {
		return fmt.Errorf("send to %s: %w", id, domain.ErrUnknownTarget)
	}

	if err := e.Conn.TrySend(f); err != nil {
		log.Warn().Err(err).Str("module", "app.sessions").Str("sid", string(id)).Msg("send failed")
		if s.policy.OnBackPressure(id, err) == KickMember {
			s.Cancel(id)
		}
		return fmt.Errorf("send to %s: %w: %v", id, domain.ErrTransport, err)
	}
	return nil
}

// EncodeEvent renders ev as a text frame. HTML escaping is off, and signal
// payloads are copied into the frame byte for byte instead of being
// re-encoded, which would compact them.
func EncodeEvent(ev core.Event) (core.Frame, error) {
	typ, err := marshal(ev.Type)
	if err != nil {
		return nil, fmt.Errorf("encode event type: %w", err)
	}
	frame := append([]byte(`{"type":`), typ...)
	if ev.Data != nil {
		data, err := encodeData(ev.Data)
		if err != nil {
			return nil, fmt.Errorf("encode %s event: %w", ev.Type, err)
		}
		frame = append(frame, `,"data":`...)
		frame = append(frame, data...)
	}
	frame = append(frame, '}')
	return core.Frame(frame), nil
}

func encodeData(v any) ([]byte, error) {
	rs, ok := v.(core.RawSignal)
	if !ok {
		return marshal(v)
	}
	head, err := marshal(rs.SignalHead())
	if err != nil {
		return nil, err
	}
	if len(head) < 2 || head[0] != '{' || head[len(head)-1] != '}' {
		return nil, fmt.Errorf("signal head is not an object: %s", head)
	}
	signal := rs.RawSignal()
	if len(signal) == 0 {
		signal = json.RawMessage("null")
	} else if !json.Valid(signal) {
		return nil, errors.New("signal is not valid JSON")
	}

	out := append([]byte(nil), head[:len(head)-1]...)
	if len(head) > 2 {
		out = append(out, ',')
	}
	out = append(out, `"signal":`...)
	out = append(out, signal...)
	return append(out, '}'), nil
}

func marshal(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

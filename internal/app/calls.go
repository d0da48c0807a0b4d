package app

import (
	"fmt"
	"sync"

	"github.com/dkeye/peercall/internal/domain"
	"github.com/rs/zerolog/log"
)

// CallBook is the call negotiation state machine. It keeps at most one live
// attempt per unordered pair of connections. Ended attempts are dropped.
//
// A connection may take part in several attempts with different peers, and
// a ringing attempt never times out.
type CallBook struct {
	mu    sync.Mutex
	calls map[domain.PairKey]*domain.CallAttempt
	alive func(domain.ConnID) bool
}

// NewCallBook returns a CallBook that accepts invites only between
// connections for which alive reports true. Disconnect handling must make
// alive false before calling EndAll.
func NewCallBook(alive func(domain.ConnID) bool) *CallBook {
	return &CallBook{
		calls: make(map[domain.PairKey]*domain.CallAttempt),
		alive: alive,
	}
}

// Invite starts a ringing attempt from caller to callee. A live attempt for
// the same pair is replaced.
//
// deliver, if not nil, runs while the book is still locked, so EndAll for
// either side cannot overtake the delivery. If it fails the attempt is
// dropped again and its error returned. deliver must not call back into the
// book.
func (b *CallBook) Invite(caller, callee domain.ConnID, deliver func(domain.CallAttempt) error) (domain.CallAttempt, error) {
	if caller == callee {
		return domain.CallAttempt{}, fmt.Errorf("call to self: %w", domain.ErrInvalidInput)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.alive(caller) {
		return domain.CallAttempt{}, fmt.Errorf("invite from %s: %w", caller, domain.ErrNotRegistered)
	}
	if !b.alive(callee) {
		return domain.CallAttempt{}, fmt.Errorf("invite to %s: %w", callee, domain.ErrUnknownTarget)
	}

	key := domain.NewPairKey(caller, callee)
	if old, ok := b.calls[key]; ok {
		log.Info().Str("module", "app.calls").Str("sid", string(caller)).Str("peer", string(callee)).Str("state", old.State.String()).Msg("replacing live call")
	}
	call := &domain.CallAttempt{Caller: caller, Callee: callee, State: domain.CallRinging}
	b.calls[key] = call

	if deliver != nil {
		if err := deliver(*call); err != nil {
			ended := b.endLocked(call, "undelivered")
			return ended, err
		}
	}
	log.Info().Str("module", "app.calls").Str("sid", string(caller)).Str("peer", string(callee)).Msg("ringing")
	return *call, nil
}

// Accept moves the ringing attempt from caller to callee to active.
func (b *CallBook) Accept(callee, caller domain.ConnID) (domain.CallAttempt, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	call, err := b.ringingLocked(callee, caller)
	if err != nil {
		return domain.CallAttempt{}, err
	}
	call.State = domain.CallActive
	log.Info().Str("module", "app.calls").Str("sid", string(callee)).Str("peer", string(caller)).Msg("active")
	return *call, nil
}

// Reject ends the ringing attempt from caller to callee.
func (b *CallBook) Reject(callee, caller domain.ConnID) (domain.CallAttempt, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	call, err := b.ringingLocked(callee, caller)
	if err != nil {
		return domain.CallAttempt{}, err
	}
	return b.endLocked(call, "rejected"), nil
}

// Hangup ends the live attempt between id and peer, whichever side placed it.
func (b *CallBook) Hangup(id, peer domain.ConnID) (domain.CallAttempt, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	call, ok := b.calls[domain.NewPairKey(id, peer)]
	if !ok {
		return domain.CallAttempt{}, fmt.Errorf("hangup %s-%s: %w", id, peer, domain.ErrNoCall)
	}
	return b.endLocked(call, "hangup"), nil
}

// EndAll ends every live attempt involving id and returns them.
func (b *CallBook) EndAll(id domain.ConnID) []domain.CallAttempt {
	b.mu.Lock()
	defer b.mu.Unlock()
	var ended []domain.CallAttempt
	for _, call := range b.calls {
		if call.Involves(id) {
			ended = append(ended, b.endLocked(call, "disconnect"))
		}
	}
	return ended
}

func (b *CallBook) Get(a, c domain.ConnID) (domain.CallAttempt, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	call, ok := b.calls[domain.NewPairKey(a, c)]
	if !ok {
		return domain.CallAttempt{}, false
	}
	return *call, true
}

func (b *CallBook) Count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.calls)
}

func (b *CallBook) ringingLocked(callee, caller domain.ConnID) (*domain.CallAttempt, error) {
	call, ok := b.calls[domain.NewPairKey(callee, caller)]
	if !ok || call.State != domain.CallRinging || call.Callee != callee {
		return nil, fmt.Errorf("no ringing call from %s to %s: %w", caller, callee, domain.ErrNoCall)
	}
	return call, nil
}

func (b *CallBook) endLocked(call *domain.CallAttempt, reason string) domain.CallAttempt {
	call.State = domain.CallEnded
	delete(b.calls, call.Key())
	log.Info().Str("module", "app.calls").Str("caller", string(call.Caller)).Str("callee", string(call.Callee)).Str("reason", reason).Msg("ended")
	return *call
}

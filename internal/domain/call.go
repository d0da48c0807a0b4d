package domain

type CallState int

const (
	CallRinging CallState = iota
	CallActive
	CallEnded
)

func (s CallState) String() string {
	switch s {
	case CallRinging:
		return "ringing"
	case CallActive:
		return "active"
	case CallEnded:
		return "ended"
	default:
		return "unknown"
	}
}

// PairKey is the unordered pair of call participants, normalised so that
// {a, b} and {b, a} map to the same key.
type PairKey struct {
	Lo, Hi ConnID
}

func NewPairKey(a, b ConnID) PairKey {
	if b < a {
		a, b = b, a
	}
	return PairKey{Lo: a, Hi: b}
}

// Peer returns the other side of the pair, or "" if id is not part of it.
func (k PairKey) Peer(id ConnID) ConnID {
	switch id {
	case k.Lo:
		return k.Hi
	case k.Hi:
		return k.Lo
	default:
		return ""
	}
}

// CallAttempt is one invite-to-resolution negotiation between two connections.
type CallAttempt struct {
	Caller ConnID    `json:"caller"`
	Callee ConnID    `json:"callee"`
	State  CallState `json:"state"`
}

func (c CallAttempt) Key() PairKey { return NewPairKey(c.Caller, c.Callee) }

func (c CallAttempt) Live() bool { return c.State != CallEnded }

func (c CallAttempt) Involves(id ConnID) bool { return c.Caller == id || c.Callee == id }

package core

import (
	"encoding/json"

	"github.com/dkeye/peercall/internal/domain"
)

// Outbound event names.
const (
	EventConnected    = "connected"
	EventUserJoined   = "user-joined"
	EventUserLeft     = "user-left"
	EventAllUsers     = "all-users"
	EventSignal       = "signal"
	EventIncomingCall = "incoming-call"
	EventCallAnswered = "call-answered"
	EventCallRejected = "call-rejected"
	EventCallEnded    = "call-ended"
	EventPong         = "pong"
	EventError        = "error"
)

// Event is the envelope of every frame pushed to a client.
type Event struct {
	Type string `json:"type"`
	Data any    `json:"data,omitempty"`
}

// Outbox pushes events to a single live connection.
type Outbox interface {
	Send(to domain.ConnID, ev Event) error
}

// RawSignal is implemented by payloads that carry an opaque signal. The
// signal is written into the frame exactly as received, after the fields of
// SignalHead.
type RawSignal interface {
	SignalHead() any
	RawSignal() json.RawMessage
}

// SignalData is the payload of a forwarded "signal" event.
type SignalData struct {
	From   domain.ConnID   `json:"from"`
	Signal json.RawMessage `json:"signal"`
}

func (d SignalData) SignalHead() any            { return PeerData{From: d.From} }
func (d SignalData) RawSignal() json.RawMessage { return d.Signal }

type IncomingCallData struct {
	From     domain.ConnID   `json:"from"`
	Username string          `json:"username"`
	Signal   json.RawMessage `json:"signal"`
}

type callerHead struct {
	From     domain.ConnID `json:"from"`
	Username string        `json:"username"`
}

func (d IncomingCallData) SignalHead() any {
	return callerHead{From: d.From, Username: d.Username}
}
func (d IncomingCallData) RawSignal() json.RawMessage { return d.Signal }

type CallAnsweredData struct {
	From   domain.ConnID   `json:"from"`
	Signal json.RawMessage `json:"signal"`
}

func (d CallAnsweredData) SignalHead() any            { return PeerData{From: d.From} }
func (d CallAnsweredData) RawSignal() json.RawMessage { return d.Signal }

type PeerData struct {
	From domain.ConnID `json:"from"`
}

type UserJoinedData struct {
	UserID   domain.ConnID `json:"userId"`
	Username string        `json:"username"`
	Users    []UserDTO     `json:"users"`
}

type ConnectedData struct {
	UserID domain.ConnID `json:"userId"`
}

type ErrorData struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

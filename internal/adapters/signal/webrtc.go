package signal

import (
	"encoding/json"
	"fmt"

	"github.com/dkeye/peercall/internal/domain"
)

// peerPayload covers every peer-directed event. Signal stays raw so SDP and
// ICE payloads are forwarded without being interpreted.
type peerPayload struct {
	To     domain.ConnID   `json:"to"`
	Signal json.RawMessage `json:"signal"`
}

func decodePeer(data json.RawMessage) (peerPayload, error) {
	var p peerPayload
	if err := decode(data, &p); err != nil {
		return p, err
	}
	if p.To == "" {
		return p, fmt.Errorf("missing target: %w", domain.ErrInvalidInput)
	}
	return p, nil
}

func (ctl *SignalWSController) handleRelaySignal(id domain.ConnID, data json.RawMessage) error {
	p, err := decodePeer(data)
	if err != nil {
		return err
	}
	return ctl.Orch.Signal(id, p.To, p.Signal)
}

// handleCallUser ignores the client-supplied from and username; the caller is
// always the sending connection.
func (ctl *SignalWSController) handleCallUser(id domain.ConnID, data json.RawMessage) error {
	p, err := decodePeer(data)
	if err != nil {
		return err
	}
	return ctl.Orch.CallUser(id, p.To, p.Signal)
}

func (ctl *SignalWSController) handleAnswerCall(id domain.ConnID, data json.RawMessage) error {
	p, err := decodePeer(data)
	if err != nil {
		return err
	}
	return ctl.Orch.AnswerCall(id, p.To, p.Signal)
}

func (ctl *SignalWSController) handleRejectCall(id domain.ConnID, data json.RawMessage) error {
	p, err := decodePeer(data)
	if err != nil {
		return err
	}
	return ctl.Orch.RejectCall(id, p.To)
}

func (ctl *SignalWSController) handleHangUp(id domain.ConnID, data json.RawMessage) error {
	p, err := decodePeer(data)
	if err != nil {
		return err
	}
	return ctl.Orch.HangUp(id, p.To)
}

package signal

import (
	"encoding/json"
	"fmt"

	"github.com/dkeye/peercall/internal/domain"
	"github.com/rs/zerolog/log"
)

type registerPayload struct {
	Username string `json:"username"`
	Room     string `json:"room"`
}

func (ctl *SignalWSController) handleRegister(id domain.ConnID, data json.RawMessage) error {
	var p registerPayload
	if err := decode(data, &p); err != nil {
		return err
	}
	conn, err := ctl.Orch.Register(id, p.Username, domain.RoomID(p.Room))
	if err != nil {
		return err
	}
	log.Info().Str("module", "signal").Str("sid", string(id)).Str("room", string(conn.Room)).Msg("register")
	return nil
}

// decode unmarshals an event payload. A missing payload leaves v untouched.
func decode(data json.RawMessage, v any) error {
	if len(data) == 0 || string(data) == "null" {
		return nil
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("%w: %v", errBadPayload, err)
	}
	return nil
}

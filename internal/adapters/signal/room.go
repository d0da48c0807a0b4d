package signal

import (
	"encoding/json"

	"github.com/dkeye/peercall/internal/domain"
)

// roomQuery accepts both {"room": "x"} and a bare "x".
type roomQuery struct {
	Room string `json:"room"`
}

func (q *roomQuery) UnmarshalJSON(b []byte) error {
	var room string
	if err := json.Unmarshal(b, &room); err == nil {
		q.Room = room
		return nil
	}
	type plain roomQuery
	return json.Unmarshal(b, (*plain)(q))
}

func (ctl *SignalWSController) handleGetUsers(id domain.ConnID, data json.RawMessage) error {
	var q roomQuery
	if err := decode(data, &q); err != nil {
		return err
	}
	return ctl.Orch.ListUsers(id, domain.RoomID(q.Room))
}

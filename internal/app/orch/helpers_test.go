package orch

import (
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/dkeye/peercall/internal/core"
	"github.com/dkeye/peercall/internal/domain"
)

var errQueueFull = errors.New("queue full")

type fakeConn struct {
	mu     sync.Mutex
	frames []core.Frame
	fail   bool
}

func (c *fakeConn) setFail(fail bool) {
	c.mu.Lock()
	c.fail = fail
	c.mu.Unlock()
}

func (c *fakeConn) TrySend(f core.Frame) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fail {
		return errQueueFull
	}
	c.frames = append(c.frames, append(core.Frame(nil), f...))
	return nil
}

func (c *fakeConn) Close() {}

type wireEvent struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

func (c *fakeConn) events(t *testing.T) []wireEvent {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]wireEvent, 0, len(c.frames))
	for _, f := range c.frames {
		var ev wireEvent
		if err := json.Unmarshal(f, &ev); err != nil {
			t.Fatalf("decode frame %q: %v", f, err)
		}
		out = append(out, ev)
	}
	return out
}

// ofType returns the events of type typ in arrival order.
func (c *fakeConn) ofType(t *testing.T, typ string) []wireEvent {
	t.Helper()
	var out []wireEvent
	for _, ev := range c.events(t) {
		if ev.Type == typ {
			out = append(out, ev)
		}
	}
	return out
}

func connect(t *testing.T, o *Orchestrator, id domain.ConnID) *fakeConn {
	t.Helper()
	c := &fakeConn{}
	o.Connect(id, c, nil, "")
	return c
}

func register(t *testing.T, o *Orchestrator, id domain.ConnID, name string, room domain.RoomID) {
	t.Helper()
	if _, err := o.Register(id, name, room); err != nil {
		t.Fatalf("Register(%s): %v", id, err)
	}
}

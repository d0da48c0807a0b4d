package app

import (
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/dkeye/peercall/internal/core"
)

var errFull = errors.New("queue full")

type fakeConn struct {
	mu     sync.Mutex
	frames []core.Frame
	fail   bool
	closed bool
}

func (c *fakeConn) TrySend(f core.Frame) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fail {
		return errFull
	}
	c.frames = append(c.frames, append(core.Frame(nil), f...))
	return nil
}

func (c *fakeConn) Close() {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
}

type decodedEvent struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

func (c *fakeConn) events(t *testing.T) []decodedEvent {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]decodedEvent, 0, len(c.frames))
	for _, f := range c.frames {
		var ev decodedEvent
		if err := json.Unmarshal(f, &ev); err != nil {
			t.Fatalf("decode frame %q: %v", f, err)
		}
		out = append(out, ev)
	}
	return out
}

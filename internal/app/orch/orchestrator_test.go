package orch

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/dkeye/peercall/internal/core"
	"github.com/dkeye/peercall/internal/domain"
	"golang.org/x/sync/errgroup"
)

func TestConnect_SendsIdentity(t *testing.T) {
	o := New(nil, nil)
	a := connect(t, o, "a")

	evs := a.ofType(t, core.EventConnected)
	if len(evs) != 1 {
		t.Fatalf("connected events = %d", len(evs))
	}
	var data core.ConnectedData
	if err := json.Unmarshal(evs[0].Data, &data); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if data.UserID != "a" {
		t.Fatalf("userId=%q", data.UserID)
	}
}

func TestCallScenario(t *testing.T) {
	o := New(nil, nil)
	a := connect(t, o, "A")
	b := connect(t, o, "B")

	register(t, o, "A", "alice", "lobby")
	register(t, o, "B", "bob", "lobby")

	joined := a.ofType(t, core.EventUserJoined)
	if len(joined) != 2 {
		t.Fatalf("A user-joined events = %d, want 2", len(joined))
	}
	var uj core.UserJoinedData
	if err := json.Unmarshal(joined[1].Data, &uj); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if uj.UserID != "B" || uj.Username != "bob" {
		t.Fatalf("user-joined = %#v", uj)
	}
	want := []core.UserDTO{{UserID: "A", Username: "alice"}, {UserID: "B", Username: "bob"}}
	if !slices.Equal(uj.Users, want) {
		t.Fatalf("users = %#v, want %#v", uj.Users, want)
	}

	p1 := json.RawMessage(`{"type":"offer","sdp":"v=0\r\no=- 1 2 IN IP4 127.0.0.1\r\n"}`)
	if err := o.CallUser("A", "B", p1); err != nil {
		t.Fatalf("CallUser: %v", err)
	}
	inc := b.ofType(t, core.EventIncomingCall)
	if len(inc) != 1 {
		t.Fatalf("incoming-call events = %d", len(inc))
	}
	var ic core.IncomingCallData
	if err := json.Unmarshal(inc[0].Data, &ic); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if ic.From != "A" || ic.Username != "alice" || !bytes.Equal(ic.Signal, p1) {
		t.Fatalf("incoming-call = %#v", ic)
	}

	p2 := json.RawMessage(`{"type":"answer","sdp":"v=0\r\n"}`)
	if err := o.AnswerCall("B", "A", p2); err != nil {
		t.Fatalf("AnswerCall: %v", err)
	}
	ans := a.ofType(t, core.EventCallAnswered)
	if len(ans) != 1 {
		t.Fatalf("call-answered events = %d", len(ans))
	}
	var ca core.CallAnsweredData
	if err := json.Unmarshal(ans[0].Data, &ca); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if ca.From != "B" || !bytes.Equal(ca.Signal, p2) {
		t.Fatalf("call-answered = %#v", ca)
	}
	if call, ok := o.Calls.Get("A", "B"); !ok || call.State != domain.CallActive {
		t.Fatalf("call = %#v ok=%v, want active", call, ok)
	}

	o.Disconnect("A")

	left := b.ofType(t, core.EventUserLeft)
	if len(left) != 1 {
		t.Fatalf("user-left events = %d, want 1", len(left))
	}
	var who domain.ConnID
	if err := json.Unmarshal(left[0].Data, &who); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if who != "A" {
		t.Fatalf("user-left %q", who)
	}
	if _, ok := o.Calls.Get("A", "B"); ok {
		t.Fatalf("call between A and B still tracked")
	}
	if o.Rooms.Contains("lobby", "A") || o.Registry.Has("A") {
		t.Fatalf("A still present after disconnect")
	}
}

func TestDisconnect_RingingCalleeNotifiesCaller(t *testing.T) {
	o := New(nil, nil)
	a := connect(t, o, "A")
	connect(t, o, "B")
	register(t, o, "A", "alice", "north")
	register(t, o, "B", "bob", "south")

	if err := o.CallUser("A", "B", json.RawMessage(`{}`)); err != nil {
		t.Fatalf("CallUser: %v", err)
	}
	o.Disconnect("B")

	left := a.ofType(t, core.EventUserLeft)
	if len(left) != 1 {
		t.Fatalf("caller user-left events = %d, want 1", len(left))
	}

	before := len(a.events(t))
	if err := o.AnswerCall("B", "A", json.RawMessage(`{}`)); !errors.Is(err, domain.ErrNotRegistered) {
		t.Fatalf("AnswerCall after disconnect err=%v", err)
	}
	if got := len(a.events(t)); got != before {
		t.Fatalf("events delivered after ended attempt: %d -> %d", before, got)
	}
}

func TestDisconnect_SameRoomPeerNotifiedOnce(t *testing.T) {
	o := New(nil, nil)
	connect(t, o, "A")
	b := connect(t, o, "B")
	register(t, o, "A", "alice", "lobby")
	register(t, o, "B", "bob", "lobby")
	if err := o.CallUser("A", "B", json.RawMessage(`{}`)); err != nil {
		t.Fatalf("CallUser: %v", err)
	}

	o.Disconnect("A")
	if n := len(b.ofType(t, core.EventUserLeft)); n != 1 {
		t.Fatalf("user-left events = %d, want 1", n)
	}

	// A second disconnect for the same id is a no-op.
	o.Disconnect("A")
	if n := len(b.ofType(t, core.EventUserLeft)); n != 1 {
		t.Fatalf("user-left events after repeat = %d, want 1", n)
	}
}

func TestRegister_Validation(t *testing.T) {
	o := New(nil, nil)
	connect(t, o, "A")

	if _, err := o.Register("A", "   ", "lobby"); !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("err=%v, want ErrInvalidInput", err)
	}
	if o.Registry.Has("A") || o.Rooms.Exists("lobby") {
		t.Fatalf("state changed by invalid registration")
	}

	conn, err := o.Register("A", "alice", "")
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if conn.Room != domain.DefaultRoom {
		t.Fatalf("room=%q, want default", conn.Room)
	}

	if _, err := o.Register("ghost", "g", "lobby"); !errors.Is(err, domain.ErrTransport) {
		t.Fatalf("register without transport err=%v", err)
	}
}

func TestRegister_MoveRoom(t *testing.T) {
	o := New(nil, nil)
	connect(t, o, "A")
	b := connect(t, o, "B")
	register(t, o, "A", "alice", "lobby")
	register(t, o, "B", "bob", "lobby")

	register(t, o, "A", "alice2", "attic")

	if o.Rooms.Contains("lobby", "A") || !o.Rooms.Contains("attic", "A") {
		t.Fatalf("membership not moved")
	}
	if n := len(b.ofType(t, core.EventUserLeft)); n != 1 {
		t.Fatalf("lobby user-left events = %d, want 1", n)
	}
	got, _ := o.Registry.Get("A")
	if got.DisplayName != "alice2" || got.Room != "attic" {
		t.Fatalf("profile = %#v", got)
	}
}

func TestListUsers(t *testing.T) {
	o := New(nil, nil)
	a := connect(t, o, "A")
	connect(t, o, "B")
	connect(t, o, "C")
	register(t, o, "A", "alice", "lobby")
	register(t, o, "B", "bob", "lobby")
	register(t, o, "C", "carol", "attic")

	if err := o.ListUsers("A", ""); err != nil {
		t.Fatalf("ListUsers: %v", err)
	}
	if err := o.ListUsers("A", "attic"); err != nil {
		t.Fatalf("ListUsers: %v", err)
	}
	if err := o.ListUsers("A", "nowhere"); err != nil {
		t.Fatalf("ListUsers: %v", err)
	}

	evs := a.ofType(t, core.EventAllUsers)
	if len(evs) != 3 {
		t.Fatalf("all-users events = %d", len(evs))
	}
	wants := []string{
		`[{"userId":"A","username":"alice"},{"userId":"B","username":"bob"}]`,
		`[{"userId":"C","username":"carol"}]`,
		`[]`,
	}
	for i, w := range wants {
		if string(evs[i].Data) != w {
			t.Fatalf("all-users[%d] = %s, want %s", i, evs[i].Data, w)
		}
	}
}

func TestSignal_RequiresRegisteredSenderAndTarget(t *testing.T) {
	o := New(nil, nil)
	connect(t, o, "A")
	b := connect(t, o, "B")

	if err := o.Signal("A", "B", json.RawMessage(`{}`)); !errors.Is(err, domain.ErrNotRegistered) {
		t.Fatalf("err=%v, want ErrNotRegistered", err)
	}
	register(t, o, "A", "alice", "lobby")
	if err := o.Signal("A", "B", json.RawMessage(`{}`)); !errors.Is(err, domain.ErrUnknownTarget) {
		t.Fatalf("err=%v, want ErrUnknownTarget", err)
	}
	register(t, o, "B", "bob", "attic")

	payload := json.RawMessage(`{"candidate":"a<b>&c"}`)
	if err := o.Signal("A", "B", payload); err != nil {
		t.Fatalf("Signal: %v", err)
	}
	sig := b.ofType(t, core.EventSignal)
	if len(sig) != 1 {
		t.Fatalf("signal events = %d", len(sig))
	}
	var data core.SignalData
	if err := json.Unmarshal(sig[0].Data, &data); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if data.From != "A" || !bytes.Equal(data.Signal, payload) {
		t.Fatalf("signal = %#v", data)
	}
}

func TestRejectAndHangUp(t *testing.T) {
	o := New(nil, nil)
	a := connect(t, o, "A")
	b := connect(t, o, "B")
	register(t, o, "A", "alice", "lobby")
	register(t, o, "B", "bob", "lobby")

	if err := o.CallUser("A", "B", json.RawMessage(`{}`)); err != nil {
		t.Fatalf("CallUser: %v", err)
	}
	if err := o.RejectCall("A", "B"); !errors.Is(err, domain.ErrNoCall) {
		t.Fatalf("caller reject err=%v, want ErrNoCall", err)
	}
	if err := o.RejectCall("B", "A"); err != nil {
		t.Fatalf("RejectCall: %v", err)
	}
	if n := len(a.ofType(t, core.EventCallRejected)); n != 1 {
		t.Fatalf("call-rejected events = %d", n)
	}
	if err := o.AnswerCall("B", "A", json.RawMessage(`{}`)); !errors.Is(err, domain.ErrNoCall) {
		t.Fatalf("answer after reject err=%v", err)
	}

	if err := o.CallUser("B", "A", json.RawMessage(`{}`)); err != nil {
		t.Fatalf("CallUser: %v", err)
	}
	if err := o.AnswerCall("A", "B", json.RawMessage(`{}`)); err != nil {
		t.Fatalf("AnswerCall: %v", err)
	}
	if err := o.HangUp("A", "B"); err != nil {
		t.Fatalf("HangUp: %v", err)
	}
	if n := len(b.ofType(t, core.EventCallEnded)); n != 1 {
		t.Fatalf("call-ended events = %d", n)
	}
	if err := o.HangUp("B", "A"); !errors.Is(err, domain.ErrNoCall) {
		t.Fatalf("second hang-up err=%v", err)
	}
}

func TestCallUser_UnknownTargetLeavesNoAttempt(t *testing.T) {
	o := New(nil, nil)
	connect(t, o, "A")
	register(t, o, "A", "alice", "lobby")

	if err := o.CallUser("A", "ghost", json.RawMessage(`{}`)); !errors.Is(err, domain.ErrUnknownTarget) {
		t.Fatalf("err=%v, want ErrUnknownTarget", err)
	}
	if err := o.CallUser("A", "A", json.RawMessage(`{}`)); !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("self call err=%v, want ErrInvalidInput", err)
	}
	if o.Calls.Count() != 0 {
		t.Fatalf("calls = %d, want 0", o.Calls.Count())
	}
}

func TestConcurrentJoinLeavesExactMembers(t *testing.T) {
	const n = 64
	o := New(nil, nil)

	ids := make([]domain.ConnID, n)
	for i := range ids {
		ids[i] = domain.ConnID(fmt.Sprintf("c%02d", i))
		connect(t, o, ids[i])
	}
	connect(t, o, "late")

	var g errgroup.Group
	for _, id := range ids {
		g.Go(func() error {
			_, err := o.Register(id, string(id), "lobby")
			return err
		})
	}
	g.Go(func() error {
		if _, err := o.Register("late", "late", "lobby"); err != nil {
			return err
		}
		o.Disconnect("late")
		return nil
	})
	if err := g.Wait(); err != nil {
		t.Fatalf("register: %v", err)
	}

	members := o.Rooms.Members("lobby")
	if len(members) != n {
		t.Fatalf("members = %d, want %d", len(members), n)
	}
	slices.Sort(members)
	if !slices.Equal(members, ids) {
		t.Fatalf("members = %v", members)
	}
	if o.Registry.Count() != n {
		t.Fatalf("registry = %d, want %d", o.Registry.Count(), n)
	}
}

func TestSnapshots(t *testing.T) {
	o := New(nil, nil)
	connect(t, o, "A")
	connect(t, o, "B")
	register(t, o, "A", "alice", "lobby")
	register(t, o, "B", "bob", "attic")

	users, rooms := o.Counts()
	if users != 2 || rooms != 2 {
		t.Fatalf("counts = %d/%d", users, rooms)
	}
	info := o.RoomsInfo()
	if len(info) != 2 || info[0].RoomID != "attic" || info[1].UserCount != 1 {
		t.Fatalf("rooms = %#v", info)
	}
	list := o.Users()
	if len(list) != 2 || list[1] != (core.UserInfo{UserID: "B", Username: "bob", Room: "attic"}) {
		t.Fatalf("users = %#v", list)
	}
}

// A failed send kicks the connection, and the kick runs the same cleanup as
// a transport close.
func TestTransportFailureRunsFullDisconnect(t *testing.T) {
	o := New(nil, nil)
	a := connect(t, o, "A")

	b := &fakeConn{}
	done := make(chan struct{})
	var once sync.Once
	o.Connect("B", b, func() {
		once.Do(func() {
			go func() {
				o.Disconnect("B")
				close(done)
			}()
		})
	}, "")

	register(t, o, "A", "alice", "lobby")
	register(t, o, "B", "bob", "lobby")
	if err := o.CallUser("A", "B", json.RawMessage(`{}`)); err != nil {
		t.Fatalf("CallUser: %v", err)
	}
	if err := o.AnswerCall("B", "A", json.RawMessage(`{}`)); err != nil {
		t.Fatalf("AnswerCall: %v", err)
	}

	b.setFail(true)
	if err := o.Signal("A", "B", json.RawMessage(`{}`)); !errors.Is(err, domain.ErrTransport) {
		t.Fatalf("err=%v, want ErrTransport", err)
	}

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("disconnect not triggered by transport failure")
	}

	if o.Registry.Has("B") || o.Rooms.Contains("lobby", "B") || o.Sessions.Connected("B") {
		t.Fatalf("B still present after transport failure")
	}
	if _, ok := o.Calls.Get("A", "B"); ok {
		t.Fatalf("call between A and B still tracked")
	}
	left := a.ofType(t, core.EventUserLeft)
	if len(left) != 1 || string(left[0].Data) != `"B"` {
		t.Fatalf("user-left events = %#v", left)
	}
}

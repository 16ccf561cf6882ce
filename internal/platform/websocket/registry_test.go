package websocket

import (
	"encoding/json"
	"sync"
	"testing"

	"github.com/rs/zerolog"
)

type fakeChannel struct {
	id   string
	open bool
	full bool

	mu  sync.Mutex
	got [][]byte
}

func (f *fakeChannel) ID() string   { return f.id }
func (f *fakeChannel) IsOpen() bool { return f.open }

func (f *fakeChannel) Send(data []byte) error {
	if f.full {
		return ErrBufferFull
	}
	f.mu.Lock()
	f.got = append(f.got, data)
	f.mu.Unlock()
	return nil
}

func (f *fakeChannel) messages() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.got)
}

func newTestRegistry() *Registry {
	return NewRegistry(zerolog.Nop(), nil)
}

func TestRegistry_PushDelivers(t *testing.T) {
	r := newTestRegistry()
	ch := &fakeChannel{id: "a", open: true}
	r.Register("u1", ch)

	if !r.Push("u1", map[string]string{"type": "notification", "title": "hi"}) {
		t.Fatal("expected delivery")
	}
	var msg map[string]string
	if err := json.Unmarshal(ch.got[0], &msg); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if msg["title"] != "hi" {
		t.Errorf("unexpected payload %v", msg)
	}
}

func TestRegistry_ReRegisterRoutesToNewest(t *testing.T) {
	r := newTestRegistry()
	a := &fakeChannel{id: "a", open: true}
	b := &fakeChannel{id: "b", open: true}

	if prev := r.Register("u1", a); prev != nil {
		t.Errorf("expected no previous channel, got %v", prev.ID())
	}
	if prev := r.Register("u1", b); prev != a {
		t.Errorf("expected a to be replaced")
	}
	r.Push("u1", "x")

	if a.messages() != 0 {
		t.Errorf("replaced channel received %d messages", a.messages())
	}
	if b.messages() != 1 {
		t.Errorf("expected newest channel to receive 1 message, got %d", b.messages())
	}
	if r.Count() != 1 {
		t.Errorf("expected 1 binding, got %d", r.Count())
	}
}

func TestRegistry_ReleaseKeepsSuccessor(t *testing.T) {
	r := newTestRegistry()
	a := &fakeChannel{id: "a", open: true}
	b := &fakeChannel{id: "b", open: true}
	r.Register("u1", a)
	r.Register("u1", b)

	if r.Release("u1", a) {
		t.Error("releasing a replaced channel must not remove the binding")
	}
	if !r.IsConnected("u1") {
		t.Fatal("successor should still be bound")
	}
	if !r.Release("u1", b) {
		t.Error("expected current channel to be released")
	}
	if r.IsConnected("u1") {
		t.Error("expected no binding after release")
	}
}

func TestRegistry_PushDropped(t *testing.T) {
	r := newTestRegistry()
	if r.Push("nobody", "x") {
		t.Error("push with no binding should be dropped")
	}

	r.Register("closed", &fakeChannel{id: "c", open: false})
	if r.Push("closed", "x") {
		t.Error("push to closed channel should be dropped")
	}

	r.Register("full", &fakeChannel{id: "f", open: true, full: true})
	if r.Push("full", "x") {
		t.Error("push to full channel should be dropped")
	}

	r.Register("bad", &fakeChannel{id: "b", open: true})
	if r.Push("bad", make(chan int)) {
		t.Error("unmarshalable message should be dropped")
	}
}

func TestRegistry_Unregister(t *testing.T) {
	r := newTestRegistry()
	r.Register("u1", &fakeChannel{id: "a", open: true})
	r.Unregister("u1")
	r.Unregister("u1")
	if r.Count() != 0 || r.IsConnected("u1") {
		t.Error("expected empty registry")
	}
}

func TestRegistry_ConcurrentAccess(t *testing.T) {
	r := newTestRegistry()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ch := &fakeChannel{id: "c", open: true}
			r.Register("u1", ch)
			r.Push("u1", i)
			r.Release("u1", ch)
		}(i)
	}
	wg.Wait()
	if r.Count() > 1 {
		t.Errorf("expected at most one binding, got %d", r.Count())
	}
}

func TestCanonicalUserID(t *testing.T) {
	tests := []struct{ in, want string }{
		{"5F0B2D4E-8A47-4C38-9E64-1B7C0A6E2D11", "5f0b2d4e-8a47-4c38-9e64-1b7c0a6e2d11"},
		{"  dev-user ", "dev-user"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := CanonicalUserID(tt.in); got != tt.want {
			t.Errorf("CanonicalUserID(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

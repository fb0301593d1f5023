package realtime

import (
	"fmt"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/codeshare/internal/model"
)

// recorder captures everything Presence and Dispatcher hand to the transport.
type recorder struct {
	mu         sync.Mutex
	broadcasts []Event
	sent       map[string][]Event
	dead       map[string]bool
}

func newRecorder() *recorder {
	return &recorder{sent: make(map[string][]Event), dead: make(map[string]bool)}
}

func (r *recorder) Broadcast(e Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.broadcasts = append(r.broadcasts, e)
}

func (r *recorder) SendTo(connID string, e Event) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.dead[connID] {
		return false
	}
	r.sent[connID] = append(r.sent[connID], e)
	return true
}

func (r *recorder) lastOnline(t *testing.T) []string {
	t.Helper()
	r.mu.Lock()
	defer r.mu.Unlock()
	require.NotEmpty(t, r.broadcasts)
	last := r.broadcasts[len(r.broadcasts)-1]
	require.Equal(t, EventOnlineUsers, last.Name)
	return last.Data.([]string)
}

// =========================================================================
// REGISTRY
// =========================================================================

func TestRegistry(t *testing.T) {
	r := NewRegistry()

	_, ok := r.Lookup("u1")
	assert.False(t, ok)

	r.Register("u1", "c1")
	r.Register("u2", "c2")
	conn, ok := r.Lookup("u1")
	require.True(t, ok)
	assert.Equal(t, "c1", conn)

	t.Run("last connection wins", func(t *testing.T) {
		r.Register("u1", "c3")
		conn, _ := r.Lookup("u1")
		assert.Equal(t, "c3", conn)
	})

	t.Run("release of a stale connection keeps the new one", func(t *testing.T) {
		assert.False(t, r.Release("u1", "c1"))
		conn, ok := r.Lookup("u1")
		assert.True(t, ok)
		assert.Equal(t, "c3", conn)
	})

	t.Run("online is sorted", func(t *testing.T) {
		assert.Equal(t, []string{"u1", "u2"}, r.Online())
		assert.Equal(t, 2, r.Len())
	})

	t.Run("unregister is unconditional", func(t *testing.T) {
		r.Unregister("u1")
		_, ok := r.Lookup("u1")
		assert.False(t, ok)
		r.Unregister("never-registered")
	})

	t.Run("release of the current connection removes it", func(t *testing.T) {
		assert.True(t, r.Release("u2", "c2"))
		assert.Empty(t, r.Online())
	})
}

func TestRegistry_Concurrent(t *testing.T) {
	r := NewRegistry()
	var wg sync.WaitGroup
	for i := range 50 {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			user := fmt.Sprintf("u%d", i%10)
			conn := fmt.Sprintf("c%d", i)
			r.Register(user, conn)
			r.Lookup(user)
			r.Online()
			r.Release(user, conn)
		}(i)
	}
	wg.Wait()
	assert.LessOrEqual(t, r.Len(), 10)
}

// =========================================================================
// PRESENCE
// =========================================================================

func TestPresence(t *testing.T) {
	reg := NewRegistry()
	rec := newRecorder()
	p := NewPresence(reg, rec, zerolog.Nop())

	p.Connected("alice", "c1")
	assert.Equal(t, []string{"alice"}, rec.lastOnline(t))

	p.Connected("bob", "c2")
	assert.Equal(t, []string{"alice", "bob"}, rec.lastOnline(t))

	t.Run("anonymous connection broadcasts without registering", func(t *testing.T) {
		p.Connected("", "c9")
		assert.Equal(t, []string{"alice", "bob"}, rec.lastOnline(t))
	})

	t.Run("second tab then closing the first keeps the user online", func(t *testing.T) {
		p.Connected("alice", "c3")
		p.Disconnected("alice", "c1")
		assert.Equal(t, []string{"alice", "bob"}, rec.lastOnline(t))
		conn, _ := reg.Lookup("alice")
		assert.Equal(t, "c3", conn)
	})

	p.Disconnected("bob", "c2")
	assert.Equal(t, []string{"alice"}, rec.lastOnline(t))

	// One broadcast per event.
	assert.Len(t, rec.broadcasts, 6)
}

// =========================================================================
// DISPATCHER
// =========================================================================

func TestDispatcher_RegisteredRecipient(t *testing.T) {
	reg := NewRegistry()
	rec := newRecorder()
	d := NewDispatcher(reg, rec, zerolog.Nop())

	reg.Register("C", "sock-7")
	n := &model.Notification{ID: "n1", Title: "Hello", Message: "Hi C", RecipientID: "C"}

	assert.True(t, d.Dispatch("C", n))

	require.Len(t, rec.sent["sock-7"], 1)
	e := rec.sent["sock-7"][0]
	assert.Equal(t, EventNewNotification, e.Name)
	assert.Same(t, n, e.Data)
}

func TestDispatcher_UnregisteredRecipient(t *testing.T) {
	reg := NewRegistry()
	rec := newRecorder()
	d := NewDispatcher(reg, rec, zerolog.Nop())

	assert.False(t, d.Dispatch("A", &model.Notification{ID: "n1"}))
	assert.Empty(t, rec.sent)
}

func TestDispatcher_DeadConnectionIsSilent(t *testing.T) {
	reg := NewRegistry()
	rec := newRecorder()
	rec.dead["sock-1"] = true
	d := NewDispatcher(reg, rec, zerolog.Nop())

	reg.Register("B", "sock-1")
	assert.False(t, d.Dispatch("B", &model.Notification{ID: "n1"}))
}

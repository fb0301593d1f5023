// Package realtime pushes live events to connected browsers.
//
// PIECES:
//
//	Registry    which connection belongs to which user (one per user, last wins)
//	Presence    keeps the Registry in step with connects/disconnects and
//	            broadcasts the online-user list after each change
//	Dispatcher  pushes a new notification to its recipient, if online
//	Hub/Client  the WebSocket transport (gorilla/websocket)
//
// Presence and Dispatcher talk to the transport through the small
// Broadcaster and Sender interfaces, so they are tested without sockets.
//
// Everything here is best effort. A push to a dead or slow connection is
// dropped, and nothing is persisted: the notification listing is the source
// of truth and the socket is only a hint to refresh it.
package realtime

import (
	"sort"
	"sync"
)

// Registry maps a user ID to the ID of that user's live connection.
// It is safe for concurrent use.
type Registry struct {
	mu    sync.RWMutex
	conns map[string]string
}

func NewRegistry() *Registry {
	return &Registry{conns: make(map[string]string)}
}

// Register maps userID to connID, replacing any earlier connection.
func (r *Registry) Register(userID, connID string) {
	r.mu.Lock()
	r.conns[userID] = connID
	r.mu.Unlock()
}

// Unregister removes userID whatever connection it points at.
func (r *Registry) Unregister(userID string) {
	r.mu.Lock()
	delete(r.conns, userID)
	r.mu.Unlock()
}

// Release removes userID only while it still points at connID, and reports
// whether it did. A user who opened a second tab keeps that tab registered
// when the first one closes.
func (r *Registry) Release(userID, connID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if current, ok := r.conns[userID]; ok && current == connID {
		delete(r.conns, userID)
		return true
	}
	return false
}

func (r *Registry) Lookup(userID string) (string, bool) {
	r.mu.RLock()
	connID, ok := r.conns[userID]
	r.mu.RUnlock()
	return connID, ok
}

// Online returns the registered user IDs, sorted.
func (r *Registry) Online() []string {
	r.mu.RLock()
	ids := make([]string, 0, len(r.conns))
	for id := range r.conns {
		ids = append(ids, id)
	}
	r.mu.RUnlock()

	sort.Strings(ids)
	return ids
}

// Len returns the number of online users.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}

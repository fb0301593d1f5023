package realtime

import "github.com/rs/zerolog"

// Presence updates the Registry on connect and disconnect and broadcasts the
// full online list after each change. There is no diffing or debouncing.
type Presence struct {
	registry *Registry
	out      Broadcaster
	log      zerolog.Logger
}

func NewPresence(registry *Registry, out Broadcaster, log zerolog.Logger) *Presence {
	return &Presence{registry: registry, out: out, log: log}
}

// Connected registers userID on connID. Anonymous connections (empty userID)
// are not registered but still trigger a broadcast, so the newcomer learns
// who is online.
func (p *Presence) Connected(userID, connID string) {
	if userID != "" {
		p.registry.Register(userID, connID)
	}
	p.log.Debug().Str("user_id", userID).Str("conn_id", connID).Msg("client connected")
	p.broadcast()
}

// Disconnected releases userID if connID is still its registered connection.
func (p *Presence) Disconnected(userID, connID string) {
	if userID != "" {
		p.registry.Release(userID, connID)
	}
	p.log.Debug().Str("user_id", userID).Str("conn_id", connID).Msg("client disconnected")
	p.broadcast()
}

func (p *Presence) broadcast() {
	p.out.Broadcast(Event{Name: EventOnlineUsers, Data: p.registry.Online()})
}

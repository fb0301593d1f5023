package realtime

// Event names understood by the web client.
const (
	EventOnlineUsers     = "getOnlineUsers"
	EventNewNotification = "newNotification"
)

// Event is the one frame shape sent to clients.
type Event struct {
	Name string `json:"event"`
	Data any    `json:"data"`
}

// Broadcaster delivers an event to every open connection.
type Broadcaster interface {
	Broadcast(e Event)
}

// Sender delivers an event to one connection. It must not block, and it
// reports whether the event was queued on a live connection.
type Sender interface {
	SendTo(connID string, e Event) bool
}

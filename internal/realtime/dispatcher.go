package realtime

import (
	"github.com/rs/zerolog"

	"github.com/sakif/codeshare/internal/model"
)

// Dispatcher pushes new notifications to their recipient's live connection.
type Dispatcher struct {
	registry *Registry
	out      Sender
	log      zerolog.Logger
}

func NewDispatcher(registry *Registry, out Sender, log zerolog.Logger) *Dispatcher {
	return &Dispatcher{registry: registry, out: out, log: log}
}

// Dispatch sends n to recipientID if they are online and reports whether the
// push was queued. An offline recipient is not an error: the notification
// is already stored and shows up in their listing.
func (d *Dispatcher) Dispatch(recipientID string, n *model.Notification) bool {
	connID, ok := d.registry.Lookup(recipientID)
	if !ok {
		return false
	}
	sent := d.out.SendTo(connID, Event{Name: EventNewNotification, Data: n})
	if !sent {
		d.log.Debug().Str("user_id", recipientID).Str("conn_id", connID).Msg("notification push dropped")
	}
	return sent
}

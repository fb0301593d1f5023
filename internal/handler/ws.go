package handler

import (
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/sakif/codeshare/internal/auth"
	"github.com/sakif/codeshare/internal/realtime"
)

// WSHandler upgrades GET /ws to the real-time channel.
type WSHandler struct {
	hub      *realtime.Hub
	upgrader websocket.Upgrader
	logger   zerolog.Logger
}

// NewWSHandler accepts upgrades from clientURL and from clients that send no
// Origin header (native apps, curl).
func NewWSHandler(hub *realtime.Hub, clientURL string, logger zerolog.Logger) *WSHandler {
	return &WSHandler{
		hub: hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return origin == "" || origin == clientURL
			},
		},
		logger: logger.With().Str("component", "ws").Logger(),
	}
}

// HandleUpgrade attaches the connection to the hub.
//
// HTTP: GET /ws?userId=<id>
//
// The identity comes from the session cookie when there is a valid one
// (OptionalAuth runs in front of this route); the userId query parameter is
// only a fallback. Without either the connection is anonymous: it receives
// broadcasts but no personal pushes.
func (h *WSHandler) HandleUpgrade(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("userId")
	if user, ok := auth.UserFromContext(r.Context()); ok {
		userID = user.ID
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written an HTTP error.
		h.logger.Debug().Err(err).Msg("websocket upgrade failed")
		return
	}
	c := h.hub.Attach(conn, userID)
	h.logger.Debug().Str("connId", c.ID).Str("userId", userID).Msg("websocket connected")
}

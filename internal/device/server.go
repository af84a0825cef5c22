package device

import (
	"encoding/json"
	"log"
	"net/http"
	"slices"
	"time"

	"github.com/gorilla/websocket"
)

// Handler upgrades playback devices to websockets and registers them with
// the hub. A device first receives a welcome message carrying the current
// player state.
type Handler struct {
	hub      *Hub
	player   *Player
	upgrader websocket.Upgrader
}

// NewHandler accepts any origin when allowedOrigins is empty.
func NewHandler(hub *Hub, player *Player, allowedOrigins ...string) *Handler {
	return &Handler{
		hub:    hub,
		player: player,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				if len(allowedOrigins) == 0 {
					return true
				}
				origin := r.Header.Get("Origin")
				return origin == "" || slices.Contains(allowedOrigins, origin)
			},
		},
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("music-action-service: ws upgrade: %v", err)
		return
	}

	client := &Client{
		hub:  h.hub,
		conn: conn,
		send: make(chan []byte, 256),
	}

	// The welcome is queued while send is still private to this handler;
	// once the hub owns the client it may close send at any time.
	welcome := map[string]any{
		"type": "welcome",
		"now":  time.Now().UTC().Format(time.RFC3339Nano),
	}
	if h.player != nil {
		welcome["state"] = h.player.State()
	}
	if b, err := json.Marshal(welcome); err == nil {
		client.send <- b
	}

	if !h.hub.add(client) {
		_ = conn.Close()
		return
	}

	go client.writePump()
	go client.readPump()
}

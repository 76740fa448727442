package websocket

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Config holds WebSocket configuration
type Config struct {
	ReadBufferSize  int
	WriteBufferSize int
	// AllowedOrigins lists browser origins allowed to connect. Requests
	// without an Origin header (non-browser clients) are always allowed.
	AllowedOrigins []string
}

// DefaultConfig returns a Config allowing the given origins
func DefaultConfig(origins ...string) Config {
	return Config{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		AllowedOrigins:  origins,
	}
}

// Upgrader upgrades HTTP requests and attaches the connections to a hub
type Upgrader struct {
	upgrader websocket.Upgrader
	hub      *Hub
	logger   *zap.Logger
}

// NewUpgrader creates a new Upgrader
func NewUpgrader(config Config, hub *Hub, logger *zap.Logger) *Upgrader {
	if logger == nil {
		logger = zap.NewNop()
	}
	origins := config.AllowedOrigins
	return &Upgrader{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  config.ReadBufferSize,
			WriteBufferSize: config.WriteBufferSize,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return origin == "" || originAllowed(origin, origins)
			},
		},
		hub:    hub,
		logger: logger,
	}
}

// Serve upgrades the request and subscribes the connection to rooms.
// On upgrade failure an HTTP error has already been written to w.
func (u *Upgrader) Serve(w http.ResponseWriter, r *http.Request, userID int64, rooms ...string) error {
	conn, err := u.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return fmt.Errorf("websocket upgrade failed: %w", err)
	}

	client := newClient(uuid.NewString(), conn, u.hub, userID, rooms)
	if err := u.hub.registerClient(client); err != nil {
		_ = conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"))
		_ = conn.Close()
		return err
	}

	go client.writePump()
	go client.readPump()

	u.logger.Debug("websocket connection established",
		zap.String("client_id", client.ID), zap.Int64("user_id", userID), zap.Strings("rooms", rooms))
	return nil
}

func originAllowed(origin string, allowed []string) bool {
	for _, a := range allowed {
		if a == "*" || strings.EqualFold(a, origin) {
			return true
		}
	}
	return false
}

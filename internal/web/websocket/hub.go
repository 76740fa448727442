// Package websocket pushes server events to browsers subscribed to rooms.
// Clients only listen; the server never dispatches incoming messages.
package websocket

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"
)

// ErrHubClosed is returned when registering with a stopped hub
var ErrHubClosed = errors.New("websocket hub closed")

// Hub maintains the set of active clients and the rooms they listen on.
// A client's send channel is only closed while mu is held for writing and
// only written while mu is held for reading.
type Hub struct {
	logger *zap.Logger

	clients map[*Client]struct{}
	rooms   map[string]map[*Client]struct{}
	closed  bool
	mu      sync.RWMutex

	roomBroadcast chan roomMessage

	done     chan struct{}
	stopped  chan struct{}
	stopOnce sync.Once

	onConnections func(int)
}

type roomMessage struct {
	room string
	data []byte
}

// HubOption configures a Hub
type HubOption func(*Hub)

// WithConnectionObserver reports the client count after every change
func WithConnectionObserver(fn func(int)) HubOption {
	return func(h *Hub) { h.onConnections = fn }
}

// NewHub creates a new Hub instance
func NewHub(logger *zap.Logger, opts ...HubOption) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	h := &Hub{
		logger:        logger,
		clients:       make(map[*Client]struct{}),
		rooms:         make(map[string]map[*Client]struct{}),
		roomBroadcast: make(chan roomMessage, 256),
		done:          make(chan struct{}),
		stopped:       make(chan struct{}),
		onConnections: func(int) {},
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Run delivers room broadcasts. It returns when ctx is cancelled or
// Shutdown is called, after disconnecting every client.
func (h *Hub) Run(ctx context.Context) error {
	defer close(h.stopped)

	for {
		select {
		case <-ctx.Done():
			h.disconnectAll()
			return nil

		case <-h.done:
			h.disconnectAll()
			return nil

		case msg := <-h.roomBroadcast:
			h.deliver(msg)
		}
	}
}

// Shutdown stops the event loop and waits for it to finish
func (h *Hub) Shutdown(ctx context.Context) error {
	h.stopOnce.Do(func() { close(h.done) })
	select {
	case <-h.stopped:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// BroadcastToRoom queues msg for every client in room. Messages are
// dropped, not queued without bound, when the hub is saturated.
func (h *Hub) BroadcastToRoom(room string, msg *Message) error {
	data, err := msg.Encode()
	if err != nil {
		return err
	}

	select {
	case <-h.stopped:
		return ErrHubClosed
	default:
	}

	select {
	case h.roomBroadcast <- roomMessage{room: room, data: data}:
	default:
		h.logger.Warn("room broadcast queue full, message dropped",
			zap.String("room", room), zap.String("type", msg.Type))
	}
	return nil
}

// ClientCount returns the number of connected clients
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// RoomSize returns the number of clients listening on room
func (h *Hub) RoomSize(room string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[room])
}

// RoomCount returns the number of active rooms
func (h *Hub) RoomCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms)
}

func (h *Hub) registerClient(c *Client) error {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return ErrHubClosed
	}
	h.clients[c] = struct{}{}
	for _, room := range c.rooms {
		if h.rooms[room] == nil {
			h.rooms[room] = make(map[*Client]struct{})
		}
		h.rooms[room][c] = struct{}{}
	}
	count := len(h.clients)
	h.mu.Unlock()

	h.logger.Debug("client registered", zap.String("client_id", c.ID), zap.Strings("rooms", c.rooms), zap.Int("total", count))
	h.onConnections(count)
	return nil
}

// unregisterClient is idempotent; both pumps and the hub may call it
func (h *Hub) unregisterClient(c *Client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; !ok {
		h.mu.Unlock()
		return
	}
	delete(h.clients, c)
	close(c.send)
	for _, room := range c.rooms {
		if members, ok := h.rooms[room]; ok {
			delete(members, c)
			if len(members) == 0 {
				delete(h.rooms, room)
			}
		}
	}
	count := len(h.clients)
	h.mu.Unlock()

	h.logger.Debug("client unregistered", zap.String("client_id", c.ID), zap.Int("total", count))
	h.onConnections(count)
}

func (h *Hub) deliver(msg roomMessage) {
	var slow []*Client

	h.mu.RLock()
	for c := range h.rooms[msg.room] {
		select {
		case c.send <- msg.data:
		default:
			slow = append(slow, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range slow {
		h.logger.Warn("client send buffer full, dropping slow client",
			zap.String("client_id", c.ID), zap.String("room", msg.room))
		h.unregisterClient(c)
	}
}

func (h *Hub) disconnectAll() {
	h.mu.Lock()
	h.closed = true
	n := len(h.clients)
	for c := range h.clients {
		close(c.send)
	}
	h.clients = make(map[*Client]struct{})
	h.rooms = make(map[string]map[*Client]struct{})
	h.mu.Unlock()

	if n > 0 {
		h.logger.Info("hub stopped, clients disconnected", zap.Int("clients", n))
	}
	h.onConnections(0)
}

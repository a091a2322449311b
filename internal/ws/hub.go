package ws

import (
	"encoding/json"
	"log"
	"sync"
	"time"

	"go.uber.org/atomic"

	"hackhub/backend/internal/telemetry"
)

const (
	defaultRoomSize     = 256
	roomInactivityLimit = time.Hour
)

type HubOptions struct {
	MaxRoomSize     int
	CleanupInterval time.Duration
}

// Hub maps channel names to rooms. A room is the broadcast scope: every
// event reaches every connection in the room, with no per-recipient
// filtering.
type Hub struct {
	mu       sync.RWMutex
	rooms    map[string]*Room
	options  HubOptions
	shutdown chan struct{}
	once     sync.Once
}

func NewHub(options ...HubOptions) *Hub {
	opts := HubOptions{
		MaxRoomSize:     defaultRoomSize,
		CleanupInterval: 5 * time.Minute,
	}
	if len(options) > 0 {
		opts = options[0]
	}

	hub := &Hub{
		rooms:    make(map[string]*Room),
		options:  opts,
		shutdown: make(chan struct{}),
	}

	go hub.cleanupLoop()

	return hub
}

// GetRoom returns the channel's room, creating it on first use.
func (h *Hub) GetRoom(channel string) *Room {
	h.mu.RLock()
	room, exists := h.rooms[channel]
	h.mu.RUnlock()

	if exists {
		return room
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if room, exists := h.rooms[channel]; exists {
		return room
	}

	room = NewRoom(channel, h.options.MaxRoomSize)
	h.rooms[channel] = room
	return room
}

func (h *Hub) GetRoomSafe(channel string) (*Room, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	room, exists := h.rooms[channel]
	return room, exists
}

// Broadcast marshals the event and fans it out to the whole channel.
func (h *Hub) Broadcast(channel string, ev OutEvent) {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now()
	}
	ev.Channel = channel

	data, err := json.Marshal(ev)
	if err != nil {
		log.Printf("hub: failed to marshal broadcast event: %v", err)
		return
	}

	h.GetRoom(channel).Broadcast(data)
	telemetry.EventsBroadcast.Inc()
}

// BroadcastToOthers sends to everyone in the channel except the given
// client, for typing indicators and join/leave notices.
func (h *Hub) BroadcastToOthers(channel string, exclude *Client, ev OutEvent) {
	room, exists := h.GetRoomSafe(channel)
	if !exists {
		return
	}

	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now()
	}
	ev.Channel = channel

	data, err := json.Marshal(ev)
	if err != nil {
		log.Printf("hub: failed to marshal event: %v", err)
		return
	}
	room.BroadcastToOthers(exclude, data)
}

func (h *Hub) Shutdown() {
	h.once.Do(func() { close(h.shutdown) })

	h.mu.Lock()
	defer h.mu.Unlock()

	for _, room := range h.rooms {
		room.Shutdown()
	}
	h.rooms = make(map[string]*Room)
}

func (h *Hub) cleanupLoop() {
	ticker := time.NewTicker(h.options.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-h.shutdown:
			return
		case <-ticker.C:
			h.cleanupInactiveRooms()
		}
	}
}

func (h *Hub) cleanupInactiveRooms() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for channel, room := range h.rooms {
		if room.IsEmpty() && room.IsInactive() {
			room.Shutdown()
			delete(h.rooms, channel)
		}
	}
}

// Room holds the live connections of one channel.
type Room struct {
	channel    string
	mu         sync.RWMutex
	clients    map[*Client]struct{}
	broadcast  chan []byte
	register   chan *Client
	unregister chan *Client
	shutdown   chan struct{}
	once       sync.Once
	createdAt  time.Time
	lastActive atomic.Time
	maxSize    int
}

func NewRoom(channel string, maxSize int) *Room {
	room := &Room{
		channel:    channel,
		clients:    make(map[*Client]struct{}),
		broadcast:  make(chan []byte, maxSendChannelSize),
		register:   make(chan *Client, maxSize),
		unregister: make(chan *Client, maxSize),
		shutdown:   make(chan struct{}),
		createdAt:  time.Now(),
		maxSize:    maxSize,
	}

	room.lastActive.Store(time.Now())

	go room.run()

	return room
}

func (r *Room) run() {
	defer func() {
		r.mu.Lock()
		for client := range r.clients {
			client.Close()
		}
		r.mu.Unlock()
	}()

	for {
		select {
		case <-r.shutdown:
			return
		case client := <-r.register:
			r.handleRegister(client)
		case client := <-r.unregister:
			r.handleUnregister(client)
		case message := <-r.broadcast:
			r.handleBroadcast(message)
		}
	}
}

func (r *Room) handleRegister(client *Client) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.clients) >= r.maxSize {
		client.SendJSON(OutEvent{
			Type:      EventMessageError,
			Error:     "room is full",
			Timestamp: time.Now(),
		})
		client.Close()
		return
	}

	r.clients[client] = struct{}{}
	r.lastActive.Store(time.Now())
	telemetry.ActiveConnections.Inc()
}

func (r *Room) handleUnregister(client *Client) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.clients[client]; exists {
		delete(r.clients, client)
		client.Close()
		r.lastActive.Store(time.Now())
		telemetry.ActiveConnections.Dec()
	}
}

func (r *Room) handleBroadcast(message []byte) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for client := range r.clients {
		client.SendRaw(message)
	}

	r.lastActive.Store(time.Now())
}

func (r *Room) RegisterClient(client *Client) bool {
	select {
	case r.register <- client:
		return true
	default:
		return false
	}
}

func (r *Room) UnregisterClient(client *Client) {
	select {
	case r.unregister <- client:
	case <-r.shutdown:
	}
}

func (r *Room) Broadcast(message []byte) {
	select {
	case r.broadcast <- message:
	case <-r.shutdown:
	}
}

func (r *Room) BroadcastToOthers(exclude *Client, message []byte) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for client := range r.clients {
		if client != exclude {
			client.SendRaw(message)
		}
	}

	r.lastActive.Store(time.Now())
}

func (r *Room) ClientCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.clients)
}

func (r *Room) IsEmpty() bool {
	return r.ClientCount() == 0
}

func (r *Room) IsInactive() bool {
	return time.Since(r.lastActive.Load()) > roomInactivityLimit
}

func (r *Room) Shutdown() {
	r.once.Do(func() { close(r.shutdown) })
}

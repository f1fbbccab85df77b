// Package hub implements the central routing actor for the chat service. All
// routing state (connected clients, room membership, room history) is owned by
// a single goroutine draining operation channels; snapshot reads go through a
// read lock over the same state.
package hub

import (
	"strings"
	"sync"

	"github.com/chatstream/internal/logger"
	"github.com/chatstream/internal/model"
	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
)

// Hub routes messages between connected clients: room broadcasts, private
// user-to-user delivery, and room membership changes.
type Hub struct {
	clients     map[Client]bool
	userClients map[string]Client
	rooms       map[string]*model.Room

	register   chan Client
	unregister chan Client
	broadcast  chan *model.Message
	private    chan *privateMessage
	join       chan *roomOp
	leave      chan *roomOp

	// Guards the maps above: held for writing by the Run loop while it
	// mutates, for reading by the snapshot accessors.
	mu sync.RWMutex

	natsConn *nats.Conn
	js       nats.JetStreamContext
	logger   *logger.Logger
}

type privateMessage struct {
	userID  string
	message *model.Message
}

type roomOp struct {
	client Client
	roomID string
}

// NewHub creates a hub. nc and js may be nil; the hub then routes without
// publishing broadcasts to JetStream.
func NewHub(nc *nats.Conn, js nats.JetStreamContext, log *logger.Logger) *Hub {
	return &Hub{
		clients:     make(map[Client]bool),
		userClients: make(map[string]Client),
		rooms:       make(map[string]*model.Room),
		register:    make(chan Client),
		unregister:  make(chan Client),
		broadcast:   make(chan *model.Message),
		private:     make(chan *privateMessage),
		join:        make(chan *roomOp),
		leave:       make(chan *roomOp),
		natsConn:    nc,
		js:          js,
		logger:      log,
	}
}

// Run drains the operation channels one at a time. Every mutation of routing
// state happens here, so operations never interleave their effects.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.registerClient(client)
		case client := <-h.unregister:
			h.unregisterClient(client)
		case message := <-h.broadcast:
			h.broadcastMessage(message)
		case pm := <-h.private:
			h.sendPrivateMessage(pm)
		case op := <-h.join:
			h.handleJoinRoom(op)
		case op := <-h.leave:
			h.handleLeaveRoom(op)
		}
	}
}

// Register adds a client to the hub.
func (h *Hub) Register(client Client) {
	h.register <- client
}

// Unregister removes a client from the hub.
func (h *Hub) Unregister(client Client) {
	h.unregister <- client
}

// Broadcast sends a message to every member of the message's room.
func (h *Hub) Broadcast(message *model.Message) {
	h.broadcast <- message
}

// SendToUser delivers a message directly to one connected user, bypassing
// rooms. Dropped silently if the user is not connected.
func (h *Hub) SendToUser(userID string, message *model.Message) {
	h.private <- &privateMessage{userID: userID, message: message}
}

// JoinRoom moves a client into a room, leaving its current room first.
func (h *Hub) JoinRoom(client Client, roomID string) {
	h.join <- &roomOp{client: client, roomID: roomID}
}

// LeaveRoom removes a client from a room.
func (h *Hub) LeaveRoom(client Client, roomID string) {
	h.leave <- &roomOp{client: client, roomID: roomID}
}

// CreateRoom allocates a room with a generated id and the given display name.
// Safe to call from any goroutine; it only touches the rooms table.
func (h *Hub) CreateRoom(name string) *model.Room {
	h.mu.Lock()
	defer h.mu.Unlock()

	room := model.NewRoom(uuid.New().String(), name)
	h.rooms[room.ID] = room
	return room
}

// Rooms returns a snapshot of the room directory.
func (h *Hub) Rooms() []model.RoomInfo {
	h.mu.RLock()
	defer h.mu.RUnlock()

	infos := make([]model.RoomInfo, 0, len(h.rooms))
	for _, room := range h.rooms {
		infos = append(infos, room.Info())
	}
	return infos
}

// Users returns a snapshot of the currently connected users.
func (h *Hub) Users() []model.User {
	h.mu.RLock()
	defer h.mu.RUnlock()

	users := make([]model.User, 0, len(h.userClients))
	for _, client := range h.userClients {
		users = append(users, *client.User())
	}
	return users
}

func (h *Hub) registerClient(client Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	user := client.User()

	// Last-register-wins: a second registration under the same user id
	// replaces the first in both tables.
	if prev, ok := h.userClients[user.ID]; ok && prev != client {
		delete(h.clients, prev)
	}
	h.clients[client] = true
	h.userClients[user.ID] = client

	h.logger.Infof("User %s (%s) connected", user.Username, user.ID)

	client.Send(model.NewSystemMessage(model.MessageTypeSystem, "Welcome to the chat!", ""))
	client.Send(model.NewSystemMessage(model.MessageTypeSystem, h.roomsSummary(), ""))
}

func (h *Hub) unregisterClient(client Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[client]; !ok {
		return
	}
	user := client.User()

	if roomID := client.Room(); roomID != "" {
		h.removeFromRoom(user, roomID)
	}

	delete(h.clients, client)
	delete(h.userClients, user.ID)

	h.logger.Infof("User %s (%s) disconnected", user.Username, user.ID)
}

func (h *Hub) broadcastMessage(message *model.Message) {
	h.mu.Lock()
	defer h.mu.Unlock()

	room, exists := h.rooms[message.Room]
	if !exists {
		// Unknown room: drop without history write or delivery.
		return
	}

	room.AddMessage(message)
	h.deliverToRoom(room, message)
	h.publishBroadcast(message)
}

func (h *Hub) sendPrivateMessage(pm *privateMessage) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if client, ok := h.userClients[pm.userID]; ok {
		client.Send(pm.message)
	}
}

func (h *Hub) handleJoinRoom(op *roomOp) {
	h.mu.Lock()
	defer h.mu.Unlock()

	user := op.client.User()

	if current := op.client.Room(); current != "" {
		h.removeFromRoom(user, current)
	}

	room, exists := h.rooms[op.roomID]
	if !exists {
		room = model.NewRoom(op.roomID, op.roomID)
		h.rooms[op.roomID] = room
	}

	room.AddUser(user)
	user.Room = op.roomID
	op.client.SetRoom(op.roomID)

	joinMessage := model.NewSystemMessage(model.MessageTypeJoin, user.Username+" joined the room", op.roomID)
	h.deliverToRoom(room, joinMessage)

	// Replay the room history to the joining client before any later
	// broadcast reaches it.
	for _, msg := range room.Messages {
		op.client.Send(msg)
	}

	h.logger.Infof("User %s joined room %s", user.Username, op.roomID)
}

func (h *Hub) handleLeaveRoom(op *roomOp) {
	h.mu.Lock()
	defer h.mu.Unlock()

	user := op.client.User()
	room, exists := h.rooms[op.roomID]
	if !exists || !room.HasUser(user.ID) {
		return
	}

	h.removeFromRoom(user, op.roomID)
	user.Room = ""
	op.client.SetRoom("")

	h.logger.Infof("User %s left room %s", user.Username, op.roomID)
}

// removeFromRoom drops the user from the room's member set and notifies the
// remaining members. No-op if the user is not a member. Callers hold h.mu.
func (h *Hub) removeFromRoom(user *model.User, roomID string) {
	room, exists := h.rooms[roomID]
	if !exists || !room.HasUser(user.ID) {
		return
	}
	room.RemoveUser(user.ID)

	leaveMessage := model.NewSystemMessage(model.MessageTypeLeave, user.Username+" left the room", roomID)
	h.deliverToRoom(room, leaveMessage)
}

// deliverToRoom pushes a message to every current member. Does not touch the
// room history; only broadcastMessage appends there. Callers hold h.mu.
func (h *Hub) deliverToRoom(room *model.Room, message *model.Message) {
	for userID := range room.Users {
		if client, ok := h.userClients[userID]; ok {
			client.Send(message)
		}
	}
}

func (h *Hub) roomsSummary() string {
	var b strings.Builder
	b.WriteString("Available rooms: ")
	for _, room := range h.rooms {
		b.WriteString(room.Name + " (" + room.ID + "), ")
	}
	return strings.TrimSuffix(b.String(), ", ")
}

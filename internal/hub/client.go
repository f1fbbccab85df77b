package hub

import "github.com/chatstream/internal/model"

// Client is the capability the hub needs from a connected peer's transport
// binding. The production implementation wraps a websocket connection; tests
// use an in-memory recorder.
type Client interface {
	// Send enqueues a message for delivery to this peer. It must never block
	// the hub: implementations drop on a saturated outbound queue.
	Send(message *model.Message)

	// User returns the user bound to this connection.
	User() *model.User

	// Room and SetRoom access this client's room-membership pointer. The hub
	// is the only writer.
	Room() string
	SetRoom(roomID string)
}

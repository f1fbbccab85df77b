package api

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/chatstream/internal/hub"
	"github.com/chatstream/internal/logger"
	"github.com/chatstream/internal/model"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

const (
	webSocketReadDeadline  = 60 * time.Second
	webSocketWriteDeadline = 10 * time.Second
	webSocketPingPeriod    = (webSocketReadDeadline * 9) / 10 // must be less than the read deadline
)

// wsClient binds one websocket connection to a user and implements the
// hub.Client capability.
type wsClient struct {
	user *model.User
	conn *websocket.Conn
	send chan *model.Message
	done chan struct{} // closed when the read pump exits
	hub  *hub.Hub
	log  *logger.Logger

	// The hub goroutine writes the room pointer; the read pump consults it
	// when a request omits the room.
	roomMu sync.RWMutex
	roomID string
}

// Send enqueues a message for this peer. Never blocks: if the outbound queue
// is full the message is dropped.
func (c *wsClient) Send(message *model.Message) {
	select {
	case c.send <- message:
	default:
		c.log.Warnf("Dropping message to %s: send queue full", c.user.Username)
	}
}

func (c *wsClient) User() *model.User { return c.user }

func (c *wsClient) Room() string {
	c.roomMu.RLock()
	defer c.roomMu.RUnlock()
	return c.roomID
}

// SetRoom is only called by the hub.
func (c *wsClient) SetRoom(roomID string) {
	c.roomMu.Lock()
	c.roomID = roomID
	c.roomMu.Unlock()
}

// serveChat upgrades the connection, registers the client with the hub, and
// starts the read/write pumps.
func (a *API) serveChat(c *gin.Context) {
	username := c.Query("username")
	if !validUsername(username) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid username: must be 3-20 characters, alphanumeric and underscore only"})
		return
	}

	conn, err := a.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		a.log.Errorf("WebSocket upgrade error: %v", err)
		return
	}

	client := &wsClient{
		user: model.NewUser(username),
		conn: conn,
		send: make(chan *model.Message, a.cfg.SendQueueSize),
		done: make(chan struct{}),
		hub:  a.hub,
		log:  a.log,
	}
	a.hub.Register(client)
	go client.writePump()
	client.readPump(a.cfg.MaxMessageSize)
}

// readPump reads inbound frames and hands them to the hub. Malformed frames
// are logged and skipped; the connection stays open.
func (c *wsClient) readPump(maxMessageSize int64) {
	defer func() {
		close(c.done)
		c.hub.Unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(webSocketReadDeadline))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(webSocketReadDeadline))
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.log.Errorf("WebSocket error for %s: %v", c.user.Username, err)
			}
			break
		}

		var req model.ClientRequest
		if err := json.Unmarshal(data, &req); err != nil {
			// Undecodable payload: discard, connection stays open.
			c.log.Warnf("Discarding malformed frame from %s: %v", c.user.Username, err)
			continue
		}
		c.handleRequest(&req)
	}
}

func (c *wsClient) handleRequest(req *model.ClientRequest) {
	switch req.Type {
	case "text":
		if !validMessageContent(req.Content) {
			c.log.Warnf("Discarding invalid message content from %s", c.user.Username)
			return
		}
		if req.Recipient != "" {
			c.sendPrivate(req)
			return
		}
		msg := model.NewMessage(model.MessageTypeText, req.Content, c.user.Username, c.user.ID)
		msg.Room = c.roomRef(req.Room)
		c.hub.Broadcast(msg)

	case "private":
		if !validMessageContent(req.Content) {
			c.log.Warnf("Discarding invalid message content from %s", c.user.Username)
			return
		}
		c.sendPrivate(req)

	case "join_room":
		if req.Room == "" {
			return
		}
		c.hub.JoinRoom(c, req.Room)

	case "leave_room":
		c.hub.LeaveRoom(c, c.roomRef(req.Room))

	default:
		c.log.Warnf("Unknown request type %q from %s", req.Type, c.user.Username)
	}
}

func (c *wsClient) sendPrivate(req *model.ClientRequest) {
	msg := model.NewMessage(model.MessageTypePrivate, req.Content, c.user.Username, c.user.ID)
	msg.Recipient = req.Recipient
	c.hub.SendToUser(req.Recipient, msg)
}

// roomRef resolves the room a request refers to, defaulting to the client's
// current room.
func (c *wsClient) roomRef(room string) string {
	if room != "" {
		return room
	}
	return c.Room()
}

// writePump writes outbound messages and keepalive pings until the connection
// dies or the read pump signals done.
func (c *wsClient) writePump() {
	ticker := time.NewTicker(webSocketPingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(webSocketWriteDeadline))
			if err := c.conn.WriteJSON(message); err != nil {
				return
			}

		case <-c.done:
			c.conn.SetWriteDeadline(time.Now().Add(webSocketWriteDeadline))
			c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(webSocketWriteDeadline))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/chatstream/internal/relay"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

// serveSignal binds a websocket connection to a relay peer. The peer id is
// opaque to the relay; callers pick their own.
func (a *API) serveSignal(c *gin.Context) {
	id := c.Query("id")
	if id == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing id"})
		return
	}

	conn, err := a.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		a.log.Errorf("WebSocket upgrade error: %v", err)
		return
	}

	peer := &relay.Peer{ID: id, Send: make(chan []byte, a.cfg.SendQueueSize)}
	a.relay.Register <- peer

	go a.signalWritePump(conn, peer)
	a.signalReadPump(conn, peer)
}

func (a *API) signalReadPump(conn *websocket.Conn, peer *relay.Peer) {
	defer func() {
		a.relay.Unregister <- peer
		conn.Close()
	}()

	conn.SetReadLimit(a.cfg.MaxMessageSize)
	conn.SetReadDeadline(time.Now().Add(webSocketReadDeadline))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(webSocketReadDeadline))
		return nil
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				a.log.Errorf("WebSocket error for peer %s: %v", peer.ID, err)
			}
			break
		}

		var msg relay.Message
		if err := json.Unmarshal(data, &msg); err != nil {
			a.log.Warnf("Discarding malformed signaling frame from %s: %v", peer.ID, err)
			continue
		}
		a.relay.Forward <- msg
	}
}

// signalWritePump drains the peer's queue. The relay closes Send on
// unregister, which ends the range loop.
func (a *API) signalWritePump(conn *websocket.Conn, peer *relay.Peer) {
	ticker := time.NewTicker(webSocketPingPeriod)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()

	for {
		select {
		case data, ok := <-peer.Send:
			conn.SetWriteDeadline(time.Now().Add(webSocketWriteDeadline))
			if !ok {
				conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}

		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(webSocketWriteDeadline))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

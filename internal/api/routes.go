// Package api exposes the HTTP and websocket surface: the chat endpoint, the
// call-signaling endpoint, and the room/user directory.
package api

import (
	"net/http"

	"github.com/chatstream/internal/config"
	"github.com/chatstream/internal/hub"
	"github.com/chatstream/internal/logger"
	"github.com/chatstream/internal/relay"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/nats-io/nats.go"
)

// API wires the routing actors to the HTTP surface.
type API struct {
	hub      *hub.Hub
	relay    *relay.Relay
	natsConn *nats.Conn
	cfg      config.Config
	log      *logger.Logger
	upgrader websocket.Upgrader
}

func New(chatHub *hub.Hub, sigRelay *relay.Relay, nc *nats.Conn, cfg config.Config, log *logger.Logger) *API {
	a := &API{
		hub:      chatHub,
		relay:    sigRelay,
		natsConn: nc,
		cfg:      cfg,
		log:      log,
	}
	a.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     a.checkOrigin,
	}
	return a
}

// checkOrigin allows everything when no origins are configured, otherwise
// requires an exact match.
func (a *API) checkOrigin(r *http.Request) bool {
	if len(a.cfg.AllowedOrigins) == 0 {
		return true
	}
	origin := r.Header.Get("Origin")
	for _, allowed := range a.cfg.AllowedOrigins {
		if origin == allowed {
			return true
		}
	}
	return false
}

// SetupRoutes registers all endpoints on the router.
func (a *API) SetupRoutes(router *gin.Engine) {
	router.Use(corsMiddleware())

	router.GET("/ws", a.serveChat)
	router.GET("/signal", a.serveSignal)

	router.GET("/api/rooms", a.listRooms)
	router.POST("/api/rooms", a.createRoom)
	router.GET("/api/users", a.listUsers)

	router.GET("/health", a.health)
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Authorization")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

func (a *API) listRooms(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"rooms": a.hub.Rooms()})
}

type createRoomRequest struct {
	Name string `json:"name" binding:"required"`
}

func (a *API) createRoom(c *gin.Context) {
	var req createRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "room name is required"})
		return
	}

	room := a.hub.CreateRoom(req.Name)
	a.log.Infof("Room %s (%s) created", room.Name, room.ID)
	c.JSON(http.StatusCreated, gin.H{"id": room.ID, "name": room.Name})
}

func (a *API) listUsers(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"users": a.hub.Users()})
}

func (a *API) health(c *gin.Context) {
	natsStatus := "disconnected"
	if a.natsConn != nil && a.natsConn.Status() == nats.CONNECTED {
		natsStatus = "connected"
	}
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"nats":   natsStatus,
	})
}

// Application entry point: loads config, initializes logging, connects to
// NATS, and starts the routing actors and HTTP server.
package main

import (
	"fmt"

	"github.com/chatstream/internal/api"
	"github.com/chatstream/internal/config"
	"github.com/chatstream/internal/hub"
	"github.com/chatstream/internal/logger"
	"github.com/chatstream/internal/relay"
	"github.com/gin-gonic/gin"
	"github.com/nats-io/nats.go"
)

func main() {
	cfg, err := config.Load("config.json")
	if err != nil {
		fmt.Printf("Error loading config: %v, using defaults\n", err)
		cfg = config.Default()
	}

	logger.InitLogger(cfg.Logging)
	serverLogger := logger.NewLogger("server")
	serverLogger.WithFields(map[string]interface{}{
		"addr":      cfg.Addr,
		"log_level": cfg.Logging.Level,
	}).Info("Configuration loaded")

	// NATS is optional: without it the hub routes but broadcasts are not
	// mirrored to JetStream.
	var nc *nats.Conn
	if cfg.NatsURL != "" {
		serverLogger.Infof("Connecting to NATS at %s", cfg.NatsURL)
		nc, err = nats.Connect(cfg.NatsURL)
		if err != nil {
			serverLogger.Errorf("Error connecting to NATS: %v", err)
			serverLogger.Warn("Running without NATS connection. Broadcast fan-out will be disabled.")
			nc = nil
		}
	}
	js := hub.SetupStream(nc, serverLogger)

	chatHub := hub.NewHub(nc, js, logger.NewLogger("hub"))
	go chatHub.Run()

	sigRelay := relay.NewRelay(logger.NewLogger("relay"))
	go sigRelay.Run()

	router := gin.New()
	router.Use(gin.Recovery())
	api.New(chatHub, sigRelay, nc, cfg, logger.NewLogger("api")).SetupRoutes(router)

	serverLogger.Infof("Server started at %s", cfg.Addr)
	if err := router.Run(cfg.Addr); err != nil {
		serverLogger.Fatalf("Server failed: %v", err)
	}
}

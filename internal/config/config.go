// Package config loads server configuration from an optional JSON file with
// environment variable overrides.
package config

import (
	"encoding/json"
	"os"
	"strconv"
	"strings"

	"github.com/chatstream/internal/logger"
)

// Config holds the runtime settings for the chat server.
type Config struct {
	Addr           string           `json:"addr"`
	NatsURL        string           `json:"nats_url"`
	AllowedOrigins []string         `json:"allowed_origins"`
	MaxMessageSize int64            `json:"max_message_size"`
	SendQueueSize  int              `json:"send_queue_size"`
	Logging        logger.LogConfig `json:"logging"`
}

func Default() Config {
	return Config{
		Addr:           ":8080",
		NatsURL:        "",
		AllowedOrigins: nil, // nil allows all origins
		MaxMessageSize: 4096,
		SendQueueSize:  256,
		Logging:        logger.DefaultLogConfig(),
	}
}

// Load reads the config file at path, falling back to defaults if it does not
// exist, then applies environment overrides. A malformed file is an error.
func Load(path string) (Config, error) {
	cfg := Default()
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return applyEnv(cfg), nil
		}
		return cfg, err
	}
	defer file.Close()
	if err := json.NewDecoder(file).Decode(&cfg); err != nil {
		return cfg, err
	}
	return applyEnv(sanitize(cfg)), nil
}

func sanitize(cfg Config) Config {
	if cfg.Addr == "" {
		cfg.Addr = ":8080"
	}
	if cfg.MaxMessageSize <= 0 {
		cfg.MaxMessageSize = 4096
	}
	if cfg.SendQueueSize <= 0 {
		cfg.SendQueueSize = 256
	}
	return cfg
}

func applyEnv(cfg Config) Config {
	if addr := os.Getenv("SERVER_ADDR"); addr != "" {
		cfg.Addr = addr
	}
	if natsURL := os.Getenv("NATS_URL"); natsURL != "" {
		cfg.NatsURL = natsURL
	}
	if origins := os.Getenv("ALLOWED_ORIGINS"); origins != "" {
		cfg.AllowedOrigins = parseOrigins(origins)
	}
	if maxSize := os.Getenv("MAX_MESSAGE_SIZE"); maxSize != "" {
		if size, err := strconv.ParseInt(maxSize, 10, 64); err == nil && size > 0 {
			cfg.MaxMessageSize = size
		}
	}
	if level := os.Getenv("LOG_LEVEL"); level != "" {
		cfg.Logging.Level = level
	}
	return cfg
}

func parseOrigins(origins string) []string {
	parts := strings.Split(origins, ",")
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

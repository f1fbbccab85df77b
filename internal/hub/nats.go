package hub

import (
	"encoding/json"
	"time"

	"github.com/chatstream/internal/logger"
	"github.com/chatstream/internal/model"
	"github.com/nats-io/nats.go"
)

const (
	chatStreamName      = "CHAT"
	chatSubjectPrefix   = "chat.rooms."
	chatStreamRetention = 30 * time.Minute
)

// SetupStream creates or updates the JetStream stream that receives every
// room broadcast. Returns the JetStream context, or nil when NATS is not
// connected so the hub runs without persistence.
func SetupStream(nc *nats.Conn, log *logger.Logger) nats.JetStreamContext {
	if nc == nil {
		return nil
	}
	js, err := nc.JetStream()
	if err != nil {
		log.Errorf("Error getting JetStream context: %v", err)
		log.Warn("Running without JetStream. Broadcast fan-out will be disabled.")
		return nil
	}

	streamConfig := &nats.StreamConfig{
		Name:     chatStreamName,
		Subjects: []string{chatSubjectPrefix + "*"},
		Storage:  nats.FileStorage,
		MaxAge:   chatStreamRetention,
	}
	if _, err := js.StreamInfo(chatStreamName); err != nil {
		if _, err := js.AddStream(streamConfig); err != nil {
			log.Errorf("Error creating stream %s: %v", chatStreamName, err)
		} else {
			log.Infof("Created stream: %s", chatStreamName)
		}
	} else {
		if _, err := js.UpdateStream(streamConfig); err != nil {
			log.Errorf("Error updating stream %s: %v", chatStreamName, err)
		}
	}
	return js
}

// publishBroadcast mirrors a successful room broadcast to JetStream. Failures
// are logged and absorbed; routing never depends on NATS being up.
func (h *Hub) publishBroadcast(message *model.Message) {
	if h.natsConn == nil || h.js == nil {
		return
	}

	data, err := json.Marshal(message)
	if err != nil {
		h.logger.Errorf("Failed to marshal broadcast for NATS: %v", err)
		return
	}
	subject := chatSubjectPrefix + message.Room
	if _, err := h.js.Publish(subject, data); err != nil {
		h.logger.Errorf("Failed to publish broadcast to NATS: %v", err)
	}
}

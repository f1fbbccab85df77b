// Package model contains the data records routed by the hub: users, rooms,
// and the chat message wire format.
package model

import (
	"time"

	"github.com/google/uuid"
)

// MessageType identifies what kind of chat message is being routed.
type MessageType string

const (
	MessageTypeText    MessageType = "text"
	MessageTypeJoin    MessageType = "join"
	MessageTypeLeave   MessageType = "leave"
	MessageTypeSystem  MessageType = "system"
	MessageTypePrivate MessageType = "private"
)

// Message is a single routed chat message. Immutable once constructed.
type Message struct {
	ID        string      `json:"id"`
	Type      MessageType `json:"type"`
	Content   string      `json:"content"`
	Sender    string      `json:"sender"`
	SenderID  string      `json:"sender_id,omitempty"`
	Room      string      `json:"room,omitempty"`
	Recipient string      `json:"recipient,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

// NewMessage builds a message with a fresh id and the current timestamp.
func NewMessage(msgType MessageType, content, sender, senderID string) *Message {
	return &Message{
		ID:        uuid.New().String(),
		Type:      msgType,
		Content:   content,
		Sender:    sender,
		SenderID:  senderID,
		Timestamp: time.Now(),
	}
}

// NewSystemMessage builds a system message not attributed to any user.
func NewSystemMessage(msgType MessageType, content, roomID string) *Message {
	m := NewMessage(msgType, content, "System", "")
	m.Room = roomID
	return m
}

// ClientRequest is an inbound frame decoded from a chat connection.
type ClientRequest struct {
	Type      string `json:"type"` // text, private, join_room, leave_room
	Content   string `json:"content"`
	Room      string `json:"room,omitempty"`
	Recipient string `json:"recipient,omitempty"`
}

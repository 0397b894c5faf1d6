// Package domain contains core concepts of the chat system.
// This file defines Message events and related rules.
package domain

import (
	"time"

	"github.com/google/uuid"
)

// BroadcastTarget is the reserved recipient meaning "visible to everyone".
const BroadcastTarget = "Todos"

// TimeLayout is the HH:MM:SS format of Message.Time.
const TimeLayout = "15:04:05"

const (
	StatusEntered = "entered"
	StatusLeft    = "left"
)

type MessageType string

const (
	MessageTypeMessage        MessageType = "message"
	MessageTypePrivateMessage MessageType = "private_message"
	MessageTypeStatus         MessageType = "status"
)

// Message is a chat line or a system status event.
// From is always assigned by the server, never taken from client data.
type Message struct {
	ID        uuid.UUID   `json:"id"`
	From      string      `json:"from"`
	To        string      `json:"to"`
	Text      string      `json:"text"`
	Type      MessageType `json:"type"`
	Time      string      `json:"time"`
	CreatedAt time.Time   `json:"-"`
}

// VisibleTo reports whether the participant called name may read the message.
func (m Message) VisibleTo(name string) bool {
	return m.To == name || m.To == BroadcastTarget
}

// NewStatusMessage builds the broadcast event emitted when name enters or leaves the room.
func NewStatusMessage(name, text string, at time.Time) Message {
	return Message{
		From:      name,
		To:        BroadcastTarget,
		Text:      text,
		Type:      MessageTypeStatus,
		Time:      at.Format(TimeLayout),
		CreatedAt: at,
	}
}

// ChangeableBy reports whether requester may edit or delete the message.
// Status messages are system events: nobody owns them, not even the participant they announce.
func (m Message) ChangeableBy(requester string) bool {
	return m.Type != MessageTypeStatus && m.From == requester
}

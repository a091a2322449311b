package ws

import (
	"time"

	"hackhub/backend/internal/model"
)

// Events accepted from clients.
const (
	EventSendMessage        = "send-message"
	EventEditMessage        = "edit-message"
	EventUnsendMessage      = "unsend-message"
	EventTypingStart        = "typing-start"
	EventTypingStop         = "typing-stop"
	EventMarkRead           = "mark-read"
	EventGetMessageForReply = "get-message-for-reply"
	EventReact              = "react"
	EventRemoveReaction     = "remove-reaction"
)

// Events emitted to clients. message-updated covers edit, unsend and delete;
// clients diff the flags on the carried record.
const (
	EventMessageCreated    = "message-created"
	EventMessageUpdated    = "message-updated"
	EventUserTyping        = "user-typing"
	EventUserStoppedTyping = "user-stopped-typing"
	EventUserJoined        = "user-joined"
	EventUserLeft          = "user-left"
	EventMessageError      = "message-error"
	EventConnectionAck     = "connection-ack"
	EventHistory           = "history"
	EventMessageForReply   = "message-for-reply"
)

// InEvent is the inbound envelope. TempID is a client-supplied correlation
// id echoed back on message-error so the client can resolve its optimistic
// copy.
type InEvent struct {
	Type      string            `json:"type"`
	TempID    string            `json:"tempId,omitempty"`
	Text      string            `json:"text,omitempty"`
	Media     []model.MediaItem `json:"media,omitempty"`
	ReplyTo   string            `json:"replyTo,omitempty"`
	MessageID string            `json:"messageId,omitempty"`
	Emoji     string            `json:"emoji,omitempty"`
}

// OutEvent is the outbound envelope.
type OutEvent struct {
	Type      string    `json:"type"`
	Message   any       `json:"message,omitempty"`
	Messages  any       `json:"messages,omitempty"`
	Channel   string    `json:"channel,omitempty"`
	UserID    string    `json:"userId,omitempty"`
	UserName  string    `json:"userName,omitempty"`
	MessageID string    `json:"messageId,omitempty"`
	TempID    string    `json:"tempId,omitempty"`
	Error     string    `json:"error,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

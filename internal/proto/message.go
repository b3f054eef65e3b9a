package proto

import (
	"encoding/json"
	"time"
)

// Inbound is the envelope for frames coming from the client.
type Inbound struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

const (
	ProtocolVersion = 1

	InboundTypeHello    = "hello"
	InboundTypeSend     = "send_message"
	InboundTypeMarkRead = "mark_as_read"

	OutboundTypeEvent = "event"
	OutboundTypeError = "error"

	EventReceiveMessage = "receive_message"
	EventMessageSent    = "message_sent"
	EventMessageError   = "message_error"
	EventMessageRead    = "message_read"
	EventUserOnline     = "user_online"
	EventUserOffline    = "user_offline"
	EventOnlineUsers    = "online_users"
)

// HelloData authenticates the connection. It must be the first frame.
type HelloData struct {
	Token    string `json:"token"`
	Protocol int    `json:"protocol,omitempty"`
}

// SendData asks the server to create and deliver a message. Ref is a
// client-chosen correlation id echoed back on the ack or error.
type SendData struct {
	Ref         string   `json:"ref,omitempty"`
	SenderID    string   `json:"senderId"`
	ReceiverID  string   `json:"receiverId"`
	Content     string   `json:"content,omitempty"`
	MessageType string   `json:"messageType"`
	Attachments []string `json:"attachments,omitempty"`
	ProjectID   string   `json:"projectId,omitempty"`
}

// MarkReadData signals that the reader has viewed a message.
type MarkReadData struct {
	MessageID int64 `json:"messageId"`
}

// Outbound is the envelope for frames sent to the client.
type Outbound struct {
	Type  string `json:"type"`
	Event string `json:"event,omitempty"`
	Data  any    `json:"data,omitempty"`
	Error *Error `json:"error,omitempty"`
}

// MessagePayload is the wire form of a message.
type MessagePayload struct {
	ID          int64     `json:"id"`
	SenderID    string    `json:"senderId"`
	ReceiverID  string    `json:"receiverId"`
	Content     string    `json:"content,omitempty"`
	MessageType string    `json:"messageType"`
	Attachments []string  `json:"attachments,omitempty"`
	ProjectID   string    `json:"projectId,omitempty"`
	IsRead      bool      `json:"isRead"`
	CreatedAt   time.Time `json:"createdAt"`
}

// MessageSentData confirms a persisted message to the sender.
type MessageSentData struct {
	Ref     string         `json:"ref,omitempty"`
	Message MessagePayload `json:"message"`
}

// MessageErrorData reports a failed send to the originating connection.
type MessageErrorData struct {
	Ref   string `json:"ref,omitempty"`
	Error Error  `json:"error"`
}

// MessageReadData notifies the sender of a read receipt.
type MessageReadData struct {
	MessageID int64     `json:"messageId"`
	ReadAt    time.Time `json:"readAt"`
}

// PresenceData is a user online/offline delta.
type PresenceData struct {
	UserID string `json:"userId"`
}

// OnlineUsersData is the presence snapshot delivered on connect.
type OnlineUsersData struct {
	UserIDs []string `json:"userIds"`
}

// Error describes a protocol-level error response.
type Error struct {
	Code string `json:"code"`
	Msg  string `json:"msg"`
}

package core

import "time"

// EventKind is a notification the core emits to client connections.
type EventKind int

const (
	// EventMessageReceived pushes a new message to the receiver's connections.
	EventMessageReceived EventKind = iota
	// EventMessageSent confirms a persisted message to the sender's connections.
	EventMessageSent
	// EventMessageError reports a failed send to the originating connection only.
	EventMessageError
	// EventMessageRead notifies the sender that a message was read.
	EventMessageRead
	// EventUserOnline notifies that a user gained their first connection.
	EventUserOnline
	// EventUserOffline notifies that a user lost their last connection.
	EventUserOffline
	// EventOnlineUsers delivers the presence snapshot to a new connection.
	EventOnlineUsers
	// EventError notifies the connection about a domain error.
	EventError
)

// Event is sent to clients to describe what happened in the system.
type Event struct {
	Kind EventKind

	// Ref is the client-supplied send correlation id. Set only on acks and
	// errors delivered to the originating connection.
	Ref string

	Message   *Message
	MessageID int64
	ReadAt    time.Time
	UserID    string
	UserIDs   []string
	Error     *CoreError
}

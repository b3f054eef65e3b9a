package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when the requested record does not exist.
var ErrNotFound = errors.New("record not found")

// Message is a persisted message in its flat form. Attachments carry file URLs
// for file messages and a single domain reference for system/proposal messages.
type Message struct {
	ID          int64
	SenderID    string
	ReceiverID  string
	Kind        string
	Content     string
	Attachments []string
	ProjectID   string
	IsRead      bool
	CreatedAt   time.Time
}

// Conversation is the derived per-counterparty view of a user's messages.
type Conversation struct {
	CounterpartyID string
	LastMessage    *Message
	UnreadCount    int
}

// ListFilter narrows a thread history query.
type ListFilter struct {
	// ProjectID, when set, restricts to messages tagged with that project.
	ProjectID string
	// BeforeID, when non-zero, returns messages older than that id.
	BeforeID int64
	// Limit caps the number of returned messages. Zero means the store default.
	Limit int
}

// MessageStore handles message persistence.
type MessageStore interface {
	// SaveMessage persists a message, assigning its canonical ID and CreatedAt.
	SaveMessage(ctx context.Context, msg *Message) error

	// GetMessage retrieves a message by ID. Returns ErrNotFound if absent.
	GetMessage(ctx context.Context, id int64) (*Message, error)

	// MarkMessageRead flips IsRead to true. Returns false if the message was
	// already read; ErrNotFound if it does not exist.
	MarkMessageRead(ctx context.Context, id int64) (bool, error)

	// ListMessages retrieves the thread between two users, oldest first.
	ListMessages(ctx context.Context, userID, otherUserID string, f ListFilter) ([]*Message, error)

	// ListConversations derives one conversation per counterparty for the user,
	// most recent first, with last message and unread count.
	ListConversations(ctx context.Context, userID string) ([]*Conversation, error)
}

// Store aggregates all storage interfaces.
type Store interface {
	MessageStore

	// Close closes the underlying database connection.
	Close() error
}

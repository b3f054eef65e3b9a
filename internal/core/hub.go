package core

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/skillbridge/messaging-server/internal/metrics"
	"github.com/skillbridge/messaging-server/internal/store"
)

// EventSink receives a copy of every persisted message for out-of-process
// consumers (notification pipeline). Failures are logged, never surfaced.
type EventSink interface {
	MessageCreated(ctx context.Context, msg *Message) error
}

// PresenceMirror reflects online/offline transitions into shared storage so
// services without a socket can answer presence queries.
type PresenceMirror interface {
	SetOnline(ctx context.Context, userID string) error
	SetOffline(ctx context.Context, userID string) error
}

// SendRequest is a validated-on-entry request to create and deliver a message.
type SendRequest struct {
	SenderID    string
	ReceiverID  string
	Kind        MessageKind
	Content     string
	Attachments []string
	ProjectID   string
}

// Hub coordinates connections, message dispatch, presence and read receipts.
// Sends run concurrently on their connection's goroutine; only the registry
// serializes access.
type Hub struct {
	registry *Registry
	store    store.MessageStore
	log      zerolog.Logger

	sink   EventSink
	mirror PresenceMirror
}

// NewHub creates a hub over the given message store.
func NewHub(st store.MessageStore, logger *zerolog.Logger) *Hub {
	l := zerolog.Nop()
	if logger != nil {
		l = *logger
	}
	return &Hub{
		registry: NewRegistry(),
		store:    st,
		log:      l,
	}
}

// SetSink attaches an out-of-process event sink.
func (h *Hub) SetSink(s EventSink) { h.sink = s }

// SetMirror attaches a presence mirror.
func (h *Hub) SetMirror(m PresenceMirror) { h.mirror = m }

// Registry exposes presence lookups to the transport layer.
func (h *Hub) Registry() *Registry { return h.registry }

// Register adds an authenticated connection. The new connection receives the
// presence snapshot; everyone else learns about the user's first connection.
func (h *Hub) Register(ctx context.Context, c *Client) {
	first := h.registry.Add(c)

	h.deliver(c, &Event{Kind: EventOnlineUsers, UserIDs: h.registry.Snapshot()})

	if first {
		h.broadcastExcept(c, &Event{Kind: EventUserOnline, UserID: c.UserID})
		if h.mirror != nil {
			if err := h.mirror.SetOnline(ctx, c.UserID); err != nil {
				h.log.Warn().Err(err).Str("user_id", c.UserID).Msg("presence mirror set online")
			}
		}
	}

	h.log.Debug().Str("conn_id", c.ID).Str("user_id", c.UserID).Bool("first", first).Msg("connection registered")
}

// Unregister removes a connection. Losing the last connection makes the user
// offline and notifies every remaining connection.
func (h *Hub) Unregister(ctx context.Context, c *Client) {
	last := h.registry.Remove(c)

	if last {
		h.broadcastExcept(c, &Event{Kind: EventUserOffline, UserID: c.UserID})
		if h.mirror != nil {
			if err := h.mirror.SetOffline(ctx, c.UserID); err != nil {
				h.log.Warn().Err(err).Str("user_id", c.UserID).Msg("presence mirror set offline")
			}
		}
	}

	h.log.Debug().Str("conn_id", c.ID).Str("user_id", c.UserID).Bool("last", last).Msg("connection unregistered")
}

// Send validates, persists and delivers a message. The persisted message is
// returned to the originating connection as its ack; the receiver's
// connections get receive_message and the sender's other connections get
// message_sent. At most one persistence attempt is made.
func (h *Hub) Send(ctx context.Context, origin *Client, req SendRequest) (*Message, *CoreError) {
	if req.SenderID != origin.UserID {
		return nil, coreError(ErrCodeForbidden, "sender does not match authenticated user")
	}
	if req.ReceiverID == "" {
		return nil, coreError(ErrCodeValidation, "receiver is required")
	}
	if req.ReceiverID == req.SenderID {
		return nil, coreError(ErrCodeValidation, "cannot message yourself")
	}

	body, cerr := BuildBody(req.Kind, req.Content, req.Attachments)
	if cerr != nil {
		return nil, cerr
	}

	msg := &Message{
		SenderID:   req.SenderID,
		ReceiverID: req.ReceiverID,
		Kind:       req.Kind,
		Body:       body,
		ProjectID:  req.ProjectID,
	}

	rec := msg.Record()
	if err := h.store.SaveMessage(ctx, rec); err != nil {
		metrics.SendFailures.Inc()
		h.log.Error().Err(err).Str("sender_id", req.SenderID).Str("receiver_id", req.ReceiverID).Msg("persist message")
		return nil, coreError(ErrCodePersistence, "failed to save message")
	}
	msg.ID = rec.ID
	msg.CreatedAt = rec.CreatedAt
	metrics.MessagesSent.Inc()

	for _, rc := range h.registry.Connections(msg.ReceiverID) {
		h.deliver(rc, &Event{Kind: EventMessageReceived, Message: msg})
		metrics.MessagesDelivered.Inc()
	}

	// Keep the sender's other tabs in sync. The originating connection gets
	// its ack through the Send return value instead, so it never processes
	// its own message twice.
	for _, sc := range h.registry.Connections(msg.SenderID) {
		if sc == origin {
			continue
		}
		h.deliver(sc, &Event{Kind: EventMessageSent, Message: msg})
	}

	if h.sink != nil {
		if err := h.sink.MessageCreated(ctx, msg); err != nil {
			h.log.Warn().Err(err).Int64("message_id", msg.ID).Msg("publish message created")
		}
	}

	return msg, nil
}

// MarkRead transitions a message to read on behalf of its receiver and fans
// out the receipt to the sender's connections. Re-marking an already-read
// message is a no-op. Returns the read timestamp and whether a transition
// happened.
func (h *Hub) MarkRead(ctx context.Context, readerID string, messageID int64) (time.Time, bool, *CoreError) {
	rec, err := h.store.GetMessage(ctx, messageID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return time.Time{}, false, coreError(ErrCodeNotFound, "message not found")
		}
		return time.Time{}, false, coreError(ErrCodePersistence, "failed to load message")
	}
	// A foreign message is reported as absent rather than revealing it exists.
	if rec.ReceiverID != readerID {
		return time.Time{}, false, coreError(ErrCodeNotFound, "message not found")
	}

	changed, err := h.store.MarkMessageRead(ctx, messageID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return time.Time{}, false, coreError(ErrCodeNotFound, "message not found")
		}
		return time.Time{}, false, coreError(ErrCodePersistence, "failed to mark message read")
	}

	readAt := time.Now().UTC()
	if changed {
		metrics.ReadReceipts.Inc()
		for _, sc := range h.registry.Connections(rec.SenderID) {
			h.deliver(sc, &Event{Kind: EventMessageRead, MessageID: messageID, ReadAt: readAt})
		}
	}
	return readAt, changed, nil
}

// deliver enqueues an event for one connection, dropping it if the consumer
// is too far behind.
func (h *Hub) deliver(c *Client, ev *Event) {
	select {
	case c.Events <- ev:
	default:
		h.log.Warn().Str("conn_id", c.ID).Str("user_id", c.UserID).Msg("slow consumer, event dropped")
	}
}

func (h *Hub) broadcastExcept(origin *Client, ev *Event) {
	for _, c := range h.registry.All() {
		if c == origin {
			continue
		}
		h.deliver(c, ev)
	}
}

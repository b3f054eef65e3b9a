package client

import (
	"sort"
	"sync"

	"github.com/skillbridge/messaging-server/internal/proto"
)

// ConversationView is one row of the projected conversation list.
type ConversationView struct {
	CounterpartyID string
	LastMessage    *proto.MessagePayload
	UnreadCount    int
	Online         bool
}

// Conversations projects the per-counterparty list from the event stream.
// The online_users snapshot is authoritative at connect; user_online and
// user_offline deltas apply after it.
type Conversations struct {
	mu     sync.Mutex
	selfID string
	items  map[string]*ConversationView
}

// NewConversations creates an empty projector for the given user.
func NewConversations(selfID string) *Conversations {
	return &Conversations{selfID: selfID, items: make(map[string]*ConversationView)}
}

// Apply routes one socket event into the projection. Unrelated events are
// ignored, so the caller can feed its entire Listen stream through here.
func (c *Conversations) Apply(ev Event) {
	switch ev.Name {
	case proto.EventReceiveMessage:
		c.applyMessage(*ev.Message, true)
	case proto.EventMessageSent:
		c.applyMessage(ev.Sent.Message, false)
	case proto.EventMessageRead:
		c.applyRead(ev.Read.MessageID)
	case proto.EventOnlineUsers:
		c.applySnapshot(ev.UserIDs)
	case proto.EventUserOnline:
		c.setOnline(ev.UserID, true)
	case proto.EventUserOffline:
		c.setOnline(ev.UserID, false)
	}
}

// MarkedRead clears the unread count after the user has read a thread.
func (c *Conversations) MarkedRead(counterpartyID string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if item, ok := c.items[counterpartyID]; ok {
		item.UnreadCount = 0
	}
}

// List returns the projected rows, most recent activity first.
func (c *Conversations) List() []ConversationView {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]ConversationView, 0, len(c.items))
	for _, item := range c.items {
		out = append(out, *item)
	}
	sort.Slice(out, func(i, j int) bool {
		li, lj := out[i].LastMessage, out[j].LastMessage
		switch {
		case li == nil:
			return false
		case lj == nil:
			return true
		default:
			return li.ID > lj.ID
		}
	})
	return out
}

func (c *Conversations) applyMessage(msg proto.MessagePayload, inbound bool) {
	counterparty := msg.SenderID
	if !inbound {
		counterparty = msg.ReceiverID
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	item := c.item(counterparty)
	item.LastMessage = &msg
	if inbound && !msg.IsRead {
		item.UnreadCount++
	}
}

// applyRead settles a read receipt for a message we sent. Our own unread
// count is unaffected; only the last-message state flips.
func (c *Conversations) applyRead(messageID int64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, item := range c.items {
		if item.LastMessage != nil && item.LastMessage.ID == messageID {
			item.LastMessage.IsRead = true
			return
		}
	}
}

func (c *Conversations) applySnapshot(userIDs []string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	online := make(map[string]bool, len(userIDs))
	for _, id := range userIDs {
		online[id] = true
		if id != c.selfID {
			c.item(id).Online = true
		}
	}
	for id, item := range c.items {
		if !online[id] {
			item.Online = false
		}
	}
}

func (c *Conversations) setOnline(userID string, online bool) {
	if userID == c.selfID {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.item(userID).Online = online
}

// item returns the row for a counterparty, creating it on first touch.
// Callers hold the mutex.
func (c *Conversations) item(counterpartyID string) *ConversationView {
	if existing, ok := c.items[counterpartyID]; ok {
		return existing
	}
	created := &ConversationView{CounterpartyID: counterpartyID}
	c.items[counterpartyID] = created
	return created
}

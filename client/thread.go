package client

import (
	"sync"
	"time"

	"github.com/skillbridge/messaging-server/internal/proto"
)

// Entry is one message in a projected thread. Provisional entries carry the
// send ref as LocalID until the server settles them.
type Entry struct {
	// LocalID is the correlation ref for provisional entries, empty once
	// confirmed.
	LocalID string
	Pending bool
	Message proto.MessagePayload
}

// Thread projects one conversation into an ordered entry list with optimistic
// sends. Confirmed entries come from acks and pushes; staged entries are
// replaced in place on message_sent and removed on message_error, so no
// provisional entry ever survives settlement.
type Thread struct {
	mu      sync.Mutex
	selfID  string
	otherID string
	entries []Entry
}

// NewThread creates a projector for the conversation between selfID and
// otherID.
func NewThread(selfID, otherID string) *Thread {
	return &Thread{selfID: selfID, otherID: otherID}
}

// Stage appends a provisional outbound entry under the given ref. The caller
// obtains the ref from Client.SendMessage.
func (t *Thread) Stage(ref, messageType, content string, attachments []string, projectID string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.entries = append(t.entries, Entry{
		LocalID: ref,
		Pending: true,
		Message: proto.MessagePayload{
			SenderID:    t.selfID,
			ReceiverID:  t.otherID,
			Content:     content,
			MessageType: messageType,
			Attachments: attachments,
			ProjectID:   projectID,
			CreatedAt:   time.Now(),
		},
	})
}

// Confirm replaces the provisional entry for ref with the server's canonical
// message, in place, preserving thread position. Returns false if no such
// entry is staged.
func (t *Thread) Confirm(ref string, msg proto.MessagePayload) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	for i := range t.entries {
		if t.entries[i].Pending && t.entries[i].LocalID == ref {
			t.entries[i] = Entry{Message: msg}
			return true
		}
	}
	return false
}

// Reject removes the provisional entry for ref after a failed send. Returns
// false if no such entry is staged.
func (t *Thread) Reject(ref string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	for i := range t.entries {
		if t.entries[i].Pending && t.entries[i].LocalID == ref {
			t.entries = append(t.entries[:i], t.entries[i+1:]...)
			return true
		}
	}
	return false
}

// Append adds a confirmed message. Pushes for other conversations are
// ignored so a single event loop can feed every open thread.
func (t *Thread) Append(msg proto.MessagePayload) bool {
	if !t.belongs(msg) {
		return false
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	t.entries = append(t.entries, Entry{Message: msg})
	return true
}

// ApplyRead flips the matching entry to read.
func (t *Thread) ApplyRead(messageID int64) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	for i := range t.entries {
		if !t.entries[i].Pending && t.entries[i].Message.ID == messageID {
			t.entries[i].Message.IsRead = true
			return true
		}
	}
	return false
}

// Seed replaces the thread contents with history fetched over REST. Entries
// arrive oldest first, matching the history endpoint.
func (t *Thread) Seed(history []proto.MessagePayload) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.entries = make([]Entry, 0, len(history))
	for _, msg := range history {
		t.entries = append(t.entries, Entry{Message: msg})
	}
}

// Entries returns a copy of the current projection.
func (t *Thread) Entries() []Entry {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]Entry, len(t.entries))
	copy(out, t.entries)
	return out
}

// UnreadInbound lists ids of confirmed inbound messages not yet read, in
// thread order. MarkThreadRead walks this list.
func (t *Thread) UnreadInbound() []int64 {
	t.mu.Lock()
	defer t.mu.Unlock()

	var ids []int64
	for _, e := range t.entries {
		if !e.Pending && e.Message.ReceiverID == t.selfID && !e.Message.IsRead {
			ids = append(ids, e.Message.ID)
		}
	}
	return ids
}

// PendingCount reports how many provisional entries await settlement.
func (t *Thread) PendingCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	n := 0
	for _, e := range t.entries {
		if e.Pending {
			n++
		}
	}
	return n
}

func (t *Thread) belongs(msg proto.MessagePayload) bool {
	if msg.SenderID == t.selfID && msg.ReceiverID == t.otherID {
		return true
	}
	return msg.SenderID == t.otherID && msg.ReceiverID == t.selfID
}

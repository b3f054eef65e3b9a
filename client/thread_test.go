package client

import (
	"testing"
	"time"

	"github.com/skillbridge/messaging-server/internal/proto"
)

func inboundMsg(id int64, from, to, content string) proto.MessagePayload {
	return proto.MessagePayload{
		ID:          id,
		SenderID:    from,
		ReceiverID:  to,
		Content:     content,
		MessageType: "text",
		CreatedAt:   time.Now(),
	}
}

func stagedRef(t *testing.T, th *Thread, content string) string {
	t.Helper()

	ref := "pending-test-" + content
	th.Stage(ref, "text", content, nil, "")
	return ref
}

func TestThreadConfirmReplacesInPlace(t *testing.T) {
	th := NewThread("alice", "bob")

	th.Append(inboundMsg(1, "bob", "alice", "before"))
	ref := stagedRef(t, th, "optimistic")
	th.Append(inboundMsg(2, "bob", "alice", "after"))

	confirmed := inboundMsg(3, "alice", "bob", "optimistic")
	if !th.Confirm(ref, confirmed) {
		t.Fatal("confirm did not find staged entry")
	}

	entries := th.Entries()
	if len(entries) != 3 {
		t.Fatalf("got %d entries, want 3", len(entries))
	}
	// Same position, now canonical.
	if entries[1].Pending || entries[1].LocalID != "" {
		t.Fatalf("confirmed entry still provisional: %+v", entries[1])
	}
	if entries[1].Message.ID != 3 {
		t.Fatalf("confirmed entry id = %d, want 3", entries[1].Message.ID)
	}
	if th.PendingCount() != 0 {
		t.Fatalf("pending count = %d after confirm", th.PendingCount())
	}
}

func TestThreadRejectRemovesStagedEntry(t *testing.T) {
	th := NewThread("alice", "bob")

	th.Append(inboundMsg(1, "bob", "alice", "hello"))
	ref := stagedRef(t, th, "doomed")

	if !th.Reject(ref) {
		t.Fatal("reject did not find staged entry")
	}

	entries := th.Entries()
	if len(entries) != 1 {
		t.Fatalf("got %d entries after reject, want 1", len(entries))
	}
	if th.PendingCount() != 0 {
		t.Fatal("provisional entry survived rejection")
	}

	// Settling twice is a no-op.
	if th.Reject(ref) {
		t.Fatal("second reject found an entry")
	}
	if th.Confirm(ref, inboundMsg(9, "alice", "bob", "late")) {
		t.Fatal("confirm after reject found an entry")
	}
}

func TestThreadIgnoresForeignMessages(t *testing.T) {
	th := NewThread("alice", "bob")

	if th.Append(inboundMsg(1, "carol", "alice", "wrong thread")) {
		t.Fatal("appended a message from another conversation")
	}
	if len(th.Entries()) != 0 {
		t.Fatal("foreign message stored")
	}
}

func TestThreadUnreadInbound(t *testing.T) {
	th := NewThread("alice", "bob")

	th.Append(inboundMsg(1, "bob", "alice", "unread one"))
	th.Append(inboundMsg(2, "alice", "bob", "outbound"))
	th.Append(inboundMsg(3, "bob", "alice", "unread two"))
	stagedRef(t, th, "provisional")

	ids := th.UnreadInbound()
	if len(ids) != 2 || ids[0] != 1 || ids[1] != 3 {
		t.Fatalf("unread inbound = %v, want [1 3]", ids)
	}

	if !th.ApplyRead(1) {
		t.Fatal("apply read missed message 1")
	}
	ids = th.UnreadInbound()
	if len(ids) != 1 || ids[0] != 3 {
		t.Fatalf("unread inbound after read = %v, want [3]", ids)
	}
}

func TestThreadSeedReplacesContents(t *testing.T) {
	th := NewThread("alice", "bob")
	stagedRef(t, th, "stale")

	th.Seed([]proto.MessagePayload{
		inboundMsg(1, "bob", "alice", "one"),
		inboundMsg(2, "alice", "bob", "two"),
	})

	entries := th.Entries()
	if len(entries) != 2 {
		t.Fatalf("got %d entries after seed, want 2", len(entries))
	}
	if th.PendingCount() != 0 {
		t.Fatal("seed kept a provisional entry")
	}
	if entries[0].Message.ID != 1 || entries[1].Message.ID != 2 {
		t.Fatalf("seed order wrong: %+v", entries)
	}
}

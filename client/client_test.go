package client

import (
	"context"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/skillbridge/messaging-server/internal/auth"
	"github.com/skillbridge/messaging-server/internal/blob"
	"github.com/skillbridge/messaging-server/internal/config"
	"github.com/skillbridge/messaging-server/internal/core"
	"github.com/skillbridge/messaging-server/internal/store/sqlite"
	transport "github.com/skillbridge/messaging-server/internal/transport/http"
)

var e2eJWT = auth.JWTConfig{
	Secret:   []byte("e2e-secret"),
	Issuer:   "skillbridge-auth",
	Audience: "skillbridge-messaging",
	TTL:      time.Hour,
}

func startServer(t *testing.T) *httptest.Server {
	t.Helper()

	dir := t.TempDir()
	st, err := sqlite.New(filepath.Join(dir, "e2e.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	blobs, err := blob.NewLocalStore(filepath.Join(dir, "uploads"), "http://example.test")
	if err != nil {
		t.Fatalf("open blob store: %v", err)
	}

	logger := zerolog.Nop()
	hub := core.NewHub(st, &logger)
	verifier := auth.NewVerifier(&e2eJWT)

	router := transport.NewRouter(hub, st, blobs, verifier, config.Default(), &logger)
	ts := httptest.NewServer(router)
	t.Cleanup(ts.Close)
	return ts
}

func connect(t *testing.T, ctx context.Context, ts *httptest.Server, userID, name string, role core.Role) (*Client, <-chan Event) {
	t.Helper()

	token, err := auth.GenerateToken(&e2eJWT, userID, name, role)
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}

	c, err := Dial(ctx, Options{
		URL:    strings.Replace(ts.URL, "http", "ws", 1) + "/ws",
		Token:  token,
		UserID: userID,
	})
	if err != nil {
		t.Fatalf("dial as %s: %v", userID, err)
	}
	t.Cleanup(func() { _ = c.Close() })

	events := make(chan Event, 32)
	go func() {
		defer close(events)
		_ = c.Listen(ctx, func(ev Event) { events <- ev })
	}()
	return c, events
}

func waitFor(t *testing.T, events <-chan Event, name string) Event {
	t.Helper()

	deadline := time.After(5 * time.Second)
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				t.Fatalf("event stream closed waiting for %s", name)
			}
			if ev.Name == name {
				return ev
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %s", name)
		}
	}
}

func TestOptimisticSendRoundTrip(t *testing.T) {
	ts := startServer(t)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	alice, aliceEvents := connect(t, ctx, ts, "alice", "Alice", core.RoleCustomer)
	_, bobEvents := connect(t, ctx, ts, "bob", "Bob", core.RoleProvider)

	thread := NewThread("alice", "bob")

	ref, err := alice.SendMessage(ctx, "bob", "text", "hello bob", nil, "")
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	thread.Stage(ref, "text", "hello bob", nil, "")

	ack := waitFor(t, aliceEvents, "message_sent")
	if ack.Sent.Ref != ref {
		t.Fatalf("ack ref = %q, want %q", ack.Sent.Ref, ref)
	}
	if !thread.Confirm(ack.Sent.Ref, ack.Sent.Message) {
		t.Fatal("confirm missed staged entry")
	}
	if thread.PendingCount() != 0 {
		t.Fatal("provisional entry survived ack")
	}

	recv := waitFor(t, bobEvents, "receive_message")
	if recv.Message.Content != "hello bob" || recv.Message.ID != ack.Sent.Message.ID {
		t.Fatalf("unexpected delivery: %+v", recv.Message)
	}
}

func TestFailedSendIsRejectedFromThread(t *testing.T) {
	ts := startServer(t)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	alice, aliceEvents := connect(t, ctx, ts, "alice", "Alice", core.RoleCustomer)

	thread := NewThread("alice", "alice")

	// Self-send fails validation server-side.
	ref, err := alice.SendMessage(ctx, "alice", "text", "to myself", nil, "")
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	thread.Stage(ref, "text", "to myself", nil, "")

	failure := waitFor(t, aliceEvents, "message_error")
	if failure.SendError.Ref != ref {
		t.Fatalf("error ref = %q, want %q", failure.SendError.Ref, ref)
	}
	if !thread.Reject(failure.SendError.Ref) {
		t.Fatal("reject missed staged entry")
	}
	if len(thread.Entries()) != 0 || thread.PendingCount() != 0 {
		t.Fatal("rejected entry survived settlement")
	}
}

func TestReadReceiptReachesSender(t *testing.T) {
	ts := startServer(t)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	alice, aliceEvents := connect(t, ctx, ts, "alice", "Alice", core.RoleCustomer)
	bob, bobEvents := connect(t, ctx, ts, "bob", "Bob", core.RoleProvider)

	if _, err := alice.SendMessage(ctx, "bob", "text", "read me", nil, ""); err != nil {
		t.Fatalf("send: %v", err)
	}

	recv := waitFor(t, bobEvents, "receive_message")

	bobThread := NewThread("bob", "alice")
	bobThread.Append(*recv.Message)
	if err := bob.MarkThreadRead(ctx, bobThread); err != nil {
		t.Fatalf("mark thread read: %v", err)
	}

	receipt := waitFor(t, aliceEvents, "message_read")
	if receipt.Read.MessageID != recv.Message.ID || receipt.Read.ReadAt.IsZero() {
		t.Fatalf("unexpected receipt: %+v", receipt.Read)
	}
}

func TestRESTWorkflow(t *testing.T) {
	ts := startServer(t)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	alice, aliceEvents := connect(t, ctx, ts, "alice", "Alice", core.RoleCustomer)

	attachment, err := aliceREST(t, ts).Upload(ctx, "contract.pdf", "application/pdf", []byte("pdf bytes"))
	if err != nil {
		t.Fatalf("upload: %v", err)
	}

	url, ok := attachment.Consume()
	if !ok {
		t.Fatal("attachment consume failed")
	}
	if _, err := alice.SendMessage(ctx, "bob", "file", "", []string{url}, "project-42"); err != nil {
		t.Fatalf("send file message: %v", err)
	}
	ack := waitFor(t, aliceEvents, "message_sent")
	if len(ack.Sent.Message.Attachments) != 1 || ack.Sent.Message.Attachments[0] != url {
		t.Fatalf("attachment lost: %+v", ack.Sent.Message)
	}

	bobToken, err := auth.GenerateToken(&e2eJWT, "bob", "Bob", core.RoleProvider)
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}
	bobREST := NewREST(ts.URL, bobToken)

	convs, err := bobREST.Conversations(ctx)
	if err != nil {
		t.Fatalf("conversations: %v", err)
	}
	if len(convs) != 1 || convs[0].CounterpartyID != "alice" || convs[0].UnreadCount != 1 {
		t.Fatalf("unexpected conversations: %+v", convs)
	}
	if !convs[0].Online {
		t.Fatal("alice has a live connection but shows offline")
	}

	history, err := bobREST.History(ctx, "alice", HistoryOptions{ProjectID: "project-42"})
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(history) != 1 || history[0].ID != ack.Sent.Message.ID {
		t.Fatalf("unexpected history: %+v", history)
	}

	result, err := bobREST.MarkRead(ctx, ack.Sent.Message.ID)
	if err != nil {
		t.Fatalf("mark read: %v", err)
	}
	if !result.Changed || result.ReadAt.IsZero() {
		t.Fatalf("unexpected mark read result: %+v", result)
	}

	receipt := waitFor(t, aliceEvents, "message_read")
	if receipt.Read.MessageID != ack.Sent.Message.ID {
		t.Fatalf("receipt for %d, want %d", receipt.Read.MessageID, ack.Sent.Message.ID)
	}
}

func aliceREST(t *testing.T, ts *httptest.Server) *REST {
	t.Helper()

	token, err := auth.GenerateToken(&e2eJWT, "alice", "Alice", core.RoleCustomer)
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}
	return NewREST(ts.URL, token)
}

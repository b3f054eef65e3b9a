package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	stdhttp "net/http"
	"strings"
	"testing"
	"time"

	"github.com/skillbridge/messaging-server/internal/core"
	"github.com/skillbridge/messaging-server/internal/store"
)

func apiRequest(t *testing.T, env *testEnv, method, path, token string, body io.Reader, contentType string) *stdhttp.Response {
	t.Helper()

	req, err := stdhttp.NewRequest(method, env.ts.URL+path, body)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := env.ts.Client().Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decodeBody[T any](t *testing.T, resp *stdhttp.Response) T {
	t.Helper()

	var v T
	if err := json.NewDecoder(resp.Body).Decode(&v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return v
}

func seedMessage(t *testing.T, env *testEnv, sender, receiver, content string) *store.Message {
	t.Helper()

	msg := &store.Message{
		SenderID:   sender,
		ReceiverID: receiver,
		Kind:       "text",
		Content:    content,
	}
	if err := env.store.SaveMessage(context.Background(), msg); err != nil {
		t.Fatalf("seed message: %v", err)
	}
	return msg
}

func TestAPIRequiresAuth(t *testing.T) {
	env := startTestServer(t)

	resp := apiRequest(t, env, stdhttp.MethodGet, "/api/conversations", "", nil, "")
	if resp.StatusCode != stdhttp.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", resp.StatusCode)
	}

	resp = apiRequest(t, env, stdhttp.MethodGet, "/api/conversations", "garbage-token", nil, "")
	if resp.StatusCode != stdhttp.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", resp.StatusCode)
	}
}

func TestGetConversations(t *testing.T) {
	env := startTestServer(t)

	seedMessage(t, env, "bob", "alice", "first")
	seedMessage(t, env, "bob", "alice", "second")
	seedMessage(t, env, "alice", "carol", "hey carol")

	token := testToken(t, "alice", "Alice", core.RoleCustomer)
	resp := apiRequest(t, env, stdhttp.MethodGet, "/api/conversations", token, nil, "")
	if resp.StatusCode != stdhttp.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	body := decodeBody[struct {
		Conversations []conversationResponse `json:"conversations"`
	}](t, resp)

	if len(body.Conversations) != 2 {
		t.Fatalf("got %d conversations, want 2", len(body.Conversations))
	}
	// Most recent first.
	if body.Conversations[0].CounterpartyID != "carol" {
		t.Fatalf("first conversation with %q, want carol", body.Conversations[0].CounterpartyID)
	}
	bobConv := body.Conversations[1]
	if bobConv.CounterpartyID != "bob" || bobConv.UnreadCount != 2 {
		t.Fatalf("unexpected bob conversation: %+v", bobConv)
	}
	if bobConv.LastMessage == nil || bobConv.LastMessage.Content != "second" {
		t.Fatalf("unexpected last message: %+v", bobConv.LastMessage)
	}
	if bobConv.Online {
		t.Fatal("bob reported online without a connection")
	}
}

func TestGetConversationsPresenceFlag(t *testing.T) {
	env := startTestServer(t)

	seedMessage(t, env, "bob", "alice", "hi")

	bob := core.NewClient("conn-1", "bob", "Bob", core.RoleProvider)
	env.hub.Register(context.Background(), bob)
	defer env.hub.Unregister(context.Background(), bob)

	token := testToken(t, "alice", "Alice", core.RoleCustomer)
	resp := apiRequest(t, env, stdhttp.MethodGet, "/api/conversations", token, nil, "")

	body := decodeBody[struct {
		Conversations []conversationResponse `json:"conversations"`
	}](t, resp)

	if len(body.Conversations) != 1 || !body.Conversations[0].Online {
		t.Fatalf("expected bob online, got %+v", body.Conversations)
	}
}

func TestGetMessages(t *testing.T) {
	env := startTestServer(t)

	m1 := seedMessage(t, env, "alice", "bob", "one")
	seedMessage(t, env, "bob", "alice", "two")
	seedMessage(t, env, "alice", "carol", "other thread")

	token := testToken(t, "alice", "Alice", core.RoleCustomer)

	resp := apiRequest(t, env, stdhttp.MethodGet, "/api/messages?otherUserId=bob", token, nil, "")
	if resp.StatusCode != stdhttp.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	body := decodeBody[struct {
		Messages []messageRecord `json:"messages"`
	}](t, resp)
	if len(body.Messages) != 2 {
		t.Fatalf("got %d messages, want 2", len(body.Messages))
	}
	if body.Messages[0].Content != "one" || body.Messages[1].Content != "two" {
		t.Fatalf("messages out of order: %+v", body.Messages)
	}

	// beforeId excludes the newer message.
	path := fmt.Sprintf("/api/messages?otherUserId=bob&beforeId=%d", m1.ID+1)
	resp = apiRequest(t, env, stdhttp.MethodGet, path, token, nil, "")
	body = decodeBody[struct {
		Messages []messageRecord `json:"messages"`
	}](t, resp)
	if len(body.Messages) != 1 || body.Messages[0].ID != m1.ID {
		t.Fatalf("beforeId filter returned %+v", body.Messages)
	}
}

func TestGetMessagesValidation(t *testing.T) {
	env := startTestServer(t)
	token := testToken(t, "alice", "Alice", core.RoleCustomer)

	resp := apiRequest(t, env, stdhttp.MethodGet, "/api/messages", token, nil, "")
	if resp.StatusCode != stdhttp.StatusBadRequest {
		t.Fatalf("missing otherUserId: status = %d, want 400", resp.StatusCode)
	}

	resp = apiRequest(t, env, stdhttp.MethodGet, "/api/messages?otherUserId=bob&limit=nope", token, nil, "")
	if resp.StatusCode != stdhttp.StatusBadRequest {
		t.Fatalf("bad limit: status = %d, want 400", resp.StatusCode)
	}
}

func TestMarkReadEndpoint(t *testing.T) {
	env := startTestServer(t)

	msg := seedMessage(t, env, "alice", "bob", "read me")
	token := testToken(t, "bob", "Bob", core.RoleProvider)

	path := fmt.Sprintf("/api/messages/%d/read", msg.ID)
	resp := apiRequest(t, env, stdhttp.MethodPut, path, token, nil, "")
	if resp.StatusCode != stdhttp.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	body := decodeBody[struct {
		MessageID int64     `json:"messageId"`
		ReadAt    time.Time `json:"readAt"`
		Changed   bool      `json:"changed"`
	}](t, resp)
	if body.MessageID != msg.ID || !body.Changed || body.ReadAt.IsZero() {
		t.Fatalf("unexpected body: %+v", body)
	}

	// Second call is idempotent.
	resp = apiRequest(t, env, stdhttp.MethodPut, path, token, nil, "")
	body = decodeBody[struct {
		MessageID int64     `json:"messageId"`
		ReadAt    time.Time `json:"readAt"`
		Changed   bool      `json:"changed"`
	}](t, resp)
	if body.Changed {
		t.Fatal("second mark read reported a change")
	}
}

func TestMarkReadHidesForeignMessages(t *testing.T) {
	env := startTestServer(t)

	msg := seedMessage(t, env, "alice", "bob", "private")
	token := testToken(t, "carol", "Carol", core.RoleCustomer)

	path := fmt.Sprintf("/api/messages/%d/read", msg.ID)
	resp := apiRequest(t, env, stdhttp.MethodPut, path, token, nil, "")
	if resp.StatusCode != stdhttp.StatusNotFound {
		t.Fatalf("status = %d, want 404", resp.StatusCode)
	}
}

func TestUploadReturnsFileURL(t *testing.T) {
	env := startTestServer(t)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", "contract.pdf")
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	if _, err := part.Write([]byte("pdf bytes")); err != nil {
		t.Fatalf("write form file: %v", err)
	}
	mw.Close()

	token := testToken(t, "alice", "Alice", core.RoleCustomer)
	resp := apiRequest(t, env, stdhttp.MethodPost, "/api/messages/upload", token, &buf, mw.FormDataContentType())
	if resp.StatusCode != stdhttp.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	body := decodeBody[struct {
		FileURL string `json:"fileUrl"`
	}](t, resp)
	if body.FileURL == "" || !strings.Contains(body.FileURL, "/uploads/") {
		t.Fatalf("unexpected file url %q", body.FileURL)
	}
	if !strings.HasSuffix(body.FileURL, ".pdf") {
		t.Fatalf("file url %q lost the extension", body.FileURL)
	}
}

func TestUploadRequiresFile(t *testing.T) {
	env := startTestServer(t)

	token := testToken(t, "alice", "Alice", core.RoleCustomer)
	resp := apiRequest(t, env, stdhttp.MethodPost, "/api/messages/upload", token, strings.NewReader("nope"), "text/plain")
	if resp.StatusCode != stdhttp.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
}

package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strconv"
	"time"

	"github.com/skillbridge/messaging-server/internal/proto"
)

// Conversation is one row from the conversations endpoint.
type Conversation struct {
	CounterpartyID string                `json:"counterpartyId"`
	LastMessage    *proto.MessagePayload `json:"lastMessage,omitempty"`
	UnreadCount    int                   `json:"unreadCount"`
	Online         bool                  `json:"online"`
}

// HistoryOptions narrow a thread history request.
type HistoryOptions struct {
	ProjectID string
	BeforeID  int64
	Limit     int
}

// ReadResult reports the outcome of a durable read-mark.
type ReadResult struct {
	MessageID int64     `json:"messageId"`
	ReadAt    time.Time `json:"readAt"`
	Changed   bool      `json:"changed"`
}

// REST calls the server's HTTP API with a bearer token.
type REST struct {
	base  string
	token string
	http  *http.Client
}

// NewREST creates an API client for the given base URL, e.g.
// http://localhost:8080.
func NewREST(baseURL, token string) *REST {
	return &REST{
		base:  baseURL,
		token: token,
		http:  &http.Client{Timeout: 30 * time.Second},
	}
}

// Conversations fetches the conversation list.
func (r *REST) Conversations(ctx context.Context) ([]Conversation, error) {
	var body struct {
		Conversations []Conversation `json:"conversations"`
	}
	if err := r.getJSON(ctx, "/api/conversations", &body); err != nil {
		return nil, err
	}
	return body.Conversations, nil
}

// History fetches the thread with otherUserID, oldest first.
func (r *REST) History(ctx context.Context, otherUserID string, opts HistoryOptions) ([]proto.MessagePayload, error) {
	q := url.Values{}
	q.Set("otherUserId", otherUserID)
	if opts.ProjectID != "" {
		q.Set("projectId", opts.ProjectID)
	}
	if opts.BeforeID > 0 {
		q.Set("beforeId", strconv.FormatInt(opts.BeforeID, 10))
	}
	if opts.Limit > 0 {
		q.Set("limit", strconv.Itoa(opts.Limit))
	}

	var body struct {
		Messages []proto.MessagePayload `json:"messages"`
	}
	if err := r.getJSON(ctx, "/api/messages?"+q.Encode(), &body); err != nil {
		return nil, err
	}
	return body.Messages, nil
}

// MarkRead durably marks a message as read.
func (r *REST) MarkRead(ctx context.Context, messageID int64) (ReadResult, error) {
	path := fmt.Sprintf("/api/messages/%d/read", messageID)
	req, err := r.newRequest(ctx, http.MethodPut, path, nil, "")
	if err != nil {
		return ReadResult{}, err
	}

	var result ReadResult
	if err := r.do(req, &result); err != nil {
		return ReadResult{}, err
	}
	return result, nil
}

// Upload stores an attachment and returns a PendingAttachment holding its
// URL for exactly one send.
func (r *REST) Upload(ctx context.Context, filename, contentType string, data []byte) (*PendingAttachment, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, filename))
	if contentType != "" {
		header.Set("Content-Type", contentType)
	}

	part, err := mw.CreatePart(header)
	if err != nil {
		return nil, fmt.Errorf("create form part: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return nil, fmt.Errorf("write form part: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("close multipart writer: %w", err)
	}

	req, err := r.newRequest(ctx, http.MethodPost, "/api/messages/upload", &buf, mw.FormDataContentType())
	if err != nil {
		return nil, err
	}

	var body struct {
		FileURL string `json:"fileUrl"`
	}
	if err := r.do(req, &body); err != nil {
		return nil, err
	}
	return NewPendingAttachment(body.FileURL), nil
}

func (r *REST) getJSON(ctx context.Context, path string, out any) error {
	req, err := r.newRequest(ctx, http.MethodGet, path, nil, "")
	if err != nil {
		return err
	}
	return r.do(req, out)
}

func (r *REST) newRequest(ctx context.Context, method, path string, body io.Reader, contentType string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, r.base+path, body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+r.token)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	return req, nil
}

func (r *REST) do(req *http.Request, out any) error {
	resp, err := r.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var apiErr struct {
			Error string `json:"error"`
		}
		if decodeErr := json.NewDecoder(resp.Body).Decode(&apiErr); decodeErr == nil && apiErr.Error != "" {
			return fmt.Errorf("%s %s: %s (status %d)", req.Method, req.URL.Path, apiErr.Error, resp.StatusCode)
		}
		return fmt.Errorf("%s %s: status %d", req.Method, req.URL.Path, resp.StatusCode)
	}

	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

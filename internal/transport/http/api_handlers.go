package http

import (
	"errors"
	"io"
	stdhttp "net/http"
	"path/filepath"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/skillbridge/messaging-server/internal/blob"
	"github.com/skillbridge/messaging-server/internal/core"
	"github.com/skillbridge/messaging-server/internal/store"
)

// ErrorResponse is the uniform REST error body.
type ErrorResponse struct {
	Error string `json:"error"`
}

// Handlers bundles the REST endpoints behind the authenticated /api group.
type Handlers struct {
	store     store.MessageStore
	hub       *core.Hub
	blobs     blob.Store
	maxUpload int64
	log       *zerolog.Logger
}

// NewHandlers builds the REST handler set.
func NewHandlers(st store.MessageStore, hub *core.Hub, blobs blob.Store, maxUpload int64, logger *zerolog.Logger) *Handlers {
	return &Handlers{store: st, hub: hub, blobs: blobs, maxUpload: maxUpload, log: logger}
}

type conversationResponse struct {
	CounterpartyID string         `json:"counterpartyId"`
	LastMessage    *messageRecord `json:"lastMessage,omitempty"`
	UnreadCount    int            `json:"unreadCount"`
	Online         bool           `json:"online"`
}

type messageRecord struct {
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

func toMessageRecord(m *store.Message) *messageRecord {
	if m == nil {
		return nil
	}
	return &messageRecord{
		ID:          m.ID,
		SenderID:    m.SenderID,
		ReceiverID:  m.ReceiverID,
		Content:     m.Content,
		MessageType: m.Kind,
		Attachments: m.Attachments,
		ProjectID:   m.ProjectID,
		IsRead:      m.IsRead,
		CreatedAt:   m.CreatedAt,
	}
}

// GetConversations returns one entry per counterparty, most recent first,
// annotated with live presence.
func (h *Handlers) GetConversations(c *gin.Context) {
	userID := c.GetString(ContextKeyUserID)

	convs, err := h.store.ListConversations(c.Request.Context(), userID)
	if err != nil {
		h.log.Error().Err(err).Str("user_id", userID).Msg("list conversations")
		c.JSON(stdhttp.StatusInternalServerError, ErrorResponse{Error: "failed to load conversations"})
		return
	}

	out := make([]conversationResponse, 0, len(convs))
	for _, conv := range convs {
		out = append(out, conversationResponse{
			CounterpartyID: conv.CounterpartyID,
			LastMessage:    toMessageRecord(conv.LastMessage),
			UnreadCount:    conv.UnreadCount,
			Online:         h.hub.Registry().IsOnline(conv.CounterpartyID),
		})
	}

	c.JSON(stdhttp.StatusOK, gin.H{"conversations": out})
}

// GetMessages returns the thread with otherUserId, oldest first. Supports
// projectId, beforeId and limit query filters.
func (h *Handlers) GetMessages(c *gin.Context) {
	userID := c.GetString(ContextKeyUserID)

	otherUserID := c.Query("otherUserId")
	if otherUserID == "" {
		c.JSON(stdhttp.StatusBadRequest, ErrorResponse{Error: "otherUserId is required"})
		return
	}

	var filter store.ListFilter
	filter.ProjectID = c.Query("projectId")
	if raw := c.Query("beforeId"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id <= 0 {
			c.JSON(stdhttp.StatusBadRequest, ErrorResponse{Error: "beforeId must be a positive integer"})
			return
		}
		filter.BeforeID = id
	}
	if raw := c.Query("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit <= 0 {
			c.JSON(stdhttp.StatusBadRequest, ErrorResponse{Error: "limit must be a positive integer"})
			return
		}
		filter.Limit = limit
	}

	msgs, err := h.store.ListMessages(c.Request.Context(), userID, otherUserID, filter)
	if err != nil {
		h.log.Error().Err(err).Str("user_id", userID).Msg("list messages")
		c.JSON(stdhttp.StatusInternalServerError, ErrorResponse{Error: "failed to load messages"})
		return
	}

	out := make([]*messageRecord, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, toMessageRecord(m))
	}

	c.JSON(stdhttp.StatusOK, gin.H{"messages": out})
}

// MarkRead flips a message to read on behalf of its receiver and fans the
// receipt out to the sender's live connections.
func (h *Handlers) MarkRead(c *gin.Context) {
	userID := c.GetString(ContextKeyUserID)

	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(stdhttp.StatusBadRequest, ErrorResponse{Error: "invalid message id"})
		return
	}

	readAt, changed, cerr := h.hub.MarkRead(c.Request.Context(), userID, id)
	if cerr != nil {
		switch cerr.Code {
		case core.ErrCodeNotFound:
			c.JSON(stdhttp.StatusNotFound, ErrorResponse{Error: cerr.Message})
		default:
			c.JSON(stdhttp.StatusInternalServerError, ErrorResponse{Error: cerr.Message})
		}
		return
	}

	c.JSON(stdhttp.StatusOK, gin.H{
		"messageId": id,
		"readAt":    readAt,
		"changed":   changed,
	})
}

// Upload accepts a multipart file, stores it and returns its URL. The caller
// then references the URL in a send_message frame.
func (h *Handlers) Upload(c *gin.Context) {
	c.Request.Body = stdhttp.MaxBytesReader(c.Writer, c.Request.Body, h.maxUpload)

	file, header, err := c.Request.FormFile("file")
	if err != nil {
		var tooLarge *stdhttp.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.JSON(stdhttp.StatusRequestEntityTooLarge, ErrorResponse{Error: "file exceeds upload limit"})
			return
		}
		c.JSON(stdhttp.StatusBadRequest, ErrorResponse{Error: "file field is required"})
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		c.JSON(stdhttp.StatusRequestEntityTooLarge, ErrorResponse{Error: "file exceeds upload limit"})
		return
	}

	key := uuid.NewString() + filepath.Ext(header.Filename)
	contentType := header.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	url, err := h.blobs.Put(c.Request.Context(), key, contentType, data)
	if err != nil {
		h.log.Error().Err(err).Str("key", key).Msg("store upload")
		c.JSON(stdhttp.StatusInternalServerError, ErrorResponse{Error: "failed to store file"})
		return
	}

	c.JSON(stdhttp.StatusOK, gin.H{"fileUrl": url})
}

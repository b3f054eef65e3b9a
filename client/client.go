// Package client is the importable Go client for the messaging server: a
// socket connection with typed events, an optimistic thread projector, a
// conversation list projector and a small REST client.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/skillbridge/messaging-server/internal/proto"
)

// Event is a decoded server push. Exactly one payload field is set,
// according to Name.
type Event struct {
	Name string

	Message   *proto.MessagePayload
	Sent      *proto.MessageSentData
	SendError *proto.MessageErrorData
	Read      *proto.MessageReadData
	UserID    string
	UserIDs   []string
	Err       *proto.Error
}

// Options configures a socket connection.
type Options struct {
	// URL is the socket endpoint, e.g. ws://localhost:8080/ws.
	URL string
	// Token is the bearer token sent in the hello frame.
	Token string
	// UserID is the authenticated user's id. Sends carry it as senderId;
	// the server rejects frames where it does not match the token.
	UserID string
	// Logger defaults to a disabled logger when nil.
	Logger *zerolog.Logger
}

// Client is a live socket connection. Events must be drained via Listen;
// SendMessage and MarkRead may be called from any goroutine.
type Client struct {
	conn   *websocket.Conn
	userID string
	log    *zerolog.Logger
}

// UserID returns the authenticated user's id.
func (c *Client) UserID() string { return c.userID }

// Dial connects and authenticates. The returned client is ready to send;
// the caller should start Listen to receive pushes.
func Dial(ctx context.Context, opts Options) (*Client, error) {
	logger := opts.Logger
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}

	conn, _, err := websocket.Dial(ctx, opts.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("dial: %w", err)
	}

	payload, err := json.Marshal(proto.HelloData{Token: opts.Token, Protocol: proto.ProtocolVersion})
	if err != nil {
		conn.Close(websocket.StatusInternalError, "marshal hello")
		return nil, fmt.Errorf("marshal hello: %w", err)
	}
	if err := wsjson.Write(ctx, conn, proto.Inbound{Type: proto.InboundTypeHello, Data: payload}); err != nil {
		conn.Close(websocket.StatusInternalError, "write hello")
		return nil, fmt.Errorf("write hello: %w", err)
	}

	return &Client{conn: conn, userID: opts.UserID, log: logger}, nil
}

// Close terminates the connection.
func (c *Client) Close() error {
	return c.conn.Close(websocket.StatusNormalClosure, "bye")
}

// SendMessage stages a send and returns the correlation ref echoed back in
// the matching message_sent or message_error event.
func (c *Client) SendMessage(ctx context.Context, receiverID, messageType, content string, attachments []string, projectID string) (string, error) {
	ref := "pending-" + uuid.NewString()

	payload, err := json.Marshal(proto.SendData{
		Ref:         ref,
		SenderID:    c.userID,
		ReceiverID:  receiverID,
		Content:     content,
		MessageType: messageType,
		Attachments: attachments,
		ProjectID:   projectID,
	})
	if err != nil {
		return "", fmt.Errorf("marshal send: %w", err)
	}
	if err := wsjson.Write(ctx, c.conn, proto.Inbound{Type: proto.InboundTypeSend, Data: payload}); err != nil {
		return "", fmt.Errorf("write send: %w", err)
	}
	return ref, nil
}

// MarkRead reports that the given message has been viewed.
func (c *Client) MarkRead(ctx context.Context, messageID int64) error {
	payload, err := json.Marshal(proto.MarkReadData{MessageID: messageID})
	if err != nil {
		return fmt.Errorf("marshal mark_as_read: %w", err)
	}
	if err := wsjson.Write(ctx, c.conn, proto.Inbound{Type: proto.InboundTypeMarkRead, Data: payload}); err != nil {
		return fmt.Errorf("write mark_as_read: %w", err)
	}
	return nil
}

// MarkThreadRead issues one mark_as_read per unread inbound message in the
// thread. The server confirms each via message_read fan-out to the sender.
func (c *Client) MarkThreadRead(ctx context.Context, t *Thread) error {
	for _, id := range t.UnreadInbound() {
		if err := c.MarkRead(ctx, id); err != nil {
			return err
		}
	}
	return nil
}

// Listen reads frames until the context ends or the connection closes,
// invoking handle for each decoded event. A normal peer close returns nil.
func (c *Client) Listen(ctx context.Context, handle func(Event)) error {
	for {
		var out proto.Outbound
		if err := wsjson.Read(ctx, c.conn, &out); err != nil {
			if errors.Is(err, context.Canceled) {
				return nil
			}
			switch websocket.CloseStatus(err) {
			case websocket.StatusNormalClosure, websocket.StatusGoingAway:
				return nil
			}
			return err
		}

		ev, err := decodeEvent(out)
		if err != nil {
			c.log.Warn().Err(err).Str("event", out.Event).Msg("malformed server frame")
			continue
		}
		handle(ev)
	}
}

func decodeEvent(out proto.Outbound) (Event, error) {
	if out.Type == proto.OutboundTypeError {
		return Event{Name: proto.OutboundTypeError, Err: out.Error}, nil
	}

	// Outbound.Data round-trips through json.RawMessage on the read path.
	raw, err := json.Marshal(out.Data)
	if err != nil {
		return Event{}, fmt.Errorf("marshal event data: %w", err)
	}

	ev := Event{Name: out.Event}
	switch out.Event {
	case proto.EventReceiveMessage:
		var msg proto.MessagePayload
		if err := json.Unmarshal(raw, &msg); err != nil {
			return Event{}, err
		}
		ev.Message = &msg
	case proto.EventMessageSent:
		var sent proto.MessageSentData
		if err := json.Unmarshal(raw, &sent); err != nil {
			return Event{}, err
		}
		ev.Sent = &sent
	case proto.EventMessageError:
		var msgErr proto.MessageErrorData
		if err := json.Unmarshal(raw, &msgErr); err != nil {
			return Event{}, err
		}
		ev.SendError = &msgErr
	case proto.EventMessageRead:
		var read proto.MessageReadData
		if err := json.Unmarshal(raw, &read); err != nil {
			return Event{}, err
		}
		ev.Read = &read
	case proto.EventUserOnline, proto.EventUserOffline:
		var presence proto.PresenceData
		if err := json.Unmarshal(raw, &presence); err != nil {
			return Event{}, err
		}
		ev.UserID = presence.UserID
	case proto.EventOnlineUsers:
		var online proto.OnlineUsersData
		if err := json.Unmarshal(raw, &online); err != nil {
			return Event{}, err
		}
		ev.UserIDs = online.UserIDs
	default:
		return Event{}, fmt.Errorf("unknown event %q", out.Event)
	}
	return ev, nil
}

package http

import (
	"context"
	"errors"
	"io"
	stdhttp "net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/skillbridge/messaging-server/internal/auth"
	"github.com/skillbridge/messaging-server/internal/core"
	"github.com/skillbridge/messaging-server/internal/metrics"
	"github.com/skillbridge/messaging-server/internal/proto"
)

// handshakeTimeout bounds how long a connection may stall before sending hello.
const handshakeTimeout = 10 * time.Second

// WSHandler upgrades HTTP connections, authenticates them via the hello frame
// and bridges them to a core.Client.
type WSHandler struct {
	hub       *core.Hub
	verifier  *auth.Verifier
	sendLimit int
	log       *zerolog.Logger
}

// NewWSHandler builds a new WebSocket handler.
func NewWSHandler(hub *core.Hub, verifier *auth.Verifier, sendLimit int, logger *zerolog.Logger) stdhttp.Handler {
	return &WSHandler{hub: hub, verifier: verifier, sendLimit: sendLimit, log: logger}
}

func (h *WSHandler) ServeHTTP(w stdhttp.ResponseWriter, r *stdhttp.Request) {
	ctx := r.Context()

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		h.log.Error().Err(err).Msg("ws accept error")
		return
	}
	defer conn.Close(websocket.StatusInternalError, "internal error")

	claims, err := h.handshake(ctx, conn)
	if err != nil {
		h.log.Debug().Err(err).Msg("ws handshake rejected")
		conn.Close(websocket.StatusPolicyViolation, "unauthorized")
		return
	}

	client := core.NewClient(uuid.NewString(), claims.UserID, claims.DisplayName, claims.Role)
	h.hub.Register(ctx, client)
	metrics.ActiveConnections.Inc()
	defer func() {
		h.hub.Unregister(context.WithoutCancel(ctx), client)
		metrics.ActiveConnections.Dec()
	}()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	errCh := make(chan error, 2)
	go func() {
		errCh <- h.readLoop(ctx, conn, client)
	}()
	go func() {
		errCh <- h.writeLoop(ctx, conn, client)
	}()

	err = <-errCh
	cancel() // stop the other goroutine
	<-errCh

	status := websocket.StatusNormalClosure
	reason := "closing"
	if err != nil && !errors.Is(err, context.Canceled) {
		if errors.Is(err, io.EOF) {
			err = nil
		}
		if s := websocket.CloseStatus(err); s != 0 {
			status = s
		}
		if status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway {
			err = nil
		}
		if err != nil {
			if status == websocket.StatusNormalClosure {
				status = websocket.StatusInternalError
			}
			reason = err.Error()
			h.log.Warn().Err(err).Str("conn_id", client.ID).Msg("ws connection closed with error")
		}
	}

	conn.Close(status, reason)
}

// handshake reads the first frame, which must be hello{token}, and verifies it.
func (h *WSHandler) handshake(ctx context.Context, conn *websocket.Conn) (*auth.Claims, error) {
	ctx, cancel := context.WithTimeout(ctx, handshakeTimeout)
	defer cancel()

	var inbound proto.Inbound
	if err := wsjson.Read(ctx, conn, &inbound); err != nil {
		return nil, err
	}
	if inbound.Type != proto.InboundTypeHello {
		return nil, errors.New("first frame must be hello")
	}

	hello, err := decodeData[proto.HelloData](inbound.Data)
	if err != nil {
		return nil, err
	}

	claims, err := h.verifier.Verify(hello.Token)
	if err != nil {
		_ = wsjson.Write(ctx, conn, proto.Outbound{
			Type:  proto.OutboundTypeError,
			Error: &proto.Error{Code: core.ErrCodeUnauthorized, Msg: "invalid token"},
		})
		return nil, err
	}
	return claims, nil
}

func (h *WSHandler) readLoop(ctx context.Context, conn *websocket.Conn, client *core.Client) error {
	limiter := newSendLimiter(h.sendLimit)

	for {
		var inbound proto.Inbound
		if err := wsjson.Read(ctx, conn, &inbound); err != nil {
			return err
		}

		switch inbound.Type {
		case proto.InboundTypeSend:
			data, err := decodeData[proto.SendData](inbound.Data)
			if err != nil {
				h.log.Warn().Err(err).Str("conn_id", client.ID).Msg("malformed send frame")
				return err
			}

			var out proto.Outbound
			if !limiter.allow() {
				out = sendError(data.Ref, &core.CoreError{Code: core.ErrCodeRateLimited, Message: "send rate limit exceeded"})
			} else if msg, cerr := h.hub.Send(ctx, client, sendDataToRequest(data)); cerr != nil {
				out = sendError(data.Ref, cerr)
			} else {
				out = sendAck(data.Ref, msg)
			}
			// Acks go straight back on the originating connection; pushes to
			// other connections flow through their event queues.
			if err := wsjson.Write(ctx, conn, out); err != nil {
				return err
			}

		case proto.InboundTypeMarkRead:
			data, err := decodeData[proto.MarkReadData](inbound.Data)
			if err != nil {
				h.log.Warn().Err(err).Str("conn_id", client.ID).Msg("malformed mark_as_read frame")
				return err
			}

			if _, _, cerr := h.hub.MarkRead(ctx, client.UserID, data.MessageID); cerr != nil {
				if err := wsjson.Write(ctx, conn, proto.Outbound{
					Type:  proto.OutboundTypeError,
					Error: &proto.Error{Code: cerr.Code, Msg: cerr.Message},
				}); err != nil {
					return err
				}
			}

		default:
			if err := wsjson.Write(ctx, conn, proto.Outbound{
				Type:  proto.OutboundTypeError,
				Error: &proto.Error{Code: "invalid_message", Msg: "unknown message type"},
			}); err != nil {
				return err
			}
		}
	}
}

func (h *WSHandler) writeLoop(ctx context.Context, conn *websocket.Conn, client *core.Client) error {
	for {
		select {
		case event, ok := <-client.Events:
			if !ok {
				return nil
			}
			if err := wsjson.Write(ctx, conn, outboundFromEvent(event)); err != nil {
				h.log.Error().Err(err).Str("conn_id", client.ID).Msg("write ws event")
				return err
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

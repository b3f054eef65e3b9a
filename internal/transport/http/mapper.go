package http

import (
	"encoding/json"

	"github.com/skillbridge/messaging-server/internal/core"
	"github.com/skillbridge/messaging-server/internal/proto"
)

func sendDataToRequest(data proto.SendData) core.SendRequest {
	return core.SendRequest{
		SenderID:    data.SenderID,
		ReceiverID:  data.ReceiverID,
		Kind:        core.MessageKind(data.MessageType),
		Content:     data.Content,
		Attachments: data.Attachments,
		ProjectID:   data.ProjectID,
	}
}

func messageToPayload(m *core.Message) proto.MessagePayload {
	return proto.MessagePayload{
		ID:          m.ID,
		SenderID:    m.SenderID,
		ReceiverID:  m.ReceiverID,
		Content:     m.Content(),
		MessageType: string(m.Kind),
		Attachments: m.Attachments(),
		ProjectID:   m.ProjectID,
		IsRead:      m.IsRead,
		CreatedAt:   m.CreatedAt,
	}
}

func outboundFromEvent(event *core.Event) proto.Outbound {
	switch event.Kind {
	case core.EventMessageReceived:
		return proto.Outbound{
			Type:  proto.OutboundTypeEvent,
			Event: proto.EventReceiveMessage,
			Data:  messageToPayload(event.Message),
		}
	case core.EventMessageSent:
		return proto.Outbound{
			Type:  proto.OutboundTypeEvent,
			Event: proto.EventMessageSent,
			Data: proto.MessageSentData{
				Ref:     event.Ref,
				Message: messageToPayload(event.Message),
			},
		}
	case core.EventMessageRead:
		return proto.Outbound{
			Type:  proto.OutboundTypeEvent,
			Event: proto.EventMessageRead,
			Data: proto.MessageReadData{
				MessageID: event.MessageID,
				ReadAt:    event.ReadAt,
			},
		}
	case core.EventUserOnline:
		return proto.Outbound{
			Type:  proto.OutboundTypeEvent,
			Event: proto.EventUserOnline,
			Data:  proto.PresenceData{UserID: event.UserID},
		}
	case core.EventUserOffline:
		return proto.Outbound{
			Type:  proto.OutboundTypeEvent,
			Event: proto.EventUserOffline,
			Data:  proto.PresenceData{UserID: event.UserID},
		}
	case core.EventOnlineUsers:
		return proto.Outbound{
			Type:  proto.OutboundTypeEvent,
			Event: proto.EventOnlineUsers,
			Data:  proto.OnlineUsersData{UserIDs: event.UserIDs},
		}
	case core.EventError:
		if event.Error == nil {
			return proto.Outbound{Type: proto.OutboundTypeError, Error: &proto.Error{Code: "unknown", Msg: "unknown error"}}
		}
		return proto.Outbound{
			Type:  proto.OutboundTypeError,
			Error: &proto.Error{Code: event.Error.Code, Msg: event.Error.Message},
		}
	default:
		return proto.Outbound{Type: proto.OutboundTypeEvent}
	}
}

func sendAck(ref string, msg *core.Message) proto.Outbound {
	return proto.Outbound{
		Type:  proto.OutboundTypeEvent,
		Event: proto.EventMessageSent,
		Data: proto.MessageSentData{
			Ref:     ref,
			Message: messageToPayload(msg),
		},
	}
}

func sendError(ref string, cerr *core.CoreError) proto.Outbound {
	return proto.Outbound{
		Type:  proto.OutboundTypeEvent,
		Event: proto.EventMessageError,
		Data: proto.MessageErrorData{
			Ref:   ref,
			Error: proto.Error{Code: cerr.Code, Msg: cerr.Message},
		},
	}
}

func decodeData[T any](raw json.RawMessage) (T, error) {
	var v T
	err := json.Unmarshal(raw, &v)
	return v, err
}

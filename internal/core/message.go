package core

import (
	"time"

	"github.com/skillbridge/messaging-server/internal/store"
)

// MessageKind discriminates the payload a message carries.
type MessageKind string

const (
	KindText     MessageKind = "text"
	KindFile     MessageKind = "file"
	KindSystem   MessageKind = "system"
	KindProposal MessageKind = "proposal"
)

// Body is the per-kind payload of a message. Exactly one variant exists per
// kind, so render code never has to sniff attachment contents.
type Body interface {
	kind() MessageKind
}

// TextBody carries plain chat text.
type TextBody struct {
	Text string
}

// FileBody carries one or more uploaded file URLs.
type FileBody struct {
	URLs []string
}

// SystemBody carries a machine-generated notice referencing a domain object.
type SystemBody struct {
	Ref string
}

// ProposalBody references the project a provider proposal was made against.
type ProposalBody struct {
	ProjectRef string
}

func (TextBody) kind() MessageKind     { return KindText }
func (FileBody) kind() MessageKind     { return KindFile }
func (SystemBody) kind() MessageKind   { return KindSystem }
func (ProposalBody) kind() MessageKind { return KindProposal }

// Message is the domain model for a message between two users.
// Immutable after creation except for IsRead.
type Message struct {
	ID         int64
	SenderID   string
	ReceiverID string
	Kind       MessageKind
	Body       Body
	ProjectID  string
	IsRead     bool
	CreatedAt  time.Time
}

// BuildBody validates the flat wire form (content + attachments) for the given
// kind and returns the typed payload.
func BuildBody(kind MessageKind, content string, attachments []string) (Body, *CoreError) {
	switch kind {
	case KindText:
		if content == "" {
			return nil, coreError(ErrCodeValidation, "text message requires content")
		}
		return TextBody{Text: content}, nil
	case KindFile:
		if len(attachments) == 0 {
			return nil, coreError(ErrCodeValidation, "file message requires at least one attachment")
		}
		return FileBody{URLs: attachments}, nil
	case KindSystem:
		if len(attachments) == 0 || attachments[0] == "" {
			return nil, coreError(ErrCodeValidation, "system message requires a reference")
		}
		return SystemBody{Ref: attachments[0]}, nil
	case KindProposal:
		if len(attachments) == 0 || attachments[0] == "" {
			return nil, coreError(ErrCodeValidation, "proposal message requires a project reference")
		}
		return ProposalBody{ProjectRef: attachments[0]}, nil
	default:
		return nil, coreError(ErrCodeValidation, "unknown message type")
	}
}

// Content returns the flat text content, empty for non-text kinds.
func (m *Message) Content() string {
	if b, ok := m.Body.(TextBody); ok {
		return b.Text
	}
	return ""
}

// Attachments returns the flat attachment list for wire and store codecs.
func (m *Message) Attachments() []string {
	switch b := m.Body.(type) {
	case FileBody:
		return b.URLs
	case SystemBody:
		return []string{b.Ref}
	case ProposalBody:
		return []string{b.ProjectRef}
	default:
		return nil
	}
}

// Record flattens the message into its persisted form.
func (m *Message) Record() *store.Message {
	return &store.Message{
		ID:          m.ID,
		SenderID:    m.SenderID,
		ReceiverID:  m.ReceiverID,
		Kind:        string(m.Kind),
		Content:     m.Content(),
		Attachments: m.Attachments(),
		ProjectID:   m.ProjectID,
		IsRead:      m.IsRead,
		CreatedAt:   m.CreatedAt,
	}
}

// FromRecord rebuilds the domain message from its persisted form.
func FromRecord(rec *store.Message) (*Message, *CoreError) {
	body, cerr := BuildBody(MessageKind(rec.Kind), rec.Content, rec.Attachments)
	if cerr != nil {
		return nil, cerr
	}
	return &Message{
		ID:         rec.ID,
		SenderID:   rec.SenderID,
		ReceiverID: rec.ReceiverID,
		Kind:       MessageKind(rec.Kind),
		Body:       body,
		ProjectID:  rec.ProjectID,
		IsRead:     rec.IsRead,
		CreatedAt:  rec.CreatedAt,
	}, nil
}

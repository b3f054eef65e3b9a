package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/skillbridge/messaging-server/internal/core"
)

// messageCreated is the payload published for every persisted message,
// consumed by the notification pipeline.
type messageCreated struct {
	MessageID   int64     `json:"messageId"`
	SenderID    string    `json:"senderId"`
	ReceiverID  string    `json:"receiverId"`
	MessageType string    `json:"messageType"`
	ProjectID   string    `json:"projectId,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}

// KafkaPublisher writes message-created events to a Kafka topic.
type KafkaPublisher struct {
	writer *kafka.Writer
}

// NewKafkaPublisher builds a publisher for the given brokers and topic.
func NewKafkaPublisher(brokers []string, topic string) *KafkaPublisher {
	w := &kafka.Writer{
		Addr:     kafka.TCP(brokers...),
		Topic:    topic,
		Balancer: &kafka.LeastBytes{},
	}
	return &KafkaPublisher{writer: w}
}

// MessageCreated publishes one event keyed by receiver so a consumer can
// partition per user.
func (p *KafkaPublisher) MessageCreated(ctx context.Context, msg *core.Message) error {
	payload, err := json.Marshal(messageCreated{
		MessageID:   msg.ID,
		SenderID:    msg.SenderID,
		ReceiverID:  msg.ReceiverID,
		MessageType: string(msg.Kind),
		ProjectID:   msg.ProjectID,
		CreatedAt:   msg.CreatedAt,
	})
	if err != nil {
		return fmt.Errorf("marshal message created: %w", err)
	}

	return p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(msg.ReceiverID + ":" + strconv.FormatInt(msg.ID, 10)),
		Value: payload,
		Time:  time.Now(),
	})
}

// Close flushes and closes the underlying writer.
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

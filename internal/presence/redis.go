package presence

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Mirror reflects presence transitions into Redis so REST-only services and
// sibling instances can answer "is online" without a socket. The in-process
// registry stays authoritative; the mirror is best effort.
type Mirror struct {
	client *redis.Client
	prefix string
}

type presenceRecord struct {
	Status   string `json:"status"`
	LastSeen int64  `json:"last_seen"`
}

// NewMirror builds a mirror over an existing Redis client.
func NewMirror(client *redis.Client, prefix string) *Mirror {
	return &Mirror{client: client, prefix: prefix}
}

func (m *Mirror) key(userID string) string {
	return fmt.Sprintf("%s:presence:%s", m.prefix, userID)
}

// SetOnline records the user as online.
func (m *Mirror) SetOnline(ctx context.Context, userID string) error {
	return m.set(ctx, userID, "online")
}

// SetOffline records the user as offline with a last-seen timestamp.
func (m *Mirror) SetOffline(ctx context.Context, userID string) error {
	return m.set(ctx, userID, "offline")
}

func (m *Mirror) set(ctx context.Context, userID, status string) error {
	payload, err := json.Marshal(presenceRecord{
		Status:   status,
		LastSeen: time.Now().Unix(),
	})
	if err != nil {
		return fmt.Errorf("marshal presence: %w", err)
	}
	if err := m.client.Set(ctx, m.key(userID), payload, 0).Err(); err != nil {
		return fmt.Errorf("set presence: %w", err)
	}
	return nil
}

// Get reads a user's mirrored presence. Returns status "offline" for users
// never seen.
func (m *Mirror) Get(ctx context.Context, userID string) (status string, lastSeen time.Time, err error) {
	data, err := m.client.Get(ctx, m.key(userID)).Bytes()
	if err == redis.Nil {
		return "offline", time.Time{}, nil
	}
	if err != nil {
		return "", time.Time{}, fmt.Errorf("get presence: %w", err)
	}

	var rec presenceRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return "", time.Time{}, fmt.Errorf("unmarshal presence: %w", err)
	}
	return rec.Status, time.Unix(rec.LastSeen, 0), nil
}

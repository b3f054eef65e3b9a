package core

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/skillbridge/messaging-server/internal/store"
)

func mustEvent(t *testing.T, ch <-chan *Event, kind EventKind) *Event {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		select {
		case ev := <-ch:
			if ev == nil {
				continue
			}
			if ev.Kind == kind {
				return ev
			}
		default:
			time.Sleep(10 * time.Millisecond)
		}
	}
	t.Fatalf("expected event kind %v not received", kind)
	return nil
}

func mustNoEvent(t *testing.T, ch <-chan *Event, kind EventKind) {
	t.Helper()

	timeout := time.After(100 * time.Millisecond)
	for {
		select {
		case ev := <-ch:
			if ev != nil && ev.Kind == kind {
				t.Fatalf("unexpected event kind %v: %+v", kind, ev)
			}
		case <-timeout:
			return
		}
	}
}

// fakeStore is an in-memory MessageStore for hub tests.
type fakeStore struct {
	mu       sync.Mutex
	nextID   int64
	messages map[int64]*store.Message
	failSave bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{messages: make(map[int64]*store.Message)}
}

func (f *fakeStore) SaveMessage(_ context.Context, msg *store.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failSave {
		return errors.New("save failed")
	}
	f.nextID++
	msg.ID = f.nextID
	msg.CreatedAt = time.Now().UTC()
	cp := *msg
	f.messages[msg.ID] = &cp
	return nil
}

func (f *fakeStore) GetMessage(_ context.Context, id int64) (*store.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	msg, ok := f.messages[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *msg
	return &cp, nil
}

func (f *fakeStore) MarkMessageRead(_ context.Context, id int64) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	msg, ok := f.messages[id]
	if !ok {
		return false, store.ErrNotFound
	}
	if msg.IsRead {
		return false, nil
	}
	msg.IsRead = true
	return true, nil
}

func (f *fakeStore) ListMessages(_ context.Context, userID, otherUserID string, _ store.ListFilter) ([]*store.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*store.Message
	for id := int64(1); id <= f.nextID; id++ {
		msg, ok := f.messages[id]
		if !ok {
			continue
		}
		if (msg.SenderID == userID && msg.ReceiverID == otherUserID) ||
			(msg.SenderID == otherUserID && msg.ReceiverID == userID) {
			cp := *msg
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (f *fakeStore) ListConversations(_ context.Context, _ string) ([]*store.Conversation, error) {
	return nil, nil
}

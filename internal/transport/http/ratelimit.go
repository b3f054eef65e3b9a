package http

import "time"

// sendLimiter caps send_message frames per connection over a sliding minute.
// It is owned by a single connection's read loop and needs no locking.
type sendLimiter struct {
	limit       int
	counter     int
	windowStart time.Time
}

func newSendLimiter(limit int) *sendLimiter {
	return &sendLimiter{limit: limit}
}

func (l *sendLimiter) allow() bool {
	if l == nil || l.limit <= 0 {
		return true
	}

	now := time.Now()
	if now.Sub(l.windowStart) >= time.Minute {
		l.windowStart = now
		l.counter = 0
	}

	l.counter++
	return l.counter <= l.limit
}

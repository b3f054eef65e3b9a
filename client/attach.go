package client

import "sync"

// PendingAttachment holds an uploaded file URL between the upload call and
// the send that references it. Consume succeeds exactly once, so a URL can
// never be attached to two messages by accident.
type PendingAttachment struct {
	mu       sync.Mutex
	url      string
	consumed bool
}

// NewPendingAttachment wraps an uploaded file URL.
func NewPendingAttachment(url string) *PendingAttachment {
	return &PendingAttachment{url: url}
}

// URL peeks at the held URL without consuming it, for previews.
func (p *PendingAttachment) URL() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.url
}

// Consume takes the URL for sending. The second and later calls return
// false and the caller must not attach the URL again.
func (p *PendingAttachment) Consume() (string, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.consumed {
		return "", false
	}
	p.consumed = true
	return p.url, true
}

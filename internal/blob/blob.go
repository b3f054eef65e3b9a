package blob

import "context"

// Store persists uploaded attachment binaries and returns a durable URL.
// The URL is the only thing the messaging core ever sees; message sends
// reference it, they never carry the bytes.
type Store interface {
	// Put stores the data under key and returns its public URL.
	Put(ctx context.Context, key, contentType string, data []byte) (string, error)
}

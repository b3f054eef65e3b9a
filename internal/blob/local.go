package blob

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
)

// LocalStore writes attachments to a directory served statically by the HTTP
// server. Intended for development and tests.
type LocalStore struct {
	dir     string
	baseURL string
}

// NewLocalStore creates the upload directory if needed.
// baseURL is the externally visible server root, e.g. "http://localhost:8080".
func NewLocalStore(dir, baseURL string) (*LocalStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	return &LocalStore{
		dir:     dir,
		baseURL: strings.TrimRight(baseURL, "/"),
	}, nil
}

// Dir returns the directory served under /uploads.
func (s *LocalStore) Dir() string { return s.dir }

// Put writes the file and returns its URL under /uploads.
func (s *LocalStore) Put(_ context.Context, key, _ string, data []byte) (string, error) {
	// Keys are server-generated, but never trust them as paths.
	name := filepath.Base(key)
	if name == "." || name == string(filepath.Separator) {
		return "", fmt.Errorf("invalid object key %q", key)
	}

	if err := os.WriteFile(filepath.Join(s.dir, name), data, 0o600); err != nil {
		return "", fmt.Errorf("write attachment: %w", err)
	}
	return s.baseURL + "/uploads/" + url.PathEscape(name), nil
}

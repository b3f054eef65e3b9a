package blob

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func TestLocalStorePut(t *testing.T) {
	dir := t.TempDir()
	s, err := NewLocalStore(dir, "http://localhost:8080/")
	if err != nil {
		t.Fatalf("new local store: %v", err)
	}

	url, err := s.Put(context.Background(), "invoice.pdf", "application/pdf", []byte("pdf-bytes"))
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	if url != "http://localhost:8080/uploads/invoice.pdf" {
		t.Fatalf("unexpected url: %s", url)
	}

	data, err := os.ReadFile(filepath.Join(dir, "invoice.pdf"))
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	if string(data) != "pdf-bytes" {
		t.Fatalf("unexpected content: %q", data)
	}
}

func TestLocalStoreStripsPathComponents(t *testing.T) {
	dir := t.TempDir()
	s, err := NewLocalStore(dir, "http://localhost:8080")
	if err != nil {
		t.Fatalf("new local store: %v", err)
	}

	url, err := s.Put(context.Background(), "../../etc/passwd", "text/plain", []byte("x"))
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	if url != "http://localhost:8080/uploads/passwd" {
		t.Fatalf("unexpected url: %s", url)
	}
	if _, err := os.Stat(filepath.Join(dir, "passwd")); err != nil {
		t.Fatalf("file not written inside dir: %v", err)
	}
}

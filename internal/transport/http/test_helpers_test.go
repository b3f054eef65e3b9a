package http

import (
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/skillbridge/messaging-server/internal/auth"
	"github.com/skillbridge/messaging-server/internal/blob"
	"github.com/skillbridge/messaging-server/internal/config"
	"github.com/skillbridge/messaging-server/internal/core"
	"github.com/skillbridge/messaging-server/internal/store/sqlite"
)

var testJWT = auth.JWTConfig{
	Secret:   []byte("test-secret"),
	Issuer:   "skillbridge-auth",
	Audience: "skillbridge-messaging",
	TTL:      time.Hour,
}

type testEnv struct {
	ts    *httptest.Server
	hub   *core.Hub
	store *sqlite.SQLiteStore
}

func startTestServer(t *testing.T) *testEnv {
	t.Helper()

	dir := t.TempDir()

	st, err := sqlite.New(filepath.Join(dir, "test.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	blobs, err := blob.NewLocalStore(filepath.Join(dir, "uploads"), "http://example.test")
	if err != nil {
		t.Fatalf("open blob store: %v", err)
	}

	logger := zerolog.Nop()
	hub := core.NewHub(st, &logger)
	verifier := auth.NewVerifier(&testJWT)

	cfg := config.Default()
	cfg.SendRateLimit = 0

	router := NewRouter(hub, st, blobs, verifier, cfg, &logger)
	ts := httptest.NewServer(router)
	t.Cleanup(ts.Close)

	return &testEnv{ts: ts, hub: hub, store: st}
}

func testToken(t *testing.T, userID, name string, role core.Role) string {
	t.Helper()

	token, err := auth.GenerateToken(&testJWT, userID, name, role)
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}
	return token
}

package http

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/vovakirdan/wirechat-relay/internal/auth"
	"github.com/vovakirdan/wirechat-relay/internal/core"
	"github.com/vovakirdan/wirechat-relay/internal/store"
	"github.com/vovakirdan/wirechat-relay/internal/store/sqlite"
	"github.com/vovakirdan/wirechat-relay/internal/transport/tcp"
)

const testSecret = "s3cret"

type testEnv struct {
	registry *core.Registry
	store    store.Store
	server   *httptest.Server
}

// createTestStore creates an in-memory SQLite ledger.
func createTestStore(t *testing.T) store.Store {
	t.Helper()

	st, err := sqlite.New(":memory:")
	if err != nil {
		t.Fatalf("failed to create test store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func startTestServer(t *testing.T) *testEnv {
	t.Helper()

	secret, err := auth.NewSecret(testSecret)
	if err != nil {
		t.Fatalf("secret: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	reg := core.NewRegistry()
	st := createTestStore(t)
	handler := tcp.NewHandler(reg, tcp.HandlerOptions{
		Secret:       secret,
		Store:        st,
		WriteTimeout: time.Second,
	})

	srv := NewServer(Options{
		Registry:    reg,
		Store:       st,
		Handler:     handler,
		BaseContext: ctx,
	})
	ts := httptest.NewUnstartedServer(srv.Handler)
	ts.Config.BaseContext = srv.BaseContext
	ts.Start()
	t.Cleanup(ts.Close)

	return &testEnv{registry: reg, store: st, server: ts}
}

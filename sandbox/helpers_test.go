package sandbox

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/mbt1909432/artifact-sandbox/internal/sandboxtest"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testConfig(baseURL string) *Config {
	return &Config{
		BaseURL:         baseURL,
		Timeout:         5 * time.Second,
		AutoDetectProxy: Bool(false),
		Logger:          discardLogger(),
	}
}

func newTestManager(t *testing.T) (*Manager, *sandboxtest.Server) {
	t.Helper()
	srv := sandboxtest.NewServer(t)
	m, err := NewManager(testConfig(srv.URL))
	require.NoError(t, err)
	return m, srv
}

func newTestSandbox(t *testing.T, id string) (*Sandbox, *sandboxtest.Server) {
	t.Helper()
	m, srv := newTestManager(t)
	sb, err := m.CreateOrGet(context.Background(), id, nil)
	require.NoError(t, err)
	srv.Reset()
	return sb, srv
}

package sandbox

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/mbt1909432/artifact-sandbox/internal/sandboxtest"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateOrGetReturnsSameHandle(t *testing.T) {
	m, srv := newTestManager(t)
	ctx := context.Background()

	first, err := m.CreateOrGet(ctx, "sb-1", nil)
	require.NoError(t, err)
	second, err := m.CreateOrGet(ctx, "sb-1", &CreateOptions{KeepAlive: Bool(true)})
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.Equal(t, "sb-1", first.ID())
	assert.Equal(t, []string{"sb-1"}, m.IDs())

	reqs := srv.Find(http.MethodPost, "/lifecycle")
	require.Len(t, reqs, 2)
	assert.JSONEq(t, `{"options": null}`, string(reqs[0].RawBody))
	assert.JSONEq(t, `{"options": {"keepAlive": true}}`, string(reqs[1].RawBody))
	assert.Equal(t, "sb-1", reqs[1].SandboxID())
}

func TestCreateOrGetOptions(t *testing.T) {
	m, srv := newTestManager(t)

	_, err := m.CreateOrGet(context.Background(), "sb-1", &CreateOptions{
		KeepAlive:  Bool(false),
		SleepAfter: "30s",
		Extra:      map[string]interface{}{"region": "local"},
	})
	require.NoError(t, err)

	last, _ := srv.Last()
	assert.JSONEq(t, `{"options": {"keepAlive": false, "sleepAfter": "30s", "region": "local"}}`, string(last.RawBody))
}

func TestCreateOrGetFailure(t *testing.T) {
	m, srv := newTestManager(t)
	srv.Handle(http.MethodPost, "/lifecycle", sandboxtest.Status(http.StatusServiceUnavailable, `{"code":"CAPACITY","message":"no capacity"}`))

	_, err := m.CreateOrGet(context.Background(), "sb-1", nil)
	require.Error(t, err)

	var e *Error
	require.ErrorAs(t, err, &e)
	assert.Equal(t, KindOperationFailed, e.Kind)
	assert.Equal(t, http.StatusServiceUnavailable, e.StatusCode)
	assert.Equal(t, "Failed to create sandbox 'sb-1'", e.Message)
	assert.Equal(t, "CAPACITY", e.Code)
	assert.Empty(t, m.IDs())

	_, ok := m.Get("sb-1")
	assert.False(t, ok)
}

func TestCreateOrGetEmptyID(t *testing.T) {
	m, srv := newTestManager(t)

	_, err := m.CreateOrGet(context.Background(), "", nil)
	assert.ErrorIs(t, err, ErrInvalidArgument)
	assert.Equal(t, 0, srv.Count())
}

func TestCreateOrGetConcurrent(t *testing.T) {
	m, srv := newTestManager(t)
	release := make(chan struct{})
	var calls int32
	srv.Handle(http.MethodPost, "/lifecycle", func(w http.ResponseWriter, req *http.Request) {
		atomic.AddInt32(&calls, 1)
		<-release
		sandboxtest.Data(w, map[string]interface{}{"sandboxId": req.Header.Get("x-sandbox-id")})
	})

	const n = 8
	results := make([]*Sandbox, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			sb, err := m.CreateOrGet(context.Background(), "shared", nil)
			assert.NoError(t, err)
			results[i] = sb
		}(i)
	}

	require.Eventually(t, func() bool { return atomic.LoadInt32(&calls) >= 1 }, 2*time.Second, 10*time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	for _, sb := range results {
		assert.Same(t, results[0], sb)
	}
	assert.LessOrEqual(t, atomic.LoadInt32(&calls), int32(n))
	assert.Equal(t, []string{"shared"}, m.IDs())
}

func TestDestroyEvictsOnSuccess(t *testing.T) {
	m, srv := newTestManager(t)
	ctx := context.Background()

	first, err := m.CreateOrGet(ctx, "sb-1", nil)
	require.NoError(t, err)
	require.NoError(t, m.Destroy(ctx, "sb-1"))

	_, ok := m.Get("sb-1")
	assert.False(t, ok)
	last, _ := srv.Last()
	assert.Equal(t, http.MethodDelete, last.Method)
	assert.Equal(t, "/lifecycle", last.Path)
	assert.Equal(t, "sb-1", last.SandboxID())
	assert.Empty(t, last.RawBody)

	second, err := m.CreateOrGet(ctx, "sb-1", nil)
	require.NoError(t, err)
	assert.NotSame(t, first, second)
}

func TestDestroyFailureKeepsCache(t *testing.T) {
	m, srv := newTestManager(t)
	ctx := context.Background()

	sb, err := m.CreateOrGet(ctx, "sb-1", nil)
	require.NoError(t, err)
	srv.Handle(http.MethodDelete, "/lifecycle", sandboxtest.Status(http.StatusInternalServerError, "boom"))

	err = m.Destroy(ctx, "sb-1")
	require.Error(t, err)
	assert.Equal(t, KindOperationFailed, KindOf(err))
	assert.Contains(t, err.Error(), "Failed to destroy sandbox 'sb-1'")

	cached, ok := m.Get("sb-1")
	assert.True(t, ok)
	assert.Same(t, sb, cached)
}

func TestDestroyUncached(t *testing.T) {
	m, srv := newTestManager(t)

	require.NoError(t, m.Destroy(context.Background(), "remote-only"))
	assert.Len(t, srv.Find(http.MethodDelete, "/lifecycle"), 1)
}

func failDestroyFor(id string) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		if req.Header.Get("x-sandbox-id") == id {
			sandboxtest.JSON(w, http.StatusInternalServerError, map[string]interface{}{"message": "cannot destroy " + id})
			return
		}
		sandboxtest.Data(w, map[string]interface{}{"success": true})
	}
}

func TestDestroyAllBestEffort(t *testing.T) {
	m, srv := newTestManager(t)
	ctx := context.Background()
	for _, id := range []string{"a", "b", "c"} {
		_, err := m.CreateOrGet(ctx, id, nil)
		require.NoError(t, err)
	}
	srv.Handle(http.MethodDelete, "/lifecycle", failDestroyFor("b"))

	result, err := m.DestroyAll(ctx, true)
	require.NoError(t, err)
	assert.Equal(t, 3, result.Total)
	assert.Equal(t, 2, result.SuccessCount)
	assert.Equal(t, 1, result.FailureCount)
	assert.Equal(t, []string{"a", "c"}, result.Destroyed)
	require.Len(t, result.Failed, 1)
	assert.Equal(t, "b", result.Failed[0].ID)
	assert.Contains(t, result.Failed[0].Message, "cannot destroy b")

	var order []string
	for _, r := range srv.Find(http.MethodDelete, "/lifecycle") {
		order = append(order, r.SandboxID())
	}
	assert.Equal(t, []string{"a", "b", "c"}, order)
	assert.Equal(t, []string{"b"}, m.IDs())
}

func TestDestroyAllFailFast(t *testing.T) {
	m, srv := newTestManager(t)
	ctx := context.Background()
	for _, id := range []string{"a", "b", "c"} {
		_, err := m.CreateOrGet(ctx, id, nil)
		require.NoError(t, err)
	}
	srv.Handle(http.MethodDelete, "/lifecycle", failDestroyFor("b"))

	result, err := m.DestroyAll(ctx, false)
	require.Error(t, err)
	assert.Equal(t, KindOperationFailed, KindOf(err))
	assert.Equal(t, 3, result.Total)
	assert.Equal(t, []string{"a"}, result.Destroyed)
	assert.Equal(t, 1, result.FailureCount)
	assert.Len(t, srv.Find(http.MethodDelete, "/lifecycle"), 2)
	assert.Equal(t, []string{"b", "c"}, m.IDs())
}

func TestDestroyAllEmpty(t *testing.T) {
	m, srv := newTestManager(t)

	result, err := m.DestroyAll(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, &BatchResult{Destroyed: []string{}, Failed: []BatchFailure{}}, result)
	assert.Equal(t, 0, srv.Count())
}

func TestNewManagerInvalidConfig(t *testing.T) {
	_, err := NewManager(&Config{BaseURL: "not a url", Timeout: time.Second, AutoDetectProxy: Bool(false), Logger: discardLogger()})
	assert.ErrorIs(t, err, ErrInvalidArgument)

	_, err = NewManager(&Config{BaseURL: "http://localhost:8787", Timeout: -time.Second, AutoDetectProxy: Bool(false), Logger: discardLogger()})
	assert.ErrorIs(t, err, ErrInvalidArgument)

	_, err = NewManager(&Config{BaseURL: "http://localhost:8787", Proxy: "ftp://proxy", AutoDetectProxy: Bool(false), Logger: discardLogger()})
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestManagerAccessors(t *testing.T) {
	srv := sandboxtest.NewServer(t)
	cfg := testConfig(srv.URL + "/")
	cfg.Proxy = "http://127.0.0.1:3128"
	m, err := NewManager(cfg)
	require.NoError(t, err)

	assert.Equal(t, srv.URL, m.BaseURL())
	assert.Equal(t, 5*time.Second, m.Timeout())
	source, proxyURL := m.Proxy()
	assert.Equal(t, "explicit", source)
	assert.Equal(t, "http://127.0.0.1:3128", proxyURL)
}

func TestManagerInterceptorsAndLogging(t *testing.T) {
	srv := sandboxtest.NewServer(t)
	var buf bytes.Buffer
	cfg := testConfig(srv.URL)
	cfg.Logger = slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	cfg.Interceptors = []Interceptor{NewInterceptor(func(req *http.Request, next Handler) (*http.Response, error) {
		req.Header.Set("X-Trace-Tag", "unit")
		return next(req)
	})}
	m, err := NewManager(cfg)
	require.NoError(t, err)

	_, err = m.CreateOrGet(context.Background(), "sb-1", nil)
	require.NoError(t, err)

	last, _ := srv.Last()
	assert.Equal(t, "unit", last.Header.Get("X-Trace-Tag"))
	assert.Equal(t, UserAgent, last.Header.Get("User-Agent"))
	out := buf.String()
	assert.Contains(t, out, "sandbox request")
	assert.Contains(t, out, "sandboxId=sb-1")
	assert.True(t, strings.Contains(out, "status=200"), out)
}

func TestManagerLogRequestTrace(t *testing.T) {
	srv := sandboxtest.NewServer(t)
	var buf bytes.Buffer
	cfg := testConfig(srv.URL)
	cfg.Logger = slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	cfg.LogRequestTrace = true
	m, err := NewManager(cfg)
	require.NoError(t, err)

	_, err = m.CreateOrGet(context.Background(), "sb-1", nil)
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, "msg=GetConn")
	assert.Contains(t, out, "msg=GotConn")
}

func TestManagerMetrics(t *testing.T) {
	srv := sandboxtest.NewServer(t)
	reg := prometheus.NewRegistry()
	cfg := testConfig(srv.URL)
	cfg.Metrics = reg
	m, err := NewManager(cfg)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		_, err := m.CreateOrGet(context.Background(), fmt.Sprintf("sb-%d", i), nil)
		require.NoError(t, err)
	}

	families, err := reg.Gather()
	require.NoError(t, err)
	var total float64
	for _, mf := range families {
		if mf.GetName() == "sandbox_client_requests_total" {
			for _, metric := range mf.GetMetric() {
				total += metric.GetCounter().GetValue()
			}
		}
	}
	assert.Equal(t, float64(3), total)
}

package sandbox

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/mbt1909432/artifact-sandbox/internal/clientv2"
	"github.com/mbt1909432/artifact-sandbox/internal/proxy"
	"golang.org/x/sync/singleflight"
)

// UserAgent 随每个请求发送。
const UserAgent = "artifact-sandbox-go"

// Manager 管理本进程创建的沙箱句柄，同一个 sandboxID 只对应一个 *Sandbox。
// Manager 可被多个 goroutine 并发使用。
type Manager struct {
	config *Config
	router *router
	logger *slog.Logger
	proxy  proxy.Selection

	mu        sync.Mutex
	sandboxes map[string]*Sandbox
	order     []string
	group     singleflight.Group
}

// NewManager 创建 Manager。cfg 为 nil 时等价于 LoadConfig 的结果。
func NewManager(cfg *Config) (*Manager, error) {
	resolved, err := resolveConfig(cfg)
	if err != nil {
		return nil, err
	}

	httpClient, selection, err := newHTTPClient(context.Background(), resolved)
	if err != nil {
		return nil, err
	}

	interceptors := []clientv2.Interceptor{
		clientv2.NewHeaderInterceptor(http.Header{"User-Agent": {UserAgent}}),
		clientv2.NewTraceInterceptor(resolved.TracerProvider),
		clientv2.NewLoggingInterceptor(clientv2.LoggingOptions{
			Logger:      resolved.Logger,
			PrintDetail: resolved.LogRequestDetail,
			PrintTrace:  resolved.LogRequestTrace,
		}),
	}
	if resolved.Metrics != nil {
		metrics, mErr := clientv2.NewRequestMetrics(resolved.Metrics)
		if mErr != nil {
			return nil, invalidArgument("config", "failed to register metrics", mErr)
		}
		interceptors = append(interceptors, clientv2.NewMetricsInterceptor(metrics))
	}
	interceptors = append(interceptors, resolved.Interceptors...)

	return &Manager{
		config:    resolved,
		router:    newRouter(resolved.BaseURL, resolved.Timeout, clientv2.NewClient(httpClient, interceptors...), resolved.Logger),
		logger:    resolved.Logger,
		proxy:     selection,
		sandboxes: make(map[string]*Sandbox),
	}, nil
}

// BaseURL 返回生效的服务地址。
func (m *Manager) BaseURL() string {
	return m.router.baseURL
}

// Timeout 返回生效的请求超时时间。
func (m *Manager) Timeout() time.Duration {
	return m.router.timeout
}

// Proxy 返回代理的来源（none、explicit、environment 或 detected）以及代理地址（如果有）。
func (m *Manager) Proxy() (source string, proxyURL string) {
	if m.proxy.URL == nil {
		return string(m.proxy.Source), ""
	}
	return string(m.proxy.Source), m.proxy.URL.Redacted()
}

// CreateOrGet 在服务端创建（或确认已存在）沙箱，并返回缓存的句柄。
// opts 为 nil 时请求体为 {"options": null}。多个 goroutine 同时请求同一个 sandboxID 时只发送一次请求。
func (m *Manager) CreateOrGet(ctx context.Context, sandboxID string, opts *CreateOptions) (*Sandbox, error) {
	if sandboxID == "" {
		return nil, invalidArgument("createOrGet", "sandbox id must not be empty", nil)
	}

	v, err, _ := m.group.Do(sandboxID, func() (interface{}, error) {
		resp, err := m.router.call(ctx, request{
			method:    http.MethodPost,
			path:      "/lifecycle",
			body:      map[string]interface{}{"options": opts.toMap()},
			sandboxID: sandboxID,
		})
		if err != nil {
			return nil, err
		}
		if !resp.ok() {
			return nil, newOperationError("createOrGet", fmt.Sprintf("Failed to create sandbox '%s'", sandboxID), resp.statusCode, resp.body)
		}
		return m.appendID(sandboxID), nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Sandbox), nil
}

// Destroy 销毁服务端的沙箱，成功后从缓存中移除句柄；失败时缓存保持不变。
// 不要求 sandboxID 已在本进程缓存中。
func (m *Manager) Destroy(ctx context.Context, sandboxID string) error {
	if sandboxID == "" {
		return invalidArgument("destroy", "sandbox id must not be empty", nil)
	}

	resp, err := m.router.call(ctx, request{
		method:    http.MethodDelete,
		path:      "/lifecycle",
		sandboxID: sandboxID,
	})
	if err != nil {
		return err
	}
	if !resp.ok() {
		return newOperationError("destroy", fmt.Sprintf("Failed to destroy sandbox '%s'", sandboxID), resp.statusCode, resp.body)
	}
	m.removeID(sandboxID)
	return nil
}

// DestroyAll 按创建顺序销毁当前缓存的全部沙箱。
//
// continueOnError 为 false 时遇到第一个失败即返回该错误和已完成部分的结果；
// 为 true 时继续处理剩余沙箱，失败记录在 BatchResult.Failed 中，error 为 nil。
func (m *Manager) DestroyAll(ctx context.Context, continueOnError bool) (*BatchResult, error) {
	ids := m.IDs()
	result := newBatchResult(len(ids))
	for _, id := range ids {
		if err := m.Destroy(ctx, id); err != nil {
			result.fail(id, err)
			m.logger.WarnContext(ctx, "destroy sandbox failed", slog.String("sandboxId", id), slog.Any("error", err))
			if !continueOnError {
				return result, err
			}
			continue
		}
		result.succeed(id)
	}
	return result, nil
}

// Get 返回缓存中的沙箱句柄，不发送请求。
func (m *Manager) Get(sandboxID string) (*Sandbox, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sb, ok := m.sandboxes[sandboxID]
	return sb, ok
}

// IDs 按创建顺序返回缓存中的 sandboxID。
func (m *Manager) IDs() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.order...)
}

func (m *Manager) appendID(sandboxID string) *Sandbox {
	m.mu.Lock()
	defer m.mu.Unlock()
	if sb, ok := m.sandboxes[sandboxID]; ok {
		return sb
	}
	sb := newSandbox(sandboxID, m)
	m.sandboxes[sandboxID] = sb
	m.order = append(m.order, sandboxID)
	return sb
}

func (m *Manager) removeID(sandboxID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sandboxes[sandboxID]; !ok {
		return
	}
	delete(m.sandboxes, sandboxID)
	for i, id := range m.order {
		if id == sandboxID {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
}

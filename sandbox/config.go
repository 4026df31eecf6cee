package sandbox

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/mbt1909432/artifact-sandbox/internal/clientv2"
	"github.com/mbt1909432/artifact-sandbox/internal/configfile"
	"github.com/mbt1909432/artifact-sandbox/internal/env"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/trace"
)

// DefaultBaseURL 是沙箱服务的默认地址。
const DefaultBaseURL = "http://localhost:8787"

// DefaultTimeout 是单次请求的默认超时时间。
const DefaultTimeout = 30 * time.Second

// Interceptor 拦截发往沙箱服务的每个请求，可用于注入请求头或记录日志。
type Interceptor = clientv2.Interceptor

// Handler 是拦截器链中的下一个处理函数。
type Handler = clientv2.Handler

// NewInterceptor 使用函数创建一个 Interceptor。
func NewInterceptor(fn func(req *http.Request, next Handler) (*http.Response, error)) Interceptor {
	return clientv2.NewSimpleInterceptor(fn)
}

// Config 是 Manager 的配置。
//
// 未设置的字段依次从环境变量、配置文件（$SANDBOX_CONFIG_FILE 或 ~/.sandbox/config.toml，
// profile 由 $SANDBOX_PROFILE 指定，默认 "default"）和内置默认值中获取。
type Config struct {
	// BaseURL 是沙箱服务地址（可选，环境变量 SANDBOX_BASE_URL，默认值：DefaultBaseURL）。
	BaseURL string `validate:"required,url"`

	// Timeout 是每个请求的超时时间（可选，环境变量 SANDBOX_TIMEOUT，默认值：DefaultTimeout）。
	Timeout time.Duration `validate:"gt=0"`

	// Proxy 是显式指定的代理地址，例如 "http://127.0.0.1:7890"。
	Proxy string `validate:"omitempty,url"`

	// AutoDetectProxy 控制未配置代理时是否探测本机转发代理端口（默认开启）。
	AutoDetectProxy *bool

	// Logger 默认使用 slog.Default()。
	Logger *slog.Logger

	// LogRequestDetail 为 true 时在 Debug 级别输出完整的请求与响应报文。
	LogRequestDetail bool

	// LogRequestTrace 为 true 时在 Debug 级别输出连接建立过程（DNS、连接复用等）。
	LogRequestTrace bool

	// HTTPClient 自定义 HTTP 客户端，设置后忽略 Proxy 与 AutoDetectProxy。
	HTTPClient *http.Client

	// Interceptors 追加到内置拦截器之后。
	Interceptors []Interceptor

	// Metrics 非空时注册请求计数与耗时指标。
	Metrics prometheus.Registerer

	// TracerProvider 为空时使用 otel 全局 TracerProvider。
	TracerProvider trace.TracerProvider
}

// LoadConfig 从环境变量和配置文件加载配置，未设置的项使用默认值。
func LoadConfig() (*Config, error) {
	return resolveConfig(nil)
}

// resolveConfig 返回 cfg 的副本，空字段按 环境变量 > 配置文件 > 默认值 补全。
func resolveConfig(cfg *Config) (*Config, error) {
	resolved := &Config{}
	if cfg != nil {
		*resolved = *cfg
	}

	if resolved.BaseURL == "" {
		resolved.BaseURL = env.BaseURLFromEnvironment()
	}
	if resolved.BaseURL == "" {
		baseURL, err := configfile.BaseURLFromConfigFile()
		if err != nil {
			return nil, invalidArgument("config", "failed to load config file", err)
		}
		resolved.BaseURL = baseURL
	}
	if resolved.BaseURL == "" {
		resolved.BaseURL = DefaultBaseURL
	}

	if resolved.Timeout == 0 {
		if timeout, ok := env.TimeoutFromEnvironment(); ok {
			resolved.Timeout = timeout
		}
	}
	if resolved.Timeout == 0 {
		timeout, err := configfile.TimeoutFromConfigFile()
		if err != nil {
			return nil, invalidArgument("config", "failed to load config file", err)
		}
		resolved.Timeout = timeout
	}
	if resolved.Timeout == 0 {
		resolved.Timeout = DefaultTimeout
	}

	if resolved.Proxy == "" {
		proxy, err := configfile.ProxyFromConfigFile()
		if err != nil {
			return nil, invalidArgument("config", "failed to load config file", err)
		}
		resolved.Proxy = proxy
	}

	if resolved.AutoDetectProxy == nil {
		if disabled, ok := env.DisableProxyDetectFromEnvironment(); ok {
			resolved.AutoDetectProxy = Bool(!disabled)
		}
	}
	if resolved.AutoDetectProxy == nil {
		detect, ok, err := configfile.AutoDetectProxyFromConfigFile()
		if err != nil {
			return nil, invalidArgument("config", "failed to load config file", err)
		}
		if ok {
			resolved.AutoDetectProxy = Bool(detect)
		}
	}
	if resolved.AutoDetectProxy == nil {
		resolved.AutoDetectProxy = Bool(true)
	}

	if resolved.Logger == nil {
		resolved.Logger = slog.Default()
	}

	if err := validateArgument("config", resolved); err != nil {
		return nil, err
	}
	return resolved, nil
}

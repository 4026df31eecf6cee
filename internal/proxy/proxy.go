// Package proxy 决定访问沙箱服务时使用的 HTTP 代理。
//
// 优先级：显式配置 > 环境变量 HTTP(S)_PROXY > 探测本机常见的转发代理端口。
package proxy

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/mbt1909432/artifact-sandbox/internal/env"
)

// DefaultCandidates 是本机转发代理的常见监听地址，按探测优先级排列。
var DefaultCandidates = []string{
	"http://127.0.0.1:7890",
	"socks5://127.0.0.1:7891",
	"http://127.0.0.1:7897",
}

const DefaultDialTimeout = time.Second

type Source string

const (
	SourceNone        Source = "none"
	SourceExplicit    Source = "explicit"
	SourceEnvironment Source = "environment"
	SourceDetected    Source = "detected"
)

type Options struct {
	// Explicit 显式指定的代理地址，非空时不再检查环境变量或探测端口
	Explicit string

	AutoDetect  bool
	Candidates  []string
	DialTimeout time.Duration
	Logger      *slog.Logger
}

// Selection 是 Resolve 的结果。Proxy 可直接赋给 http.Transport.Proxy，
// SourceNone 时为 nil。
type Selection struct {
	Source Source
	URL    *url.URL
	Proxy  func(*http.Request) (*url.URL, error)
}

var ErrNoProxyDetected = errors.New("no local proxy detected")

func Resolve(ctx context.Context, options Options) (Selection, error) {
	logger := options.Logger
	if logger == nil {
		logger = slog.Default()
	}

	if options.Explicit != "" {
		u, err := parseProxyURL(options.Explicit)
		if err != nil {
			return Selection{Source: SourceNone}, err
		}
		logger.InfoContext(ctx, "using provided proxy", slog.String("proxy", u.Redacted()))
		return Selection{Source: SourceExplicit, URL: u, Proxy: http.ProxyURL(u)}, nil
	}

	if v := env.ProxyFromEnvironment(); v != "" {
		u, err := parseProxyURL(v)
		if err != nil {
			// err 中带有原始值，可能包含凭证
			logger.WarnContext(ctx, "using proxy from environment variables, value is not a valid URL")
		} else {
			logger.InfoContext(ctx, "using proxy from environment variables", slog.String("proxy", u.Redacted()))
		}
		return Selection{Source: SourceEnvironment, URL: u, Proxy: http.ProxyFromEnvironment}, nil
	}

	if !options.AutoDetect {
		return Selection{Source: SourceNone}, nil
	}

	candidates := options.Candidates
	if candidates == nil {
		candidates = DefaultCandidates
	}
	u, err := Detect(ctx, candidates, options.DialTimeout)
	if err != nil {
		logger.DebugContext(ctx, "no local proxy detected", slog.Any("candidates", candidates))
		return Selection{Source: SourceNone}, nil
	}
	logger.InfoContext(ctx, "detected local proxy", slog.String("proxy", u.String()))
	return Selection{Source: SourceDetected, URL: u, Proxy: http.ProxyURL(u)}, nil
}

type probeResult struct {
	index int
	err   error
}

// Detect 并发探测 candidates 的监听端口，返回按列表顺序第一个可连接的地址。
func Detect(ctx context.Context, candidates []string, dialTimeout time.Duration) (*url.URL, error) {
	if dialTimeout <= 0 {
		dialTimeout = DefaultDialTimeout
	}

	urls := make([]*url.URL, len(candidates))
	results := make(chan probeResult, len(candidates))
	var wg sync.WaitGroup
	for i, candidate := range candidates {
		u, err := parseProxyURL(candidate)
		if err != nil {
			results <- probeResult{index: i, err: err}
			continue
		}
		urls[i] = u
		wg.Add(1)
		go func(i int, addr string) {
			defer wg.Done()
			dialer := net.Dialer{Timeout: dialTimeout}
			conn, err := dialer.DialContext(ctx, "tcp", addr)
			if err == nil {
				conn.Close()
			}
			results <- probeResult{index: i, err: err}
		}(i, u.Host)
	}
	wg.Wait()
	close(results)

	open := make([]bool, len(candidates))
	for r := range results {
		open[r.index] = r.err == nil
	}
	for i, ok := range open {
		if ok {
			return urls[i], nil
		}
	}
	return nil, ErrNoProxyDetected
}

func parseProxyURL(raw string) (*url.URL, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid proxy url %q: %w", raw, err)
	}
	switch u.Scheme {
	case "http", "https", "socks5", "socks5h":
	default:
		return nil, fmt.Errorf("invalid proxy url %q: unsupported scheme %q", raw, u.Scheme)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("invalid proxy url %q: missing host", raw)
	}
	return u, nil
}

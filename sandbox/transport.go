package sandbox

import (
	"context"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/mbt1909432/artifact-sandbox/internal/proxy"
)

// newTransport 返回访问沙箱服务使用的 http.Transport，proxyFunc 为 nil 时不使用代理。
func newTransport(proxyFunc func(*http.Request) (*url.URL, error)) *http.Transport {
	dialer := &net.Dialer{
		Timeout:   10 * time.Second,
		KeepAlive: 30 * time.Second,
	}
	return &http.Transport{
		Proxy:                 proxyFunc,
		DialContext:           dialer.DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
}

// newHTTPClient 依据配置的代理选择构造 HTTP 客户端。
// 超时由每个请求的 context 控制，因此不设置 http.Client.Timeout。
func newHTTPClient(ctx context.Context, cfg *Config) (*http.Client, proxy.Selection, error) {
	if cfg.HTTPClient != nil {
		return cfg.HTTPClient, proxy.Selection{Source: proxy.SourceNone}, nil
	}

	selection, err := proxy.Resolve(ctx, proxy.Options{
		Explicit:   cfg.Proxy,
		AutoDetect: cfg.AutoDetectProxy == nil || *cfg.AutoDetectProxy,
		Logger:     cfg.Logger,
	})
	if err != nil {
		return nil, selection, invalidArgument("config", "invalid proxy configuration", err)
	}
	return &http.Client{Transport: newTransport(selection.Proxy)}, selection, nil
}

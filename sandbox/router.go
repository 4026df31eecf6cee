package sandbox

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/mbt1909432/artifact-sandbox/internal/clientv2"
	internal_io "github.com/mbt1909432/artifact-sandbox/internal/io"
)

const headerSandboxID = "x-sandbox-id"

// request 描述一次发往沙箱服务的调用。
type request struct {
	method    string
	path      string
	query     url.Values
	body      map[string]interface{}
	stream    bool
	sandboxID string
}

// response 是读取完毕的非流式响应。
type response struct {
	statusCode int
	header     http.Header
	body       []byte
}

func (r *response) ok() bool {
	return r.statusCode >= 200 && r.statusCode < 300
}

func (r *response) envelope() envelope {
	return decodeEnvelope(r.body)
}

// router 负责拼接 URL、注入沙箱请求头、施加超时并将传输层错误转换为 *Error。
// 它不解释 HTTP 状态码。
type router struct {
	baseURL string
	timeout time.Duration
	client  clientv2.Client
	logger  *slog.Logger
}

func newRouter(baseURL string, timeout time.Duration, client clientv2.Client, logger *slog.Logger) *router {
	return &router{
		baseURL: strings.TrimRight(baseURL, "/"),
		timeout: timeout,
		client:  client,
		logger:  logger,
	}
}

func (r *router) url(path string) string {
	return r.baseURL + path
}

// issue 发送请求并返回原始响应。stream 请求的超时在响应体关闭时才释放，调用方必须关闭 Body。
func (r *router) issue(ctx context.Context, req request) (*http.Response, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(ctx, r.timeout)

	header := http.Header{}
	if req.sandboxID != "" {
		header.Set(headerSandboxID, req.sandboxID)
	}
	header.Set("Accept", "application/json")

	params := clientv2.RequestParams{
		Context: clientv2.WithLogAttrs(ctx, logAttrs(req)...),
		Method:  req.method,
		Url:     r.url(req.path),
		Query:   req.query,
		Header:  header,
	}
	if req.body != nil {
		getBody, err := clientv2.GetJsonRequestBody(req.body)
		if err != nil {
			cancel()
			return nil, invalidArgument(req.path, "failed to encode request body", err)
		}
		params.GetBody = getBody
	}

	resp, err := clientv2.Do(r.client, params)
	if err != nil {
		cancel()
		return nil, r.transportError(ctx, req, err)
	}

	if req.stream {
		resp.Body = &cancelOnClose{ReadCloser: resp.Body, cancel: cancel}
	} else {
		defer cancel()
		defer resp.Body.Close()
		body, rErr := io.ReadAll(resp.Body)
		if rErr != nil {
			return nil, r.transportError(ctx, req, rErr)
		}
		resp.Body = internal_io.NewBytesNopCloser(body)
	}
	return resp, nil
}

// call 发送非流式请求并读取完整响应体。
func (r *router) call(ctx context.Context, req request) (*response, error) {
	req.stream = false
	resp, err := r.issue(ctx, req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	body, err := internal_io.ReadAll(resp.Body)
	if err != nil {
		return nil, r.transportError(ctx, req, err)
	}
	return &response{statusCode: resp.StatusCode, header: resp.Header, body: body}, nil
}

func (r *router) transportError(ctx context.Context, req request, err error) error {
	target := r.url(req.path)
	attrs := []slog.Attr{
		slog.String("sandboxId", req.sandboxID),
		slog.String("method", req.method),
		slog.String("url", target),
	}

	switch {
	case errors.Is(err, context.Canceled) && !clientv2.IsTimeout(err):
		r.logger.LogAttrs(ctx, slog.LevelWarn, "sandbox request canceled", attrs...)
		return &Error{
			Kind:    KindTransportFailure,
			Op:      req.path,
			Message: fmt.Sprintf("Request to %s was canceled", target),
			Err:     err,
		}
	case clientv2.IsTimeout(err):
		attrs = append(attrs, slog.Duration("timeout", r.timeout))
		r.logger.LogAttrs(ctx, slog.LevelError, "sandbox request timeout", attrs...)
		return &Error{
			Kind: KindTimeout,
			Op:   req.path,
			Message: fmt.Sprintf("Request to %s timed out after %s. "+
				"This might be a network connectivity issue or the server is not responding.", target, r.timeout),
			Err: err,
		}
	case clientv2.IsConnectionError(err):
		r.logger.LogAttrs(ctx, slog.LevelError, "sandbox connection error", attrs...)
		return &Error{
			Kind: KindConnectionFailure,
			Op:   req.path,
			Message: fmt.Sprintf("Failed to connect to %s. "+
				"Please check your network connection and ensure the server is accessible. "+
				"If you're behind a proxy, configure it via environment variables (HTTP_PROXY/HTTPS_PROXY) or Config.Proxy.", target),
			Err: err,
		}
	default:
		r.logger.LogAttrs(ctx, slog.LevelError, "sandbox request error", attrs...)
		return &Error{
			Kind:    KindTransportFailure,
			Op:      req.path,
			Message: fmt.Sprintf("Request to %s failed", target),
			Err:     err,
		}
	}
}

func logAttrs(req request) []slog.Attr {
	attrs := make([]slog.Attr, 0, 4)
	if req.sandboxID != "" {
		attrs = append(attrs, slog.String("sandboxId", req.sandboxID))
	}
	if len(req.query) > 0 {
		attrs = append(attrs, slog.String("query", req.query.Encode()))
	}
	if len(req.body) > 0 {
		keys := make([]string, 0, len(req.body))
		for k := range req.body {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		attrs = append(attrs, slog.Any("bodyKeys", keys))
	}
	if req.stream {
		attrs = append(attrs, slog.Bool("stream", true))
	}
	return attrs
}

type cancelOnClose struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (c *cancelOnClose) Close() error {
	err := internal_io.DrainAndClose(c.ReadCloser)
	c.cancel()
	return err
}

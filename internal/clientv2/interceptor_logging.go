package clientv2

import (
	"context"
	"crypto/tls"
	"log/slog"
	"net/http"
	"net/http/httptrace"
	"net/http/httputil"
	"time"
)

// LoggingOptions 控制日志拦截器的输出内容。
type LoggingOptions struct {
	Logger *slog.Logger

	// PrintDetail 为 true 时在 Debug 级别输出完整的请求与响应报文
	PrintDetail bool

	// PrintTrace 为 true 时在 Debug 级别输出连接建立过程
	PrintTrace bool
}

type loggingInterceptor struct {
	logger  *slog.Logger
	options LoggingOptions
}

// NewLoggingInterceptor 返回一个记录每次请求与响应的拦截器。
func NewLoggingInterceptor(options LoggingOptions) Interceptor {
	logger := options.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &loggingInterceptor{logger: logger, options: options}
}

func (r *loggingInterceptor) Priority() InterceptorPriority {
	return InterceptorPriorityLogging
}

func (r *loggingInterceptor) Intercept(req *http.Request, handler Handler) (*http.Response, error) {
	ctx := req.Context()
	attrs := append([]slog.Attr{
		slog.String("method", req.Method),
		slog.String("url", r.requestLabel(req)),
	}, LogAttrs(ctx)...)

	r.logger.LogAttrs(ctx, slog.LevelDebug, "sandbox request", attrs...)
	if r.options.PrintDetail {
		if dump, dErr := httputil.DumpRequestOut(req, true); dErr == nil {
			r.logger.DebugContext(ctx, "sandbox request detail", slog.String("dump", string(dump)))
		}
	}
	req = r.printRequestTrace(ctx, req)

	start := time.Now()
	resp, err := handler(req)
	attrs = append(attrs, slog.Duration("elapsed", time.Since(start)))

	if err != nil {
		attrs = append(attrs, slog.String("error", err.Error()))
		r.logger.LogAttrs(ctx, slog.LevelWarn, "sandbox request failed", attrs...)
		return resp, err
	}

	attrs = append(attrs, slog.Int("status", resp.StatusCode))
	level := slog.LevelDebug
	if resp.StatusCode >= http.StatusBadRequest {
		level = slog.LevelWarn
	}
	r.logger.LogAttrs(ctx, level, "sandbox response", attrs...)
	if r.options.PrintDetail {
		if dump, dErr := httputil.DumpResponse(resp, true); dErr == nil {
			r.logger.DebugContext(ctx, "sandbox response detail", slog.String("dump", string(dump)))
		}
	}
	return resp, nil
}

func (r *loggingInterceptor) requestLabel(req *http.Request) string {
	if req == nil || req.URL == nil {
		return ""
	}
	return req.URL.String()
}

func (r *loggingInterceptor) printRequestTrace(ctx context.Context, req *http.Request) *http.Request {
	if !r.options.PrintTrace {
		return req
	}

	log := r.logger.With(slog.String("url", r.requestLabel(req)))
	trace := &httptrace.ClientTrace{
		GetConn: func(hostPort string) {
			log.DebugContext(ctx, "GetConn", slog.String("hostPort", hostPort))
		},
		GotConn: func(connInfo httptrace.GotConnInfo) {
			remoteAddr := connInfo.Conn.RemoteAddr()
			log.DebugContext(ctx, "GotConn",
				slog.String("network", remoteAddr.Network()),
				slog.String("remoteAddr", remoteAddr.String()),
				slog.Bool("reused", connInfo.Reused))
		},
		DNSDone: func(info httptrace.DNSDoneInfo) {
			log.DebugContext(ctx, "DNSDone", slog.Any("addrs", info.Addrs), slog.Any("err", info.Err))
		},
		ConnectDone: func(network, addr string, err error) {
			log.DebugContext(ctx, "ConnectDone", slog.String("network", network), slog.String("addr", addr), slog.Any("err", err))
		},
		TLSHandshakeDone: func(state tls.ConnectionState, err error) {
			log.DebugContext(ctx, "TLSHandshakeDone", slog.String("serverName", state.ServerName), slog.Any("err", err))
		},
		WroteRequest: func(info httptrace.WroteRequestInfo) {
			log.DebugContext(ctx, "WroteRequest", slog.Any("err", info.Err))
		},
		GotFirstResponseByte: func() {
			log.DebugContext(ctx, "GotFirstResponseByte")
		},
	}
	return req.WithContext(httptrace.WithClientTrace(req.Context(), trace))
}

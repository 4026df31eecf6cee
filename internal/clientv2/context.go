package clientv2

import (
	"context"
	"log/slog"
	"net/http"
)

type (
	intercetorsContextKey struct{}
	logAttrsContextKey    struct{}
)

// WithInterceptors 为单个请求追加拦截器。
func WithInterceptors(req *http.Request, interceptors ...Interceptor) *http.Request {
	newInterceptors, ok := req.Context().Value(intercetorsContextKey{}).(interceptorList)
	if !ok {
		newInterceptors = interceptorList(interceptors)
	} else {
		newInterceptors = append(append(interceptorList{}, newInterceptors...), interceptors...)
	}
	return req.WithContext(context.WithValue(req.Context(), intercetorsContextKey{}, newInterceptors))
}

func getIntercetorsFromRequest(req *http.Request) interceptorList {
	if req == nil {
		return interceptorList{}
	}
	interceptors, ok := req.Context().Value(intercetorsContextKey{}).(interceptorList)
	if !ok {
		return interceptorList{}
	}
	return interceptors
}

// WithLogAttrs 将附加的日志字段挂到 ctx 上，日志拦截器输出请求与响应时会带上这些字段。
func WithLogAttrs(ctx context.Context, attrs ...slog.Attr) context.Context {
	existing := LogAttrs(ctx)
	merged := make([]slog.Attr, 0, len(existing)+len(attrs))
	merged = append(merged, existing...)
	merged = append(merged, attrs...)
	return context.WithValue(ctx, logAttrsContextKey{}, merged)
}

// LogAttrs 返回 ctx 上挂载的日志字段。
func LogAttrs(ctx context.Context) []slog.Attr {
	if ctx == nil {
		return nil
	}
	attrs, _ := ctx.Value(logAttrsContextKey{}).([]slog.Attr)
	return attrs
}

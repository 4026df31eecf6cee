package clientv2

import (
	"net/http"
)

const (
	InterceptorPriorityDefault   InterceptorPriority = 100
	InterceptorPriorityTrace     InterceptorPriority = 200
	InterceptorPriorityMetrics   InterceptorPriority = 300
	InterceptorPrioritySetHeader InterceptorPriority = 400
	InterceptorPriorityNormal    InterceptorPriority = 500
	InterceptorPriorityLogging   InterceptorPriority = 700
)

type InterceptorPriority int

type Interceptor interface {
	// Priority 数字越小优先级越高
	Priority() InterceptorPriority

	// Intercept 拦截处理函数
	Intercept(req *http.Request, handler Handler) (*http.Response, error)
}

type interceptorList []Interceptor

func (is interceptorList) Less(i, j int) bool {
	return is[i].Priority() < is[j].Priority()
}

func (is interceptorList) Swap(i, j int) {
	is[i], is[j] = is[j], is[i]
}

func (is interceptorList) Len() int {
	return len(is)
}

type simpleInterceptor struct {
	priority InterceptorPriority
	handler  func(req *http.Request, handler Handler) (*http.Response, error)
}

func (s *simpleInterceptor) Priority() InterceptorPriority {
	return s.priority
}

func (s *simpleInterceptor) Intercept(req *http.Request, handler Handler) (*http.Response, error) {
	if s == nil || s.handler == nil {
		return handler(req)
	}
	return s.handler(req, handler)
}

func NewSimpleInterceptor(interceptorHandler func(req *http.Request, handler Handler) (*http.Response, error)) Interceptor {
	return NewSimpleInterceptorWithPriority(InterceptorPriorityNormal, interceptorHandler)
}

func NewSimpleInterceptorWithPriority(priority InterceptorPriority, interceptorHandler func(req *http.Request, handler Handler) (*http.Response, error)) Interceptor {
	if priority <= 0 {
		priority = InterceptorPriorityDefault
	}

	return &simpleInterceptor{
		priority: priority,
		handler:  interceptorHandler,
	}
}

type headerInterceptor struct {
	header http.Header
}

// NewHeaderInterceptor 返回一个为每个请求补充固定请求头的拦截器，已存在的请求头不会被覆盖。
func NewHeaderInterceptor(header http.Header) Interceptor {
	return &headerInterceptor{header: header.Clone()}
}

func (h *headerInterceptor) Priority() InterceptorPriority {
	return InterceptorPrioritySetHeader
}

func (h *headerInterceptor) Intercept(req *http.Request, handler Handler) (*http.Response, error) {
	for k, vs := range h.header {
		if req.Header.Get(k) != "" {
			continue
		}
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	return handler(req)
}

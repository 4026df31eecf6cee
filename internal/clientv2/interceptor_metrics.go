package clientv2

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// RequestMetrics 汇总发往沙箱服务的请求计数与耗时。
type RequestMetrics struct {
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// NewRequestMetrics 创建指标并注册到 registerer，registerer 为 nil 时不注册。
func NewRequestMetrics(registerer prometheus.Registerer) (*RequestMetrics, error) {
	m := &RequestMetrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sandbox",
			Subsystem: "client",
			Name:      "requests_total",
			Help:      "Total number of requests sent to the sandbox service.",
		}, []string{"method", "path", "status"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "sandbox",
			Subsystem: "client",
			Name:      "request_duration_seconds",
			Help:      "Latency of requests sent to the sandbox service.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "path"}),
	}
	if registerer == nil {
		return m, nil
	}
	for _, c := range []prometheus.Collector{m.requests, m.duration} {
		if err := registerer.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

type metricsInterceptor struct {
	metrics *RequestMetrics
}

// NewMetricsInterceptor 返回记录请求指标的拦截器，传输层失败的请求 status 记为 "error"。
func NewMetricsInterceptor(metrics *RequestMetrics) Interceptor {
	if metrics == nil {
		return nil
	}
	return &metricsInterceptor{metrics: metrics}
}

func (m *metricsInterceptor) Priority() InterceptorPriority {
	return InterceptorPriorityMetrics
}

func (m *metricsInterceptor) Intercept(req *http.Request, handler Handler) (*http.Response, error) {
	path := ""
	if req.URL != nil {
		path = req.URL.Path
	}
	start := time.Now()
	resp, err := handler(req)
	m.metrics.duration.WithLabelValues(req.Method, path).Observe(time.Since(start).Seconds())

	status := "error"
	if err == nil && resp != nil {
		status = strconv.Itoa(resp.StatusCode)
	}
	m.metrics.requests.WithLabelValues(req.Method, path, status).Inc()
	return resp, err
}

package clientv2

import (
	"net/http"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/mbt1909432/artifact-sandbox/internal/clientv2"

type traceInterceptor struct {
	tracer     trace.Tracer
	propagator propagation.TextMapPropagator
}

// NewTraceInterceptor 为每个请求创建一个客户端 span，provider 为 nil 时使用全局 TracerProvider。
func NewTraceInterceptor(provider trace.TracerProvider) Interceptor {
	if provider == nil {
		provider = otel.GetTracerProvider()
	}
	return &traceInterceptor{
		tracer:     provider.Tracer(tracerName),
		propagator: otel.GetTextMapPropagator(),
	}
}

func (t *traceInterceptor) Priority() InterceptorPriority {
	return InterceptorPriorityTrace
}

func (t *traceInterceptor) Intercept(req *http.Request, handler Handler) (*http.Response, error) {
	path := ""
	if req.URL != nil {
		path = req.URL.Path
	}
	ctx, span := t.tracer.Start(req.Context(), "HTTP "+req.Method+" "+path,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.request.method", req.Method),
			attribute.String("url.path", path),
		),
	)
	defer span.End()

	if id := req.Header.Get("x-sandbox-id"); id != "" {
		span.SetAttributes(attribute.String("sandbox.id", id))
	}

	req = req.WithContext(ctx)
	t.propagator.Inject(ctx, propagation.HeaderCarrier(req.Header))

	resp, err := handler(req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return resp, err
	}

	span.SetAttributes(attribute.Int("http.response.status_code", resp.StatusCode))
	if resp.StatusCode >= http.StatusBadRequest {
		span.SetStatus(codes.Error, http.StatusText(resp.StatusCode))
	}
	return resp, nil
}

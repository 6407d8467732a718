package observability

import (
	"context"
	"encoding/binary"
	"net/http"
	"regexp"
	"strconv"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"github.com/workshop-planner/api/internal/platform/requestctx"
)

const cloudTraceHeader = "X-Cloud-Trace-Context"

var (
	tracer     = otel.Tracer("github.com/workshop-planner/api")
	propagator = propagation.TraceContext{}

	// TRACE_ID/SPAN_ID;o=OPTIONS where SPAN_ID is decimal.
	cloudTracePattern = regexp.MustCompile(`^([0-9a-fA-F]{32})/([0-9]{1,20})(?:;o=([0-9]))?$`)
)

// Tracing starts a server span per request. The parent comes from a W3C traceparent header
// when present, otherwise from the Cloud Run X-Cloud-Trace-Context header. The resulting ids
// are stored with requestctx.WithTrace and echoed back in X-Cloud-Trace-Context.
func Tracing(projectID string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := remoteParent(r)
			ctx, span := tracer.Start(ctx, r.Method+" "+r.URL.Path,
				trace.WithSpanKind(trace.SpanKindServer),
				trace.WithAttributes(requestAttributes(r)...),
			)
			defer span.End()

			// Without a tracer provider or an incoming parent the span context is empty.
			sc := span.SpanContext()
			if !sc.IsValid() {
				next.ServeHTTP(w, r.WithContext(ctx))
				return
			}
			w.Header().Set(cloudTraceHeader, formatCloudTrace(sc))
			ctx = requestctx.WithTrace(ctx, requestctx.TraceInfo{
				TraceID:   sc.TraceID().String(),
				SpanID:    sc.SpanID().String(),
				Sampled:   sc.IsSampled(),
				ProjectID: projectID,
			})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func remoteParent(r *http.Request) context.Context {
	ctx := propagator.Extract(r.Context(), propagation.HeaderCarrier(r.Header))
	if trace.SpanContextFromContext(ctx).IsValid() {
		return ctx
	}
	if sc, ok := parseCloudTrace(r.Header.Get(cloudTraceHeader)); ok {
		return trace.ContextWithRemoteSpanContext(ctx, sc)
	}
	return ctx
}

func parseCloudTrace(header string) (trace.SpanContext, bool) {
	m := cloudTracePattern.FindStringSubmatch(header)
	if m == nil {
		return trace.SpanContext{}, false
	}
	traceID, err := trace.TraceIDFromHex(m[1])
	if err != nil {
		return trace.SpanContext{}, false
	}
	n, err := strconv.ParseUint(m[2], 10, 64)
	if err != nil || n == 0 {
		return trace.SpanContext{}, false
	}
	var spanID trace.SpanID
	binary.BigEndian.PutUint64(spanID[:], n)

	var flags trace.TraceFlags
	if m[3] == "1" {
		flags = trace.FlagsSampled
	}
	return trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    traceID,
		SpanID:     spanID,
		TraceFlags: flags,
		Remote:     true,
	}), true
}

func formatCloudTrace(sc trace.SpanContext) string {
	sid := sc.SpanID()
	opt := "0"
	if sc.IsSampled() {
		opt = "1"
	}
	return sc.TraceID().String() + "/" + strconv.FormatUint(binary.BigEndian.Uint64(sid[:]), 10) + ";o=" + opt
}

func requestAttributes(r *http.Request) []attribute.KeyValue {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	attrs := []attribute.KeyValue{
		attribute.String("http.request.method", r.Method),
		attribute.String("url.scheme", scheme),
		attribute.String("url.path", r.URL.Path),
	}
	if r.Host != "" {
		attrs = append(attrs, attribute.String("server.address", r.Host))
	}
	if ua := r.UserAgent(); ua != "" {
		attrs = append(attrs, attribute.String("user_agent.original", ua))
	}
	return attrs
}

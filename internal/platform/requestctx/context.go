// Package requestctx carries the request-scoped logger and trace identity through
// context.Context so packages below the HTTP layer can log without importing it.
package requestctx

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

type ctxKey int

const (
	loggerKey ctxKey = iota
	traceKey
)

var nop = zap.NewNop()

// TraceInfo identifies the trace and span serving a request.
type TraceInfo struct {
	TraceID   string
	SpanID    string
	Sampled   bool
	ProjectID string
}

// Resource returns the Cloud Logging trace resource name, or "" without a project.
func (t TraceInfo) Resource() string {
	if t.ProjectID == "" || t.TraceID == "" {
		return ""
	}
	return fmt.Sprintf("projects/%s/traces/%s", t.ProjectID, t.TraceID)
}

// WithLogger returns ctx carrying logger. A nil logger stores the no-op logger.
func WithLogger(ctx context.Context, logger *zap.Logger) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	if logger == nil {
		logger = nop
	}
	return context.WithValue(ctx, loggerKey, logger)
}

// Logger returns the logger on ctx, or the no-op logger.
func Logger(ctx context.Context) *zap.Logger {
	if logger, ok := ScopedLogger(ctx); ok {
		return logger
	}
	return nop
}

// ScopedLogger reports whether ctx carries a real logger.
func ScopedLogger(ctx context.Context) (*zap.Logger, bool) {
	if ctx == nil {
		return nil, false
	}
	logger, ok := ctx.Value(loggerKey).(*zap.Logger)
	if !ok || logger == nil || logger == nop {
		return nil, false
	}
	return logger, true
}

// WithTrace returns ctx carrying info.
func WithTrace(ctx context.Context, info TraceInfo) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, traceKey, info)
}

// Trace returns the trace identity on ctx; the zero value when absent.
func Trace(ctx context.Context) TraceInfo {
	if ctx == nil {
		return TraceInfo{}
	}
	info, _ := ctx.Value(traceKey).(TraceInfo)
	return info
}

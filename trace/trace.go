// Package trace provides tracing instrumentation tailored for driver needs.
package trace

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/grafana/xk6-acceptance/log"
)

const tracerName = "k6.acceptance"

// visit is the span of the page a driver currently shows.
type visit struct {
	ctx  context.Context
	span trace.Span
}

// Tracer creates driver spans. Calls made on a driver after a visit become
// children of that visit's span, so a trace reads as "visit, then
// everything done on that page".
type Tracer struct {
	trace.Tracer

	logger *log.Logger
	attrs  []attribute.KeyValue

	mu     sync.Mutex
	visits map[string]*visit
}

// NewTracer returns a Tracer from tp. Every span it starts carries metadata
// as string attributes.
func NewTracer(
	logger *log.Logger, tp trace.TracerProvider, metadata map[string]string, options ...trace.TracerOption,
) *Tracer {
	attrs := make([]attribute.KeyValue, 0, len(metadata))
	for k, v := range metadata {
		attrs = append(attrs, attribute.String(k, v))
	}

	return &Tracer{
		Tracer: tp.Tracer(tracerName, options...),
		logger: logger,
		attrs:  attrs,
		visits: make(map[string]*visit),
	}
}

// NewNoopTracer returns a Tracer that records nothing.
func NewNoopTracer() *Tracer {
	return NewTracer(log.NewNullLogger(), trace.NewNoopTracerProvider(), nil)
}

// Start starts a span carrying the tracer metadata.
func (t *Tracer) Start(
	ctx context.Context, spanName string, opts ...trace.SpanStartOption,
) (context.Context, trace.Span) {
	opts = append(opts, trace.WithAttributes(t.attrs...))
	return t.Tracer.Start(ctx, spanName, opts...)
}

// GetTraceID returns the hex trace ID of spanCtx, or an empty string.
func GetTraceID(spanCtx trace.SpanContext) string {
	if !spanCtx.HasTraceID() {
		return ""
	}
	return spanCtx.TraceID().String()
}

// TraceAPICall starts a span for a call on driverID, under its current
// visit when there is one. The caller ends the span.
func (t *Tracer) TraceAPICall(
	ctx context.Context, driverID string, spanName string, opts ...trace.SpanStartOption,
) (context.Context, trace.Span) {
	t.mu.Lock()
	if v := t.visits[driverID]; v != nil {
		ctx = v.ctx
	}
	t.mu.Unlock()

	sCtx, span := t.Start(ctx, spanName, opts...)
	return sCtx, t.logged(span, spanName)
}

// TraceVisit ends the current visit span of driverID, if any, and starts a
// new one for url. It stays open until the next visit or EndLiveSpan.
func (t *Tracer) TraceVisit(
	ctx context.Context, driverID string, url string, opts ...trace.SpanStartOption,
) (context.Context, trace.Span) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if prev := t.visits[driverID]; prev != nil {
		prev.span.End()
	}

	opts = append(opts, trace.WithAttributes(attribute.String("url", url)))
	v := &visit{}
	v.ctx, v.span = t.Start(ctx, "visit", opts...)
	t.visits[driverID] = v

	t.logger.Debugf("Tracer:TraceVisit", "driver:%s url:%q traceID:%s",
		driverID, url, GetTraceID(v.span.SpanContext()))

	return v.ctx, t.logged(v.span, "visit")
}

// EndLiveSpan ends the visit span of driverID, if any.
func (t *Tracer) EndLiveSpan(driverID string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if v := t.visits[driverID]; v != nil {
		v.span.End()
		delete(t.visits, driverID)
	}
}

// RecordError marks span as failed with err when err is not nil.
func RecordError(span trace.Span, err error) {
	if err == nil {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

// End ends span, recording err first.
func End(span trace.Span, err error) {
	RecordError(span, err)
	span.End()
}

func (t *Tracer) logged(span trace.Span, name string) trace.Span {
	if !t.logger.DebugMode() {
		return span
	}
	return &loggedSpan{Span: span, logger: t.logger, name: name}
}

// loggedSpan logs span lifecycle calls at debug level.
type loggedSpan struct {
	trace.Span

	logger *log.Logger
	name   string
}

func (s *loggedSpan) SetStatus(code codes.Code, description string) {
	s.logger.Debugf("Span:SetStatus", "span:%s traceID:%s code:%s description:%q",
		s.name, GetTraceID(s.SpanContext()), code, description)
	s.Span.SetStatus(code, description)
}

func (s *loggedSpan) End(options ...trace.SpanEndOption) {
	s.logger.Debugf("Span:End", "span:%s traceID:%s", s.name, GetTraceID(s.SpanContext()))
	s.Span.End(options...)
}

func (s *loggedSpan) RecordError(err error, options ...trace.EventOption) {
	s.logger.Debugf("Span:RecordError", "span:%s traceID:%s err:%v", s.name, GetTraceID(s.SpanContext()), err)
	s.Span.RecordError(err, options...)
}

package logger

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "lumen.app/companion"

// Span is a started span plus the context that carries it. Log calls made
// with Context() pick up the trace and span ids.
type Span struct {
	ctx  context.Context
	span trace.Span
}

// StartSpan opens a child span of whatever trace ctx carries.
//
//	sc := logger.StartSpan(ctx, "brain.fan_out")
//	defer sc.End()
//	ctx = sc.Context()
func StartSpan(ctx context.Context, name string, opts ...trace.SpanStartOption) *Span {
	ctx, span := otel.Tracer(tracerName).Start(ctx, name, opts...)
	return &Span{ctx: ctx, span: span}
}

// StartJobSpan opens a consumer span for a queued memory job. traceParent is
// the W3C header captured when the job was enqueued; a missing or malformed
// value starts a fresh trace instead.
func StartJobSpan(ctx context.Context, traceParent, name string, attrs ...attribute.KeyValue) *Span {
	if traceParent != "" {
		carrier := propagation.MapCarrier{"traceparent": traceParent}
		ctx = propagation.TraceContext{}.Extract(ctx, carrier)
	}
	return StartSpan(ctx, name,
		trace.WithSpanKind(trace.SpanKindConsumer),
		trace.WithAttributes(attrs...),
	)
}

func (s *Span) Context() context.Context {
	return s.ctx
}

func (s *Span) SetAttributes(attrs ...attribute.KeyValue) {
	s.span.SetAttributes(attrs...)
}

// RecordError attaches err to the span and marks the span failed. nil is
// ignored.
func (s *Span) RecordError(err error) {
	if err == nil {
		return
	}
	s.span.RecordError(err)
	s.span.SetStatus(codes.Error, err.Error())
}

func (s *Span) End() {
	s.span.End()
}

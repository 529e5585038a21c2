package instrumentation

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// TracerName is the tracer name used for all spans started by this module.
const TracerName = "github.com/teemow/inboxquery"

// Span attribute keys.
const (
	SpanAttrTool      = "mcp.tool"
	SpanAttrSession   = "mcp.session"
	SpanAttrService   = "backend.service"
	SpanAttrOperation = "backend.operation"

	// SpanAttrResultCount is the number of message handles or rows a backend
	// call produced.
	SpanAttrResultCount = "backend.result_count"
)

// SpanAttributeBuilder collects span attributes with consistent keys.
// Empty values are skipped.
type SpanAttributeBuilder struct {
	attrs []attribute.KeyValue
}

// NewSpanAttributeBuilder creates a new SpanAttributeBuilder.
func NewSpanAttributeBuilder() *SpanAttributeBuilder {
	return &SpanAttributeBuilder{attrs: make([]attribute.KeyValue, 0, 4)}
}

func (b *SpanAttributeBuilder) add(key, value string) *SpanAttributeBuilder {
	if value != "" {
		b.attrs = append(b.attrs, attribute.String(key, value))
	}
	return b
}

// WithTool adds the MCP tool name.
func (b *SpanAttributeBuilder) WithTool(tool string) *SpanAttributeBuilder {
	return b.add(SpanAttrTool, tool)
}

// WithService adds the backend service.
func (b *SpanAttributeBuilder) WithService(service string) *SpanAttributeBuilder {
	return b.add(SpanAttrService, service)
}

// WithOperation adds the backend operation.
func (b *SpanAttributeBuilder) WithOperation(operation string) *SpanAttributeBuilder {
	return b.add(SpanAttrOperation, operation)
}

// WithSession adds the query session id.
func (b *SpanAttributeBuilder) WithSession(session string) *SpanAttributeBuilder {
	return b.add(SpanAttrSession, session)
}

// Build returns the constructed attributes.
func (b *SpanAttributeBuilder) Build() []attribute.KeyValue {
	return b.attrs
}

func tracer() trace.Tracer {
	return otel.GetTracerProvider().Tracer(TracerName)
}

// StartToolSpan starts a server span named "tool.<toolName>" for an MCP
// tool invocation.
func StartToolSpan(ctx context.Context, toolName string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	all := append([]attribute.KeyValue{attribute.String(SpanAttrTool, toolName)}, attrs...)
	return tracer().Start(ctx, "tool."+toolName,
		trace.WithAttributes(all...),
		trace.WithSpanKind(trace.SpanKindServer),
	)
}

// StartBackendSpan starts a client span named "<service>.<operation>" for a
// Gmail, SQLite or LLM call.
func StartBackendSpan(ctx context.Context, service, operation string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	all := append([]attribute.KeyValue{
		attribute.String(SpanAttrService, service),
		attribute.String(SpanAttrOperation, operation),
	}, attrs...)
	return tracer().Start(ctx, service+"."+operation,
		trace.WithAttributes(all...),
		trace.WithSpanKind(trace.SpanKindClient),
	)
}

// EndSpan sets the span status from err and ends it.
func EndSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

// ObserveBackend runs fn inside a backend span and records the call on m.
// The context passed to fn carries the span. m may be nil.
func ObserveBackend(ctx context.Context, m *Metrics, service, operation string, fn func(context.Context) error) (err error) {
	start := time.Now()
	ctx, span := StartBackendSpan(ctx, service, operation)
	defer func() {
		EndSpan(span, err)
		status := StatusSuccess
		if err != nil {
			status = StatusError
		}
		m.RecordBackendOperation(ctx, service, operation, status, time.Since(start))
	}()
	return fn(ctx)
}

// SetResultCount annotates the span in ctx with the number of items a
// backend call produced.
func SetResultCount(ctx context.Context, n int) {
	trace.SpanFromContext(ctx).SetAttributes(attribute.Int(SpanAttrResultCount, n))
}

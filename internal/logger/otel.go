package logger

import (
	"context"

	"go.opentelemetry.io/otel/trace"
)

// OTelTraceProvider reads the active OpenTelemetry span from the request
// context and exposes its identifiers as correlation fields. When no valid
// span is recorded on the context it yields no fields.
type OTelTraceProvider struct{}

func (OTelTraceProvider) TraceFields(ctx context.Context) Fields {
	sc := trace.SpanContextFromContext(ctx)
	if !sc.IsValid() {
		return nil
	}
	return Fields{
		"trace_id": sc.TraceID().String(),
		"span_id":  sc.SpanID().String(),
	}
}

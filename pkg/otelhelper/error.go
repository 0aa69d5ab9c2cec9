package otelhelper

import (
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// SetError records err on the span and flips its status to Error. The extra
// attributes land on the recorded error event, not the span, so failed
// dispatches stay queryable by job id.
func SetError(span trace.Span, err error, attrs ...attribute.KeyValue) {
	span.SetStatus(codes.Error, err.Error())
	span.RecordError(err, trace.WithAttributes(attrs...))
}

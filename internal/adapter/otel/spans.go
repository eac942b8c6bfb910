package otel

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "inkwell"

// StartRecognitionSpan starts a span for a recognition call.
func StartRecognitionSpan(ctx context.Context, imageHash, model string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "recognition",
		trace.WithAttributes(
			attribute.String("image.hash", imageHash),
			attribute.String("model.name", model),
		),
	)
}

// StartReviewSpan starts a span for a review call.
func StartReviewSpan(ctx context.Context, model string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "review",
		trace.WithAttributes(
			attribute.String("model.name", model),
		),
	)
}

// StartWorkflowSpan starts a span for a full recognition-review workflow.
func StartWorkflowSpan(ctx context.Context, imageHash string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "workflow",
		trace.WithAttributes(
			attribute.String("image.hash", imageHash),
		),
	)
}

// StartProviderSpan starts a span for one upstream model call.
func StartProviderSpan(ctx context.Context, backend, model string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "provider.generate",
		trace.WithAttributes(
			attribute.String("provider.backend", backend),
			attribute.String("model.name", model),
		),
	)
}

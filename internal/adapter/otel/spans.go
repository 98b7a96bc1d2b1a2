package otel

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "mentoria"

// StartTurnSpan starts a span for one chat interaction.
func StartTurnSpan(ctx context.Context, conversationID, userID string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "chat.turn",
		trace.WithAttributes(
			attribute.String("conversation.id", conversationID),
			attribute.String("user.id", userID),
		),
	)
}

// StartRouteSpan starts a span for the routing stage.
func StartRouteSpan(ctx context.Context, model string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "chat.route",
		trace.WithAttributes(
			attribute.String("model", model),
		),
	)
}

// StartSearchSpan starts a span for a vector search.
func StartSearchSpan(ctx context.Context, k int) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "chat.search",
		trace.WithAttributes(
			attribute.Int("search.k", k),
		),
	)
}

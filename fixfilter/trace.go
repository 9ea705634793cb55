package fixfilter

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/ctu-vras/gnss-drivers/fixfilter"

// startCycleSpan opens the span covering one whole update cycle,
// including the wait for the filter lock. input names the ingestion path
// that fed the cycle.
func startCycleSpan(ctx context.Context, input string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "fixfilter.update",
		trace.WithAttributes(attribute.String("input", input)))
}

// annotateCycleSpan records the cycle verdict on the span.
func annotateCycleSpan(span trace.Span, res Result) {
	if res.Report == nil {
		span.SetAttributes(
			attribute.Bool("discarded", true),
			attribute.Bool("duplicate", res.Duplicate),
		)
		return
	}
	span.SetAttributes(
		attribute.String("quality", res.Report.Level.String()),
		attribute.String("state", res.Report.State.String()),
		attribute.Bool("emitted", res.Fix != nil),
	)
}

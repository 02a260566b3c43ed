/*
Package tracing provides lightweight request tracing.

HTTP requests and capability requests each run in a span. Trace context is
read from and written to the X-Trace-ID and X-Span-ID headers, so a call the
forms or dynamic content providers make on behalf of a builder request
carries the same trace id as the span that caused it. Finished spans are
logged by a background collector.

# Usage

	tracer := tracing.New("bridge", logger)
	defer tracer.Close()

	router.Use(tracing.HTTPMiddleware(tracer))

	handlers = tracing.Instrument(tracer, containerID, handlers)

	// Outbound
	tracing.Inject(ctx, req.Header)
*/
package tracing

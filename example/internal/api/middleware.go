package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/kroma-labs/sentinel-orm/example/api"

// tracing starts a server span per request so the database spans of a
// handler share its trace. The span is renamed to the matched chi route
// once routing is done.
func tracing(tp trace.TracerProvider, propagator propagation.TextMapPropagator) func(http.Handler) http.Handler {
	tracer := tp.Tracer(tracerName)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := propagator.Extract(r.Context(), propagation.HeaderCarrier(r.Header))

			ctx, span := tracer.Start(ctx, "HTTP "+r.Method,
				trace.WithSpanKind(trace.SpanKindServer),
				trace.WithAttributes(
					semconv.HTTPRequestMethodKey.String(r.Method),
					semconv.URLPath(r.URL.Path),
					semconv.UserAgentOriginal(r.UserAgent()),
				),
			)
			defer span.End()

			if requestID := middleware.GetReqID(ctx); requestID != "" {
				span.SetAttributes(attribute.String("request.id", requestID))
			}

			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r.WithContext(ctx))

			if route := chi.RouteContext(r.Context()); route != nil && route.RoutePattern() != "" {
				span.SetName("HTTP " + r.Method + " " + route.RoutePattern())
				span.SetAttributes(semconv.HTTPRoute(route.RoutePattern()))
			}

			status := ww.Status()
			span.SetAttributes(semconv.HTTPResponseStatusCode(status))
			if status >= http.StatusInternalServerError {
				span.SetStatus(codes.Error, http.StatusText(status))
			}
		})
	}
}

// logging writes one zerolog line per request.
// It must be mounted inside tracing for trace_id to be set.
func logging(logger zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			status := ww.Status()
			event := logger.Info()
			if status >= http.StatusInternalServerError {
				event = logger.Error()
			}

			event.
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", status).
				Int("bytes", ww.BytesWritten()).
				Dur("duration", time.Since(start)).
				Str("request_id", middleware.GetReqID(r.Context())).
				Str("trace_id", trace.SpanContextFromContext(r.Context()).TraceID().String()).
				Msg("request completed")
		})
	}
}

// defaultTelemetry returns the global tracer provider and propagator.
func defaultTelemetry() (trace.TracerProvider, propagation.TextMapPropagator) {
	return otel.GetTracerProvider(), otel.GetTextMapPropagator()
}

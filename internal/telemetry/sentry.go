// Package telemetry reports ingest and question answering spans to Sentry. Without
// a DSN every helper is a no-op, so callers never check whether tracing is on.
package telemetry

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/getsentry/sentry-go"
)

const serverName = "reportqa"

// flushTimeout bounds how long shutdown waits for queued events.
const flushTimeout = 5 * time.Second

// Config holds the configuration for Sentry initialization.
type Config struct {
	DSN              string
	Environment      string
	TracesSampleRate float64
	Debug            bool
}

// Init configures the global Sentry client and returns a flush function for
// shutdown. An empty DSN disables reporting. A client that fails to initialize is
// logged and treated the same way; tracing never stops the process from starting.
func Init(cfg Config) (func(), error) {
	if cfg.DSN == "" {
		return func() {}, nil
	}
	if cfg.Environment == "" {
		cfg.Environment = "development"
	}
	if cfg.TracesSampleRate <= 0 {
		cfg.TracesSampleRate = 1.0
	}

	err := sentry.Init(sentry.ClientOptions{
		Dsn:              cfg.DSN,
		Environment:      cfg.Environment,
		EnableTracing:    true,
		TracesSampleRate: cfg.TracesSampleRate,
		TracesSampler:    sampler(cfg.TracesSampleRate),
		Debug:            cfg.Debug,
		ServerName:       serverName,
	})
	if err != nil {
		log.Printf("sentry: failed to initialize (continuing without tracing): %v", err)
		return func() {}, nil
	}

	log.Printf("sentry: tracing initialized (environment: %s, sample_rate: %.2f)", cfg.Environment, cfg.TracesSampleRate)
	return func() { sentry.Flush(flushTimeout) }, nil
}

// sampler drops health checks, keeps every ingest (they are rare and expensive) and
// samples the rest at rate. Child spans follow their parent.
func sampler(rate float64) sentry.TracesSampler {
	return func(ctx sentry.SamplingContext) float64 {
		var noParent sentry.SpanID
		if ctx.Span.ParentSpanID != noParent {
			if ctx.Span.Sampled.Bool() {
				return 1.0
			}
			return 0.0
		}
		name := ctx.Span.Name
		switch {
		case strings.HasSuffix(name, " /health"):
			return 0.0
		case strings.HasSuffix(name, "/documents"), name == spanIngest:
			return 1.0
		}
		return rate
	}
}

// Span names shared by the services.
const (
	spanIngest = "ingest"
	spanAsk    = "ask"
)

// SpanAttributes tags a span with the collection and the filter it works on.
type SpanAttributes struct {
	Collection string
	Filter     string
}

// Span wraps sentry.Span so callers do not nil-check the inner span.
type Span struct {
	inner *sentry.Span
}

// End finishes the span.
func (s *Span) End() {
	if s.inner != nil {
		s.inner.Finish()
	}
}

// SetData records a measurement such as a chunk count or a stage latency.
func (s *Span) SetData(key string, value interface{}) {
	if s.inner == nil {
		return
	}
	if d, ok := value.(time.Duration); ok {
		value = d.Milliseconds()
		key += "_ms"
	}
	s.inner.SetData(key, value)
}

// SetError marks the span failed and reports err on the span's hub.
func (s *Span) SetError(err error) {
	if s.inner == nil || err == nil {
		return
	}
	s.inner.Status = sentry.SpanStatusInternalError
	CaptureError(s.inner.Context(), err)
}

// Context returns the span's context.
func (s *Span) Context() context.Context {
	if s.inner != nil {
		return s.inner.Context()
	}
	return context.Background()
}

// StartIngest opens the span covering one collection replacement.
func StartIngest(ctx context.Context, attrs SpanAttributes) (context.Context, *Span) {
	return startSpan(ctx, spanIngest, attrs)
}

// StartAsk opens the span covering retrieval and generation for one question.
func StartAsk(ctx context.Context, attrs SpanAttributes) (context.Context, *Span) {
	return startSpan(ctx, spanAsk, attrs)
}

// startSpan continues the transaction on ctx, typically the HTTP request, or starts
// a new one for CLI and watch runs.
func startSpan(ctx context.Context, op string, attrs SpanAttributes) (context.Context, *Span) {
	var span *sentry.Span
	if parent := sentry.SpanFromContext(ctx); parent != nil {
		span = parent.StartChild(op)
	} else {
		span = sentry.StartSpan(ctx, op, sentry.WithTransactionName(op))
	}

	if attrs.Collection != "" {
		span.SetTag("collection", attrs.Collection)
	}
	if attrs.Filter != "" {
		span.SetData("filter", attrs.Filter)
	}
	return span.Context(), &Span{inner: span}
}

// CaptureError reports err on the hub bound to ctx, or the global hub.
func CaptureError(ctx context.Context, err error) {
	if hub := sentry.GetHubFromContext(ctx); hub != nil {
		hub.CaptureException(err)
		return
	}
	sentry.CaptureException(err)
}

// Breadcrumb records a progress step that is attached to any later error event.
func Breadcrumb(ctx context.Context, category, format string, args ...interface{}) {
	crumb := &sentry.Breadcrumb{
		Category:  category,
		Message:   fmt.Sprintf(format, args...),
		Level:     sentry.LevelInfo,
		Timestamp: time.Now(),
	}
	if hub := sentry.GetHubFromContext(ctx); hub != nil {
		hub.AddBreadcrumb(crumb, nil)
		return
	}
	sentry.AddBreadcrumb(crumb)
}

package middleware

import (
	"fmt"
	"net/http"

	"github.com/getsentry/sentry-go"
	"github.com/go-chi/chi/v5"
)

// Tracing starts a Sentry transaction per request. The transaction is renamed to the
// matched route once chi has dispatched, so "/sessions/{id}/ask" is one transaction
// rather than one per session. Panics are reported and re-raised; 5xx responses are
// captured as messages. Without a Sentry client nothing is sent.
func Tracing(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hub := sentry.GetHubFromContext(r.Context())
		if hub == nil {
			hub = sentry.CurrentHub().Clone()
		}

		options := []sentry.SpanOption{
			sentry.WithOpName("http.server"),
			sentry.WithTransactionSource(sentry.SourceURL),
		}
		if trace := r.Header.Get("sentry-trace"); trace != "" {
			options = append(options, sentry.ContinueFromHeaders(trace, r.Header.Get("baggage")))
		}

		tx := sentry.StartTransaction(r.Context(), r.Method+" "+r.URL.Path, options...)
		defer tx.Finish()

		r = r.WithContext(sentry.SetHubOnContext(tx.Context(), hub))
		if requestID := GetRequestID(r.Context()); requestID != "" {
			hub.Scope().SetTag("request_id", requestID)
			tx.SetTag("request_id", requestID)
		}

		defer func() {
			if err := recover(); err != nil {
				tx.Status = sentry.SpanStatusInternalError
				hub.RecoverWithContext(r.Context(), err)
				panic(err)
			}
		}()

		rec := wrap(w)
		next.ServeHTTP(rec, r)

		if pattern := routeOf(r); pattern != r.URL.Path {
			tx.Name = r.Method + " " + pattern
			tx.Source = sentry.SourceRoute
		}
		status := rec.Status()
		tx.Status = spanStatus(status)
		tx.SetData("http.response.status_code", status)
		if r.ContentLength > 0 {
			tx.SetData("http.request.body.size", r.ContentLength)
		}
		if sessionID := chi.URLParam(r, "id"); sessionID != "" {
			hub.Scope().SetTag("session_id", sessionID)
			tx.SetTag("session_id", sessionID)
		}

		if status >= http.StatusInternalServerError {
			hub.CaptureMessage(fmt.Sprintf("HTTP %d on %s", status, tx.Name))
		}
	})
}

// spanStatus maps the statuses the API actually returns; anything else falls back
// to its class.
func spanStatus(status int) sentry.SpanStatus {
	switch status {
	case http.StatusBadRequest:
		return sentry.SpanStatusInvalidArgument
	case http.StatusNotFound:
		return sentry.SpanStatusNotFound
	case http.StatusConflict:
		return sentry.SpanStatusFailedPrecondition
	case http.StatusRequestEntityTooLarge:
		return sentry.SpanStatusResourceExhausted
	case http.StatusUnsupportedMediaType, http.StatusUnprocessableEntity:
		return sentry.SpanStatusInvalidArgument
	case http.StatusBadGateway, http.StatusServiceUnavailable:
		return sentry.SpanStatusUnavailable
	case http.StatusGatewayTimeout:
		return sentry.SpanStatusDeadlineExceeded
	}
	switch {
	case status < 400:
		return sentry.SpanStatusOK
	case status < 500:
		return sentry.SpanStatusInvalidArgument
	default:
		return sentry.SpanStatusInternalError
	}
}

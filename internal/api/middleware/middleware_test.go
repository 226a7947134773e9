package middleware

import (
	"bytes"
	"encoding/json"
	"log"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/getsentry/sentry-go"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func captureLog(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	flags := log.Flags()
	log.SetFlags(0)
	log.SetOutput(&buf)
	t.Cleanup(func() {
		log.SetOutput(os.Stderr)
		log.SetFlags(flags)
	})
	return &buf
}

func TestRequestID(t *testing.T) {
	var seen string
	h := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetRequestID(r.Context())
	}))

	tests := []struct {
		name    string
		inbound string
		keep    bool
	}{
		{"generated when absent", "", false},
		{"kept when well formed", "sess-42:ask.1", true},
		{"replaced when too long", strings.Repeat("a", maxRequestIDLen+1), false},
		{"replaced when unsafe", "abc\nforged log line", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.inbound != "" {
				req.Header.Set(RequestIDHeader, tt.inbound)
			}
			w := httptest.NewRecorder()
			h.ServeHTTP(w, req)

			assert.NotEmpty(t, seen)
			assert.Equal(t, seen, w.Header().Get(RequestIDHeader))
			if tt.keep {
				assert.Equal(t, tt.inbound, seen)
			} else {
				assert.NotEqual(t, tt.inbound, seen)
			}
		})
	}
}

func TestAccessLog_RecordsRoute(t *testing.T) {
	buf := captureLog(t)

	r := chi.NewRouter()
	r.Use(RequestID)
	r.Use(AccessLog)
	r.Post("/sessions/{id}/ask", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
		_, _ = w.Write([]byte("hi"))
	})

	req := httptest.NewRequest(http.MethodPost, "/sessions/s-1/ask", strings.NewReader(`{"question":"q"}`))
	req.Header.Set("X-Forwarded-For", "10.0.0.1, 10.0.0.2")
	r.ServeHTTP(httptest.NewRecorder(), req)

	var entry accessLogEntry
	require.NoError(t, json.Unmarshal([]byte(strings.TrimSpace(buf.String())), &entry))
	assert.Equal(t, "/sessions/{id}/ask", entry.Route)
	assert.Equal(t, "/sessions/s-1/ask", entry.Path)
	assert.Equal(t, http.StatusTeapot, entry.Status)
	assert.Equal(t, int64(len(`{"question":"q"}`)), entry.InBytes)
	assert.Equal(t, 2, entry.OutBytes)
	assert.Equal(t, "s-1", entry.SessionID)
	assert.Equal(t, "10.0.0.1", entry.RemoteAddr)
	assert.NotEmpty(t, entry.RequestID)
}

func TestAccessLog_QuietHealth(t *testing.T) {
	buf := captureLog(t)

	healthy := true
	r := chi.NewRouter()
	r.Use(AccessLog)
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		if !healthy {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
	})

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Empty(t, buf.String())

	healthy = false
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Contains(t, buf.String(), `"status":503`)
}

func TestMaxBodyBytes(t *testing.T) {
	h := MaxBodyBytes(BodyLimits{JSON: 4, Multipart: 16})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	tests := []struct {
		name        string
		contentType string
		body        string
		status      int
	}{
		{"json within limit", "application/json", "{}", http.StatusOK},
		{"json over limit", "application/json", `{"a":1}`, http.StatusRequestEntityTooLarge},
		{"no content type uses json limit", "", "too long", http.StatusRequestEntityTooLarge},
		{"multipart gets larger limit", "multipart/form-data; boundary=b", "0123456789", http.StatusOK},
		{"multipart over limit", "multipart/form-data; boundary=b", strings.Repeat("x", 17), http.StatusRequestEntityTooLarge},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tt.body))
			if tt.contentType != "" {
				req.Header.Set("Content-Type", tt.contentType)
			}
			w := httptest.NewRecorder()
			h.ServeHTTP(w, req)
			assert.Equal(t, tt.status, w.Code)
		})
	}
}

func TestMaxBodyBytes_UnknownLength(t *testing.T) {
	var readErr error
	h := MaxBodyBytes(BodyLimits{JSON: 4})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, readErr = r.Body.Read(make([]byte, 16))
	}))

	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader("far too long"))
	req.ContentLength = -1
	h.ServeHTTP(httptest.NewRecorder(), req)

	var maxErr *http.MaxBytesError
	assert.ErrorAs(t, readErr, &maxErr)
}

func TestTracing_WithoutClient(t *testing.T) {
	r := chi.NewRouter()
	r.Use(Tracing)
	r.Post("/sessions/{id}/ask", func(w http.ResponseWriter, r *http.Request) {
		assert.NotNil(t, sentry.GetHubFromContext(r.Context()))
		w.WriteHeader(http.StatusBadGateway)
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/sessions/x/ask", nil))

	assert.Equal(t, http.StatusBadGateway, w.Code)
}

func TestTracing_RepanicsAfterRecovery(t *testing.T) {
	h := Tracing(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	assert.PanicsWithValue(t, "boom", func() {
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	})
}

func TestSpanStatus(t *testing.T) {
	tests := []struct {
		status int
		want   sentry.SpanStatus
	}{
		{http.StatusOK, sentry.SpanStatusOK},
		{http.StatusCreated, sentry.SpanStatusOK},
		{http.StatusNoContent, sentry.SpanStatusOK},
		{http.StatusBadRequest, sentry.SpanStatusInvalidArgument},
		{http.StatusNotFound, sentry.SpanStatusNotFound},
		{http.StatusConflict, sentry.SpanStatusFailedPrecondition},
		{http.StatusRequestEntityTooLarge, sentry.SpanStatusResourceExhausted},
		{http.StatusUnprocessableEntity, sentry.SpanStatusInvalidArgument},
		{http.StatusTeapot, sentry.SpanStatusInvalidArgument},
		{http.StatusBadGateway, sentry.SpanStatusUnavailable},
		{http.StatusGatewayTimeout, sentry.SpanStatusDeadlineExceeded},
		{http.StatusInternalServerError, sentry.SpanStatusInternalError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, spanStatus(tt.status), "status %d", tt.status)
	}
}

func TestWrap_ReusesRecorder(t *testing.T) {
	outer := wrap(httptest.NewRecorder())
	assert.Same(t, outer, wrap(outer))

	_, _ = outer.Write([]byte("abc"))
	outer.WriteHeader(http.StatusInternalServerError)
	assert.Equal(t, http.StatusOK, outer.Status())
	assert.Equal(t, 3, outer.bytes)
}

package api

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/studyloop/studyloop/pkg/observability"
)

func TestWithRequestID(t *testing.T) {
	t.Run("generates an id and echoes it in the response header", func(t *testing.T) {
		var seenRequestID string
		inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			seenRequestID = observability.RequestIDFromContext(r.Context())
			w.WriteHeader(http.StatusOK)
		})

		rec := httptest.NewRecorder()
		withRequestID(inner).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

		require.NotEmpty(t, seenRequestID)
		assert.Equal(t, seenRequestID, rec.Header().Get("X-Request-ID"))
	})

	t.Run("reuses an incoming correlation id", func(t *testing.T) {
		correlationID := uuid.New().String()
		var seenCorrelationID string
		inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			seenCorrelationID = observability.CorrelationIDFromContext(r.Context())
		})

		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		req.Header.Set("X-Correlation-ID", correlationID)
		withRequestID(inner).ServeHTTP(httptest.NewRecorder(), req)

		assert.Equal(t, correlationID, seenCorrelationID)
	})

	t.Run("server wires the middleware on every route", func(t *testing.T) {
		handler := newTestHandler(t, &stubRepo{}, nil)
		srv := NewServer(DefaultServerConfig(), handler, nil)

		rec := httptest.NewRecorder()
		srv.server.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
	})
}

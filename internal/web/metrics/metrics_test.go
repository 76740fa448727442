package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMiddleware_LabelsByRoutePattern(t *testing.T) {
	m := New()

	mux := chi.NewRouter()
	mux.Get("/api/v1/apps/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	handler := m.Middleware()(mux)

	for _, id := range []string{"1", "2", "3"} {
		handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/v1/apps/"+id, nil))
	}
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/nowhere", nil))

	assert.Equal(t, float64(3), testutil.ToFloat64(m.httpRequests.WithLabelValues("GET", "/api/v1/apps/{id}", "404")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.httpRequests.WithLabelValues("GET", "unmatched", "404")))
	assert.Equal(t, float64(0), testutil.ToFloat64(m.httpInFlight))
}

func TestDomainCounters(t *testing.T) {
	m := New()

	m.RecordFeedback(true)
	m.RecordFeedback(false)
	m.RecordFeedback(false)
	m.RecordAuth("email", false)
	m.RecordUpload("thumbnail_image")
	m.RecordBlobsCollected(4)
	m.RecordBlobsCollected(0)
	m.SetStreamClients(2)

	assert.Equal(t, float64(1), testutil.ToFloat64(m.feedbacks.WithLabelValues("created")))
	assert.Equal(t, float64(2), testutil.ToFloat64(m.feedbacks.WithLabelValues("updated")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.authAttempts.WithLabelValues("email", "failure")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.uploads.WithLabelValues("thumbnail_image")))
	assert.Equal(t, float64(4), testutil.ToFloat64(m.blobsCollected))
	assert.Equal(t, float64(2), testutil.ToFloat64(m.streamClients))
}

func TestHandler(t *testing.T) {
	m := New()
	m.RecordFeedback(true)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.True(t, strings.Contains(body, `egg_feedback_submissions_total{result="created"} 1`))
	assert.Contains(t, body, "go_goroutines")
}

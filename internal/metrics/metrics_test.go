package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestCounters(t *testing.T) {
	m := New()

	m.StoreOp("add_item", "ok")
	m.StoreOp("add_item", "ok")
	m.StoreOp("add_item", "conflict")
	m.Preview("found")
	m.SignIn("demo", "ok")
	m.ObserveRequest("/api/wishlists/{id}", http.MethodGet, http.StatusOK, 12*time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.storeOps.WithLabelValues("add_item", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.storeOps.WithLabelValues("add_item", "conflict")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.previews.WithLabelValues("found")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.signIns.WithLabelValues("demo", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.requests.WithLabelValues("/api/wishlists/{id}", "GET", "200")))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics

	assert.NotPanics(t, func() {
		m.StoreOp("create", "ok")
		m.Preview("error")
		m.SignIn("google", "rejected")
		m.ObserveRequest("/", http.MethodGet, 200, time.Second)
	})
	assert.Nil(t, m.Registry())

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandlerExposesMetrics(t *testing.T) {
	m := New()
	m.StoreOp("create", "ok")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `wishlist_store_operations_total{op="create",outcome="ok"} 1`)
}

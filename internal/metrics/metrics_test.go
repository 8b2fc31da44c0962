package metrics_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/magnolia-blog/magnolia/internal/metrics"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestCollectors(t *testing.T) {
	before := testutil.ToFloat64(metrics.ArticleMutations.WithLabelValues("create"))
	metrics.ArticleMutations.WithLabelValues("create").Inc()
	assert.Equal(t, before+1, testutil.ToFloat64(metrics.ArticleMutations.WithLabelValues("create")))

	metrics.SitePages.Set(12)
	assert.Equal(t, float64(12), testutil.ToFloat64(metrics.SitePages))
}

func TestHandler(t *testing.T) {
	metrics.SessionsCleaned.Add(0)

	rec := httptest.NewRecorder()
	metrics.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "magnolia_sessions_cleaned_total")
}

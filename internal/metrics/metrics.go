// Package metrics holds the Prometheus collectors shared by the services.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// ArticleMutations counts successful article writes by operation (create, update, delete, import)
	ArticleMutations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "magnolia_article_mutations_total",
		Help: "Total article mutations by operation",
	}, []string{"operation"})

	// SiteBuilds counts static site builds by result (success, failure)
	SiteBuilds = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "magnolia_site_builds_total",
		Help: "Total static site builds by result",
	}, []string{"result"})

	SiteBuildDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "magnolia_site_build_duration_seconds",
		Help:    "Static site build duration in seconds",
		Buckets: prometheus.ExponentialBuckets(0.01, 2, 12), // 10ms to ~40s
	})

	// SitePages is the number of pages written by the last successful build
	SitePages = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "magnolia_site_pages",
		Help: "Pages generated by the last successful build",
	})

	// LoginAttempts counts logins by result (success, invalid, error)
	LoginAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "magnolia_login_attempts_total",
		Help: "Total login attempts by result",
	}, []string{"result"})

	SessionsCleaned = promauto.NewCounter(prometheus.CounterOpts{
		Name: "magnolia_sessions_cleaned_total",
		Help: "Expired sessions removed by the cleanup job",
	})
)

// Handler serves the default registry
func Handler() http.Handler {
	return promhttp.Handler()
}

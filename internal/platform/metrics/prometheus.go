package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/sloanfm/biscuit/internal/platform/logger"
)

// MetricsManager holds custom Prometheus metrics for the review service.
type MetricsManager struct {
	Registry *prometheus.Registry

	ReviewsCreatedTotal prometheus.Counter
	ReviewsUpdatedTotal prometheus.Counter
	ReviewsDeletedTotal prometheus.Counter
	LikeTogglesTotal    *prometheus.CounterVec // labelled liked/unliked
	FeedRequestsTotal   *prometheus.CounterVec // labelled by sort order
	CatalogLookupErrors prometheus.Counter
	HTTPRequestLatency  *prometheus.HistogramVec
	HTTPErrorsTotal     *prometheus.CounterVec
}

// NewMetricsManager initializes and registers custom Prometheus metrics on a
// dedicated registry.
func NewMetricsManager(serviceName string) *MetricsManager {
	registry := prometheus.NewRegistry()

	reviewsCreatedTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: serviceName,
		Name:      "reviews_created_total",
		Help:      "Total number of reviews created.",
	})
	reviewsUpdatedTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: serviceName,
		Name:      "reviews_updated_total",
		Help:      "Total number of reviews updated in place.",
	})
	reviewsDeletedTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: serviceName,
		Name:      "reviews_deleted_total",
		Help:      "Total number of reviews deleted.",
	})
	likeTogglesTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: serviceName,
		Name:      "like_toggles_total",
		Help:      "Total number of like toggles by direction.",
	}, []string{"direction"})
	feedRequestsTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: serviceName,
		Name:      "feed_requests_total",
		Help:      "Total number of feed requests by sort order.",
	}, []string{"sort_by"})
	catalogLookupErrors := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: serviceName,
		Name:      "catalog_lookup_errors_total",
		Help:      "Total number of failed catalog lookups.",
	})
	httpRequestLatency := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: serviceName,
		Name:      "http_request_latency_seconds",
		Help:      "Latency of HTTP requests by route.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"route", "method"})
	httpErrorsTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: serviceName,
		Name:      "http_errors_total",
		Help:      "Total number of HTTP error responses by route and status.",
	}, []string{"route", "status"})

	registry.MustRegister(
		reviewsCreatedTotal,
		reviewsUpdatedTotal,
		reviewsDeletedTotal,
		likeTogglesTotal,
		feedRequestsTotal,
		catalogLookupErrors,
		httpRequestLatency,
		httpErrorsTotal,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return &MetricsManager{
		Registry:            registry,
		ReviewsCreatedTotal: reviewsCreatedTotal,
		ReviewsUpdatedTotal: reviewsUpdatedTotal,
		ReviewsDeletedTotal: reviewsDeletedTotal,
		LikeTogglesTotal:    likeTogglesTotal,
		FeedRequestsTotal:   feedRequestsTotal,
		CatalogLookupErrors: catalogLookupErrors,
		HTTPRequestLatency:  httpRequestLatency,
		HTTPErrorsTotal:     httpErrorsTotal,
	}
}

// StartMetricsServer starts an HTTP server exposing the registry at /metrics.
func StartMetricsServer(port string, appLogger *logger.Logger, registry *prometheus.Registry) error {
	if port == "" {
		appLogger.Info("Prometheus metrics server port not configured, server will not start.")
		return nil
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	appLogger.Info("Prometheus metrics server starting", zap.String("port", port), zap.String("path", "/metrics"))

	server := &http.Server{
		Addr:    ":" + port,
		Handler: mux,
	}
	return server.ListenAndServe()
}

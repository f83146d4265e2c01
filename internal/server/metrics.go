package server

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	apiRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "argus",
		Subsystem: "api",
		Name:      "requests_total",
		Help:      "Count of API requests by route and response code",
	}, []string{"route", "code"})

	apiDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "argus",
		Subsystem: "api",
		Name:      "request_duration_seconds",
		Help:      "API request latency by route",
		Buckets:   prometheus.DefBuckets,
	}, []string{"route"})
)

// instrumentHandler wraps an API handler with request count and latency
// metrics labeled by route pattern.
func instrumentHandler(route string, h http.Handler) http.Handler {
	labels := prometheus.Labels{"route": route}
	return promhttp.InstrumentHandlerDuration(
		apiDuration.MustCurryWith(labels),
		promhttp.InstrumentHandlerCounter(
			apiRequests.MustCurryWith(labels),
			h,
		),
	)
}

package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	BuildInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "comptoken_build_info",
			Help: "Build information of the comptoken program",
		},
		[]string{"version", "network"},
	)

	InstructionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "comptoken_instructions_total",
			Help: "Total number of processed instructions",
		},
		[]string{"instruction", "status"},
	)

	ProofsAcceptedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "comptoken_proofs_accepted_total",
			Help: "Total number of accepted proofs of work",
		},
	)

	ProofsRejectedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "comptoken_proofs_rejected_total",
			Help: "Total number of rejected proof submissions",
		},
		[]string{"reason"},
	)

	TokensMintedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "comptoken_tokens_minted_total",
			Help: "Total number of tokens minted",
		},
		[]string{"destination"},
	)

	HighWaterMark = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "comptoken_high_water_mark",
			Help: "Highest daily mining increase seen so far",
		},
	)

	YesterdaySupply = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "comptoken_yesterday_supply",
			Help: "Supply recorded at the last daily distribution",
		},
	)

	VerifiedHumans = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "comptoken_verified_humans",
			Help: "Number of verified humans",
		},
	)

	MinerHashesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "comptoken_miner_hashes_total",
			Help: "Total number of headers hashed by the local miner",
		},
	)

	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "comptoken_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "comptoken_http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	HTTPRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "comptoken_http_requests_in_flight",
			Help: "Number of HTTP requests currently being processed",
		},
	)
)

// Middleware returns a chi middleware that records HTTP metrics.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		HTTPRequestsInFlight.Inc()
		defer HTTPRequestsInFlight.Dec()

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		// Use the route pattern if available, otherwise use the path
		path := ""
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			path = rctx.RoutePattern()
		}
		if path == "" {
			path = r.URL.Path
		}

		status := strconv.Itoa(ww.Status())
		HTTPRequestsTotal.WithLabelValues(r.Method, path, status).Inc()
		HTTPRequestDuration.WithLabelValues(r.Method, path).Observe(time.Since(start).Seconds())
	})
}

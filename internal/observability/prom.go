package observability

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "contextbridge"

var (
	httpBuckets = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10}
	dbBuckets   = []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2}
	// model answers are slow; keep the long tail visible
	gatewayBuckets = []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 20, 30, 60, 120}
)

// Prom holds the service metrics. HTTP series are labelled by route template,
// store series by logical operation ("users.get_by_id"), gateway series by
// call ("query", "traces").
type Prom struct {
	RequestsTotal    *prometheus.CounterVec
	RequestsDuration *prometheus.HistogramVec
	InFlight         *prometheus.GaugeVec

	DbQueryDuration *prometheus.HistogramVec
	DbErrorsTotal   *prometheus.CounterVec

	GatewayRequests *prometheus.CounterVec
	GatewayDuration *prometheus.HistogramVec
	BreakerState    prometheus.Gauge
}

func NewProm(reg prometheus.Registerer) *Prom {
	f := promauto.With(reg)

	return &Prom{
		RequestsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "http_requests_total",
			Help: "HTTP requests by method, route and status.",
		}, []string{"method", "route", "status"}),
		RequestsDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Name: "http_request_duration_seconds",
			Help:    "HTTP request latency.",
			Buckets: httpBuckets,
		}, []string{"method", "route", "status"}),
		InFlight: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Name: "http_in_flight_requests",
			Help: "HTTP requests currently being served.",
		}, []string{"method", "route"}),

		DbQueryDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: "db", Name: "query_duration_seconds",
			Help:    "Store operation latency by logical op and status (ok, not_found, error).",
			Buckets: dbBuckets,
		}, []string{"op", "status"}),
		DbErrorsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "db", Name: "errors_total",
			Help: "Store errors by logical op and class.",
		}, []string{"op", "class"}),

		GatewayRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "gateway", Name: "requests_total",
			Help: "Model gateway calls by op and result (ok, error, circuit_open).",
		}, []string{"op", "result"}),
		GatewayDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: "gateway", Name: "request_duration_seconds",
			Help:    "Model gateway call latency.",
			Buckets: gatewayBuckets,
		}, []string{"op", "result"}),
		BreakerState: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "gateway", Name: "breaker_open",
			Help: "1 while the model gateway breaker is open or half-open.",
		}),
	}
}

// GinHandleMiddleware records request count, latency and in-flight gauge.
// Unrouted requests share the "unmatched" route label.
func (p *Prom) GinHandleMiddleware() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		route := ctx.FullPath()
		if route == "" {
			route = "unmatched"
		}
		method := ctx.Request.Method

		inFlight := p.InFlight.WithLabelValues(method, route)
		inFlight.Inc()
		defer inFlight.Dec()

		start := time.Now()
		ctx.Next()

		status := strconv.Itoa(ctx.Writer.Status())
		p.RequestsTotal.WithLabelValues(method, route, status).Inc()
		p.RequestsDuration.WithLabelValues(method, route, status).Observe(time.Since(start).Seconds())
	}
}

func (p *Prom) ObserveGateway(op, result string, d time.Duration) {
	p.GatewayRequests.WithLabelValues(op, result).Inc()
	p.GatewayDuration.WithLabelValues(op, result).Observe(d.Seconds())
}

func (p *Prom) SetBreakerOpen(open bool) {
	v := 0.0
	if open {
		v = 1
	}
	p.BreakerState.Set(v)
}

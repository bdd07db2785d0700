package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	OrdersTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "safegate_orders_total",
		Help: "The total number of orders processed",
	}, []string{"status", "side"})

	OrderRejects = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "safegate_order_rejects_total",
		Help: "Total classified order rejections",
	}, []string{"reason"})

	RateLimitWait = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "safegate_rate_limit_wait_seconds",
		Help:    "Time spent waiting for rate-limit admission",
		Buckets: prometheus.DefBuckets,
	}, []string{"bucket"})

	AuthorizationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "safegate_authorizations_total",
		Help: "Signer authorization attempts by terminal result",
	}, []string{"result"})

	LatencyBucket = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "safegate_latency_bucket",
		Help:    "Request latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"endpoint"})
)

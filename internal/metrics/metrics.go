// Package metrics exposes Prometheus instrumentation for the API.
package metrics

import (
	"net/http" // Scrape handler type
	"strconv"  // Status label
	"time"     // Latency

	"github.com/gin-gonic/gin"                                // Gin web framework
	"github.com/prometheus/client_golang/prometheus"          // Metric types
	"github.com/prometheus/client_golang/prometheus/promauto" // Registration on the default registry
	"github.com/prometheus/client_golang/prometheus/promhttp" // Scrape endpoint
)

const namespace = "etherstake" // Metric name prefix

// Stake lifecycle events.
const (
	EventCreated   = "created"   // Stake opened
	EventCancelled = "cancelled" // Cancelled by the owner
	EventCompleted = "completed" // Reward realised
	EventUpdated   = "updated"   // Admin override
)

var (
	stakeEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "stakes_total",
		Help:      "Stake lifecycle transitions by event.",
	}, []string{"event"})

	stakedAmount = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "staked_amount_total",
		Help:      "Sum of principal across created stakes.",
	})

	penaltiesCharged = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "penalties_total",
		Help:      "Sum of early cancellation penalties.",
	})

	httpDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request latency by route and status.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "route", "status"})
)

// StakeCreated records a new stake of amount.
func StakeCreated(amount float64) {
	stakeEvents.WithLabelValues(EventCreated).Inc()
	stakedAmount.Add(amount)
}

// StakeCancelled records a cancellation and its penalty.
func StakeCancelled(penalty float64) {
	stakeEvents.WithLabelValues(EventCancelled).Inc()
	penaltiesCharged.Add(penalty)
}

// StakeCompleted records a completion.
func StakeCompleted() {
	stakeEvents.WithLabelValues(EventCompleted).Inc()
}

// StakeUpdated records an administrative override.
func StakeUpdated() {
	stakeEvents.WithLabelValues(EventUpdated).Inc()
}

// Middleware observes request latency labelled by the matched route template.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		route := c.FullPath() // Template, not the raw path, to bound cardinality
		if route == "" {
			route = "unmatched"
		}
		httpDuration.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).
			Observe(time.Since(start).Seconds())
	}
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

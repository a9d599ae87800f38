package observability

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "messaging_http_requests_total",
			Help: "Total number of HTTP requests processed by the messaging service.",
		},
		[]string{"method", "route", "status"},
	)
	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "messaging_http_request_duration_seconds",
			Help:    "HTTP request latencies in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route"},
	)
	graphqlOperationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "messaging_graphql_operations_total",
			Help: "Total number of GraphQL operations executed.",
		},
		[]string{"transport", "outcome"},
	)
	wsActiveConnections = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "messaging_ws_active_connections",
			Help: "Number of active websocket connections.",
		},
		[]string{"protocol"},
	)
	wsEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "messaging_ws_events_total",
			Help: "Total number of websocket events.",
		},
		[]string{"protocol", "event"},
	)
	pubsubPublishedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "messaging_pubsub_published_total",
			Help: "Total number of events published to the in-process broker.",
		},
		[]string{"topic"},
	)
	pubsubDroppedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "messaging_pubsub_dropped_total",
			Help: "Total number of events dropped because a subscriber inbox was full.",
		},
		[]string{"topic"},
	)
	pubsubSubscribers = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "messaging_pubsub_subscribers",
			Help: "Number of live broker subscriptions.",
		},
		[]string{"topic"},
	)
	loaderBatchesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "messaging_loader_batches_total",
			Help: "Total number of batched store lookups.",
		},
		[]string{"loader"},
	)
	loaderBatchSize = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "messaging_loader_batch_keys",
			Help:    "Number of keys resolved per loader batch.",
			Buckets: []float64{1, 2, 5, 10, 25, 50, 100},
		},
		[]string{"loader"},
	)
	amqpPublishErrorsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "messaging_amqp_publish_errors_total",
			Help: "Total number of AMQP publish errors.",
		},
	)
)

func init() {
	prometheus.MustRegister(
		httpRequestsTotal,
		httpRequestDuration,
		graphqlOperationsTotal,
		wsActiveConnections,
		wsEventsTotal,
		pubsubPublishedTotal,
		pubsubDroppedTotal,
		pubsubSubscribers,
		loaderBatchesTotal,
		loaderBatchSize,
		amqpPublishErrorsTotal,
	)
}

func HTTPMetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = c.Request.URL.Path
		}
		status := c.Writer.Status()

		httpRequestsTotal.WithLabelValues(c.Request.Method, route, strconv.Itoa(status)).Inc()
		httpRequestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	}
}

func IncGraphQLOperation(transport string, failed bool) {
	outcome := "ok"
	if failed {
		outcome = "error"
	}
	graphqlOperationsTotal.WithLabelValues(transport, outcome).Inc()
}

func IncWSActive(protocol string) {
	wsActiveConnections.WithLabelValues(protocol).Inc()
}

func DecWSActive(protocol string) {
	wsActiveConnections.WithLabelValues(protocol).Dec()
}

func IncWSEvent(protocol, event string) {
	wsEventsTotal.WithLabelValues(protocol, event).Inc()
}

func IncPubSubPublished(topic string) {
	pubsubPublishedTotal.WithLabelValues(topic).Inc()
}

func IncPubSubDropped(topic string) {
	pubsubDroppedTotal.WithLabelValues(topic).Inc()
}

func AddPubSubSubscribers(topic string, delta float64) {
	pubsubSubscribers.WithLabelValues(topic).Add(delta)
}

func ObserveLoaderBatch(loader string, keys int) {
	loaderBatchesTotal.WithLabelValues(loader).Inc()
	loaderBatchSize.WithLabelValues(loader).Observe(float64(keys))
}

func IncAMQPPublishError() {
	amqpPublishErrorsTotal.Inc()
}

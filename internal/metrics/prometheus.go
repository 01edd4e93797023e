package metrics

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ai_metric_request_duration_seconds",
			Help:    "Dashboard API request duration in seconds",
			Buckets: []float64{0.05, 0.1, 0.5, 1, 2, 5, 10},
		},
		[]string{"route"},
	)

	RequestTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ai_metric_request_total",
			Help: "Total dashboard API requests",
		},
		[]string{"route", "status"},
	)

	ConversationsProcessed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ai_metric_conversations_processed_total",
			Help: "Conversations processed by ingestion jobs",
		},
		[]string{"job", "status"},
	)

	RecordsInserted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ai_metric_records_inserted_total",
			Help: "Rows inserted by ingestion jobs",
		},
		[]string{"table"},
	)

	PartitionSkips = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "ai_metric_partition_skips_total",
			Help: "Latency ingestions skipped because the (date, type) partition already exists",
		},
	)

	CorrectionsApplied = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "ai_metric_corrections_applied_total",
			Help: "Accuracy records updated with reviewer corrections",
		},
	)

	MonitorAPIErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ai_metric_monitor_api_errors_total",
			Help: "Failed calls to the conversation-monitor API",
		},
		[]string{"operation"},
	)

	CacheHits = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ai_metric_cache_hits_total",
			Help: "Metrics response cache hits",
		},
		[]string{"endpoint"},
	)

	CacheMisses = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ai_metric_cache_misses_total",
			Help: "Metrics response cache misses",
		},
		[]string{"endpoint"},
	)

	IngestionRunDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ai_metric_ingestion_run_duration_seconds",
			Help:    "End-to-end ingestion run duration in seconds",
			Buckets: []float64{1, 5, 15, 60, 300, 900, 3600},
		},
		[]string{"job"},
	)
)

func Init() {
	prometheus.MustRegister(RequestDuration)
	prometheus.MustRegister(RequestTotal)
	prometheus.MustRegister(ConversationsProcessed)
	prometheus.MustRegister(RecordsInserted)
	prometheus.MustRegister(PartitionSkips)
	prometheus.MustRegister(CorrectionsApplied)
	prometheus.MustRegister(MonitorAPIErrors)
	prometheus.MustRegister(CacheHits)
	prometheus.MustRegister(CacheMisses)
	prometheus.MustRegister(IngestionRunDuration)
}

func MetricsHandler() fiber.Handler {
	return adaptor.HTTPHandler(promhttp.Handler())
}

// Middleware records per-route request counts and latencies. The route
// label uses the matched route pattern, not the raw path, to keep
// cardinality bounded.
func Middleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		route := c.Route().Path
		RequestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
		RequestTotal.WithLabelValues(route, strconv.Itoa(c.Response().StatusCode())).Inc()

		return err
	}
}

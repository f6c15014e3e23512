package metrics

import (
	"database/sql"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

const metricPrefix = "registry_"

// Result labels.
const (
	ResultSuccess  = "success"
	ResultError    = "error"
	ResultRejected = "rejected"
)

var (
	registerOnce sync.Once

	operationTotal   *prometheus.CounterVec
	operationLatency *prometheus.HistogramVec

	ruleRejections *prometheus.CounterVec

	bulkCreateGroups *prometheus.CounterVec

	exportTotal   *prometheus.CounterVec
	exportLatency *prometheus.HistogramVec

	httpRequests *prometheus.CounterVec
)

// Init registers registry metrics and DB-backed gauges.
func Init(db *sql.DB, logger *zap.Logger) {
	registerOnce.Do(func() {
		operationTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "operations_total",
				Help: "Total registry operations by entity, operation and result",
			},
			[]string{"entity", "operation", "result"},
		)
		operationLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "operation_latency_seconds",
				Help:    "Registry operation latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"entity", "operation"},
		)

		ruleRejections = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "rule_rejections_total",
				Help: "Total writes rejected by a business rule, by error code",
			},
			[]string{"code"},
		)

		bulkCreateGroups = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "bulk_create_groups_total",
				Help: "Groups handled by bulk create, by outcome",
			},
			[]string{"outcome"},
		)

		exportTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "export_total",
				Help: "Total site exports by format and result",
			},
			[]string{"format", "result"},
		)
		exportLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "export_latency_seconds",
				Help:    "Site export latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"format"},
		)

		httpRequests = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "http_requests_total",
				Help: "Total HTTP requests by method and status code",
			},
			[]string{"method", "status"},
		)

		prometheus.MustRegister(
			operationTotal,
			operationLatency,
			ruleRejections,
			bulkCreateGroups,
			exportTotal,
			exportLatency,
			httpRequests,
		)

		if db != nil {
			registerDBMetrics(db, logger)
		}
	})
}

// ObserveOperation records a registry operation's duration and result.
func ObserveOperation(entity, operation, result string, duration time.Duration) {
	if entity == "" {
		entity = "unknown"
	}
	if operation == "" {
		operation = "unknown"
	}
	if result == "" {
		result = ResultSuccess
	}
	if operationTotal != nil {
		operationTotal.WithLabelValues(entity, operation, result).Inc()
	}
	if operationLatency != nil {
		operationLatency.WithLabelValues(entity, operation).Observe(duration.Seconds())
	}
}

// IncRuleRejection increments the rejection counter for a rule code.
func IncRuleRejection(code string) {
	if code == "" {
		code = "unknown"
	}
	if ruleRejections != nil {
		ruleRejections.WithLabelValues(code).Inc()
	}
}

// AddBulkCreate counts groups created and skipped by one bulk request.
func AddBulkCreate(created, skipped int) {
	if bulkCreateGroups == nil {
		return
	}
	if created > 0 {
		bulkCreateGroups.WithLabelValues("created").Add(float64(created))
	}
	if skipped > 0 {
		bulkCreateGroups.WithLabelValues("skipped").Add(float64(skipped))
	}
}

// ObserveExport records export latency and result.
func ObserveExport(format, result string, duration time.Duration) {
	if format == "" {
		format = "unknown"
	}
	if result == "" {
		result = ResultSuccess
	}
	if exportTotal != nil {
		exportTotal.WithLabelValues(format, result).Inc()
	}
	if exportLatency != nil {
		exportLatency.WithLabelValues(format).Observe(duration.Seconds())
	}
}

// IncHTTPRequest counts a served request.
func IncHTTPRequest(method, status string) {
	if httpRequests != nil {
		httpRequests.WithLabelValues(method, status).Inc()
	}
}

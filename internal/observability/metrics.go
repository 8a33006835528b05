package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"gorm.io/gorm"
)

var (
	// LendingTransitions counts lifecycle operations by name and outcome.
	LendingTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lending_transitions_total",
		Help: "Total number of borrow lifecycle operations by operation and outcome",
	}, []string{"operation", "outcome"})

	// RedisErrorRate counts Redis errors by operation type.
	RedisErrorRate = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lending_redis_errors_total",
		Help: "Total number of Redis errors by operation type",
	}, []string{"operation"})

	// CacheLookups counts cache hits and misses by key family.
	CacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lending_cache_lookups_total",
		Help: "Total cache lookups by key family and result",
	}, []string{"family", "result"})

	// DatabaseQueryLatency records database query latency by operation and table.
	DatabaseQueryLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "lending_database_query_latency_seconds",
		Help:    "Database query latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation", "table"})

	// WebSocketConnectionsTotal is the gauge of active event-stream connections.
	WebSocketConnectionsTotal = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "lending_websocket_connections",
		Help: "Number of active lifecycle event stream connections",
	})

	// WebSocketBackpressureDrops counts events dropped because a client fell behind.
	WebSocketBackpressureDrops = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lending_websocket_backpressure_drops_total",
		Help: "Total number of WebSocket messages dropped due to backpressure",
	}, []string{"hub", "reason"})
)

// RecordTransition increments the lifecycle counter with an outcome derived from err.
func RecordTransition(operation string, err error, outcomeOf func(error) string) {
	outcome := "success"
	if err != nil {
		outcome = outcomeOf(err)
	}
	LendingTransitions.WithLabelValues(operation, outcome).Inc()
}

const queryStartKey = "observability:query_start"

// DatabaseMetrics is a GORM plugin recording query latency per operation and table.
type DatabaseMetrics struct{}

// NewDatabaseMetrics returns a new DatabaseMetrics plugin.
func NewDatabaseMetrics() *DatabaseMetrics {
	return &DatabaseMetrics{}
}

// Name implements gorm.Plugin.
func (*DatabaseMetrics) Name() string {
	return "lending:query_metrics"
}

// Initialize registers before/after callbacks for every statement kind.
func (m *DatabaseMetrics) Initialize(db *gorm.DB) error {
	cb := db.Callback()
	hooks := []struct {
		operation string
		before    func(string, func(*gorm.DB)) error
		after     func(string, func(*gorm.DB)) error
	}{
		{"create", cb.Create().Before("gorm:create").Register, cb.Create().After("gorm:create").Register},
		{"query", cb.Query().Before("gorm:query").Register, cb.Query().After("gorm:query").Register},
		{"update", cb.Update().Before("gorm:update").Register, cb.Update().After("gorm:update").Register},
		{"delete", cb.Delete().Before("gorm:delete").Register, cb.Delete().After("gorm:delete").Register},
		{"row", cb.Row().Before("gorm:row").Register, cb.Row().After("gorm:row").Register},
		{"raw", cb.Raw().Before("gorm:raw").Register, cb.Raw().After("gorm:raw").Register},
	}
	for _, h := range hooks {
		operation := h.operation
		if err := h.before("lending:before_"+operation, m.start); err != nil {
			return err
		}
		if err := h.after("lending:after_"+operation, func(tx *gorm.DB) { m.observe(tx, operation) }); err != nil {
			return err
		}
	}
	return nil
}

func (*DatabaseMetrics) start(tx *gorm.DB) {
	tx.InstanceSet(queryStartKey, time.Now())
}

func (*DatabaseMetrics) observe(tx *gorm.DB, operation string) {
	v, ok := tx.InstanceGet(queryStartKey)
	if !ok {
		return
	}
	start, ok := v.(time.Time)
	if !ok {
		return
	}
	table := tx.Statement.Table
	if table == "" {
		table = "unknown"
	}
	DatabaseQueryLatency.WithLabelValues(operation, table).Observe(time.Since(start).Seconds())
}

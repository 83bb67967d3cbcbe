package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Operation labels.
const (
	OpExport   = "export"
	OpValidate = "validate"
	OpImport   = "import"
	OpMigrate  = "migrate"
	OpPush     = "push"
	OpPull     = "pull"
)

// Metrics holds the backup engine collectors.
type Metrics struct {
	// OperationTotal counts backup operations by outcome.
	OperationTotal    *prometheus.CounterVec
	OperationDuration *prometheus.HistogramVec

	// MigrationsTotal counts imported snapshots by source schema version.
	MigrationsTotal *prometheus.CounterVec

	// SnapshotBytes observes the size of exported and uploaded snapshots.
	SnapshotBytes *prometheus.HistogramVec
}

var (
	globalMetrics *Metrics
	metricsMutex  sync.Mutex
)

// NewMetrics returns the process-wide collectors, registering them with
// the default registry on first use.
func NewMetrics() *Metrics {
	metricsMutex.Lock()
	defer metricsMutex.Unlock()

	if globalMetrics != nil {
		return globalMetrics
	}

	m := &Metrics{
		OperationTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "kernelcms_backup_operations_total",
			Help: "Total number of backup operations",
		}, []string{"operation", "status"}),

		OperationDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "kernelcms_backup_operation_duration_seconds",
			Help:    "Backup operation duration in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"operation", "status"}),

		MigrationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "kernelcms_snapshot_migrations_total",
			Help: "Total number of imported snapshots upgraded from an older schema",
		}, []string{"from_version"}),

		SnapshotBytes: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "kernelcms_snapshot_bytes",
			Help:    "Size of serialized snapshots in bytes",
			Buckets: prometheus.ExponentialBuckets(1024, 4, 8),
		}, []string{"operation"}),
	}

	m.OperationTotal = registerOrGet(m.OperationTotal).(*prometheus.CounterVec)
	m.OperationDuration = registerOrGet(m.OperationDuration).(*prometheus.HistogramVec)
	m.MigrationsTotal = registerOrGet(m.MigrationsTotal).(*prometheus.CounterVec)
	m.SnapshotBytes = registerOrGet(m.SnapshotBytes).(*prometheus.HistogramVec)

	globalMetrics = m
	return m
}

// Observe records one finished operation. A nil receiver is a no-op.
func (m *Metrics) Observe(op string, start time.Time, err error) {
	if m == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	m.OperationTotal.WithLabelValues(op, status).Inc()
	m.OperationDuration.WithLabelValues(op, status).Observe(time.Since(start).Seconds())
}

func (m *Metrics) ObserveSize(op string, n int) {
	if m == nil {
		return
	}
	m.SnapshotBytes.WithLabelValues(op).Observe(float64(n))
}

// registerOrGet registers c, returning the collector already registered
// under the same descriptor if there is one.
func registerOrGet(c prometheus.Collector) prometheus.Collector {
	if err := prometheus.Register(c); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			return are.ExistingCollector
		}
	}
	return c
}

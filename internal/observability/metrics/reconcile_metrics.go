package metrics

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	ReconcileErrorTypeDeadlineExceeded = "deadline_exceeded"
	ReconcileErrorTypeLock             = "lock"
	ReconcileErrorTypeUnknown          = "unknown"
)

// ReconcileMetrics are scraped from /metrics and track the reconciler's
// health independently of the OTLP pipeline.
type ReconcileMetrics struct {
	runs        *prometheus.CounterVec
	duration    *prometheus.HistogramVec
	errors      *prometheus.CounterVec
	repairs     *prometheus.CounterVec
	lockSkipped prometheus.Counter
}

var (
	reconcileMetricsOnce sync.Once
	reconcileMetrics     *ReconcileMetrics
)

// Reconcile returns the process-wide reconciler metrics.
func Reconcile() *ReconcileMetrics {
	return ReconcileWithConfig(Config{})
}

func ReconcileWithConfig(cfg Config) *ReconcileMetrics {
	reconcileMetricsOnce.Do(func() {
		reconcileMetrics = NewReconcileMetrics(prometheus.DefaultRegisterer, cfg)
	})
	return reconcileMetrics
}

// NewReconcileMetrics registers collectors on registerer. Already-registered
// collectors are reused.
func NewReconcileMetrics(registerer prometheus.Registerer, cfg Config) *ReconcileMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	serviceName := strings.TrimSpace(cfg.ServiceName)
	if serviceName == "" {
		serviceName = "taskboard"
	}
	environment := strings.TrimSpace(cfg.Environment)
	if environment == "" {
		environment = "unknown"
	}
	constLabels := prometheus.Labels{
		"service": serviceName,
		"env":     environment,
	}

	runs := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "taskboard_reconcile_runs_total",
		Help:        "Reconciliation runs by trigger.",
		ConstLabels: constLabels,
	}, []string{"trigger"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:        "taskboard_reconcile_duration_seconds",
		Help:        "Reconciliation run latency.",
		Buckets:     []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		ConstLabels: constLabels,
	}, []string{"trigger"})
	errs := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "taskboard_reconcile_errors_total",
		Help:        "Reconciliation failures by classification.",
		ConstLabels: constLabels,
	}, []string{"trigger", "error_type"})
	repairs := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "taskboard_reconcile_repairs_applied_total",
		Help:        "Order-array and membership repairs applied.",
		ConstLabels: constLabels,
	}, []string{"repair_kind"})
	lockSkipped := prometheus.NewCounter(prometheus.CounterOpts{
		Name:        "taskboard_reconcile_lock_skipped_total",
		Help:        "Scheduled runs skipped because another replica held the lock.",
		ConstLabels: constLabels,
	})

	return &ReconcileMetrics{
		runs:        register(registerer, runs),
		duration:    register(registerer, duration),
		errors:      register(registerer, errs),
		repairs:     register(registerer, repairs),
		lockSkipped: register(registerer, lockSkipped),
	}
}

func register[C prometheus.Collector](registerer prometheus.Registerer, collector C) C {
	if err := registerer.Register(collector); err != nil {
		var already prometheus.AlreadyRegisteredError
		if errors.As(err, &already) {
			if existing, ok := already.ExistingCollector.(C); ok {
				return existing
			}
		}
	}
	return collector
}

func (m *ReconcileMetrics) IncRun(trigger string) {
	if m == nil {
		return
	}
	m.runs.WithLabelValues(trigger).Inc()
}

func (m *ReconcileMetrics) ObserveDuration(trigger string, d time.Duration) {
	if m == nil {
		return
	}
	m.duration.WithLabelValues(trigger).Observe(d.Seconds())
}

func (m *ReconcileMetrics) IncError(trigger string, err error) {
	if m == nil || err == nil {
		return
	}
	m.errors.WithLabelValues(trigger, ClassifyReconcileError(err)).Inc()
}

func (m *ReconcileMetrics) AddRepairs(kind string, count int) {
	if m == nil || count <= 0 {
		return
	}
	m.repairs.WithLabelValues(kind).Add(float64(count))
}

func (m *ReconcileMetrics) IncLockSkipped() {
	if m == nil {
		return
	}
	m.lockSkipped.Inc()
}

// ErrLockUnavailable marks failures talking to the distributed lock.
var ErrLockUnavailable = errors.New("lock_unavailable")

func ClassifyReconcileError(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return ReconcileErrorTypeDeadlineExceeded
	case errors.Is(err, ErrLockUnavailable):
		return ReconcileErrorTypeLock
	default:
		return ReconcileErrorTypeUnknown
	}
}

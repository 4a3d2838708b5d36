package javaio

import (
	"github.com/cockroachdb/errors"
	"github.com/prometheus/client_golang/prometheus"
)

const (
	faultKindLabelName = "kind"
	directionLabelName = "direction"
)

// Metrics counts stream activity. A nil *Metrics records nothing.
type Metrics struct {
	Objects *prometheus.CounterVec
	Faults  *prometheus.CounterVec
	Resets  prometheus.Counter
}

func NewMetrics(namespace string) *Metrics {
	return &Metrics{
		Objects: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "javaio",
				Name:      "objects_total",
				Help:      "number of objects written or read",
			}, []string{directionLabelName}),
		Faults: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "javaio",
				Name:      "faults_total",
				Help:      "number of failed top-level reads and writes by fault kind",
			}, []string{directionLabelName, faultKindLabelName}),
		Resets: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "javaio",
				Name:      "resets_total",
				Help:      "number of stream resets written or read",
			}),
	}
}

// Register registers the collectors with r.
func (m *Metrics) Register(r prometheus.Registerer) error {
	for _, c := range []prometheus.Collector{m.Objects, m.Faults, m.Resets} {
		if err := r.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// RegisterDescCache exports the hit and miss counts of cache.
func RegisterDescCache(r prometheus.Registerer, namespace string, cache *DescCache) error {
	hits := prometheus.NewCounterFunc(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "javaio",
		Name:      "desc_cache_hits_total",
		Help:      "class descriptor cache hits",
	}, func() float64 {
		h, _ := cache.Stats()
		return float64(h)
	})
	misses := prometheus.NewCounterFunc(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "javaio",
		Name:      "desc_cache_misses_total",
		Help:      "class descriptor cache misses",
	}, func() float64 {
		_, m := cache.Stats()
		return float64(m)
	})
	if err := r.Register(hits); err != nil {
		return err
	}
	return r.Register(misses)
}

func (m *Metrics) object(direction string) {
	if m == nil {
		return
	}
	m.Objects.WithLabelValues(direction).Inc()
}

func (m *Metrics) reset() {
	if m == nil {
		return
	}
	m.Resets.Inc()
}

func (m *Metrics) fault(direction string, err error) {
	if m == nil || err == nil {
		return
	}
	m.Faults.WithLabelValues(direction, faultKind(err)).Inc()
}

func faultKind(err error) string {
	for _, k := range []struct {
		err  error
		name string
	}{
		{ErrStreamCorrupted, "stream_corrupted"},
		{ErrInvalidClass, "invalid_class"},
		{ErrClassNotFound, "class_not_found"},
		{ErrInvalidObject, "invalid_object"},
		{ErrNotSerializable, "not_serializable"},
		{ErrPolicyDenied, "policy_denied"},
		{ErrLimitExceeded, "limit_exceeded"},
		{ErrWriteAborted, "write_aborted"},
		{ErrFieldsNotWritten, "fields_not_written"},
		{ErrOptionalData, "optional_data"},
		{ErrNotActive, "not_active"},
		{ErrStreamBroken, "stream_broken"},
	} {
		if errors.Is(err, k.err) {
			return k.name
		}
	}
	return "io"
}

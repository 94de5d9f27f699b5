// Package promobserver exports lockingcache metrics to Prometheus.
package promobserver

import (
	"sync/atomic"
	"time"

	"github.com/hupe1980/lockingcache"
	"github.com/prometheus/client_golang/prometheus"
)

// Observer implements lockingcache.MetricsObserver with Prometheus collectors.
type Observer struct {
	lookups      *prometheus.CounterVec
	loadLatency  *prometheus.HistogramVec
	evictions    *prometheus.CounterVec
	evictedBytes prometheus.Counter
	cleanups     prometheus.Counter
	skipped      prometheus.Counter
	overBudget   prometheus.Counter
	size         prometheus.GaugeFunc
	activeLoads  prometheus.GaugeFunc

	sizeFn        atomic.Pointer[func() int64]
	activeLoadsFn atomic.Pointer[func() int64]
}

// New creates an Observer whose metric names start with namespace.
// The collectors still need to be registered with Register.
func New(namespace string) *Observer {
	o := &Observer{
		lookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "lookups_total",
			Help:      "Cache lookups by result (hit, load, error)",
		}, []string{"result"}),
		loadLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "load_duration_seconds",
			Help:      "Latency of loader calls",
			Buckets:   prometheus.DefBuckets,
		}, []string{"status"}),
		evictions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "evictions_total",
			Help:      "Entries removed from the cache",
		}, []string{"status"}),
		evictedBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "evicted_bytes_total",
			Help:      "Total size of removed entries",
		}),
		cleanups: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cleanups_total",
			Help:      "Cleanup sweeps run",
		}),
		skipped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cleanup_pinned_total",
			Help:      "Entries skipped by cleanup because they were in use",
		}),
		overBudget: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "over_budget_total",
			Help:      "Background sweeps that ended above the high-water mark",
		}),
	}

	o.size = prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "size_bytes",
		Help:      "Current cache size as reported by the sizer",
	}, gaugeValue(&o.sizeFn))

	o.activeLoads = prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "active_loads",
		Help:      "Loads currently holding a download slot",
	}, gaugeValue(&o.activeLoadsFn))

	return o
}

func gaugeValue(p *atomic.Pointer[func() int64]) func() float64 {
	return func() float64 {
		if fn := p.Load(); fn != nil {
			return float64((*fn)())
		}
		return 0
	}
}

// Register registers all collectors with reg.
func (o *Observer) Register(reg prometheus.Registerer) error {
	for _, c := range []prometheus.Collector{
		o.lookups, o.loadLatency, o.evictions, o.evictedBytes,
		o.cleanups, o.skipped, o.overBudget, o.size, o.activeLoads,
	} {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// TrackSize makes the size gauge report fn, typically Cache.Size.
// The cache must exist before its size can be read, so this is set after New.
func (o *Observer) TrackSize(fn func() int64) {
	o.sizeFn.Store(&fn)
}

// TrackActiveLoads makes the active loads gauge report fn, typically
// resource.Controller.ActiveLoads.
func (o *Observer) TrackActiveLoads(fn func() int64) {
	o.activeLoadsFn.Store(&fn)
}

func (o *Observer) OnHit() {
	o.lookups.WithLabelValues("hit").Inc()
}

func (o *Observer) OnLoad(d time.Duration, _ int64, err error) {
	status, result := "success", "load"
	if err != nil {
		status, result = "error", "error"
	}
	o.lookups.WithLabelValues(result).Inc()
	o.loadLatency.WithLabelValues(status).Observe(d.Seconds())
}

func (o *Observer) OnEvict(size int64, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	o.evictions.WithLabelValues(status).Inc()
	o.evictedBytes.Add(float64(size))
}

func (o *Observer) OnCleanup(_ time.Duration, _, pinned int) {
	o.cleanups.Inc()
	o.skipped.Add(float64(pinned))
}

func (o *Observer) OnOverBudget(int64, int64) {
	o.overBudget.Inc()
}

var _ lockingcache.MetricsObserver = (*Observer)(nil)

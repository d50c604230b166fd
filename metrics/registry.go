package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// registry is the process-wide prometheus registry every group's vectors
// are registered against. A custom registry (rather than the global
// prometheus.DefaultRegisterer) keeps this package importable by tests
// without colliding with other prometheus users in the same binary.
var registry = prometheus.NewRegistry()

// Registry exposes the underlying prometheus registry so a server's
// /metrics handler can wrap it in promhttp.HandlerFor.
func Registry() *prometheus.Registry { return registry }

var (
	countersMu sync.Mutex
	counters   = map[string]*prometheus.CounterVec{}

	gaugesMu sync.Mutex
	gauges   = map[string]*prometheus.GaugeVec{}

	stopwatchesMu sync.Mutex
	stopwatches   = map[string]*prometheus.HistogramVec{}
)

func counterFor(group, name string, labels []string) *prometheus.CounterVec {
	key := group + "_" + name
	countersMu.Lock()
	defer countersMu.Unlock()
	if c, ok := counters[key]; ok {
		return c
	}
	c := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "pantyhose",
		Subsystem: group,
		Name:      name,
		Help:      name + " counter",
	}, labels)
	registry.MustRegister(c)
	counters[key] = c
	return c
}

func gaugeFor(group, name string, labels []string) *prometheus.GaugeVec {
	key := group + "_" + name
	gaugesMu.Lock()
	defer gaugesMu.Unlock()
	if g, ok := gauges[key]; ok {
		return g
	}
	g := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "pantyhose",
		Subsystem: group,
		Name:      name,
		Help:      name + " gauge",
	}, labels)
	registry.MustRegister(g)
	gauges[key] = g
	return g
}

func stopwatchFor(group, name string, labels []string) *prometheus.HistogramVec {
	key := group + "_" + name
	stopwatchesMu.Lock()
	defer stopwatchesMu.Unlock()
	if h, ok := stopwatches[key]; ok {
		return h
	}
	h := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "pantyhose",
		Subsystem: group,
		Name:      name + "_seconds",
		Help:      name + " duration in seconds",
		Buckets:   prometheus.DefBuckets,
	}, labels)
	registry.MustRegister(h)
	stopwatches[key] = h
	return h
}

func labelNamesAndValues(dims Dimension) ([]string, []string) {
	names := make([]string, 0, len(dims))
	for k := range dims {
		names = append(names, k)
	}
	values := make([]string, len(names))
	for i, k := range names {
		values[i] = dims[k]
	}
	return names, values
}

// IncrCounterWithGroup increments the dimensionless counter group/name by
// delta (spec §10 AMBIENT STACK: every component's request/error counts).
func IncrCounterWithGroup(group, name string, delta Value) {
	counterFor(group, name, nil).WithLabelValues().Add(float64(delta))
}

// IncrCounterWithDimGroup increments group/name tagged with dims, e.g.
// {"error_type": "resolve"}. Each distinct key set used against the same
// group/name must be consistent, matching prometheus's own label-set rule.
func IncrCounterWithDimGroup(group, name string, delta Value, dims Dimension) {
	names, values := labelNamesAndValues(dims)
	counterFor(group, name, names).WithLabelValues(values...).Add(float64(delta))
}

// UpdateGaugeWithGroup sets the dimensionless gauge group/name to value.
func UpdateGaugeWithGroup(group, name string, value Value) {
	gaugeFor(group, name, nil).WithLabelValues().Set(float64(value))
}

// UpdateGaugeWithDimGroup sets the dimensioned gauge group/name to value.
func UpdateGaugeWithDimGroup(group, name string, value Value, dims Dimension) {
	names, values := labelNamesAndValues(dims)
	gaugeFor(group, name, names).WithLabelValues(values...).Set(float64(value))
}

// RecordStopwatchWithGroup observes a duration, in seconds, for the
// dimensionless histogram group/name (PolicyStopwatch).
func RecordStopwatchWithGroup(group, name string, seconds Value) {
	stopwatchFor(group, name, nil).WithLabelValues().Observe(float64(seconds))
}

// RecordStopwatchWithDimGroup is the dimensioned counterpart, used by the
// RPC path to tag forward-call latency with target server_type.
func RecordStopwatchWithDimGroup(group, name string, seconds Value, dims Dimension) {
	names, values := labelNamesAndValues(dims)
	stopwatchFor(group, name, names).WithLabelValues(values...).Observe(float64(seconds))
}

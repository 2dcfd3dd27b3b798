// Package promstats exports stats to Prometheus.
package promstats

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/bool64/ctxd"
	"github.com/bool64/stats"
	"github.com/prometheus/client_golang/prometheus"
)

var _ stats.Tracker = &Tracker{}

// Tracker creates Prometheus collectors on first use of a metric name.
//
// Add maps to a counter and Set maps to a gauge. Label names of a metric are
// fixed by the first call, values of other labels in later calls are dropped
// and a warning is logged once per metric.
type Tracker struct {
	Namespace  string
	Registerer prometheus.Registerer

	// Logger receives label mismatch warnings, can be nil.
	Logger ctxd.Logger

	mu       sync.Mutex
	counters map[string]*prometheus.CounterVec
	gauges   map[string]*prometheus.GaugeVec
	labels   map[string][]string
	warned   map[string]bool
}

// NewTracker creates a tracker with collectors registered in registerer.
func NewTracker(namespace string, registerer prometheus.Registerer) *Tracker {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	return &Tracker{
		Namespace:  namespace,
		Registerer: registerer,
		counters:   make(map[string]*prometheus.CounterVec),
		gauges:     make(map[string]*prometheus.GaugeVec),
		labels:     make(map[string][]string),
		warned:     make(map[string]bool),
	}
}

func split(labelsAndValues []string) (prometheus.Labels, []string) {
	labels := make(prometheus.Labels, len(labelsAndValues)/2)
	names := make([]string, 0, len(labelsAndValues)/2)

	for i := 1; i < len(labelsAndValues); i += 2 {
		labels[labelsAndValues[i-1]] = labelsAndValues[i]
		names = append(names, labelsAndValues[i-1])
	}

	sort.Strings(names)

	return labels, names
}

// match keeps only known label names, missing ones are empty.
//
// Returned names are dropped labels if metric was not yet warned about.
func (t *Tracker) match(name string, labels prometheus.Labels) (prometheus.Labels, []string) {
	res := make(prometheus.Labels, len(t.labels[name]))

	for _, l := range t.labels[name] {
		res[l] = labels[l]
	}

	if len(res) == len(labels) || t.warned[name] {
		return res, nil
	}

	var dropped []string

	for l := range labels {
		if _, ok := res[l]; !ok {
			dropped = append(dropped, l)
		}
	}

	if len(dropped) == 0 {
		return res, nil
	}

	t.warned[name] = true

	sort.Strings(dropped)

	return res, dropped
}

func (t *Tracker) warn(ctx context.Context, name string, dropped, known []string) {
	if len(dropped) == 0 || t.Logger == nil {
		return
	}

	t.Logger.Warn(ctx, "metric labels dropped",
		"metric", name,
		"dropped", dropped,
		"known", known)
}

func (t *Tracker) fqName(name string) string {
	return strings.ReplaceAll(name, ".", "_")
}

// Add increments a counter, see Tracker for label handling.
func (t *Tracker) Add(ctx context.Context, name string, increment float64, labelsAndValues ...string) {
	labels, names := split(labelsAndValues)

	t.mu.Lock()
	c, ok := t.counters[name]

	if !ok {
		c = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: t.Namespace,
			Name:      t.fqName(name) + "_total",
			Help:      "Count of " + strings.ReplaceAll(name, "_", " ") + ".",
		}, names)
		t.counters[name] = c
		t.labels[name] = names

		t.Registerer.MustRegister(c)
	}

	labels, dropped := t.match(name, labels)
	known := t.labels[name]
	t.mu.Unlock()

	t.warn(ctx, name, dropped, known)
	c.With(labels).Add(increment)
}

// Set updates a gauge, see Tracker for label handling.
func (t *Tracker) Set(ctx context.Context, name string, absolute float64, labelsAndValues ...string) {
	labels, names := split(labelsAndValues)

	t.mu.Lock()
	g, ok := t.gauges[name]

	if !ok {
		g = prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: t.Namespace,
			Name:      t.fqName(name),
			Help:      "Value of " + strings.ReplaceAll(name, "_", " ") + ".",
		}, names)
		t.gauges[name] = g
		t.labels[name] = names

		t.Registerer.MustRegister(g)
	}

	labels, dropped := t.match(name, labels)
	known := t.labels[name]
	t.mu.Unlock()

	t.warn(ctx, name, dropped, known)
	g.With(labels).Set(absolute)
}

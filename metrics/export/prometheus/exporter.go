package prometheus

import (
	"net/http"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	admission "github.com/oriolmontcreus/cms-sub000"
	"github.com/oriolmontcreus/cms-sub000/metrics/export/internaldefs"
	"github.com/oriolmontcreus/cms-sub000/store"
)

// Source is the part of [admission.Engine] the collector reads.
type Source interface {
	MetricsSnapshot() admission.MetricsSnapshot
	AuditDropped() uint64
	StoreState() store.State
}

var storeStates = []store.State{
	store.StateUnattempted,
	store.StateConnecting,
	store.StateConnected,
	store.StateFallback,
}

type counterDesc struct {
	id   admission.MetricID
	desc *prom.Desc
}

type histogramDesc struct {
	id   admission.MetricID
	desc *prom.Desc
}

// Collector is a prometheus.Collector over an engine's metrics.
type Collector struct {
	source       Source
	counters     []counterDesc
	histograms   []histogramDesc
	auditDropped *prom.Desc
	storeState   *prom.Desc
	bounds       []float64
}

var _ prom.Collector = (*Collector)(nil)

// NewCollector creates a collector reading from source.
func NewCollector(source Source) *Collector {
	c := &Collector{
		source: source,
		auditDropped: prom.NewDesc(internaldefs.AuditDroppedName,
			"Audit events dropped due to dispatcher backpressure.", nil, nil),
		storeState: prom.NewDesc(internaldefs.StoreStateName,
			"Volatile store connection state; 1 for the current state.", []string{"state"}, nil),
		bounds: internaldefs.UpperBounds(),
	}
	for _, def := range internaldefs.CounterDefs {
		c.counters = append(c.counters, counterDesc{
			id:   def.ID,
			desc: prom.NewDesc(def.Name, def.Help, nil, nil),
		})
	}
	for _, def := range internaldefs.HistogramDefs {
		c.histograms = append(c.histograms, histogramDesc{
			id:   def.ID,
			desc: prom.NewDesc(def.Name, def.Help, nil, nil),
		})
	}
	return c
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prom.Desc) {
	for _, cd := range c.counters {
		ch <- cd.desc
	}
	for _, hd := range c.histograms {
		ch <- hd.desc
	}
	ch <- c.auditDropped
	ch <- c.storeState
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prom.Metric) {
	snapshot := c.source.MetricsSnapshot()

	for _, cd := range c.counters {
		ch <- prom.MustNewConstMetric(cd.desc, prom.CounterValue, float64(snapshot.Counters[cd.id]))
	}

	for _, hd := range c.histograms {
		raw, ok := snapshot.Histograms[hd.id]
		if !ok {
			continue
		}
		cumulative := internaldefs.CumulativeBuckets(internaldefs.NormalizeBuckets(raw))
		buckets := make(map[float64]uint64, len(c.bounds))
		for i, le := range c.bounds {
			buckets[le] = cumulative[i]
		}
		// Sum is not tracked by the engine.
		m, err := prom.NewConstHistogram(hd.desc, cumulative[len(cumulative)-1], 0, buckets)
		if err != nil {
			ch <- prom.NewInvalidMetric(hd.desc, err)
			continue
		}
		ch <- m
	}

	ch <- prom.MustNewConstMetric(c.auditDropped, prom.CounterValue, float64(c.source.AuditDropped()))

	current := c.source.StoreState()
	for _, s := range storeStates {
		v := 0.0
		if s == current {
			v = 1
		}
		ch <- prom.MustNewConstMetric(c.storeState, prom.GaugeValue, v, s.String())
	}
}

// Handler returns an http.Handler serving this collector, plus the Go
// runtime and process collectors, from a private registry.
func (c *Collector) Handler() (http.Handler, error) {
	reg := prom.NewRegistry()
	if err := reg.Register(c); err != nil {
		return nil, err
	}
	if err := reg.Register(collectors.NewGoCollector()); err != nil {
		return nil, err
	}
	if err := reg.Register(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{})); err != nil {
		return nil, err
	}
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{}), nil
}

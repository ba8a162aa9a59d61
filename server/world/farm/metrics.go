package farm

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Outcome classifies what happened to a tracked block during one evaluation.
type Outcome uint8

const (
	// OutcomeGrown means the block advanced towards maturity and stays queued.
	OutcomeGrown Outcome = iota
	// OutcomeMatured means the block reached its final stage and left the queue.
	OutcomeMatured
	// OutcomeFruitSpawned means a mature stem grew a fruit next to it.
	OutcomeFruitSpawned
	// OutcomeWaiting means a mature stem is still waiting for its fruit time or a free cell.
	OutcomeWaiting
	// OutcomeStale means the world no longer held the tracked block, so its record was dropped.
	OutcomeStale
	// OutcomeUnloaded means the chunk or region of the block was not loaded and it left the queue.
	OutcomeUnloaded
	// OutcomeMalformed means the queued key could not be decoded and was dropped.
	OutcomeMalformed
	outcomeCount
)

var outcomeNames = [outcomeCount]string{"grown", "matured", "fruit_spawned", "waiting", "stale", "unloaded", "malformed"}

// String ...
func (o Outcome) String() string {
	if o >= outcomeCount {
		return "unknown"
	}
	return outcomeNames[o]
}

// Metrics tracks per-region counters of the farm. A nil *Metrics discards everything. Metrics implements
// prometheus.Collector.
type Metrics struct {
	mu sync.Mutex

	outcomes map[string]*[outcomeCount]uint64
	ticks    uint64
	aborted  uint64
	queue    int
	tracked  int
}

// NewMetrics creates an empty metrics registry.
func NewMetrics() *Metrics {
	return &Metrics{outcomes: make(map[string]*[outcomeCount]uint64)}
}

// AddOutcome increments the counter of an outcome in a region.
func (m *Metrics) AddOutcome(region string, o Outcome) {
	if m == nil || o >= outcomeCount {
		return
	}
	m.mu.Lock()
	counts, ok := m.outcomes[region]
	if !ok {
		counts = new([outcomeCount]uint64)
		m.outcomes[region] = counts
	}
	counts[o]++
	m.mu.Unlock()
}

// Outcomes returns the counter of an outcome in a region.
func (m *Metrics) Outcomes(region string, o Outcome) uint64 {
	if m == nil || o >= outcomeCount {
		return 0
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if counts, ok := m.outcomes[region]; ok {
		return counts[o]
	}
	return 0
}

// ObserveTick records a finished tick pass along with the sizes of the queue and index after it.
func (m *Metrics) ObserveTick(aborted bool, queue, tracked int) {
	if m == nil {
		return
	}
	m.mu.Lock()
	m.ticks++
	if aborted {
		m.aborted++
	}
	m.queue, m.tracked = queue, tracked
	m.mu.Unlock()
}

// SetSizes stores the current queue and index size gauges.
func (m *Metrics) SetSizes(queue, tracked int) {
	if m == nil {
		return
	}
	m.mu.Lock()
	m.queue, m.tracked = queue, tracked
	m.mu.Unlock()
}

var (
	descOutcomes = prometheus.NewDesc("alwaysfarm_evaluations_total", "Evaluations of tracked blocks by region and outcome.", []string{"region", "outcome"}, nil)
	descTicks    = prometheus.NewDesc("alwaysfarm_ticks_total", "Tick passes run.", nil, nil)
	descAborted  = prometheus.NewDesc("alwaysfarm_ticks_aborted_total", "Tick passes stopped early on a revisited key.", nil, nil)
	descQueue    = prometheus.NewDesc("alwaysfarm_queue_size", "Tracked blocks waiting for evaluation.", nil, nil)
	descTracked  = prometheus.NewDesc("alwaysfarm_tracked_blocks", "Tracked blocks in the region index.", nil, nil)
)

// Describe ...
func (m *Metrics) Describe(ch chan<- *prometheus.Desc) {
	ch <- descOutcomes
	ch <- descTicks
	ch <- descAborted
	ch <- descQueue
	ch <- descTracked
}

// Collect ...
func (m *Metrics) Collect(ch chan<- prometheus.Metric) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for region, counts := range m.outcomes {
		for o, v := range counts {
			ch <- prometheus.MustNewConstMetric(descOutcomes, prometheus.CounterValue, float64(v), region, Outcome(o).String())
		}
	}
	ch <- prometheus.MustNewConstMetric(descTicks, prometheus.CounterValue, float64(m.ticks))
	ch <- prometheus.MustNewConstMetric(descAborted, prometheus.CounterValue, float64(m.aborted))
	ch <- prometheus.MustNewConstMetric(descQueue, prometheus.GaugeValue, float64(m.queue))
	ch <- prometheus.MustNewConstMetric(descTracked, prometheus.GaugeValue, float64(m.tracked))
}

// Package snapshotfmt turns an engine snapshot into Prometheus gauges,
// following go-server/internal/metrics/metrics.go's promauto registration
// style: collectors built once via promauto (in NewCollector, against a
// caller-supplied registry), updated from
// plain data on every scrape rather than incremented inline by the
// engine's hot path.
package snapshotfmt

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Record is the minimal shape snapshotfmt needs from a
// tagengine.SnapshotRecord, kept separate so this package does not import
// the root module (it is meant to be reusable by any observer, not just
// tagengine's own cmd/tagd).
type Record struct {
	Slot             int
	Key              int32
	Level            int
	WaitingReceivers int64
}

// Collector holds the gauges and counters a snapshot refreshes.
type Collector struct {
	waitingReceivers *prometheus.GaugeVec
	liveSlots        prometheus.Gauge
	delivered        prometheus.Counter
	discarded        prometheus.Counter

	lastDelivered int64
	lastDiscarded int64
}

// NewCollector registers the collector's metrics against reg. Pass
// prometheus.DefaultRegisterer for the global registry.
func NewCollector(reg prometheus.Registerer) *Collector {
	factory := promauto.With(reg)
	return &Collector{
		waitingReceivers: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "tagengine",
			Name:      "waiting_receivers",
			Help:      "Receivers currently registered on a (slot, level) pair.",
		}, []string{"slot", "level"}),
		liveSlots: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "tagengine",
			Name:      "live_slots",
			Help:      "Distinct slots observed with a live instance in the last snapshot.",
		}),
		delivered: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "tagengine",
			Name:      "sends_delivered_total",
			Help:      "Send calls that reached at least one registered receiver.",
		}),
		discarded: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "tagengine",
			Name:      "sends_discarded_total",
			Help:      "Send calls with no registered receivers at flip time.",
		}),
	}
}

// Update resets and repopulates the gauges from records, which the caller
// gathers with Engine.Snapshot, and advances the delivered/discarded
// counters by the amount the engine's cumulative totals grew since the
// last Update — Engine.SendStats reports running totals, not deltas, so
// the Collector tracks the last-seen totals itself to convert one into
// the other for Prometheus's counter semantics.
func (c *Collector) Update(records []Record, deliveredTotal, discardedTotal int64) {
	c.waitingReceivers.Reset()
	slots := make(map[int]struct{}, len(records))
	for _, r := range records {
		slots[r.Slot] = struct{}{}
		c.waitingReceivers.WithLabelValues(strconv.Itoa(r.Slot), strconv.Itoa(r.Level)).Set(float64(r.WaitingReceivers))
	}
	c.liveSlots.Set(float64(len(slots)))

	if d := deliveredTotal - c.lastDelivered; d > 0 {
		c.delivered.Add(float64(d))
		c.lastDelivered = deliveredTotal
	}
	if d := discardedTotal - c.lastDiscarded; d > 0 {
		c.discarded.Add(float64(d))
		c.lastDiscarded = discardedTotal
	}
}

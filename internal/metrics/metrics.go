/*
【ファイル概要: metrics.go】
任意のPrometheusメトリクス export（観測専用）。

Collector は prometheus.Registerer が与えられたときだけ構築・登録
されます。どのコンポーネントの制御フローもこれに依存しません。
*/
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Collector exports the transport-level gauges/counters for one stream.
// Construct with New and discard if metrics aren't wanted; a nil
// *Collector is safe to call every method on (no-op), so callers never
// need to nil-check at every call site.
type Collector struct {
	capacityKbits     prometheus.Gauge
	packetsInBlock    prometheus.Gauge
	earlyFeedbackMode prometheus.Gauge
	ceMarked          prometheus.Counter
}

// New builds and registers a Collector's metrics against reg, labeling
// every series with streamID. Returns nil if reg is nil (metrics
// disabled).
func New(reg prometheus.Registerer, streamID string) *Collector {
	if reg == nil {
		return nil
	}

	labels := prometheus.Labels{"stream_id": streamID}

	c := &Collector{
		capacityKbits: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   "uvgrtp_ecn",
			Name:        "capacity_kbits",
			Help:        "Latest ECN-estimated link capacity, in kbits/s.",
			ConstLabels: labels,
		}),
		packetsInBlock: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   "uvgrtp_ecn",
			Name:        "packets_in_block",
			Help:        "Datagrams counted in the most recently closed ECN aggregation window.",
			ConstLabels: labels,
		}),
		earlyFeedbackMode: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   "uvgrtp_ecn",
			Name:        "early_feedback_mode",
			Help:        "1 when the most recently closed ECN aggregation window saw a CE mark (early-feedback mode), else 0.",
			ConstLabels: labels,
		}),
		ceMarked: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "uvgrtp_ecn",
			Name:        "ce_marked_packets_total",
			Help:        "Count of received datagrams observed with the ECN-CE codepoint.",
			ConstLabels: labels,
		}),
	}

	reg.MustRegister(c.capacityKbits, c.packetsInBlock, c.earlyFeedbackMode, c.ceMarked)
	return c
}

// SetCapacityKbits records the estimator's latest output.
func (c *Collector) SetCapacityKbits(v int64) {
	if c == nil {
		return
	}
	c.capacityKbits.Set(float64(v))
}

// SetPacketsInBlock records the packet count of the most recently
// closed aggregation window.
func (c *Collector) SetPacketsInBlock(v int) {
	if c == nil {
		return
	}
	c.packetsInBlock.Set(float64(v))
}

// SetEarlyFeedbackMode records whether the most recently closed
// aggregation window was in early-feedback mode (saw a CE mark).
func (c *Collector) SetEarlyFeedbackMode(on bool) {
	if c == nil {
		return
	}
	if on {
		c.earlyFeedbackMode.Set(1)
	} else {
		c.earlyFeedbackMode.Set(0)
	}
}

// AddCEMarked increments the CE-marked datagram counter.
func (c *Collector) AddCEMarked(n int) {
	if c == nil || n <= 0 {
		return
	}
	c.ceMarked.Add(float64(n))
}

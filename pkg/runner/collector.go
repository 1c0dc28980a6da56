package runner

import (
	"fmt"
	"io"
	"math"
	"text/tabwriter"

	"github.com/prometheus/client_golang/prometheus"
)

// Collector accumulates Aggregates across a batch and exposes them
// both as the plain tabular text spec §6.5 calls for and as
// Prometheus metrics so a long batch can be scraped mid-flight
// (SPEC_FULL.md Domain Stack).
type Collector struct {
	aggregates []Aggregate

	latency   *prometheus.SummaryVec
	delivered *prometheus.SummaryVec
	successes *prometheus.CounterVec
	runs      *prometheus.CounterVec
}

// NewCollector builds a Collector and registers its metrics with reg.
// Passing prometheus.NewRegistry() keeps a batch's metrics isolated
// from the global default registry, matching the disposable,
// in-memory-only nature of a run (spec §6.6).
func NewCollector(reg prometheus.Registerer) *Collector {
	labels := []string{"attacker", "protocol", "n", "f"}
	c := &Collector{
		latency: prometheus.NewSummaryVec(prometheus.SummaryOpts{
			Name:       "bftsim_run_latency_seconds",
			Help:       "Virtual-time latency of successful runs, per configuration.",
			Objectives: map[float64]float64{0.5: 0.05, 0.9: 0.01, 0.99: 0.001},
		}, labels),
		delivered: prometheus.NewSummaryVec(prometheus.SummaryOpts{
			Name:       "bftsim_run_delivered_messages",
			Help:       "Delivered-message count per run, per configuration.",
			Objectives: map[float64]float64{0.5: 0.05, 0.9: 0.01},
		}, labels),
		successes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bftsim_run_success_total",
			Help: "Count of successful runs per configuration.",
		}, labels),
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bftsim_run_total",
			Help: "Count of all runs attempted per configuration.",
		}, labels),
	}
	reg.MustRegister(c.latency, c.delivered, c.successes, c.runs)
	return c
}

// Record folds one configuration's batch of RunResults into the
// collector: an Aggregate for the text report, plus per-run
// observations for the live metrics.
func (c *Collector) Record(attacker, protocol string, n, f int, results []RunResult) {
	agg := Summarize(attacker, protocol, n, f, results)
	c.aggregates = append(c.aggregates, agg)

	labels := prometheus.Labels{
		"attacker": attacker,
		"protocol": protocol,
		"n":        fmt.Sprint(n),
		"f":        fmt.Sprint(f),
	}
	for _, r := range results {
		c.runs.With(labels).Inc()
		c.delivered.With(labels).Observe(float64(r.TotalMsgCount))
		if r.Success {
			c.successes.With(labels).Inc()
			c.latency.With(labels).Observe(r.Latency)
		}
	}
}

// WriteReport renders every recorded Aggregate as the plain tabular
// text spec §6.5 requires: no stability requirement beyond human
// readability, so a text/tabwriter table is sufficient.
func (c *Collector) WriteReport(w io.Writer) error {
	tw := tabwriter.NewWriter(w, 2, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ATTACKER\tPROTOCOL\tN\tF\tRUNS\tSUCCESS_RATE\tMEAN_LATENCY\tMEAN_DELIVERED")
	for _, a := range c.aggregates {
		latency := "undefined"
		if !math.IsNaN(a.MeanLatency) {
			latency = fmt.Sprintf("%.4f", a.MeanLatency)
		}
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%d\t%.2f\t%s\t%.2f\n",
			a.Attacker, a.Protocol, a.N, a.F, a.Runs, a.SuccessRate, latency, a.MeanDelivered)
	}
	return tw.Flush()
}

// Aggregates returns every Aggregate recorded so far.
func (c *Collector) Aggregates() []Aggregate { return c.aggregates }

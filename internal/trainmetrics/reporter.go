// Package trainmetrics instruments the trainers' (rule-tree, neural and
// delay-multiplier) progress-reporting steps (§4.10 "report progress", §4.11 step 5) with
// Prometheus metrics. Grounded on the pack's etalazz-vsa, which is built
// entirely around prometheus.NewRegistry-scoped instrumentation of a
// long-running background process rather than the global default
// registry, so that multiple trainers (e.g. under test) never collide.
package trainmetrics

import "github.com/prometheus/client_golang/prometheus"

// Reporter publishes a trainer's fraction-complete and per-iteration
// utility to a private registry, exposed by the CLI's train subcommand via
// promhttp.Handler when --metrics-addr is set.
type Reporter struct {
	registry *prometheus.Registry
	fraction prometheus.Gauge
	utility  prometheus.Histogram
}

// New returns a Reporter with its own registry, labeled by trainer (e.g.
// "ruletree", "neural", "delaymultiplier") so one process can run more
// than one trainer without metric name collisions.
func New(trainer string) *Reporter {
	reg := prometheus.NewRegistry()
	fraction := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace:   "flowforge",
		Subsystem:   "trainer",
		Name:        "fraction_complete",
		Help:        "Fraction of the training run completed, in [0, 1].",
		ConstLabels: prometheus.Labels{"trainer": trainer},
	})
	utility := prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace:   "flowforge",
		Subsystem:   "trainer",
		Name:        "iteration_utility",
		Help:        "Mean utility observed at each reported iteration.",
		ConstLabels: prometheus.Labels{"trainer": trainer},
		Buckets:     prometheus.DefBuckets,
	})
	reg.MustRegister(fraction, utility)
	return &Reporter{registry: reg, fraction: fraction, utility: utility}
}

// Registry returns the Reporter's private registry, for promhttp.HandlerFor.
func (r *Reporter) Registry() *prometheus.Registry { return r.registry }

// Report records one iteration's progress: frac in [0, 1] and the
// iteration's mean utility.
func (r *Reporter) Report(frac, meanUtility float64) {
	r.fraction.Set(frac)
	r.utility.Observe(meanUtility)
}

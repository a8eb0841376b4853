// Package metricsvc exposes engine outcomes to prometheus.
package metricsvc

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/trezcool/lecturepay/core"
)

const namespace = "lecturepay"

type Collector struct {
	registry *prometheus.Registry

	toggles     *prometheus.CounterVec
	verified    prometheus.Counter
	advances    prometheus.Counter
	advanced    prometheus.Counter
	commits     *prometheus.CounterVec
	commitTime  prometheus.Histogram
	payments    prometheus.Counter
	grossPaid   prometheus.Counter
	deductedAdv prometheus.Counter
}

var _ core.Metrics = (*Collector)(nil)

// New registers the engine metrics, plus the go runtime and process collectors, on a fresh registry.
func New() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		toggles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "attendance", Name: "toggles_total",
			Help: "Attendance toggles by action (marked, removed).",
		}, []string{"action"}),
		verified: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "attendance", Name: "verified_total",
			Help: "Lectures verified by an admin.",
		}),
		advances: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "advance", Name: "granted_total",
			Help: "Advance entries granted.",
		}),
		advanced: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "advance", Name: "granted_amount_total",
			Help: "Sum of advances granted.",
		}),
		commits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "settlement", Name: "commits_total",
			Help: "Settlement commits by outcome (committed, insufficient, conflict, rejected, error).",
		}, []string{"outcome"}),
		commitTime: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: "settlement", Name: "commit_duration_seconds",
			Help:    "Time taken by settlement commits, lock wait included.",
			Buckets: prometheus.DefBuckets,
		}),
		payments: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "settlement", Name: "payments_total",
			Help: "Payments recorded.",
		}),
		grossPaid: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "settlement", Name: "gross_amount_total",
			Help: "Sum of gross amounts paid.",
		}),
		deductedAdv: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "settlement", Name: "advance_deducted_total",
			Help: "Sum of advances deducted from payments.",
		}),
	}
	c.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		c.toggles, c.verified, c.advances, c.advanced,
		c.commits, c.commitTime, c.payments, c.grossPaid, c.deductedAdv,
	)
	return c
}

func (c *Collector) Registry() *prometheus.Registry { return c.registry }

// Handler serves the registry in the prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

func (c *Collector) AttendanceToggled(action string) { c.toggles.WithLabelValues(action).Inc() }

func (c *Collector) AttendanceVerified() { c.verified.Inc() }

func (c *Collector) AdvanceGranted(amount float64) {
	c.advances.Inc()
	c.advanced.Add(amount)
}

func (c *Collector) SettlementCommitted(outcome string, seconds float64) {
	c.commits.WithLabelValues(outcome).Inc()
	c.commitTime.Observe(seconds)
}

func (c *Collector) PaymentRecorded(gross, deduction float64) {
	c.payments.Inc()
	c.grossPaid.Add(gross)
	c.deductedAdv.Add(deduction)
}

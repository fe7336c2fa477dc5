// Package metrics exposes prometheus instrumentation for the ekub engine.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	ContributionsPosted = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "ekub",
		Name:      "contributions_posted_total",
		Help:      "Contributions successfully recorded in the ledger.",
	})
	PayoutsIssued = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "ekub",
		Name:      "payouts_issued_total",
		Help:      "Cycle payouts issued inline with a contribution.",
	})
	WorkerSweeps = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "ekub",
		Name:      "worker_sweeps_total",
		Help:      "Background sweep iterations, by worker.",
	}, []string{"worker"})
	WorkerSweepFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "ekub",
		Name:      "worker_sweep_failures_total",
		Help:      "Background sweep iterations that returned an error, by worker.",
	}, []string{"worker"})
)

// Handler serves the prometheus scrape endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

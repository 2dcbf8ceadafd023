// Package metrics holds the Scheduler's in-process Prometheus counters
// (§AMBIENT/DOMAIN STACK): blocks processed, traces run, RPC retries.
// Collected in-process; serving an HTTP endpoint is a CLI-layer concern and
// out of scope here.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Metrics bundles one Scheduler run's counters against a dedicated
// registry, so tests (and concurrent CLI invocations in-process) don't
// collide on prometheus's global DefaultRegisterer.
type Metrics struct {
	Registry *prometheus.Registry

	BlocksProcessed prometheus.Counter
	TracesRun       *prometheus.CounterVec
	RPCRetries      prometheus.Counter
}

func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		BlocksProcessed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "mevlog_blocks_processed_total",
			Help: "Number of blocks that completed the enrichment pipeline.",
		}),
		TracesRun: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mevlog_traces_run_total",
			Help: "Number of per-transaction traces executed, by backend.",
		}, []string{"backend"}),
		RPCRetries: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "mevlog_rpc_retries_total",
			Help: "Number of RPC calls that were retried after a transient failure.",
		}),
	}
	m.Registry.MustRegister(m.BlocksProcessed, m.TracesRun, m.RPCRetries)
	return m
}

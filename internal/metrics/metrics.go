// Package metrics exposes the crawler's counters as Prometheus collectors,
// grounded on the teacher's (unused) dependency on prometheus/client_golang.
// Metrics only ever read store.Counts snapshots; nothing in this package
// touches live store state directly.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/klppl/spider/internal/store"
)

// Metrics holds every collector the admin server exposes at /metrics.
type Metrics struct {
	Registry *prometheus.Registry

	instances prometheus.Gauge
	users     prometheus.Gauge
	usersFull prometheus.Gauge
	toots     prometheus.Gauge
	toDo      prometheus.Gauge
	seenBy    prometheus.Gauge

	loopIterations *prometheus.CounterVec
	fetchTotal     *prometheus.CounterVec
	backoffSkips   prometheus.Counter
}

// New registers and returns a fresh Metrics set.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		Registry: reg,
		instances: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "spider_instances_total", Help: "Known instances.",
		}),
		users: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "spider_users_total", Help: "Known accounts.",
		}),
		usersFull: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "spider_users_full_total", Help: "Accounts with a known acct_id.",
		}),
		toots: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "spider_toots_total", Help: "Known toots.",
		}),
		toDo: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "spider_toots_todo_total", Help: "Pending-toot queue depth.",
		}),
		seenBy: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "spider_seen_by_total", Help: "Recorded seen_by edges.",
		}),
		loopIterations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "spider_loop_iterations_total", Help: "Scheduler loop iterations run.",
		}, nil),
		fetchTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "spider_fetch_total", Help: "Gateway fetches by outcome.",
		}, []string{"outcome"}),
		backoffSkips: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "spider_host_backoff_skips_total", Help: "Fetches skipped because the host was in backoff.",
		}),
	}
	reg.MustRegister(
		m.instances, m.users, m.usersFull, m.toots, m.toDo, m.seenBy,
		m.loopIterations, m.fetchTotal, m.backoffSkips,
	)
	return m
}

// Update republishes a store snapshot onto the gauges.
func (m *Metrics) Update(snap store.Counts) {
	m.instances.Set(float64(snap.Instances))
	m.users.Set(float64(snap.Users))
	m.usersFull.Set(float64(snap.UsersFull))
	m.toots.Set(float64(snap.Toots))
	m.toDo.Set(float64(snap.ToDo))
	m.seenBy.Set(float64(snap.SeenBy))
}

// ObserveLoop increments the scheduler-loop counter.
func (m *Metrics) ObserveLoop() {
	m.loopIterations.WithLabelValues().Inc()
}

// ObserveFetch increments the appropriate fetch-outcome counter.
func (m *Metrics) ObserveFetch(ok bool) {
	outcome := "fail"
	if ok {
		outcome = "ok"
	}
	m.fetchTotal.WithLabelValues(outcome).Inc()
}

// ObserveBackoffSkip records a fetch the scheduler skipped because the
// target host was still within its backoff window.
func (m *Metrics) ObserveBackoffSkip() {
	m.backoffSkips.Inc()
}

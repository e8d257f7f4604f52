// control/metrics.go
// Author: momentics <momentics@gmail.com>
//
// Prometheus collectors for the dispatch path, plugin loading and the scheduler.
// Each Metrics owns its registry so several service instances can coexist.

package control

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "hioload_ipc"

// Metrics groups every collector exported by the service.
type Metrics struct {
	registry *prometheus.Registry

	requests    *prometheus.CounterVec
	pluginLoads *prometheus.CounterVec
	handlers    prometheus.Gauge
	tasks       *prometheus.CounterVec
}

// NewMetrics creates the collectors on a fresh registry. withRuntime adds
// the Go runtime and process collectors.
func NewMetrics(withRuntime bool) *Metrics {
	reg := prometheus.NewRegistry()
	if withRuntime {
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	}
	factory := promauto.With(reg)
	return &Metrics{
		registry: reg,
		requests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_total",
			Help:      "IPC requests handled by the delegator, by intention, action and wire code.",
		}, []string{"intention", "action", "code"}),
		pluginLoads: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "plugin_loads_total",
			Help:      "Plugin resolutions that hit the loader, by intention and result.",
		}, []string{"intention", "result"}),
		handlers: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "scheduler_handlers",
			Help:      "Epoll handlers currently registered with the scheduler.",
		}),
		tasks: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scheduler_tasks_total",
			Help:      "Scheduled tasks by kind and outcome.",
		}, []string{"kind", "outcome"}),
	}
}

// Registry exposes the registry for scraping.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// ObserveRequest counts one delegator request.
func (m *Metrics) ObserveRequest(intention, action, code string) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(intention, action, code).Inc()
}

// ObservePluginLoad counts one loader attempt.
func (m *Metrics) ObservePluginLoad(intention, result string) {
	if m == nil {
		return
	}
	m.pluginLoads.WithLabelValues(intention, result).Inc()
}

// SetHandlers records the size of the handler table.
func (m *Metrics) SetHandlers(n int) {
	if m == nil {
		return
	}
	m.handlers.Set(float64(n))
}

// ObserveTask counts a finished task.
func (m *Metrics) ObserveTask(kind, outcome string) {
	if m == nil {
		return
	}
	m.tasks.WithLabelValues(kind, outcome).Inc()
}

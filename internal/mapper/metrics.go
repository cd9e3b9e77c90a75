package mapper

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/zheng/callmap/internal/graph"
)

// Metrics counts what a run produced. Each Metrics owns its registry so
// several runs in one process never share counters.
type Metrics struct {
	registry *prometheus.Registry

	files            *prometheus.CounterVec
	closureCallEdges prometheus.Counter
	dispatchEdges    prometheus.Counter
	renderFailures   prometheus.Counter
}

// NewMetrics creates the run counters in a fresh registry
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		files: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "callmap",
				Name:      "files_total",
				Help:      "Source files processed, by language and outcome",
			},
			[]string{"language", "status"},
		),
		closureCallEdges: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "callmap",
			Name:      "closure_call_edges_total",
			Help:      "Edges added for immediately invoked closures",
		}),
		dispatchEdges: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "callmap",
			Name:      "dispatch_edges_total",
			Help:      "Edges added for dynamically dispatched calls",
		}),
		renderFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "callmap",
			Name:      "render_failures_total",
			Help:      "Graph images that could not be rendered",
		}),
	}
	m.registry.MustRegister(m.files, m.closureCallEdges, m.dispatchEdges, m.renderFailures)
	return m
}

// Registry returns the registry holding the counters
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// WriteFile writes the counters in the text exposition format, for the
// node exporter's textfile collector.
func (m *Metrics) WriteFile(path string) error {
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("failed to write metrics to %s: %w", path, err)
	}
	return nil
}

func (m *Metrics) fileDone(language string, err error) {
	if m == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "failed"
	}
	if language == "" {
		language = "unknown"
	}
	m.files.WithLabelValues(language, status).Inc()
}

func (m *Metrics) graphBuilt(s graph.Stats) {
	if m == nil {
		return
	}
	m.closureCallEdges.Add(float64(s.ClosureCallEdges))
	m.dispatchEdges.Add(float64(s.DispatchEdges))
}

func (m *Metrics) renderFailed() {
	if m == nil {
		return
	}
	m.renderFailures.Inc()
}

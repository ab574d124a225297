package app

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/dshills/chzapp/internal/component"
)

// HookMetrics counts hook unit load outcomes per component.
// It implements component.Observer.
type HookMetrics struct {
	loaded *prometheus.CounterVec
	failed *prometheus.CounterVec
}

// NewHookMetrics creates the hook counters and registers them with reg.
func NewHookMetrics(reg prometheus.Registerer) (*HookMetrics, error) {
	m := &HookMetrics{
		loaded: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "chzapp",
				Subsystem: "hook",
				Name:      "units_loaded_total",
				Help:      "Hook units merged into component instances",
			},
			[]string{"component"},
		),
		failed: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "chzapp",
				Subsystem: "hook",
				Name:      "units_failed_total",
				Help:      "Hook units that failed to load",
			},
			[]string{"component"},
		),
	}
	for _, c := range []prometheus.Collector{m.loaded, m.failed} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// UnitLoaded implements component.Observer.
func (m *HookMetrics) UnitLoaded(comp, unit string) {
	m.loaded.WithLabelValues(comp).Inc()
}

// UnitFailed implements component.Observer.
func (m *HookMetrics) UnitFailed(comp, unit string, err error) {
	m.failed.WithLabelValues(comp).Inc()
}

var _ component.Observer = (*HookMetrics)(nil)

package measure

import (
	"sync"
)

// DefaultMeasure keeps metrics in memory.
type DefaultMeasure struct {
	mu    sync.RWMutex
	Items map[string]Metric
}

// NewDefaultMeasure creates an empty measure.
func NewDefaultMeasure() *DefaultMeasure {
	return &DefaultMeasure{
		Items: make(map[string]Metric),
	}
}

// AddMetric registers a metric for name, keeping the existing one if any.
func (m *DefaultMeasure) AddMetric(name string) Metric {
	m.mu.Lock()
	defer m.mu.Unlock()

	if mt, ok := m.Items[name]; ok {
		return mt
	}

	mt := &DefaultMetric{
		mu:    &sync.Mutex{},
		skips: make(map[string]int64),
	}
	m.Items[name] = mt

	return mt
}

// GetMetric returns the metric for name, nil if unknown.
func (m *DefaultMeasure) GetMetric(name string) Metric {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.Items[name]
}

// AllMetrics returns a copy of the metric table.
func (m *DefaultMeasure) AllMetrics() map[string]Metric {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make(map[string]Metric, len(m.Items))
	for k, v := range m.Items {
		out[k] = v
	}

	return out
}

var _ Measure = (*DefaultMeasure)(nil)

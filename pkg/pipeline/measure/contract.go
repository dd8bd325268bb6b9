package measure

import "time"

// Measure collects per-item metrics.
type Measure interface {
	AddMetric(name string) Metric
	GetMetric(name string) Metric
	AllMetrics() map[string]Metric
}

// Metric aggregates the timings of one item.
type Metric interface {
	AddDuration(elapsed time.Duration)
	AddBuildDuration(elapsed time.Duration)
	AddSkip(reason string)
	AVGDuration() time.Duration
	AVGBuildDuration() time.Duration
	Count() int64
	Skips() map[string]int64
}

package measure

import (
	"sync"
	"time"
)

// DefaultMetric is a mutex guarded Metric.
type DefaultMetric struct {
	mu           *sync.Mutex
	skips        map[string]int64
	execElapsed  time.Duration
	buildElapsed time.Duration
	total        int64
	builds       int64
}

func (mt *DefaultMetric) AddDuration(elapsed time.Duration) {
	mt.mu.Lock()
	defer mt.mu.Unlock()
	mt.total++
	mt.execElapsed += elapsed
}

func (mt *DefaultMetric) AddBuildDuration(elapsed time.Duration) {
	mt.mu.Lock()
	defer mt.mu.Unlock()
	mt.builds++
	mt.buildElapsed += elapsed
}

func (mt *DefaultMetric) AddSkip(reason string) {
	mt.mu.Lock()
	defer mt.mu.Unlock()
	mt.skips[reason]++
}

func (mt *DefaultMetric) AVGDuration() time.Duration {
	mt.mu.Lock()
	defer mt.mu.Unlock()
	if mt.total == 0 {
		return time.Duration(0)
	}

	return round(time.Duration(float64(mt.execElapsed) / float64(mt.total)))
}

func (mt *DefaultMetric) AVGBuildDuration() time.Duration {
	mt.mu.Lock()
	defer mt.mu.Unlock()
	if mt.builds == 0 {
		return time.Duration(0)
	}

	return round(time.Duration(float64(mt.buildElapsed) / float64(mt.builds)))
}

func (mt *DefaultMetric) Count() int64 {
	mt.mu.Lock()
	defer mt.mu.Unlock()

	return mt.total
}

func (mt *DefaultMetric) Skips() map[string]int64 {
	mt.mu.Lock()
	defer mt.mu.Unlock()

	out := make(map[string]int64, len(mt.skips))
	for k, v := range mt.skips {
		out[k] = v
	}

	return out
}

func round(d time.Duration) time.Duration {
	switch {
	case d > time.Hour:
		d = d.Round(time.Hour)
	case d > time.Minute:
		d = d.Round(time.Minute)
	case d > time.Second:
		d = d.Round(time.Second)
	case d > time.Millisecond:
		d = d.Round(time.Millisecond)
	case d > time.Microsecond:
		d = d.Round(time.Microsecond)
	}

	return d
}

var _ Metric = (*DefaultMetric)(nil)

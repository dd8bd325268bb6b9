package pipeline

import (
	"log/slog"

	"github.com/askiada/go-shaderpipe/pkg/device"
	"github.com/askiada/go-shaderpipe/pkg/pipeline/model"
)

const defaultBuildConcurrency = 4

type Option func(p *Pipeline)

// WithDevice sets the device frames are submitted to. Defaults to a device.Recorder.
func WithDevice(dev device.Device) Option {
	return func(p *Pipeline) {
		p.device = dev
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) {
		p.logger = logger
	}
}

// WithAutoBuild controls whether Execute builds unbuilt items before running them.
func WithAutoBuild(enabled bool) Option {
	return func(p *Pipeline) {
		p.autoBuild = enabled
	}
}

// WithBuildConcurrency bounds the number of concurrent compilations in BuildAll.
func WithBuildConcurrency(concurrent int) Option {
	return func(p *Pipeline) {
		if concurrent > 0 {
			p.buildConcurrency = concurrent
		}
	}
}

// WithHooks registers pipeline options such as the measure and the drawer.
func WithHooks(hooks ...model.PipelineOption) Option {
	return func(p *Pipeline) {
		p.hooks = append(p.hooks, hooks...)
	}
}

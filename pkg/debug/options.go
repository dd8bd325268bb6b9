package debug

import (
	"log/slog"

	"github.com/askiada/go-shaderpipe/internal/interp"
)

const (
	DefaultMaxStackDepth = interp.DefaultMaxStackDepth
	DefaultMaxSteps      = interp.DefaultMaxSteps
)

// Option configures an Engine.
type Option func(e *Engine)

// WithLogger sets the logger of the engine.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithMaxStackDepth caps the call stack of instrumented runs.
func WithMaxStackDepth(depth int) Option {
	return func(e *Engine) {
		if depth > 0 {
			e.maxStackDepth = depth
		}
	}
}

// WithMaxSteps caps the number of statements an instrumented run executes.
func WithMaxSteps(steps int) Option {
	return func(e *Engine) {
		if steps > 0 {
			e.maxSteps = steps
		}
	}
}

// WithListener subscribes l to every event of the engine.
func WithListener(l Listener) Option {
	return func(e *Engine) {
		e.listeners[e.nextListener] = l
		e.nextListener++
	}
}

// WithWatches sets the expressions evaluated at every pause.
func WithWatches(exprs ...string) Option {
	return func(e *Engine) {
		e.watches = append([]string(nil), exprs...)
	}
}

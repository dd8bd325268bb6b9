// Package engine drives the frame loop: source edits, system variables,
// queued debug commands and pipeline execution, in that order.
package engine

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/askiada/go-shaderpipe/pkg/debug"
	"github.com/askiada/go-shaderpipe/pkg/pipeline"
	"github.com/askiada/go-shaderpipe/pkg/sysvar"
	"github.com/askiada/go-shaderpipe/pkg/watch"
)

var (
	ErrPipelineMustBeSet  = errors.New("pipeline must be set")
	ErrVariablesMustBeSet = errors.New("system variables must be set")
	ErrDestroyed          = errors.New("engine destroyed")
	ErrInvalidRate        = errors.New("frame rate must be positive")
)

// Debugger is the part of the debug engine the frame loop drives.
type Debugger interface {
	ProcessPending(ctx context.Context) int
	State() debug.State
	Terminate(ctx context.Context) error
}

var _ Debugger = (*debug.Engine)(nil)

// Engine owns one frame loop.
type Engine struct {
	pipe     *pipeline.Pipeline
	vars     *sysvar.Manager
	debugger Debugger
	logger   *slog.Logger
	edits    <-chan watch.Edit
	onFrame  func(pipeline.FrameReport)

	// update serializes Update and Destroy.
	update    sync.Mutex
	destroyed bool

	mu      sync.Mutex
	pending []watch.Edit
	input   sysvar.InputState
}

// Option configures an Engine.
type Option func(e *Engine)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithDebugger drains the command queue of d on every frame.
func WithDebugger(d Debugger) Option {
	return func(e *Engine) {
		e.debugger = d
	}
}

// WithEdits applies the source edits received on edits at the start of each frame.
func WithEdits(edits <-chan watch.Edit) Option {
	return func(e *Engine) {
		e.edits = edits
	}
}

// WithFrameReport calls fn with the report of every frame.
func WithFrameReport(fn func(pipeline.FrameReport)) Option {
	return func(e *Engine) {
		e.onFrame = fn
	}
}

// New returns an engine running pipe with the variables of vars.
func New(pipe *pipeline.Pipeline, vars *sysvar.Manager, opts ...Option) (*Engine, error) {
	if pipe == nil {
		return nil, ErrPipelineMustBeSet
	}
	if vars == nil {
		return nil, ErrVariablesMustBeSet
	}

	e := &Engine{
		pipe:   pipe,
		vars:   vars,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}

	return e, nil
}

// Submit queues an edit for the next frame.
func (e *Engine) Submit(edit watch.Edit) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.pending = append(e.pending, edit)
}

// SetInput replaces the input state used by Run.
func (e *Engine) SetInput(in sysvar.InputState) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.input = in
}

// Update runs one frame. The system variables are ticked before the debug
// queue is drained, and both happen before the pipeline executes.
func (e *Engine) Update(ctx context.Context, delta time.Duration, in sysvar.InputState) (pipeline.FrameReport, error) {
	e.update.Lock()
	defer e.update.Unlock()

	if e.destroyed {
		return pipeline.FrameReport{}, ErrDestroyed
	}

	e.applyEdits()

	err := e.vars.Tick(delta, in)
	if err != nil {
		e.logger.Warn("system variables partially updated", "error", err)
	}

	if e.debugger != nil {
		n := e.debugger.ProcessPending(ctx)
		if n > 0 {
			e.logger.Debug("debug commands applied", "count", n)
		}
	}

	snap := e.vars.Snapshot()
	report, err := e.pipe.Execute(ctx, pipeline.Frame{Index: snap.Frame(), Vars: snap})
	if err != nil {
		return report, errors.Wrapf(err, "unable to execute frame %d", snap.Frame())
	}
	for _, skip := range report.Skipped {
		e.logger.Debug("item skipped", "item", skip.Item.String(), "name", skip.Name, "reason", skip.Reason)
	}
	if e.onFrame != nil {
		e.onFrame(report)
	}

	return report, nil
}

func (e *Engine) applyEdits() {
	e.mu.Lock()
	edits := e.pending
	e.pending = nil
	e.mu.Unlock()

	if e.edits != nil {
	drain:
		for {
			select {
			case edit, ok := <-e.edits:
				if !ok {
					e.edits = nil
					break drain
				}
				edits = append(edits, edit)
			default:
				break drain
			}
		}
	}

	for _, edit := range edits {
		err := e.pipe.UpdateSource(edit.Item, edit.Stage, edit.Text)
		if err != nil {
			e.logger.Warn("unable to apply source edit", "item", edit.Item.String(), "stage", edit.Stage.String(), "error", err)
			continue
		}
		e.logger.Info("source updated", "item", edit.Item.String(), "stage", edit.Stage.String())
	}
}

// Run calls Update every rate until ctx is done. Delta is the wall time
// elapsed since the previous frame.
func (e *Engine) Run(ctx context.Context, rate time.Duration) error {
	if rate <= 0 {
		return ErrInvalidRate
	}

	ticker := time.NewTicker(rate)
	defer ticker.Stop()

	last := time.Now()
	for {
		select {
		case <-ctx.Done():
			return nil
		case now := <-ticker.C:
			delta := now.Sub(last)
			last = now

			e.mu.Lock()
			in := e.input
			e.mu.Unlock()

			_, err := e.Update(ctx, delta, in)
			if err != nil {
				if ctx.Err() != nil {
					return nil
				}
				return err
			}
		}
	}
}

// Destroy terminates an active debug session and closes the pipeline.
// Later calls to Update fail with ErrDestroyed.
func (e *Engine) Destroy(ctx context.Context) error {
	e.update.Lock()
	defer e.update.Unlock()

	if e.destroyed {
		return nil
	}
	e.destroyed = true

	if e.debugger != nil && e.debugger.State() != debug.StateDetached {
		err := e.debugger.Terminate(ctx)
		if err != nil {
			e.logger.Warn("unable to terminate debug session", "error", err)
		}
	}

	return errors.Wrap(e.pipe.Close(), "unable to close pipeline")
}

// Package watch reports edits of shader source files.
package watch

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/pkg/errors"

	"github.com/askiada/go-shaderpipe/pkg/pipeline/model"
)

var ErrClosed = errors.New("watcher closed")

const defaultBuffer = 16

// Edit is the new text of one stage source of an item.
type Edit struct {
	Item  model.ItemID
	Stage model.Stage
	Path  string
	Text  string
}

type target struct {
	item  model.ItemID
	stage model.Stage
}

// Watcher maps source files to item stages and emits an Edit whenever a
// watched file changes on disk. A file may feed several stages.
type Watcher struct {
	fs     *fsnotify.Watcher
	logger *slog.Logger
	edits  chan Edit

	mu      sync.Mutex
	targets map[string][]target
	dirs    map[string]int
	// last holds the text of the last edit per file, identical rewrites are dropped.
	last   map[string]string
	closed bool
}

// Option configures a Watcher.
type Option func(w *Watcher)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(w *Watcher) {
		if logger != nil {
			w.logger = logger
		}
	}
}

// New returns a watcher with no file.
func New(opts ...Option) (*Watcher, error) {
	fs, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errors.Wrap(err, "unable to create file watcher")
	}

	w := &Watcher{
		fs:      fs,
		logger:  slog.Default(),
		edits:   make(chan Edit, defaultBuffer),
		targets: make(map[string][]target),
		dirs:    make(map[string]int),
		last:    make(map[string]string),
	}
	for _, opt := range opts {
		opt(w)
	}

	return w, nil
}

// Edits returns the channel edits are delivered on.
func (w *Watcher) Edits() <-chan Edit {
	return w.edits
}

// Add watches path as the source of stage of item. The parent directory is
// watched so editors that replace files are followed.
func (w *Watcher) Add(path string, item model.ItemID, stage model.Stage) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return errors.Wrapf(err, "unable to resolve %s", path)
	}
	text, err := os.ReadFile(abs)
	if err != nil {
		return errors.Wrapf(err, "unable to read %s", path)
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return ErrClosed
	}

	for _, t := range w.targets[abs] {
		if t.item == item && t.stage == stage {
			return nil
		}
	}

	dir := filepath.Dir(abs)
	if w.dirs[dir] == 0 {
		err = w.fs.Add(dir)
		if err != nil {
			return errors.Wrapf(err, "unable to watch %s", dir)
		}
	}
	w.dirs[dir]++
	w.targets[abs] = append(w.targets[abs], target{item: item, stage: stage})
	w.last[abs] = string(text)

	return nil
}

// RemoveItem stops reporting edits for every source of item.
func (w *Watcher) RemoveItem(item model.ItemID) {
	w.mu.Lock()
	defer w.mu.Unlock()

	for path, targets := range w.targets {
		kept := targets[:0]
		for _, t := range targets {
			if t.item != item {
				kept = append(kept, t)
				continue
			}
			w.release(filepath.Dir(path))
		}
		if len(kept) == 0 {
			delete(w.targets, path)
			delete(w.last, path)
			continue
		}
		w.targets[path] = kept
	}
}

func (w *Watcher) release(dir string) {
	w.dirs[dir]--
	if w.dirs[dir] > 0 {
		return
	}
	delete(w.dirs, dir)
	err := w.fs.Remove(dir)
	if err != nil {
		w.logger.Debug("unable to stop watching directory", "dir", dir, "error", err)
	}
}

// Run delivers edits until ctx is done or the watcher is closed.
func (w *Watcher) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.fs.Events:
			if !ok {
				return nil
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
				continue
			}
			for _, edit := range w.changed(ev.Name) {
				w.logger.Info("shader source changed", "path", edit.Path, "item", edit.Item.String(), "stage", edit.Stage.String())
				select {
				case w.edits <- edit:
				case <-ctx.Done():
					return nil
				}
			}
		case err, ok := <-w.fs.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("file watcher error", "error", err)
		}
	}
}

// changed reads path and returns the edits it produces, none when the file
// is not watched or its text did not change.
func (w *Watcher) changed(path string) []Edit {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil
	}

	w.mu.Lock()
	targets := append([]target(nil), w.targets[abs]...)
	w.mu.Unlock()
	if len(targets) == 0 {
		return nil
	}

	text, err := os.ReadFile(abs)
	if err != nil {
		w.logger.Debug("unable to read changed source", "path", abs, "error", err)
		return nil
	}

	w.mu.Lock()
	if w.last[abs] == string(text) {
		w.mu.Unlock()
		return nil
	}
	w.last[abs] = string(text)
	w.mu.Unlock()

	edits := make([]Edit, 0, len(targets))
	for _, t := range targets {
		edits = append(edits, Edit{Item: t.item, Stage: t.stage, Path: abs, Text: string(text)})
	}

	return edits
}

// Close stops watching. Run returns once the watcher is closed.
func (w *Watcher) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	w.mu.Unlock()

	return errors.Wrap(w.fs.Close(), "unable to close file watcher")
}

package watch_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/askiada/go-shaderpipe/pkg/pipeline/model"
	"github.com/askiada/go-shaderpipe/pkg/watch"
)

func startWatcher(t *testing.T) *watch.Watcher {
	t.Helper()

	w, err := watch.New()
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = w.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		_ = w.Close()
		<-done
	})

	return w
}

// waitEdit returns the first edit carrying text.
func waitEdit(t *testing.T, w *watch.Watcher, text string) watch.Edit {
	t.Helper()

	timeout := time.After(5 * time.Second)
	for {
		select {
		case edit := <-w.Edits():
			if edit.Text == text {
				return edit
			}
		case <-timeout:
			require.FailNow(t, "no edit received", "waiting for %q", text)
		}
	}
}

func TestWriteProducesEdit(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "shade.wgsl")
	require.NoError(t, os.WriteFile(path, []byte("// v1"), 0o600))

	w := startWatcher(t)
	require.NoError(t, w.Add(path, model.ItemID(2), model.StagePixel))
	require.NoError(t, w.Add(path, model.ItemID(2), model.StagePixel))

	require.NoError(t, os.WriteFile(path, []byte("// v2"), 0o600))

	edit := waitEdit(t, w, "// v2")
	assert.Equal(t, model.ItemID(2), edit.Item)
	assert.Equal(t, model.StagePixel, edit.Stage)
	assert.Equal(t, path, edit.Path)
}

func TestSharedSourceFeedsEveryStage(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "shared.wgsl")
	require.NoError(t, os.WriteFile(path, []byte("// v1"), 0o600))

	w := startWatcher(t)
	require.NoError(t, w.Add(path, model.ItemID(1), model.StageVertex))
	require.NoError(t, w.Add(path, model.ItemID(1), model.StagePixel))

	require.NoError(t, os.WriteFile(path, []byte("// v2"), 0o600))

	stages := map[model.Stage]bool{}
	stages[waitEdit(t, w, "// v2").Stage] = true
	stages[waitEdit(t, w, "// v2").Stage] = true
	assert.Equal(t, map[model.Stage]bool{model.StageVertex: true, model.StagePixel: true}, stages)
}

func TestRemovedItemIsIgnored(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	gone := filepath.Join(dir, "gone.wgsl")
	kept := filepath.Join(dir, "kept.wgsl")
	require.NoError(t, os.WriteFile(gone, []byte("// v1"), 0o600))
	require.NoError(t, os.WriteFile(kept, []byte("// v1"), 0o600))

	w := startWatcher(t)
	require.NoError(t, w.Add(gone, model.ItemID(1), model.StagePixel))
	require.NoError(t, w.Add(kept, model.ItemID(2), model.StagePixel))
	w.RemoveItem(model.ItemID(1))

	require.NoError(t, os.WriteFile(gone, []byte("// gone"), 0o600))
	require.NoError(t, os.WriteFile(kept, []byte("// kept"), 0o600))

	timeout := time.After(5 * time.Second)
	for {
		select {
		case edit := <-w.Edits():
			assert.NotEqual(t, model.ItemID(1), edit.Item)
			if edit.Text == "// kept" {
				return
			}
		case <-timeout:
			require.FailNow(t, "no edit received for the kept item")
		}
	}
}

func TestAddErrors(t *testing.T) {
	t.Parallel()

	w, err := watch.New()
	require.NoError(t, err)

	err = w.Add(filepath.Join(t.TempDir(), "missing.wgsl"), model.ItemID(1), model.StagePixel)
	require.Error(t, err)

	require.NoError(t, w.Close())
	require.NoError(t, w.Close())

	path := filepath.Join(t.TempDir(), "late.wgsl")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o600))
	assert.ErrorIs(t, w.Add(path, model.ItemID(1), model.StagePixel), watch.ErrClosed)
}

package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/askiada/go-shaderpipe/pkg/pipeline"
)

const projectDocument = `passes:
  - name: scene
    items:
      - name: good
        kind: geometry
        stages:
          vertex:
            path: quad.wgsl
          pixel:
            path: good.wgsl
      - name: broken
        kind: geometry
        stages:
          vertex:
            path: quad.wgsl
          pixel:
            text: "fn main( {"
`

const quadSource = `@vertex
fn vs(@builtin(vertex_index) idx: u32) -> @builtin(position) vec4<f32> {
    return vec4<f32>(f32(idx), 0.0, 0.0, 1.0);
}
`

const goodSource = `@fragment
fn main() -> @location(0) vec4<f32> {
    return vec4<f32>(1.0, 0.0, 0.0, 1.0);
}
`

func writeProject(t *testing.T) (string, string) {
	t.Helper()

	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.toml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("[log]\nlevel = \"error\"\n"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "good.wgsl"), []byte(goodSource), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "quad.wgsl"), []byte(quadSource), 0o600))
	projPath := filepath.Join(dir, "project.yaml")
	require.NoError(t, os.WriteFile(projPath, []byte(projectDocument), 0o600))

	return cfgPath, projPath
}

func run(args ...string) (string, error) {
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)

	err := cmd.ExecuteContext(context.Background())

	return out.String(), err
}

func TestBuildReportsFailures(t *testing.T) {
	t.Parallel()

	cfgPath, projPath := writeProject(t)

	out, err := run("build", "--config", cfgPath, "--project", projPath)
	require.ErrorIs(t, err, pipeline.ErrBuildFailed)
	assert.Contains(t, out, "scene/good")
	assert.Contains(t, out, "FAIL scene/broken")
	assert.Contains(t, out, "error:")
}

func TestGraphWritesDOTFile(t *testing.T) {
	t.Parallel()

	cfgPath, projPath := writeProject(t)
	dotPath := filepath.Join(filepath.Dir(projPath), "graph.dot")

	out, err := run("graph", "--config", cfgPath, "--project", projPath, "--out", dotPath, "--frames", "2")
	require.NoError(t, err)
	assert.Contains(t, out, "graph written to "+dotPath)

	data, err := os.ReadFile(dotPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "digraph")
	assert.Contains(t, string(data), "scene")
}

func TestProjectMustBeSet(t *testing.T) {
	t.Parallel()

	cfgPath, _ := writeProject(t)

	for _, sub := range []string{"build", "graph", "serve"} {
		_, err := run(sub, "--config", cfgPath)
		require.ErrorIs(t, err, ErrProjectMustBeSet, sub)
	}
}

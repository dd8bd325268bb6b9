package config_test

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/askiada/go-shaderpipe/pkg/config"
	"github.com/askiada/go-shaderpipe/pkg/debug"
)

func TestDecode(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		doc     string
		want    func(c *config.Config)
		wantErr bool
	}{
		"empty keeps defaults": {
			doc:  "",
			want: func(*config.Config) {},
		},
		"partial sections": {
			doc: `
[log]
level = "debug"

[pipeline]
auto_build = false

[debug]
max_steps = 500
stop_on_entry = true
watches = ["uv.x", "Time"]

[frame]
rate = 30.0
`,
			want: func(c *config.Config) {
				c.Log.Level = "debug"
				c.Pipeline.AutoBuild = false
				c.Debug.MaxSteps = 500
				c.Debug.StopOnEntry = true
				c.Debug.Watches = []string{"uv.x", "Time"}
				c.Frame.Rate = 30
			},
		},
		"transport": {
			doc: "[transport]\nlisten = \":9000\"\npath = \"/dap\"\n",
			want: func(c *config.Config) {
				c.Transport = config.Transport{Listen: ":9000", Path: "/dap"}
			},
		},
		"unknown key":        {doc: "[pipeline]\nparallel = 3\n", wantErr: true},
		"bad level":          {doc: "[log]\nlevel = \"loud\"\n", wantErr: true},
		"zero concurrency":   {doc: "[pipeline]\nbuild_concurrency = 0\n", wantErr: true},
		"negative rate":      {doc: "[frame]\nrate = -1.0\n", wantErr: true},
		"relative path":      {doc: "[transport]\npath = \"dap\"\n", wantErr: true},
		"zero stack depth":   {doc: "[debug]\nmax_stack_depth = 0\n", wantErr: true},
		"malformed document": {doc: "[log\n", wantErr: true},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			got, err := config.Decode(strings.NewReader(tt.doc))
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)

			want := config.Default()
			tt.want(&want)
			assert.Equal(t, want, got)
		})
	}
}

func TestLoad(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("[watch]\nenabled = false\n"), 0o600))

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.False(t, cfg.Watch.Enabled)
	assert.True(t, cfg.Pipeline.AutoBuild)

	_, err = config.Load(filepath.Join(t.TempDir(), "missing.toml"))
	require.Error(t, err)
}

func TestEncodeRoundTrip(t *testing.T) {
	t.Parallel()

	cfg := config.Default()
	cfg.Debug.Watches = []string{"color.r"}
	cfg.Frame.Rate = 24

	var buf bytes.Buffer
	require.NoError(t, cfg.Encode(&buf))

	got, err := config.Decode(&buf)
	require.NoError(t, err)
	assert.Equal(t, cfg, got)
}

func TestTranslation(t *testing.T) {
	t.Parallel()

	cfg := config.Default()
	cfg.Log.Level = "warn"
	cfg.Frame.Rate = 50
	cfg.Debug.Watches = []string{"x"}

	level, err := cfg.Level()
	require.NoError(t, err)
	assert.Equal(t, slog.LevelWarn, level)
	assert.Equal(t, 20*time.Millisecond, cfg.Interval())

	var buf bytes.Buffer
	logger := cfg.Logger(&buf)
	logger.Info("hidden")
	logger.Warn("shown")
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown")

	assert.Len(t, cfg.PipelineOptions(logger), 3)
	assert.Len(t, cfg.DebugOptions(logger), 4)
	assert.Len(t, cfg.TransportOptions(logger), 2)
	assert.Equal(t, debug.DefaultMaxSteps, config.Default().Debug.MaxSteps)
}

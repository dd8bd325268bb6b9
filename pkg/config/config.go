// Package config loads the TOML settings of the shaderpipe tools and turns
// them into component options.
package config

import (
	"bytes"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/mitchellh/go-homedir"
	"github.com/pelletier/go-toml/v2"
	"github.com/pkg/errors"

	"github.com/askiada/go-shaderpipe/pkg/debug"
	"github.com/askiada/go-shaderpipe/pkg/pipeline"
	"github.com/askiada/go-shaderpipe/pkg/transport"
)

// DefaultPath is read when no configuration file is given.
const DefaultPath = "~/.config/shaderpipe/config.toml"

var ErrInvalidConfig = errors.New("invalid config")

// Config holds every setting. Keys missing from the file keep their default.
type Config struct {
	Log       Log       `toml:"log"`
	Pipeline  Pipeline  `toml:"pipeline"`
	Debug     Debug     `toml:"debug"`
	Transport Transport `toml:"transport"`
	Watch     Watch     `toml:"watch"`
	Frame     Frame     `toml:"frame"`
}

type Log struct {
	// Level is one of debug, info, warn or error.
	Level string `toml:"level"`
}

type Pipeline struct {
	AutoBuild        bool `toml:"auto_build"`
	BuildConcurrency int  `toml:"build_concurrency"`
}

type Debug struct {
	MaxStackDepth int  `toml:"max_stack_depth"`
	MaxSteps      int  `toml:"max_steps"`
	StopOnEntry   bool `toml:"stop_on_entry"`
	// Watches are expressions evaluated at every pause.
	Watches []string `toml:"watches"`
}

type Transport struct {
	Listen string `toml:"listen"`
	Path   string `toml:"path"`
}

type Watch struct {
	Enabled bool `toml:"enabled"`
}

type Frame struct {
	// Rate is the number of frames per second of the headless loop.
	Rate float64 `toml:"rate"`
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		Log:       Log{Level: "info"},
		Pipeline:  Pipeline{AutoBuild: true, BuildConcurrency: 4},
		Debug:     Debug{MaxStackDepth: debug.DefaultMaxStackDepth, MaxSteps: debug.DefaultMaxSteps},
		Transport: Transport{Listen: "127.0.0.1:7420", Path: "/debug"},
		Watch:     Watch{Enabled: true},
		Frame:     Frame{Rate: 60},
	}
}

// Load reads the file at path, which may start with ~. An empty path reads
// DefaultPath, and a missing DefaultPath yields the defaults.
func Load(path string) (Config, error) {
	explicit := path != ""
	if !explicit {
		path = DefaultPath
	}

	expanded, err := homedir.Expand(path)
	if err != nil {
		return Config{}, errors.Wrapf(err, "unable to expand %s", path)
	}

	data, err := os.ReadFile(expanded)
	if err != nil {
		if !explicit && errors.Is(err, os.ErrNotExist) {
			return Default(), nil
		}
		return Config{}, errors.Wrapf(err, "unable to read config %s", expanded)
	}

	cfg, err := Decode(bytes.NewReader(data))
	if err != nil {
		return Config{}, errors.Wrapf(err, "config %s", expanded)
	}

	return cfg, nil
}

// Decode reads settings over the defaults and validates them. Unknown keys
// are rejected.
func Decode(r io.Reader) (Config, error) {
	cfg := Default()

	dec := toml.NewDecoder(r)
	dec.DisallowUnknownFields()
	err := dec.Decode(&cfg)
	if err != nil {
		return Config{}, errors.Wrap(err, "unable to decode config")
	}

	err = cfg.Validate()
	if err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// Encode writes cfg as TOML.
func (c Config) Encode(w io.Writer) error {
	enc := toml.NewEncoder(w)
	enc.SetIndentTables(true)

	return errors.Wrap(enc.Encode(c), "unable to encode config")
}

// Validate checks the ranges of every setting.
func (c Config) Validate() error {
	_, err := c.Level()
	if err != nil {
		return err
	}

	switch {
	case c.Pipeline.BuildConcurrency < 1:
		return errors.Wrapf(ErrInvalidConfig, "pipeline.build_concurrency must be positive, got %d", c.Pipeline.BuildConcurrency)
	case c.Debug.MaxStackDepth < 1:
		return errors.Wrapf(ErrInvalidConfig, "debug.max_stack_depth must be positive, got %d", c.Debug.MaxStackDepth)
	case c.Debug.MaxSteps < 1:
		return errors.Wrapf(ErrInvalidConfig, "debug.max_steps must be positive, got %d", c.Debug.MaxSteps)
	case c.Frame.Rate <= 0:
		return errors.Wrapf(ErrInvalidConfig, "frame.rate must be positive, got %g", c.Frame.Rate)
	case c.Transport.Path == "" || !strings.HasPrefix(c.Transport.Path, "/"):
		return errors.Wrapf(ErrInvalidConfig, "transport.path must start with /, got %q", c.Transport.Path)
	}

	return nil
}

// Level returns the slog level of the log section.
func (c Config) Level() (slog.Level, error) {
	var level slog.Level
	err := level.UnmarshalText([]byte(c.Log.Level))
	if err != nil {
		return 0, errors.Wrapf(ErrInvalidConfig, "log.level %q", c.Log.Level)
	}

	return level, nil
}

// Logger returns a text logger writing to w at the configured level.
func (c Config) Logger(w io.Writer) *slog.Logger {
	level, err := c.Level()
	if err != nil {
		level = slog.LevelInfo
	}

	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// Interval is the period of the frame loop.
func (c Config) Interval() time.Duration {
	return time.Duration(float64(time.Second) / c.Frame.Rate)
}

// PipelineOptions translates the pipeline section.
func (c Config) PipelineOptions(logger *slog.Logger) []pipeline.Option {
	return []pipeline.Option{
		pipeline.WithLogger(logger),
		pipeline.WithAutoBuild(c.Pipeline.AutoBuild),
		pipeline.WithBuildConcurrency(c.Pipeline.BuildConcurrency),
	}
}

// DebugOptions translates the debug section.
func (c Config) DebugOptions(logger *slog.Logger) []debug.Option {
	opts := []debug.Option{
		debug.WithLogger(logger),
		debug.WithMaxStackDepth(c.Debug.MaxStackDepth),
		debug.WithMaxSteps(c.Debug.MaxSteps),
	}
	if len(c.Debug.Watches) > 0 {
		opts = append(opts, debug.WithWatches(c.Debug.Watches...))
	}

	return opts
}

// TransportOptions translates the transport section.
func (c Config) TransportOptions(logger *slog.Logger) []transport.Option {
	return []transport.Option{
		transport.WithLogger(logger),
		transport.WithStopOnEntry(c.Debug.StopOnEntry),
	}
}

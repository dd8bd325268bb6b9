// Command shaderpipe builds, draws and serves shader pipeline projects.
package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/askiada/go-shaderpipe/pkg/config"
	"github.com/askiada/go-shaderpipe/pkg/project"
)

var ErrProjectMustBeSet = errors.New("project must be set")

type rootOptions struct {
	configPath  string
	projectPath string
}

func main() {
	err := newRootCmd().ExecuteContext(context.Background())
	if err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:          "shaderpipe",
		Short:        "Build, inspect and debug shader pipelines",
		SilenceUsage: true,
	}
	cmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "configuration file (default "+config.DefaultPath+")")
	cmd.PersistentFlags().StringVarP(&opts.projectPath, "project", "p", "", "pipeline project file")

	cmd.AddCommand(newBuildCmd(opts), newGraphCmd(opts), newServeCmd(opts))

	return cmd
}

// settings loads the configuration and builds the logger writing to the
// command error stream.
func (o *rootOptions) settings(cmd *cobra.Command) (config.Config, *slog.Logger, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return config.Config{}, nil, err
	}

	return cfg, cfg.Logger(cmd.ErrOrStderr()), nil
}

func (o *rootOptions) project() (*project.Project, error) {
	if o.projectPath == "" {
		return nil, ErrProjectMustBeSet
	}

	return project.Load(o.projectPath)
}

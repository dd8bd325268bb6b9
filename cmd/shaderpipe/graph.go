package main

import (
	"fmt"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/askiada/go-shaderpipe/pkg/compiler"
	"github.com/askiada/go-shaderpipe/pkg/device"
	"github.com/askiada/go-shaderpipe/pkg/pipeline"
	"github.com/askiada/go-shaderpipe/pkg/pipeline/drawer"
	"github.com/askiada/go-shaderpipe/pkg/pipeline/measure"
	"github.com/askiada/go-shaderpipe/pkg/registry"
	"github.com/askiada/go-shaderpipe/pkg/sysvar"
)

func newGraphCmd(opts *rootOptions) *cobra.Command {
	var (
		out    string
		frames int
	)

	cmd := &cobra.Command{
		Use:   "graph",
		Short: "Write the pass graph of the project in the DOT language",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := opts.settings(cmd)
			if err != nil {
				return err
			}
			proj, err := opts.project()
			if err != nil {
				return err
			}

			msr := measure.NewDefaultMeasure()
			hooks := pipeline.WithHooks(measure.PipelineMeasure(msr), drawer.PipelineDrawer(drawer.NewDOTDrawer(out), msr))
			pipeOpts := append(cfg.PipelineOptions(logger), hooks, pipeline.WithDevice(device.NewRecorder()))
			pipe, err := pipeline.New(compiler.New(compiler.WithLogger(logger)), registry.New(), pipeOpts...)
			if err != nil {
				return errors.Wrap(err, "unable to create pipeline")
			}

			_, err = proj.Apply(pipe)
			if err != nil {
				_ = pipe.Close()
				return errors.Wrap(err, "unable to apply project")
			}

			err = pipe.BuildAll(cmd.Context())
			if err != nil && !errors.Is(err, pipeline.ErrBuildFailed) {
				_ = pipe.Close()
				return err
			}

			vars := sysvar.New(sysvar.WithLogger(logger))
			for range frames {
				err = vars.Tick(cfg.Interval(), sysvar.InputState{})
				if err != nil {
					logger.Warn("system variables partially updated", "error", err)
				}
				snap := vars.Snapshot()
				_, err = pipe.Execute(cmd.Context(), pipeline.Frame{Index: snap.Frame(), Vars: snap})
				if err != nil {
					_ = pipe.Close()
					return errors.Wrap(err, "unable to execute frame")
				}
			}

			// Closing the pipeline draws the graph.
			err = pipe.Close()
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "graph written to %s\n", out)

			return nil
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "pipeline.dot", "DOT file to write")
	cmd.Flags().IntVar(&frames, "frames", 0, "frames to execute before drawing, colours items by execution time")

	return cmd
}

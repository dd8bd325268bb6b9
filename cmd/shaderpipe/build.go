package main

import (
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/askiada/go-shaderpipe/pkg/compiler"
	"github.com/askiada/go-shaderpipe/pkg/pipeline"
	"github.com/askiada/go-shaderpipe/pkg/pipeline/model"
	"github.com/askiada/go-shaderpipe/pkg/registry"
)

func newBuildCmd(opts *rootOptions) *cobra.Command {
	var validate bool

	cmd := &cobra.Command{
		Use:   "build",
		Short: "Compile every item of the project and print its diagnostics",
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

			comp := compiler.New(compiler.WithValidation(validate), compiler.WithLogger(logger))
			pipe, err := pipeline.New(comp, registry.New(), cfg.PipelineOptions(logger)...)
			if err != nil {
				return errors.Wrap(err, "unable to create pipeline")
			}
			defer pipe.Close()

			_, err = proj.Apply(pipe)
			if err != nil {
				return errors.Wrap(err, "unable to apply project")
			}

			buildErr := pipe.BuildAll(cmd.Context())
			if buildErr != nil && !errors.Is(buildErr, pipeline.ErrBuildFailed) {
				return buildErr
			}

			out := newPrinter(cmd.OutOrStdout())
			built, failed := 0, 0
			for _, ps := range pipe.Passes() {
				for _, id := range ps.Items {
					view, err := pipe.Item(id)
					if err != nil {
						return err
					}
					out.item(ps.Name, view)
					if view.Status.State == model.Failed {
						failed++
						continue
					}
					built++
				}
			}
			out.summary(built, failed)

			return buildErr
		},
	}
	cmd.Flags().BoolVar(&validate, "validate", true, "validate the lowered IR")

	return cmd
}

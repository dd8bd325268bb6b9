package main

import (
	"context"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/askiada/go-shaderpipe/pkg/compiler"
	"github.com/askiada/go-shaderpipe/pkg/debug"
	"github.com/askiada/go-shaderpipe/pkg/device"
	"github.com/askiada/go-shaderpipe/pkg/engine"
	"github.com/askiada/go-shaderpipe/pkg/pipeline"
	"github.com/askiada/go-shaderpipe/pkg/registry"
	"github.com/askiada/go-shaderpipe/pkg/sysvar"
	"github.com/askiada/go-shaderpipe/pkg/transport"
	"github.com/askiada/go-shaderpipe/pkg/watch"
)

func newServeCmd(opts *rootOptions) *cobra.Command {
	var listen string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the frame loop and serve debug sessions over a websocket",
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
			if listen != "" {
				cfg.Transport.Listen = listen
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			pipeOpts := append(cfg.PipelineOptions(logger), pipeline.WithDevice(device.NewRecorder()))
			pipe, err := pipeline.New(compiler.New(compiler.WithLogger(logger)), registry.New(), pipeOpts...)
			if err != nil {
				return errors.Wrap(err, "unable to create pipeline")
			}

			applied, err := proj.Apply(pipe)
			if err != nil {
				_ = pipe.Close()
				return errors.Wrap(err, "unable to apply project")
			}
			err = pipe.BuildAll(ctx)
			if err != nil && !errors.Is(err, pipeline.ErrBuildFailed) {
				_ = pipe.Close()
				return err
			}

			vars := sysvar.New(sysvar.WithLogger(logger))
			dbg, err := debug.New(pipe, vars, cfg.DebugOptions(logger)...)
			if err != nil {
				_ = pipe.Close()
				return errors.Wrap(err, "unable to create debugger")
			}

			srv, err := transport.New(dbg, cfg.TransportOptions(logger)...)
			if err != nil {
				_ = pipe.Close()
				return errors.Wrap(err, "unable to create debug server")
			}

			engOpts := []engine.Option{engine.WithLogger(logger), engine.WithDebugger(dbg)}

			var watcher *watch.Watcher
			if cfg.Watch.Enabled {
				watcher, err = watch.New(watch.WithLogger(logger))
				if err != nil {
					_ = pipe.Close()
					return errors.Wrap(err, "unable to create watcher")
				}
				defer watcher.Close()

				for path, refs := range applied.Sources {
					for _, ref := range refs {
						err = watcher.Add(path, ref.Item, ref.Stage)
						if err != nil {
							logger.Warn("source not watched", "path", path, "error", err)
						}
					}
				}
				engOpts = append(engOpts, engine.WithEdits(watcher.Edits()))
			}

			eng, err := engine.New(pipe, vars, engOpts...)
			if err != nil {
				_ = pipe.Close()
				return errors.Wrap(err, "unable to create engine")
			}

			mux := http.NewServeMux()
			mux.Handle(cfg.Transport.Path, srv)
			httpSrv := &http.Server{
				Addr:        cfg.Transport.Listen,
				Handler:     mux,
				BaseContext: func(net.Listener) context.Context { return ctx },
			}

			g, gctx := errgroup.WithContext(ctx)
			g.Go(func() error {
				logger.Info("serving debug sessions", "addr", cfg.Transport.Listen, "path", cfg.Transport.Path)
				err := httpSrv.ListenAndServe()
				if errors.Is(err, http.ErrServerClosed) {
					return nil
				}
				return errors.Wrap(err, "unable to serve")
			})
			g.Go(func() error {
				return eng.Run(gctx, cfg.Interval())
			})
			if watcher != nil {
				g.Go(func() error {
					return watcher.Run(gctx)
				})
			}
			g.Go(func() error {
				<-gctx.Done()
				logger.Info("shutting down")
				_ = srv.Close()
				return httpSrv.Close()
			})

			err = g.Wait()
			destroyErr := eng.Destroy(context.WithoutCancel(ctx))
			if err != nil {
				return err
			}

			return destroyErr
		},
	}
	cmd.Flags().StringVar(&listen, "listen", "", "address to listen on, overrides the configuration")

	return cmd
}

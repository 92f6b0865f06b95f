package main

import (
	"context"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/jgrana2/prompt-manager/internal/web"
)

func newServeCmd(opts *bootOptions) *cobra.Command {
	var addr string
	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the web UI",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(ctx context.Context, a *app) error {
				cfg := web.DefaultConfig()
				if a.cfg.Server.ListenAddr != "" {
					cfg.ListenAddr = a.cfg.Server.ListenAddr
				}
				if addr != "" {
					cfg.ListenAddr = addr
				}

				hub := web.NewHub(a.logger)
				ctrl, err := a.controller(hub, web.Inputs)
				if err != nil {
					return err
				}
				srv := web.NewServer(cfg, ctrl, hub, a.metrics, a.logger)

				g, gctx := errgroup.WithContext(ctx)
				g.Go(srv.Start)
				g.Go(func() error {
					<-gctx.Done()
					shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
					defer cancel()
					return srv.Stop(shutdownCtx)
				})
				cmd.Printf("Serving on http://%s\n", cfg.ListenAddr)
				err = g.Wait()
				a.logger.Info("web server stopped", zap.Error(err))
				return err
			})
		},
	}
	serveCmd.Flags().StringVar(&addr, "addr", "", "Listen address (default from config server.listen_addr)")
	return serveCmd
}

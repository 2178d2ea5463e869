package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/register-extractor/internal/server"
)

func newServeCmd(root *rootOptions) *cobra.Command {
	var addr, grpcAddr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the upload page and extraction API over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := newApp(root, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			if addr == "" {
				addr = a.cfg.Server.HTTPAddr
			}
			if grpcAddr == "" {
				grpcAddr = a.cfg.Server.GRPCAddr
			}

			ctx, cancel := context.WithCancel(ctx)
			defer cancel()

			if grpcAddr != "" {
				go func() {
					if err := server.ServeHealth(ctx, grpcAddr, a.logger); err != nil {
						a.logger.Error("grpc.health.failed", "addr", grpcAddr, "error", err)
						cancel()
					}
				}()
			}

			h := server.NewHandler(a.proc, a.exporter, a.maxUploadBytes(), a.logger)
			return server.ServeHTTP(ctx, addr, server.NewRouter(h, a.logger), a.logger)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "HTTP listen address (default HTTP_ADDR)")
	cmd.Flags().StringVar(&grpcAddr, "grpc-addr", "", "gRPC health listen address (default GRPC_ADDR, empty disables)")
	return cmd
}

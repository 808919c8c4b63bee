package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/rshade/lcamatch/internal/httpapi"
	"github.com/rshade/lcamatch/internal/logging"
	"github.com/rshade/lcamatch/internal/service"
)

func newServeCmd(a *app) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API",
		Long:  "Serve the lcamatch operations over HTTP until interrupted",
		Example: `  # Listen on the configured address
  lcamatch serve

  # Listen on a specific port
  lcamatch serve --addr 127.0.0.1:9090`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if addr == "" {
				addr = a.cfg.Server.Addr
			}
			return a.withService(cmd, func(ctx context.Context, svc *service.Service) error {
				ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
				defer stop()

				logging.FromContext(ctx).Info().
					Ctx(ctx).
					Str("component", "cli").
					Str("operation", "serve").
					Str("addr", addr).
					Msg("serving HTTP API")
				return httpapi.Serve(ctx, addr, httpapi.NewRouter(svc, a.logs.Logger))
			})
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default from config)")
	return cmd
}

package commands

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dyluth/sagastore/internal/health"
	"github.com/dyluth/sagastore/internal/printer"
	"github.com/spf13/cobra"
)

func newServeCmd(root *rootOptions) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve health and diagnostics endpoints",
		Long: `Serve /healthz (store connectivity) and /probe (repository
diagnostics) until interrupted.

Examples:
  sagastore serve
  sagastore serve --addr 127.0.0.1:9090`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := openRuntime(cmd, root)
			if err != nil {
				return err
			}
			defer rt.Close()

			if addr == "" {
				addr = rt.cfg.Health.Addr
			}

			server := health.NewServer(addr, rt.store, rt.repo, rt.log)
			if err := server.Start(); err != nil {
				return printer.ErrorWithContext(
					"failed to start health server",
					err.Error(),
					map[string]string{"Address": addr},
					[]string{"Choose a free address with --addr or health.addr in sagastore.yml"},
				)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			printer.Success("Serving health endpoints on %s\n", server.Addr())
			printer.Info("Press Ctrl+C to stop\n")
			<-ctx.Done()

			printer.Step("Shutting down health server\n")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return server.Shutdown(shutdownCtx)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (overrides health.addr)")
	return cmd
}

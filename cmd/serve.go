// File: cmd/serve.go
package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xkilldash9x/pagekit/internal/fixtures"
)

const shutdownTimeout = 15 * time.Second

func newServeCmd(a *app) *cobra.Command {
	var port int
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the seeded mock application until interrupted",
		Long: `Starts the mock database and application server exactly as the test
fixtures do, so flows can be developed against them by hand.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			var opts []fixtures.EnvOption
			if cmd.Flags().Changed("port") {
				opts = append(opts, fixtures.WithPort(port))
			}
			env, err := fixtures.StartEnvironment(ctx, a.cfg, a.logger, opts...)
			if err != nil {
				return fmt.Errorf("failed to start mock environment: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Mock application listening on %s\n", env.BaseURL())

			<-ctx.Done()
			a.logger.Info("Shutting down mock environment", zap.String("cause", context.Cause(ctx).Error()))

			shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
			defer cancel()
			return env.Close(shutdownCtx)
		},
	}
	cmd.Flags().IntVarP(&port, "port", "p", 0, "listen port (default from config, 0 picks a free port)")
	return cmd
}

// File: cmd/root.go
package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xkilldash9x/pagekit/internal/config"
	"github.com/xkilldash9x/pagekit/internal/observability"
)

// app carries what PersistentPreRunE resolves to the subcommands.
type app struct {
	cfgFile  string
	env      string
	engine   string
	headless bool

	cfg    *config.Config
	logger *zap.Logger
}

// NewRootCmd builds the command tree. Each call returns an independent tree,
// so tests never share flag state.
func NewRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:     "pagekit",
		Short:   "pagekit runs self-healing UI flows against a mock or real application.",
		Version: Version,
		// Usage is noise on a failed flow; the error says what went wrong.
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.initialize(cmd)
		},
	}

	flags := root.PersistentFlags()
	flags.StringVarP(&a.cfgFile, "config", "c", "", "YAML file merged over the environment profile")
	flags.StringVarP(&a.env, "env", "e", "", "environment profile: dev, qa or prod (default $PAGEKIT_ENV or dev)")
	flags.StringVar(&a.engine, "engine", "", "browser engine override: chromedp or playwright")
	flags.BoolVar(&a.headless, "headless", false, "run the browser headless")
	root.SetVersionTemplate(`{{printf "pagekit version %s\n" .Version}}`)

	root.AddCommand(newServeCmd(a), newSmokeCmd(a), newVersionCmd())
	return root
}

func (a *app) initialize(cmd *cobra.Command) error {
	cfg, err := config.Load(config.LoadOptions{Env: a.env, File: a.cfgFile})
	if err != nil {
		// Still give the failure somewhere structured to go.
		observability.InitializeLogger(config.LoggerConfig{Level: "info", Format: "console", ServiceName: "pagekit"})
		return err
	}
	if cmd.Flags().Changed("engine") {
		cfg.SetBrowserEngine(a.engine)
	}
	if cmd.Flags().Changed("headless") {
		cfg.SetBrowserHeadless(a.headless)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	observability.InitializeLogger(cfg.Logger())
	a.cfg = cfg
	a.logger = observability.GetLogger()
	a.logger.Debug("Starting pagekit", zap.String("version", Version), zap.String("env", cfg.Env()))
	return nil
}

// Execute runs the root command under ctx. Failures are logged here; the
// caller only decides the exit code.
func Execute(ctx context.Context) error {
	defer observability.Sync()
	if err := NewRootCmd().ExecuteContext(ctx); err != nil {
		observability.GetLogger().Error("Command execution failed", zap.Error(err))
		return err
	}
	return nil
}

// Package cmd defines and implements the CLI commands for the urlprobe executable.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/urlprobe/internal/app"
	"github.com/JakeFAU/urlprobe/internal/config"
	"github.com/JakeFAU/urlprobe/internal/logging"
	"github.com/JakeFAU/urlprobe/internal/probe"
)

// appKeyType is the key for storing the App in the context.
type appKeyType string

const appKey appKeyType = "app"

// App defines the application interface that commands use.
// This allows us to inject a fake app during tests.
type App interface {
	Run(ctx context.Context, args []string) (probe.Summary, error)
	Logger() *zap.Logger
	Close()
}

// newApp is the application factory. It's a variable so tests can replace it.
var newApp = func(cfg config.Config, logger *zap.Logger) (App, error) {
	return app.New(cfg, logger, app.Deps{})
}

// newRootCmd creates and configures the root command.
func newRootCmd() *cobra.Command {
	var cfgFile string

	cmd := &cobra.Command{
		Use:   "urlprobe",
		Short: "Fetch a batch of URLs concurrently and report what came back.",
		Long: `urlprobe issues one GET per URL with bounded concurrency, retries
transient failures, and writes a JSON array with the status code, declared
Content-Length and counted body length of every URL, in input order.`,
		SilenceUsage:  true,
		SilenceErrors: true,

		// Runs after flags are parsed and before the subcommand's RunE.
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(cfgFile, cmd.Flags())
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			logger, err := logging.New(logging.Options{
				Development: cfg.Logging.Development,
				Verbose:     cfg.Logging.Verbose,
				Level:       cfg.Logging.Level,
			})
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}
			appInstance, err := newApp(cfg, logger)
			if err != nil {
				_ = logger.Sync()
				return fmt.Errorf("failed to initialize application services: %w", err)
			}

			ctx := context.WithValue(cmd.Context(), appKey, appInstance)
			cmd.SetContext(ctx)
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (YAML)")
	cmd.PersistentFlags().BoolP("verbose", "v", false, "enable debug logging")

	cmd.AddCommand(newFetchCmd())

	return cmd
}

// Execute is the main entry point. It cancels the run on SIGINT or SIGTERM.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err == nil {
		return
	}

	logger, lerr := logging.New(logging.Options{})
	if lerr != nil {
		fmt.Fprintf(os.Stderr, "command execution failed: %v\n", err)
		os.Exit(1)
	}
	logger.Fatal("Command execution failed", zap.Error(err))
}

// shutdown releases the app's clients and flushes its logger. Cobra skips
// PersistentPostRun when RunE fails, so commands defer this themselves.
func shutdown(appInstance App) {
	appInstance.Close()
	_ = appInstance.Logger().Sync()
}

func resolveApp(ctx context.Context) (App, error) {
	appInstance, ok := ctx.Value(appKey).(App)
	if !ok || appInstance == nil {
		return nil, errors.New("application services not initialized")
	}
	return appInstance, nil
}

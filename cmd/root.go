package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/doublexl-digital/cloudflare-crawler/internal/app"
	"github.com/doublexl-digital/cloudflare-crawler/internal/config"
	"github.com/doublexl-digital/cloudflare-crawler/internal/logging"
)

var cfgFile string

// appKeyType is the key for storing the App in the context.
type appKeyType string

const appKey appKeyType = "app"

// App is the slice of the application the commands use. It lets tests
// inject a stub through the newApp factory.
type App interface {
	Run(ctx context.Context) error
	Close()
	Logger() *zap.Logger
}

// newApp is the application factory. It is a variable so tests can
// replace it.
var newApp = func(cfg config.Config, logger *zap.Logger) (App, error) {
	return app.New(cfg, logger)
}

// newRootCmd creates and configures the root command.
func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "crawler",
		Short: "A distributed crawl worker for the Cloudflare research pipeline.",
		Long: `crawler is the fetch worker of a distributed crawling pipeline.
It leases batches of URLs from the central coordinator API, fetches and
parses each page under a bounded concurrency budget, and reports every
outcome back before asking for more work.`,
		SilenceUsage: true,

		// Runs after flags are parsed but before the subcommand's RunE:
		// load config, build the logger, and inject the application.
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			logger, err := logging.New(cfg.LogLevel)
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}
			appInstance, err := newApp(cfg, logger)
			if err != nil {
				return fmt.Errorf("initialize application services: %w", err)
			}

			// Store the app instance in the context for subcommands.
			cmd.SetContext(context.WithValue(cmd.Context(), appKey, appInstance))
			return nil
		},

		// Shuts services down gracefully once the subcommand returns.
		PersistentPostRun: func(cmd *cobra.Command, _ []string) {
			if appInstance, ok := cmd.Context().Value(appKey).(App); ok && appInstance != nil {
				appInstance.Close()
			}
		},
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (all keys also reachable via environment variables)")
	cmd.AddCommand(newCrawlCmd())

	return cmd
}

// Execute is the main entry point. SIGINT and SIGTERM cancel the command
// context so an in-flight run can wind down.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return newRootCmd().ExecuteContext(ctx)
}

// Package cmd defines and implements the CLI commands for the crawler
// executable.
package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

// newCrawlCmd creates and configures the 'crawl' subcommand, which runs
// the worker until the coordinator reports no more work.
func newCrawlCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "crawl",
		Short: "Starts the crawl worker",
		Long: `Requests batches of URLs from the coordinator, crawls them with
bounded concurrency, and reports every outcome back. The worker exits on
its own once the coordinator has no work left.`,

		RunE: runCrawlCommand,
	}
	return cmd
}

func runCrawlCommand(cmd *cobra.Command, _ []string) error {
	appInstance, err := resolveApp(cmd.Context())
	if err != nil {
		return err
	}

	if err := appInstance.Run(cmd.Context()); err != nil {
		// An interrupt is a normal way to stop the worker, not a
		// command failure.
		if errors.Is(err, context.Canceled) {
			appInstance.Logger().Info("crawl stopped by signal")
			return nil
		}
		return fmt.Errorf("run crawler: %w", err)
	}

	appInstance.Logger().Info("crawl command finished")
	return nil
}

func resolveApp(ctx context.Context) (App, error) {
	appInstance, ok := ctx.Value(appKey).(App)
	if !ok || appInstance == nil {
		return nil, errors.New("application services not initialized")
	}
	return appInstance, nil
}

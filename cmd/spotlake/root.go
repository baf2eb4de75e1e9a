// Command spotlake is the single binary for every stage of the pipeline:
// collect, aggregate-hour, aggregate-day, aggregate-month, summarize, and
// serve (a long-running process with an internal scheduler and /health,
// /metrics). An external trigger platform (cron, a queue consumer) is
// expected to invoke the one-shot subcommands; serve is for deployments
// with no such platform.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kb9wtx/spotlake/pkg/config"
	"github.com/kb9wtx/spotlake/pkg/logging"
	"github.com/kb9wtx/spotlake/pkg/metrics"
	"github.com/kb9wtx/spotlake/pkg/objectstore"
	"github.com/kb9wtx/spotlake/pkg/objectstore/httpstore"
	"github.com/kb9wtx/spotlake/pkg/objectstore/memory"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "spotlake",
	Short: "POTA spot ingest, aggregation, and rollup pipeline",
	Long:  "Collects Parks On The Air activator spots, normalizes them, and rolls them up into hourly/daily/monthly aggregates with a manifest and summary reports.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := logging.Init(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// buildStore constructs the configured object-store backend. "memory" is a
// process-local store useful only for the serve command's self-test and for
// local development — every real deployment uses "http" against an
// S3-compatible gateway.
func buildStore() (objectstore.Store, error) {
	switch cfg.Store.Driver {
	case "http":
		if cfg.Store.BaseURL == "" {
			return nil, fmt.Errorf("store.base_url is required when store.driver is \"http\"")
		}
		return httpstore.New(cfg.Store.BaseURL), nil
	case "memory", "":
		return memory.New(), nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
}

// buildMetrics registers Prometheus collectors once per process.
func buildMetrics() *metrics.Metrics {
	return metrics.New()
}

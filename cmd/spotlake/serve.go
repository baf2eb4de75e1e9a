package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kb9wtx/spotlake/pkg/collector"
	"github.com/kb9wtx/spotlake/pkg/geo"
	"github.com/kb9wtx/spotlake/pkg/httpx"
	"github.com/kb9wtx/spotlake/pkg/manifest"
	"github.com/kb9wtx/spotlake/pkg/rollup"
	"github.com/kb9wtx/spotlake/pkg/scheduler"
	"github.com/kb9wtx/spotlake/pkg/summary"
)

const shutdownTimeout = 30 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run as a long-lived process with an internal scheduler and /health, /metrics",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	store, err := buildStore()
	if err != nil {
		return err
	}
	m := buildMetrics()
	pub := manifest.New(store, func() string { return time.Now().UTC().Format(time.RFC3339) })

	col := collector.New(cfg.Upstream.URL, store, geo.Resolver{}, zap.L(), m)
	agg := rollup.New(store, pub, zap.L(), m)
	sum := summary.New(store, pub, zap.L(), m)

	jobs := []scheduler.Job{
		{
			Name:       "collect",
			Interval:   cfg.Schedule.CollectInterval,
			Run:        col.Collect,
			MaxRetries: 0, // matches the "no retry within a tick" policy
		},
		{
			Name:       "aggregate-hour",
			Interval:   cfg.Schedule.AggregateHourInterval,
			Run:        func(ctx context.Context) error { return agg.AggregateHour(ctx, scheduler.PreviousHour(time.Now())) },
			MaxRetries: 2,
			BaseDelay:  30 * time.Second,
		},
		{
			Name:       "aggregate-day",
			Interval:   cfg.Schedule.AggregateDayInterval,
			Run:        func(ctx context.Context) error { return agg.AggregateDay(ctx, scheduler.PreviousDay(time.Now())) },
			MaxRetries: 2,
			BaseDelay:  30 * time.Second,
		},
		{
			Name:       "aggregate-month",
			Interval:   cfg.Schedule.AggregateMonthInterval,
			Run:        func(ctx context.Context) error { return agg.AggregateMonth(ctx, scheduler.PreviousMonth(time.Now())) },
			MaxRetries: 2,
			BaseDelay:  30 * time.Second,
		},
		{
			Name:       "summarize",
			Interval:   cfg.Schedule.SummarizeInterval,
			Run:        func(ctx context.Context) error { return sum.Run(ctx, time.Now()) },
			MaxRetries: 1,
			BaseDelay:  15 * time.Second,
		},
	}

	sched := scheduler.New(jobs, zap.L(), m)
	sched.Start()
	zap.L().Info("scheduler started", zap.Int("jobCount", len(jobs)))

	httpServer := httpx.NewServer(fmt.Sprintf(":%d", cfg.Server.Port))
	go func() {
		zap.L().Info("http server starting", zap.Int("port", cfg.Server.Port))
		if err := httpServer.ListenAndServe(); err != nil {
			zap.L().Info("http server stopped", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	zap.L().Info("shutdown signal received")
	sched.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		zap.L().Warn("http server shutdown error", zap.Error(err))
	}

	zap.L().Info("spotlake exited cleanly")
	return nil
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

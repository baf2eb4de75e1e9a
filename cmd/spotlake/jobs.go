package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kb9wtx/spotlake/pkg/collector"
	"github.com/kb9wtx/spotlake/pkg/geo"
	"github.com/kb9wtx/spotlake/pkg/manifest"
	"github.com/kb9wtx/spotlake/pkg/objectstore"
	"github.com/kb9wtx/spotlake/pkg/rollup"
	"github.com/kb9wtx/spotlake/pkg/scheduler"
	"github.com/kb9wtx/spotlake/pkg/summary"
)

var (
	jobTime    string
	jobDryRun  bool
	jobVerbose bool
)

func addJobFlags(cmd *cobra.Command, timeFlag bool) {
	if timeFlag {
		cmd.Flags().StringVar(&jobTime, "time", "", "RFC3339 timestamp identifying the bucket to run against (defaults to the previous bucket)")
	}
	cmd.Flags().BoolVar(&jobDryRun, "dry-run", false, "print what the job would do (target bucket, upstream URL, or report names) and exit without writing")
	cmd.Flags().BoolVar(&jobVerbose, "verbose", false, "log the resolved target bucket at info level before an aggregation runs")
}

var collectCmd = &cobra.Command{
	Use:   "collect",
	Short: "Run one Collector tick and exit",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := buildStore()
		if err != nil {
			return err
		}
		m := buildMetrics()
		c := collector.New(cfg.Upstream.URL, store, geo.Resolver{}, zap.L(), m)

		if jobDryRun {
			fmt.Printf("would fetch %s and write one raw capture object\n", cfg.Upstream.URL)
			return nil
		}
		return c.Collect(cmd.Context())
	},
}

var aggregateHourCmd = &cobra.Command{
	Use:   "aggregate-hour",
	Short: "Run one hourly aggregation",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runAggregation(cmd.Context(), manifest.Hourly, scheduler.PreviousHour, hourStart, func(a *rollup.Aggregator, ctx context.Context, t time.Time) error {
			return a.AggregateHour(ctx, t)
		})
	},
}

var aggregateDayCmd = &cobra.Command{
	Use:   "aggregate-day",
	Short: "Run one daily aggregation",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runAggregation(cmd.Context(), manifest.Daily, scheduler.PreviousDay, dayStart, func(a *rollup.Aggregator, ctx context.Context, t time.Time) error {
			return a.AggregateDay(ctx, t)
		})
	},
}

var aggregateMonthCmd = &cobra.Command{
	Use:   "aggregate-month",
	Short: "Run one monthly aggregation",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runAggregation(cmd.Context(), manifest.Monthly, scheduler.PreviousMonth, monthStart, func(a *rollup.Aggregator, ctx context.Context, t time.Time) error {
			return a.AggregateMonth(ctx, t)
		})
	},
}

func hourStart(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), 0, 0, 0, time.UTC)
}

func dayStart(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func monthStart(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}

// runAggregation resolves the target bucket — the previous bucket relative
// to now, or the bucket containing --time when given — then runs the
// aggregator against it.
func runAggregation(ctx context.Context, level manifest.Level, previousBucket, containingBucket func(time.Time) time.Time, run func(*rollup.Aggregator, context.Context, time.Time) error) error {
	store, err := buildStore()
	if err != nil {
		return err
	}

	var bucket time.Time
	if jobTime != "" {
		t, err := time.Parse(time.RFC3339, jobTime)
		if err != nil {
			return fmt.Errorf("parse --time: %w", err)
		}
		bucket = containingBucket(t)
	} else {
		bucket = previousBucket(time.Now())
	}

	if jobDryRun {
		fmt.Printf("would aggregate %s bucket %s\n", level, bucket.Format(time.RFC3339))
		return nil
	}

	pub := manifest.New(store, func() string { return time.Now().UTC().Format(time.RFC3339) })
	m := buildMetrics()
	agg := rollup.New(store, pub, zap.L(), m)

	if jobVerbose {
		zap.L().Info("running aggregation", zap.String("level", string(level)), zap.Time("bucket", bucket))
	}
	return run(agg, ctx, bucket)
}

var summarizeCmd = &cobra.Command{
	Use:   "summarize",
	Short: "Run one Summary Builder pass",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := buildStore()
		if err != nil {
			return err
		}

		if jobDryRun {
			fmt.Println("would publish stats_24h, stats_7d, stats_30d, all_time, time_of_day, day_of_week, trends, top_entities")
			return nil
		}

		pub := manifest.New(store, func() string { return time.Now().UTC().Format(time.RFC3339) })
		m := buildMetrics()
		b := summary.New(store, pub, zap.L(), m)
		return b.Run(cmd.Context(), time.Now())
	},
}

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Confirm every path referenced by the manifest resolves in the object store",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := buildStore()
		if err != nil {
			return err
		}
		return runValidate(cmd.Context(), store)
	},
}

func runValidate(ctx context.Context, store objectstore.Store) error {
	pub := manifest.New(store, func() string { return time.Now().UTC().Format(time.RFC3339) })
	m, err := pub.Load(ctx)
	if err != nil {
		return fmt.Errorf("load manifest: %w", err)
	}

	var missing []string
	check := func(path string) {
		obj, err := store.Get(ctx, path)
		if err != nil {
			missing = append(missing, fmt.Sprintf("%s: %v", path, err))
			return
		}
		if obj == nil {
			missing = append(missing, fmt.Sprintf("%s: not found", path))
		}
	}

	for _, e := range m.HourlyE {
		check(e.Path)
	}
	for _, e := range m.DailyE {
		check(e.Path)
	}
	for _, e := range m.MonthlyE {
		check(e.Path)
	}

	total := len(m.HourlyE) + len(m.DailyE) + len(m.MonthlyE)
	if len(missing) > 0 {
		fmt.Printf("FAIL: %d/%d manifest entries missing from the store\n", len(missing), total)
		for _, msg := range missing {
			fmt.Println("  " + msg)
		}
		return fmt.Errorf("%d manifest entries unresolved", len(missing))
	}

	fmt.Printf("PASS: all %d manifest entries resolve\n", total)
	return nil
}

func init() {
	addJobFlags(collectCmd, false)
	addJobFlags(aggregateHourCmd, true)
	addJobFlags(aggregateDayCmd, true)
	addJobFlags(aggregateMonthCmd, true)
	addJobFlags(summarizeCmd, false)

	rootCmd.AddCommand(collectCmd)
	rootCmd.AddCommand(aggregateHourCmd)
	rootCmd.AddCommand(aggregateDayCmd)
	rootCmd.AddCommand(aggregateMonthCmd)
	rootCmd.AddCommand(summarizeCmd)
	rootCmd.AddCommand(validateCmd)
}

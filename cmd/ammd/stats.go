package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"ammcore/internal/aggregate"
)

func newStatsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Aggregate the event journal into window metrics",
	}
	cmd.Flags().String("window", "5m", "aggregation window (e.g. 1m, 5m, 1h)")
	cmd.Flags().Int("batch-size", 1000, "windows per sink write")
	cmd.Flags().String("stats-state", "./data/stats_state.json", "progress state file when no Postgres DSN is set")
	cmd.Flags().String("recompute-from", "", "recompute from timestamp (unix seconds or RFC3339)")

	cmd.RunE = func(cmd *cobra.Command, _ []string) error {
		return withApp(cmd, appOptions{}, func(ctx context.Context, a *app) error {
			if a.cfg.Journal == "" {
				return fmt.Errorf("journal path is required")
			}
			windowSeconds := uint64(a.cfg.Window.Seconds())

			var (
				sink  aggregate.MetricsSink
				state aggregate.StateStore
			)
			if a.pg != nil {
				sink = a.pg
				state = aggregate.NewDBStateStore(a.pg, windowSeconds)
			} else {
				sink = aggregate.NewJSONSink(a.out)
				state = &aggregate.FileStateStore{Path: a.cfg.StatsState, WindowSeconds: windowSeconds}
			}

			agg := aggregate.NewAggregator(aggregate.Config{
				WindowSeconds: windowSeconds,
				BatchSize:     a.cfg.BatchSize,
				RecomputeFrom: a.cfg.RecomputeFrom,
				StateStore:    state,
			}, sink, a.store, a.logger)

			a.logger.Info("aggregate start",
				zap.String("journal", a.cfg.Journal),
				zap.Uint64("window_seconds", windowSeconds),
				zap.String("pg_dsn", redactDSN(a.cfg.PGDSN)),
				zap.Uint64("recompute_from", a.cfg.RecomputeFrom),
			)

			sum, err := agg.Run(ctx, a.cfg.Journal)
			if err != nil {
				return err
			}
			if a.pg != nil {
				return a.print(sum)
			}
			return nil
		})
	}
	return cmd
}

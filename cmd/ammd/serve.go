package main

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"ammcore/internal/api"
	"ammcore/internal/telemetry"
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve pool operations over HTTP",
	}
	cmd.Flags().String("listen", ":8080", "HTTP listen address")

	cmd.RunE = func(cmd *cobra.Command, _ []string) error {
		reg := prometheus.NewRegistry()
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		metrics := telemetry.NewMetrics(reg)

		return withApp(cmd, appOptions{persist: true, observer: metrics}, func(ctx context.Context, a *app) error {
			pools, err := a.engine.Pools(ctx)
			if err != nil {
				return err
			}
			for _, pool := range pools {
				metrics.ObservePool(pool)
			}

			srv := api.NewServer(api.Config{
				Listen:     a.cfg.Listen,
				Registerer: reg,
				Gatherer:   reg,
			}, a.engine, a.logger)

			a.logger.Info("serve start",
				zap.String("listen", a.cfg.Listen),
				zap.String("store", a.cfg.Store),
				zap.Int("pools", len(pools)),
			)
			return srv.Run(ctx)
		})
	}
	return cmd
}

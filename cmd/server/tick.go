package main

import (
	"context"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newTickCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "tick",
		Short: "Run a single due-check pass and exit",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, zapLogger, err := loadConfig()
			if err != nil {
				return err
			}
			defer zapLogger.Sync()

			a, err := bootstrap(cmd.Context(), cfg, zapLogger)
			defer func() {
				if a != nil {
					_ = a.manager.Shutdown(context.Background())
				}
			}()
			if err != nil {
				return err
			}

			a.monitor.Refresh(cmd.Context())
			ctx, cancel := context.WithTimeout(cmd.Context(), cfg.Scheduler.Interval)
			defer cancel()

			res, err := a.newScheduler().Tick(ctx)
			if err != nil {
				return err
			}
			zapLogger.Info("tick finished",
				zap.Int("fetched", res.Fetched),
				zap.Int("due", res.Due),
				zap.Int("triggered", res.Triggered),
				zap.Int("skipped", res.Skipped),
				zap.Int("stale", res.Stale),
				zap.Int("failed", res.Failed))
			return nil
		},
	}
}

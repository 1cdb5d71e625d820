package main

import (
	"github.com/spf13/cobra"

	pgInfra "github.com/fastygo/followup/internal/infrastructure/postgres"
)

func newMigrateCommand() *cobra.Command {
	var (
		down  bool
		steps int
	)
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply or roll back the postgres reminders schema",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, zapLogger, err := loadConfig()
			if err != nil {
				return err
			}
			defer zapLogger.Sync()

			direction := pgInfra.DirectionUp
			if down {
				direction = pgInfra.DirectionDown
			}
			return pgInfra.Migrate(cfg, direction, steps, zapLogger)
		},
	}
	cmd.Flags().BoolVar(&down, "down", false, "roll migrations back instead of applying them")
	cmd.Flags().IntVar(&steps, "steps", 0, "number of migrations to move (0 = all)")
	return cmd
}

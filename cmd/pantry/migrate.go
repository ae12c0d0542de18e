package main

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/platinummonkey/pantry/pkg/storage/sqlstore"
)

func migrateCommand() *cli.Command {
	return &cli.Command{
		Name:  "migrate",
		Usage: "apply pending database migrations",
		Action: func(cCtx *cli.Context) error {
			cfg, logger, err := setup(cCtx)
			if err != nil {
				return err
			}

			store, err := sqlstore.Open(cfg.StorageConfig())
			if err != nil {
				return fmt.Errorf("failed to open database: %w", err)
			}
			defer store.Close()

			applied, err := store.Migrate(cCtx.Context)
			if err != nil {
				return err
			}
			if len(applied) == 0 {
				logger.Info("No migrations to apply")
				return nil
			}
			logger.WithField("versions", applied).Infof("Applied %d migrations", len(applied))
			return nil
		},
	}
}

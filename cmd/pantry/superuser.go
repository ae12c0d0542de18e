package main

import (
	"errors"
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/platinummonkey/pantry/pkg/auth"
	"github.com/platinummonkey/pantry/pkg/storage"
	"github.com/platinummonkey/pantry/pkg/storage/sqlstore"
)

const (
	flagEmail    = "email"
	flagPassword = "password"
)

func createSuperuserCommand() *cli.Command {
	return &cli.Command{
		Name:  "create-superuser",
		Usage: "create an active staff account with every permission",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     flagEmail,
				Required: true,
				EnvVars:  []string{"PANTRY_SUPERUSER_EMAIL"},
			},
			&cli.StringFlag{
				Name:     flagPassword,
				Required: true,
				EnvVars:  []string{"PANTRY_SUPERUSER_PASSWORD"},
			},
		},
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

			login := auth.NewLoginService(store, store, auth.NewBcryptHasher(cfg.Auth.BcryptCost))
			user, err := login.RegisterSuperuser(cCtx.Context, cCtx.String(flagEmail), cCtx.String(flagPassword))
			if errors.Is(err, storage.ErrConflict) {
				return fmt.Errorf("a user with email %s already exists", cCtx.String(flagEmail))
			}
			if err != nil {
				return err
			}

			logger.WithField("user_id", user.ID).Info("Superuser created")
			return nil
		},
	}
}

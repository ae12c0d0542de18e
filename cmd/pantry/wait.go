package main

import (
	"context"
	"fmt"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/platinummonkey/pantry/pkg/storage/sqlstore"
)

const flagTimeout = "timeout"

func waitForDBCommand() *cli.Command {
	return &cli.Command{
		Name:  "wait-for-db",
		Usage: "block until the database accepts connections",
		Flags: []cli.Flag{
			&cli.DurationFlag{
				Name:  flagTimeout,
				Usage: "give up after this long; 0 waits forever",
			},
		},
		Action: func(cCtx *cli.Context) error {
			cfg, _, err := setup(cCtx)
			if err != nil {
				return err
			}

			ctx, cancel := signalContext(cCtx.Context)
			defer cancel()
			if timeout := cCtx.Duration(flagTimeout); timeout > 0 {
				var cancelTimeout context.CancelFunc
				ctx, cancelTimeout = context.WithTimeout(ctx, timeout)
				defer cancelTimeout()
			}

			out := cCtx.App.Writer
			fmt.Fprintln(out, "Waiting for database...")
			err = sqlstore.WaitForDB(ctx, cfg.StorageConfig(), time.Second, func(error) {
				fmt.Fprintln(out, "Database unavailable, waiting 1 second...")
			})
			if err != nil {
				return err
			}
			fmt.Fprintln(out, "Database available!")
			return nil
		},
	}
}

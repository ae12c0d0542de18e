package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/platinummonkey/pantry/pkg/config"
	"github.com/platinummonkey/pantry/pkg/observability"
)

// version is set at build time with -ldflags "-X main.version=..."
var version = "dev"

const flagConfig = "config"

func main() {
	app := newApp()
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:    "pantry",
		Usage:   "recipe catalog API",
		Version: version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    flagConfig,
				Aliases: []string{"c"},
				EnvVars: []string{config.ConfigFileEnv},
				Usage:   "YAML configuration file; environment variables override it",
			},
		},
		Commands: []*cli.Command{
			serveCommand(),
			migrateCommand(),
			waitForDBCommand(),
			createSuperuserCommand(),
		},
	}
}

// setup loads the configuration and builds the logger every command uses
func setup(cCtx *cli.Context) (*config.Config, *observability.Logger, error) {
	cfg, err := config.LoadFile(cCtx.String(flagConfig))
	if err != nil {
		return nil, nil, err
	}
	logger := observability.NewLogger(cfg.LogLevel(), os.Stdout).WithField("service", cfg.Observability.OTelServiceName)
	return cfg, logger, nil
}

// signalContext is cancelled on SIGINT or SIGTERM
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

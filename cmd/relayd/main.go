package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v3"

	"github.com/luxfi/relay/pkg/broadcast"
	"github.com/luxfi/relay/pkg/common/pathutil"
	"github.com/luxfi/relay/pkg/config"
	"github.com/luxfi/relay/pkg/logger"
	"github.com/luxfi/relay/pkg/relay"
)

const Version = "0.1.0"

func main() {
	app := &cli.Command{
		Name:    "relayd",
		Usage:   "Text line relay server",
		Version: Version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "root-dir",
				Aliases: []string{"r"},
				Usage:   "root dir for config and data",
				Sources: cli.EnvVars("RELAY_ROOT_DIR"),
				Value:   ".",
			},
			&cli.StringFlag{
				Name:    "output-format",
				Aliases: []string{"o"},
				Usage:   "output format for command response (json|table)",
				Sources: cli.EnvVars("RELAY_OUTPUT_FORMAT"),
			},
		},
		Commands: []*cli.Command{
			{
				Name:  "server",
				Usage: "Bootstrap the server",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "debug",
						Usage: "Enable debug logging",
						Value: false,
					},
				},
				Action: runServer,
			},
			{
				Name:  "client",
				Usage: "Connect to a relay server and exchange lines over stdin/stdout",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "addr",
						Aliases: []string{"a"},
						Usage:   "server address",
						Value:   config.DefaultListen().HostPort(),
					},
					&cli.IntFlag{
						Name:  "retries",
						Usage: "connection attempts before giving up",
						Value: 5,
					},
					&cli.BoolFlag{
						Name:  "debug",
						Usage: "Enable debug logging",
						Value: false,
					},
				},
				Action: runClient,
			},
			{
				Name:   "version",
				Usage:  "Display detailed version information",
				Action: runVersion,
			},
		},
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := app.Run(ctx, os.Args); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func runServer(ctx context.Context, c *cli.Command) error {
	rootDir, err := pathutil.ResolveRoot(c.String("root-dir"))
	if err != nil {
		return err
	}
	if err := config.InitViperConfig(rootDir); err != nil {
		return err
	}
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger.Init(cfg.Environment, c.Bool("debug"))

	bus, err := broadcast.New(cfg.Bus)
	if err != nil {
		return fmt.Errorf("building %s bus: %w", cfg.Bus.Kind, err)
	}
	defer bus.Close()

	srv := relay.NewServer(cfg.Listen, bus)
	if err := srv.Start(ctx); err != nil {
		return fmt.Errorf("binding to %s: %w", cfg.Listen, err)
	}

	select {
	case <-ctx.Done():
		logger.Warn("shutdown signal received, stopping...")
		return srv.Stop()
	case err := <-srv.Done():
		_ = srv.Stop()
		return err
	}
}

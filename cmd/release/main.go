package main

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/tss-calculator/go-lib/pkg/infrastructure/logger"
	"github.com/urfave/cli/v2"

	"github.com/tss-calculator/release/pkg/release/infrastructure/config/releaseconfig"
	"github.com/tss-calculator/release/pkg/release/infrastructure/dependency"
)

func main() {
	ctx, cancelFunc := context.WithCancel(context.Background())
	defer cancelFunc()
	ctx = listenOSKillSignalsContext(ctx)
	mainLogger := logger.NewTextLogger()

	withContainer := func(c *cli.Context, action func(ctx context.Context) error) error {
		releaseConfig, err := releaseconfig.Load(c.String("config"))
		if err != nil {
			return err
		}
		container, err := dependency.NewDependencyContainer(mainLogger, releaseConfig)
		if err != nil {
			return err
		}
		defer container.Close()
		return action(dependency.ContainerToContext(c.Context, container))
	}

	app := &cli.App{
		Name:  "release",
		Usage: "cut and publish a release of a multi-module project",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "config",
				Value: "release.yaml",
			},
		},
		Commands: cli.Commands{
			&cli.Command{
				Name: "run",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name: "dry-run",
					},
					&cli.BoolFlag{
						Name: "skip-build",
					},
					&cli.BoolFlag{
						Name: "snapshot",
					},
				},
				Before: func(c *cli.Context) error {
					return refuseNestedRun()
				},
				Action: func(c *cli.Context) error {
					return withContainer(c, func(ctx context.Context) error {
						if c.Bool("dry-run") {
							return plan(ctx, c.App.Writer, c.Bool("snapshot"))
						}
						return run(ctx, c.Bool("snapshot"), c.Bool("skip-build"))
					})
				},
			},
			&cli.Command{
				Name: "version",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name: "snapshot",
					},
				},
				Action: func(c *cli.Context) error {
					return withContainer(c, func(ctx context.Context) error {
						return version(ctx, c.App.Writer, c.Bool("snapshot"))
					})
				},
			},
			&cli.Command{
				Name: "stage-paths",
				Action: func(c *cli.Context) error {
					return withContainer(c, func(ctx context.Context) error {
						return stagePaths(ctx, c.App.Writer)
					})
				},
			},
			&cli.Command{
				Name: "history",
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "limit",
						Value: 10,
					},
				},
				Action: func(c *cli.Context) error {
					return withContainer(c, func(ctx context.Context) error {
						return history(ctx, c.App.Writer, c.Int("limit"))
					})
				},
			},
		},
	}
	err := app.RunContext(ctx, os.Args)
	if err != nil {
		mainLogger.FatalError(err, "failed execute command "+strings.Join(os.Args, " "))
	}
}

func listenOSKillSignalsContext(ctx context.Context) context.Context {
	var cancelFunc context.CancelFunc
	ctx, cancelFunc = context.WithCancel(ctx)
	go func() {
		ch := make(chan os.Signal, 1)
		signal.Notify(ch, syscall.SIGTERM, syscall.SIGINT)
		select {
		case <-ch:
			cancelFunc()
		case <-ctx.Done():
			return
		}
	}()
	return ctx
}

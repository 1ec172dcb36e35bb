/*
 * Copyright (c) 2023. Nydus Developers. All rights reserved.
 *
 * SPDX-License-Identifier: Apache-2.0
 */

// Command sysinspect-replay drives pkg/inspector against a trace file,
// demonstrating the library's consumer API: it is not part of the library
// surface itself (spec section 1 non-goals -- "CLI ... as a feature").
package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"github.com/nydusdev/sysinspect/config"
	"github.com/nydusdev/sysinspect/internal/logging"
	"github.com/nydusdev/sysinspect/pkg/errdefs"
	"github.com/nydusdev/sysinspect/pkg/inspector"
	"github.com/nydusdev/sysinspect/pkg/metrics"
	"github.com/nydusdev/sysinspect/pkg/store"
	"github.com/nydusdev/sysinspect/version"
)

func main() {
	app := &cli.App{
		Name:  "sysinspect-replay",
		Usage: "replay a sysinspect trace file through the inspector loop",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "input", Required: true, Usage: "trace file to replay"},
			&cli.StringFlag{Name: "config", Usage: "path to a sysinspect config.toml"},
			&cli.StringFlag{Name: "filter", Usage: "filter expression, overrides config"},
			&cli.StringFlag{Name: "root", Value: ".", Usage: "directory for logs/metrics/checkpoint"},
			&cli.StringFlag{Name: "restore-checkpoint", Usage: "directory holding the bbolt checkpoint to restore thread/container state from before replay"},
			&cli.StringFlag{Name: "save-checkpoint", Usage: "directory holding the bbolt checkpoint to save thread/container/config state to after replay"},
			&cli.StringFlag{Name: "metrics-address", Usage: "address to serve prometheus metrics on, e.g. :9109 (disabled if empty)"},
			&cli.BoolFlag{Name: "print-events", Usage: "print each accepted event to stdout"},
			&cli.BoolFlag{Name: "version", Usage: "print version and exit"},
		},
		Action: run,
	}

	if err := app.Run(os.Args); err != nil {
		logrus.WithError(err).Fatal("sysinspect-replay failed")
	}
}

func run(c *cli.Context) error {
	if c.Bool("version") {
		fmt.Printf("sysinspect-replay\n  Version: %s\n  Revision: %s\n  Go version: %s\n  Build time: %s\n",
			version.Version, version.Revision, version.GoVersion, version.BuildTimestamp)
		return nil
	}

	var cfg config.Config
	if err := config.LoadConfigFile(c.String("config"), &cfg); err != nil {
		return errors.Wrap(err, "load config")
	}
	if err := cfg.FillupWithDefaults(); err != nil {
		return errors.Wrap(err, "fill config defaults")
	}
	cfg.RootDir = c.String("root")

	if err := logging.SetUp(cfg.LogLevel, true, cfg.LogDir, nil); err != nil {
		return errors.Wrap(err, "set up logging")
	}

	threadTimeout, err := cfg.ThreadTimeoutDuration()
	if err != nil {
		return errors.Wrap(err, "parse thread timeout")
	}
	containerTimeout, err := cfg.ContainerTimeoutDuration()
	if err != nil {
		return errors.Wrap(err, "parse container timeout")
	}

	opts := []inspector.Option{
		inspector.WithThreadTableMax(cfg.ThreadTableMax),
		inspector.WithThreadTimeout(threadTimeout),
		inspector.WithContainerTimeout(containerTimeout),
		inspector.WithSweepEveryNEvents(cfg.SweepEveryNEvents),
		inspector.WithImportUsers(cfg.ImportUsers),
	}
	ins, err := inspector.New(opts...)
	if err != nil {
		return errors.Wrap(err, "create inspector")
	}

	if expr := c.String("filter"); expr != "" {
		if err := ins.SetFilter(expr); err != nil {
			return errors.Wrap(err, "compile filter")
		}
	}

	if err := ins.OpenFile(c.String("input")); err != nil {
		return errors.Wrap(err, "open trace file")
	}
	defer ins.Close()

	if path := c.String("restore-checkpoint"); path != "" {
		db, err := store.NewDatabase(path)
		if err != nil {
			return errors.Wrap(err, "open checkpoint database")
		}
		defer db.Close()
		if err := ins.RestoreCheckpoint(db); err != nil && !errdefs.IsNotFound(err) {
			return errors.Wrap(err, "restore checkpoint")
		}
	}

	if addr := c.String("metrics-address"); addr != "" {
		server, err := metrics.NewServer(context.Background(),
			metrics.WithRootDir(cfg.RootDir),
			metrics.WithMetricsFile(""),
			metrics.WithInspector(ins),
		)
		if err != nil {
			return errors.Wrap(err, "create metrics server")
		}
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		go func() {
			if err := server.StartCollectMetrics(ctx, 0); err != nil {
				logrus.WithError(err).Warn("metrics collection stopped")
			}
		}()
		go func() {
			if err := metrics.NewMetricsHTTPListener(addr); err != nil {
				logrus.WithError(err).Warn("metrics HTTP listener stopped")
			}
		}()
	}

	printEvents := c.Bool("print-events")
	for {
		evt, err := ins.Next()
		if err != nil {
			if err == io.EOF || errdefs.IsCaptureInterrupted(err) {
				break
			}
			return errors.Wrap(err, "next event")
		}
		if printEvents {
			fmt.Printf("#%d ts=%d tid=%d %s.%s\n", evt.Num, evt.Ts, evt.Tid, evt.Type, evt.Direction)
		}
	}

	logrus.Infof("replay finished: %d events", ins.GetNumEvents())

	if path := c.String("save-checkpoint"); path != "" {
		db, err := store.NewDatabase(path)
		if err != nil {
			return errors.Wrap(err, "open checkpoint database")
		}
		defer db.Close()
		if err := ins.SaveCheckpoint(db); err != nil {
			return errors.Wrap(err, "save checkpoint")
		}
	}

	return nil
}

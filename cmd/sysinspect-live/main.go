/*
 * Copyright (c) 2023. Nydus Developers. All rights reserved.
 *
 * SPDX-License-Identifier: Apache-2.0
 */

// Command sysinspect-live drives pkg/inspector against a live capture
// device, demonstrating the library's consumer API: it is not part of the
// library surface itself (spec section 1 non-goals -- "CLI ... as a
// feature").
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"github.com/nydusdev/sysinspect/config"
	"github.com/nydusdev/sysinspect/internal/logging"
	"github.com/nydusdev/sysinspect/pkg/errdefs"
	"github.com/nydusdev/sysinspect/pkg/inspector"
	"github.com/nydusdev/sysinspect/pkg/metrics"
	"github.com/nydusdev/sysinspect/version"
)

func main() {
	app := &cli.App{
		Name:  "sysinspect-live",
		Usage: "drive a live sysinspect capture device through the inspector loop",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "device", Value: "/dev/sysinspect", Usage: "path to the live capture device"},
			&cli.StringFlag{Name: "config", Usage: "path to a sysinspect config.toml"},
			&cli.StringFlag{Name: "filter", Usage: "filter expression, overrides config"},
			&cli.StringFlag{Name: "root", Value: ".", Usage: "directory for logs/metrics/dumps"},
			&cli.StringFlag{Name: "snaplen", Usage: "per-parameter capture length, e.g. 4096 or 64KB, overrides config"},
			&cli.StringFlag{Name: "dump-dir", Usage: "directory for autodump output (disabled if empty)"},
			&cli.IntFlag{Name: "dump-max-files", Value: 0, Usage: "maximum number of autodump files kept, 0 keeps all"},
			&cli.StringFlag{Name: "metrics-address", Usage: "address to serve prometheus metrics on, e.g. :9109 (disabled if empty)"},
			&cli.BoolFlag{Name: "print-events", Usage: "print each accepted event to stdout"},
			&cli.BoolFlag{Name: "version", Usage: "print version and exit"},
		},
		Action: run,
	}

	if err := app.Run(os.Args); err != nil {
		logrus.WithError(err).Fatal("sysinspect-live failed")
	}
}

func run(c *cli.Context) error {
	if c.Bool("version") {
		fmt.Printf("sysinspect-live\n  Version: %s\n  Revision: %s\n  Go version: %s\n  Build time: %s\n",
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

	dev, err := os.Open(c.String("device"))
	if err != nil {
		return errors.Wrap(err, "open capture device")
	}
	if err := ins.OpenLive(dev); err != nil {
		return errors.Wrap(err, "attach live capture source")
	}
	defer ins.Close()

	if snaplen := c.String("snaplen"); snaplen != "" {
		cfg.Snaplen = snaplen
	}
	if cfg.Snaplen != "" {
		n, err := cfg.SnaplenBytes()
		if err != nil {
			return errors.Wrap(err, "parse snaplen")
		}
		if err := ins.SetSnaplen(n); err != nil {
			return errors.Wrap(err, "set snaplen")
		}
	}

	if dumpDir := c.String("dump-dir"); dumpDir != "" {
		if err := ins.AutodumpStart(dumpDir, "sysinspect", "", 0, c.Int("dump-max-files"), false); err != nil {
			return errors.Wrap(err, "start autodump")
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if addr := c.String("metrics-address"); addr != "" {
		server, err := metrics.NewServer(ctx,
			metrics.WithRootDir(cfg.RootDir),
			metrics.WithMetricsFile(""),
			metrics.WithInspector(ins),
		)
		if err != nil {
			return errors.Wrap(err, "create metrics server")
		}
		go func() {
			if err := server.StartCollectMetrics(ctx, time.Minute); err != nil {
				logrus.WithError(err).Warn("metrics collection stopped")
			}
		}()
		go func() {
			if err := metrics.NewMetricsHTTPListener(addr); err != nil {
				logrus.WithError(err).Warn("metrics HTTP listener stopped")
			}
		}()
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sig
		logrus.Info("received shutdown signal, closing capture")
		_ = ins.Close()
	}()

	printEvents := c.Bool("print-events")
	for {
		evt, err := ins.Next()
		if err != nil {
			if errdefs.IsCaptureInterrupted(err) {
				break
			}
			return errors.Wrap(err, "next event")
		}
		if printEvents {
			fmt.Printf("#%d ts=%d tid=%d %s.%s\n", evt.Num, evt.Ts, evt.Tid, evt.Type, evt.Direction)
		}
	}

	logrus.Infof("live capture stopped: %d events", ins.GetNumEvents())
	return nil
}

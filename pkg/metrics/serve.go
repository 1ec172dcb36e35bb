/*
 * Copyright (c) 2021. Ant Group. All rights reserved.
 * Copyright (c) 2022. Nydus Developers. All rights reserved.
 *
 * SPDX-License-Identifier: Apache-2.0
 */

package metrics

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/nydusdev/sysinspect/pkg/inspector"
	"github.com/nydusdev/sysinspect/pkg/metrics/collector"
	"github.com/nydusdev/sysinspect/pkg/metrics/exporter"
)

type ServerOpt func(*Server) error

// Server periodically snapshots one Inspector's running counters and its
// own process resource usage into the prometheus registry, optionally
// appending each gather to a JSON-lines metrics file.
type Server struct {
	rootDir     string
	metricsFile string

	ins *inspector.Inspector

	captureCollector  *collector.CaptureMetricsCollector
	resourceCollector *collector.ResourceMetricsCollector
}

func WithRootDir(rootDir string) ServerOpt {
	return func(s *Server) error {
		s.rootDir = rootDir
		return nil
	}
}

func WithMetricsFile(metricsFile string) ServerOpt {
	return func(s *Server) error {
		if s.rootDir == "" {
			return errors.New("root dir is required")
		}

		if metricsFile == "" {
			metricsFile = filepath.Join(s.rootDir, "metrics.log")
		}

		s.metricsFile = metricsFile
		return nil
	}
}

func WithInspector(ins *inspector.Inspector) ServerOpt {
	return func(s *Server) error {
		s.ins = ins
		return nil
	}
}

func NewServer(_ context.Context, opts ...ServerOpt) (*Server, error) {
	var s Server
	for _, o := range opts {
		if err := o(&s); err != nil {
			return nil, err
		}
	}
	if s.ins == nil {
		return nil, errors.New("an inspector is required")
	}

	s.captureCollector = &collector.CaptureMetricsCollector{Source: s.ins}
	s.resourceCollector = collector.NewResourceMetricsCollector(os.Getpid())

	if err := exporter.NewFileExporter(
		exporter.WithOutputFile(s.metricsFile),
	); err != nil {
		return nil, errors.Wrap(err, "new metric exporter failed")
	}

	return &s, nil
}

func (s *Server) collectOnce() {
	if stats, err := s.ins.GetCaptureStats(); err == nil {
		s.captureCollector.Dropped = stats.Dropped
	}
	s.captureCollector.Collect()
	s.resourceCollector.Collect()
	if err := exporter.GlobalFileExporter.Export(); err != nil {
		logrus.WithError(err).Warn("export metrics to file failed")
	}
}

// StartCollectMetrics runs collectOnce every tick until ctx is canceled.
func (s *Server) StartCollectMetrics(ctx context.Context, tick time.Duration) error {
	if tick <= 0 {
		tick = time.Minute
	}
	timer := time.NewTicker(tick)
	defer timer.Stop()

	for {
		select {
		case <-timer.C:
			s.collectOnce()
		case <-ctx.Done():
			logrus.Info("stopping inspector metrics collection")
			return nil
		}
	}
}

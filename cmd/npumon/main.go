package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"codeberg.org/mutker/npumon/internal/collector"
	"codeberg.org/mutker/npumon/internal/config"
	"codeberg.org/mutker/npumon/internal/errors"
	"codeberg.org/mutker/npumon/internal/logger"
	"codeberg.org/mutker/npumon/internal/metrics"
	"codeberg.org/mutker/npumon/internal/npu"
	"codeberg.org/mutker/npumon/internal/pid"
	"codeberg.org/mutker/npumon/internal/telemetry"
	"github.com/spf13/pflag"
)

func main() {
	os.Exit(run())
}

func run() int {
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		if err == pflag.ErrHelp {
			return 0
		}
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		return 1
	}

	level, err := logger.ParseLevel(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid log level: %v\n", err)
		return 1
	}
	logger.Init(level, logger.IsService())
	logger.Debug().
		Str("file", cfg.ConfigFile).
		Dur("interval", cfg.Interval).
		Str("backend", cfg.Backend).
		Str("sink", cfg.Sink).
		Msg("Config loaded")

	pidPath := cfg.PIDPath()
	if err := pid.Write(pidPath); err != nil {
		logFatal(err, "Failed to write PID file")
		return 1
	}
	defer func() {
		if err := pid.Remove(pidPath); err != nil {
			logger.Error().Err(err).Msg("Failed to remove PID file")
		}
	}()

	log := logger.Default()

	collectorMetrics, err := metrics.NewService(metrics.Config{
		Addr:    cfg.MetricsAddr,
		Enabled: cfg.MetricsAddr != "",
	}, log)
	if err != nil {
		logFatal(err, "Failed to start metrics endpoint")
		return 1
	}
	defer func() {
		if err := collectorMetrics.Close(); err != nil {
			logger.Error().Err(err).Msg("Failed to stop metrics endpoint")
		}
	}()

	backend, err := npu.NewBackend(cfg.Backend, npu.SimulatorConfig{
		Devices: cfg.SimDevices,
		Cores:   cfg.SimCores,
		Seed:    time.Now().UnixNano(),
	})
	if err != nil {
		logFatal(err, "Failed to select device backend")
		return 1
	}

	loop, err := collector.New(collector.Config{
		Interval: cfg.Interval,
		Parallel: cfg.Parallel,
		Sink: telemetry.Config{
			Kind:      cfg.Sink,
			OutputDir: cfg.OutputDir,
			DBPath:    cfg.Database,
		},
	}, backend, collector.WithLogger(log), collector.WithMetrics(collectorMetrics))
	if err != nil {
		logFatal(err, "Invalid collector configuration")
		return 1
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go handleSignals(cancel)

	if err := loop.Run(ctx); err != nil {
		logFatal(err, "Collection failed")
		return 1
	}

	return 0
}

func handleSignals(cancel context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigs
	logger.Info().Str("signal", sig.String()).Msg("Received termination signal")
	cancel()
}

func logFatal(err error, msg string) {
	var appErr errors.Error
	if errors.As(err, &appErr) {
		logger.ErrorWithCode(appErr).Msg(msg)
		return
	}
	logger.Error().Err(err).Msg(msg)
}

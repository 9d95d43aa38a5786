// SPDX-FileCopyrightText: 2025 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/common/expfmt"
	"github.com/spf13/cast"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/xmidt-org/crossing/crossing"
	"github.com/xmidt-org/crossing/logging"
	"github.com/xmidt-org/crossing/troop"
	"github.com/xmidt-org/crossing/xmetrics"
	"github.com/xmidt-org/crossing/xviper"
	"github.com/xmidt-org/sallust"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const (
	applicationName = "baboons"

	MetricsFlag = "metrics"
)

const (
	exitSuccess     = 0
	exitConfigError = 1
	exitRunError    = 2
)

// flagBindings maps command line flags onto the troop configuration keys.
var flagBindings = map[string]string{
	"baboons":           "baboons",
	"capacity":          "capacity",
	"max-crossing-time": "maxCrossingTime",
	"seed":              "seed",
	"directions":        "directions",
	"patience":          "patience",
	"status-interval":   "statusInterval",
}

func newFlagSet() *pflag.FlagSet {
	var (
		defaults = troop.DefaultConfig()
		fs       = pflag.NewFlagSet(applicationName, pflag.ContinueOnError)
	)

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [flags] [number of baboons]\n", applicationName)
		fs.PrintDefaults()
	}

	fs.StringP(xviper.DefaultFileFlag, "f", "", "the configuration file to use instead of searching the standard locations")
	fs.IntP("baboons", "n", defaults.Baboons, "the number of baboons in the troop; a positional count takes precedence")
	fs.IntP("capacity", "c", defaults.Capacity, "the number of baboons the rope can hold")
	fs.Duration("max-crossing-time", defaults.MaxCrossingTime, "the upper bound on the time a baboon spends on the rope")
	fs.Int64("seed", 0, "the random seed for directions and crossing times; 0 seeds from the clock")
	fs.StringSlice("directions", nil, "directions (A, B, left, right) cycled through to assign each baboon; random when unset")
	fs.Duration("patience", 0, "how long a baboon waits to get on the rope before giving up; 0 waits forever")
	fs.Duration("status-interval", 0, "how often to log the state of the rope; 0 disables status logging")
	fs.Bool(MetricsFlag, false, "write the rope metrics to stdout in the Prometheus text format when the run completes")

	return fs
}

// newViper parses the arguments and produces the application's Viper.  A positional count overrides
// every other source for the number of baboons.
func newViper(fs *pflag.FlagSet, arguments []string) (*viper.Viper, error) {
	if err := fs.Parse(arguments); err != nil {
		return nil, err
	}

	v, err := xviper.New(
		xviper.StdOptions(applicationName, fs, flagBindings),
		xviper.ReadInConfig(false),
	)

	if err != nil {
		return nil, err
	}

	switch positional := fs.Args(); len(positional) {
	case 0:
		// the configured count stands

	case 1:
		count, err := cast.ToIntE(positional[0])
		if err != nil {
			return nil, fmt.Errorf("invalid number of baboons %q: %w", positional[0], err)
		}

		v.Set("baboons", count)

	default:
		return nil, fmt.Errorf("expected at most one positional argument, got %d", len(positional))
	}

	return v, nil
}

func bootstrapLogger() *zap.Logger {
	logger, err := logging.New(sallust.Config{OutputPaths: []string{"stderr"}})
	if err != nil {
		return sallust.Default()
	}

	return logger
}

func writeMetrics(out io.Writer, registry xmetrics.Registry) error {
	families, err := registry.Gather()
	if err != nil {
		return err
	}

	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(out, mf); err != nil {
			return err
		}
	}

	return nil
}

func baboons(arguments []string, stdout io.Writer) int {
	fs := newFlagSet()
	v, err := newViper(fs, arguments)
	if errors.Is(err, pflag.ErrHelp) {
		return exitSuccess
	} else if err != nil {
		bootstrapLogger().Error("Unable to configure", zap.Error(err))
		return exitConfigError
	}

	var (
		logger   *zap.Logger
		registry xmetrics.Registry
		tr       *troop.Troop

		app = fx.New(
			fx.Supply(v),
			fx.WithLogger(provideFxLogger),
			fx.Provide(
				provideLogger,
				provideConfig,
				provideRegistry,
				provideRope,
				provideTroop,
			),
			crossing.ProvideMetrics(),
			fx.Populate(&logger, &registry, &tr),
		)
	)

	if err := app.Err(); err != nil {
		bootstrapLogger().Error("Unable to initialize the troop", zap.Error(err))
		return exitConfigError
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := app.Start(ctx); err != nil {
		logger.Error("Unable to start", zap.Error(err))
		return exitRunError
	}

	report, runErr := tr.Run(ctx)
	if err := app.Stop(context.Background()); err != nil {
		logger.Error("Unable to stop cleanly", zap.Error(err))
	}

	if runErr != nil {
		logger.Error(
			"The troop did not finish crossing",
			zap.Error(runErr),
			zap.Stringer("run", report.ID),
			zap.Int("crossed", report.Total()),
			zap.Int("gaveUp", report.GaveUp),
		)

		return exitRunError
	}

	fmt.Fprintf(
		stdout,
		"All baboons have crossed the canyon: %d went A, %d went B, %d gave up, %d direction changes in %s\n",
		report.Crossed[crossing.A],
		report.Crossed[crossing.B],
		report.GaveUp,
		report.Flips,
		report.Elapsed,
	)

	if dump, _ := fs.GetBool(MetricsFlag); dump {
		if err := writeMetrics(stdout, registry); err != nil {
			logger.Error("Unable to write metrics", zap.Error(err))
			return exitRunError
		}
	}

	return exitSuccess
}

func main() {
	os.Exit(baboons(os.Args[1:], os.Stdout))
}

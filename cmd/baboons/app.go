// SPDX-FileCopyrightText: 2025 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"errors"

	"github.com/spf13/viper"
	"github.com/xmidt-org/crossing/crossing"
	"github.com/xmidt-org/crossing/logging"
	"github.com/xmidt-org/crossing/troop"
	"github.com/xmidt-org/crossing/xmetrics"
	"github.com/xmidt-org/crossing/xviper"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// PrometheusKey is the configuration key for the metrics registry options.
const PrometheusKey = "prometheus"

// provideLogger builds the application logger from the "log" configuration.  Unless configured
// otherwise, logs go to stderr so that stdout carries only the run's results.
func provideLogger(v *viper.Viper) (*zap.Logger, error) {
	c, err := logging.FromViper(logging.Sub(v))
	if err != nil {
		return nil, err
	}

	if len(c.OutputPaths) == 0 {
		c.OutputPaths = []string{"stderr"}
	}

	return logging.New(c)
}

func provideFxLogger(l *zap.Logger) fxevent.Logger {
	return &fxevent.ZapLogger{
		Logger: l.Named("fx").WithOptions(zap.IncreaseLevel(zapcore.WarnLevel)),
	}
}

func provideConfig(v *viper.Viper) (troop.Config, error) {
	c := troop.DefaultConfig()
	if err := xviper.Unmarshal(v, "", &c); err != nil {
		return troop.Config{}, err
	}

	return c, c.Validate()
}

// provideRegistry creates the metrics registry with the crossing metrics preregistered.
// The Go runtime collector is off unless the configuration turns it on.
func provideRegistry(v *viper.Viper) (xmetrics.Registry, error) {
	o := xmetrics.Options{DisableGoCollector: true}
	if err := xviper.Unmarshal(v, PrometheusKey, &o); err != nil {
		return nil, err
	}

	return xmetrics.NewRegistry(&o, crossing.Metrics)
}

// provideRope creates the crossing the troop uses and closes it when the application stops.
func provideRope(lc fx.Lifecycle, c troop.Config, l *zap.Logger, m *crossing.Measures) crossing.Closeable {
	rope := crossing.NewCloseable(
		c.Capacity,
		crossing.WithLogger(l.Named("rope")),
		crossing.WithMeasures(m),
	)

	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			if err := rope.Close(); !errors.Is(err, crossing.ErrClosed) {
				return err
			}

			return nil
		},
	})

	return rope
}

func provideTroop(c troop.Config, rope crossing.Closeable, l *zap.Logger) (*troop.Troop, error) {
	return troop.New(c, rope, troop.WithLogger(l.Named("troop")))
}

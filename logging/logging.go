// SPDX-FileCopyrightText: 2025 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

// Package logging builds zap loggers from sallust configuration stored in Viper.
package logging

import (
	"github.com/spf13/viper"
	"github.com/xmidt-org/sallust"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const (
	// LoggingKey is the Viper subkey under which logging should be stored.
	// FromViper *does not* assume this key.
	LoggingKey = "log"

	DefaultLevel    = "info"
	DefaultEncoding = "json"
)

// Sub returns the standard child Viper, using LoggingKey, for this package.
// If passed nil, this function returns nil.
func Sub(v *viper.Viper) *viper.Viper {
	if v != nil {
		return v.Sub(LoggingKey)
	}

	return nil
}

// FromViper produces a sallust.Config from a (possibly nil) Viper instance.
// Callers should use FromViper(Sub(v)) if the standard subkey is desired.
func FromViper(v *viper.Viper) (sallust.Config, error) {
	var c sallust.Config
	if v != nil {
		if err := v.Unmarshal(&c); err != nil {
			return sallust.Config{}, err
		}
	}

	return c, nil
}

// New builds a zap logger.  Unset level, encoding, and output paths take on defaults that
// write JSON at info level to stdout, with errors going to stderr.  An unrecognized level is
// an error.
func New(c sallust.Config) (*zap.Logger, error) {
	if len(c.Level) == 0 {
		c.Level = DefaultLevel
	} else if _, err := zapcore.ParseLevel(c.Level); err != nil {
		return nil, err
	}

	if len(c.Encoding) == 0 {
		c.Encoding = DefaultEncoding
	}

	if len(c.OutputPaths) == 0 {
		c.OutputPaths = []string{"stdout"}
	}

	if len(c.ErrorOutputPaths) == 0 {
		c.ErrorOutputPaths = []string{"stderr"}
	}

	return c.Build()
}

// SPDX-FileCopyrightText: 2025 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package crossing

import (
	"github.com/xmidt-org/sallust"
	"go.uber.org/zap"
)

// Option is a configuration option for a crossing.
type Option func(*crossing)

// WithInitialDirection sets the direction permitted on a new, empty crossing.  By default this is A.
// Invalid directions are ignored.
func WithInitialDirection(d Direction) Option {
	return func(c *crossing) {
		if d.Valid() {
			c.current = d
		}
	}
}

// WithLogger sets the zap logger used for direction changes and abandoned enters.
// If nil, the default logger is used instead.
func WithLogger(l *zap.Logger) Option {
	return func(c *crossing) {
		if l == nil {
			c.logger = sallust.Default()
		} else {
			c.logger = l
		}
	}
}

// WithMeasures establishes the metrics a crossing updates.  If nil, all metrics are discarded.
func WithMeasures(m *Measures) Option {
	return func(c *crossing) {
		if m != nil {
			c.measures = m
		} else {
			c.measures = NewDiscardMeasures()
		}
	}
}

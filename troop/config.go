// SPDX-FileCopyrightText: 2025 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package troop

import (
	"errors"
	"fmt"
	"time"

	"github.com/xmidt-org/crossing/crossing"
)

const (
	DefaultBaboons         = 10
	DefaultMaxCrossingTime = 3 * time.Second
)

// ErrInvalidConfig is returned, wrapped with details, for a Config that cannot be run.
var ErrInvalidConfig = errors.New("invalid troop configuration")

// Config describes a simulated troop of baboons crossing a rope.
type Config struct {
	// Baboons is the number of actors to spawn.
	Baboons int `mapstructure:"baboons"`

	// Capacity is the rope capacity.  The CLI uses this to build the crossing.  Validate
	// only checks that it is positive, and New rejects a rope with a different capacity.
	Capacity int `mapstructure:"capacity"`

	// MaxCrossingTime bounds each baboon's transit, which is chosen at random in [0, MaxCrossingTime).
	// Zero means every transit is instantaneous.
	MaxCrossingTime time.Duration `mapstructure:"maxCrossingTime"`

	// Seed drives direction and transit choices.  Zero seeds from the clock.
	Seed int64 `mapstructure:"seed"`

	// Directions, when set, is cycled through to assign each baboon a direction.
	// Otherwise directions are chosen at random.
	Directions []crossing.Direction `mapstructure:"directions"`

	// Patience is how long a baboon waits to get on the rope before giving up.
	// Zero means wait forever.
	Patience time.Duration `mapstructure:"patience"`

	// StatusInterval is how often the rope's state is logged.  Zero disables status logging.
	StatusInterval time.Duration `mapstructure:"statusInterval"`
}

// DefaultConfig returns the configuration of the classic problem: ten baboons, a rope
// that holds five, and transits of up to three seconds.
func DefaultConfig() Config {
	return Config{
		Baboons:         DefaultBaboons,
		Capacity:        crossing.DefaultCapacity,
		MaxCrossingTime: DefaultMaxCrossingTime,
	}
}

// Validate checks this configuration, returning an error wrapping ErrInvalidConfig if it cannot be run.
func (c Config) Validate() error {
	switch {
	case c.Baboons < 1:
		return fmt.Errorf("%w: baboons must be positive, got %d", ErrInvalidConfig, c.Baboons)

	case c.Capacity < 1:
		return fmt.Errorf("%w: capacity must be positive, got %d", ErrInvalidConfig, c.Capacity)

	case c.MaxCrossingTime < 0:
		return fmt.Errorf("%w: negative max crossing time %s", ErrInvalidConfig, c.MaxCrossingTime)

	case c.Patience < 0:
		return fmt.Errorf("%w: negative patience %s", ErrInvalidConfig, c.Patience)

	case c.StatusInterval < 0:
		return fmt.Errorf("%w: negative status interval %s", ErrInvalidConfig, c.StatusInterval)
	}

	for i, d := range c.Directions {
		if !d.Valid() {
			return fmt.Errorf("%w: directions[%d] is invalid: %s", ErrInvalidConfig, i, d)
		}
	}

	return nil
}

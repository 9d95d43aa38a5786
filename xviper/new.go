// SPDX-FileCopyrightText: 2025 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package xviper

import (
	"errors"
	"fmt"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const DefaultFileFlag = "file"

// Option configures a Viper instance.
type Option func(*viper.Viper) error

// AddConfigPaths adds each path to the set Viper searches for its configuration file.
func AddConfigPaths(paths ...string) Option {
	return func(v *viper.Viper) error {
		for _, p := range paths {
			v.AddConfigPath(p)
		}

		return nil
	}
}

// SetEnvPrefix sets the prefix for environment variables and turns on automatic environment mode.
func SetEnvPrefix(prefix string) Option {
	return func(v *viper.Viper) error {
		v.SetEnvPrefix(prefix)
		v.AutomaticEnv()
		return nil
	}
}

func SetConfigName(name string) Option {
	return func(v *viper.Viper) error {
		v.SetConfigName(name)
		return nil
	}
}

// Defaults maps configuration keys onto their default values.
type Defaults map[string]interface{}

// SetDefaults applies each default to Viper.
func SetDefaults(d Defaults) Option {
	return func(v *viper.Viper) error {
		for key, value := range d {
			v.SetDefault(key, value)
		}

		return nil
	}
}

// BindFlags binds command line flags to configuration keys.  The bindings map flag names onto keys,
// which allows kebab-case flags to populate camelCase keys.  Every flag must exist in the flag set.
func BindFlags(fs *pflag.FlagSet, bindings map[string]string) Option {
	return func(v *viper.Viper) error {
		for flag, key := range bindings {
			f := fs.Lookup(flag)
			if f == nil {
				return fmt.Errorf("no such flag: %s", flag)
			}

			if err := v.BindPFlag(key, f); err != nil {
				return err
			}
		}

		return nil
	}
}

// BindConfigFile uses the value of the given flag, if set, as the fully-qualified path
// of the configuration file.  This overrides any configuration name and paths.
func BindConfigFile(fs *pflag.FlagSet, flag string) Option {
	return func(v *viper.Viper) error {
		if f := fs.Lookup(flag); f != nil {
			if configFile := f.Value.String(); len(configFile) > 0 {
				v.SetConfigFile(configFile)
			}
		}

		return nil
	}
}

// ReadInConfig reads the configuration file.  When required is false, a configuration file that
// cannot be found on the search paths is not an error.  An explicit file that does not exist always is.
func ReadInConfig(required bool) Option {
	return func(v *viper.Viper) error {
		err := v.ReadInConfig()
		var notFound viper.ConfigFileNotFoundError
		if !required && errors.As(err, &notFound) {
			return nil
		}

		return err
	}
}

// StdOptions returns the standard options for an application: configuration named after the application
// searched for in /etc/<name>, $HOME/.<name>, and the current directory, an environment prefix of the
// application name, and the flag bindings.  The DefaultFileFlag, if present in the flag set, names an
// explicit configuration file.
func StdOptions(applicationName string, fs *pflag.FlagSet, bindings map[string]string) Option {
	return func(v *viper.Viper) error {
		for _, o := range []Option{
			AddConfigPaths(
				fmt.Sprintf("/etc/%s", applicationName),
				fmt.Sprintf("$HOME/.%s", applicationName),
				".",
			),
			SetEnvPrefix(applicationName),
			SetConfigName(applicationName),
			BindFlags(fs, bindings),
			BindConfigFile(fs, DefaultFileFlag),
		} {
			if err := o(v); err != nil {
				return err
			}
		}

		return nil
	}
}

// New creates a Viper instance configured with the given options.
func New(o ...Option) (*viper.Viper, error) {
	return Configure(viper.New(), o...)
}

// Configure applies options to an existing Viper instance, stopping at the first error.
func Configure(v *viper.Viper, o ...Option) (*viper.Viper, error) {
	if v != nil {
		for _, f := range o {
			if err := f(v); err != nil {
				return nil, err
			}
		}
	}

	return v, nil
}

// DecodeHook is the mapstructure hook used by Unmarshal.  Strings convert to durations, comma
// separated strings convert to slices, and strings convert to any encoding.TextUnmarshaler.
func DecodeHook() mapstructure.DecodeHookFunc {
	return mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
		mapstructure.TextUnmarshallerHookFunc(),
	)
}

// Unmarshal decodes the whole configuration, or the given key when one is supplied, into output using DecodeHook.
func Unmarshal(v *viper.Viper, key string, output interface{}) error {
	if len(key) > 0 {
		return v.UnmarshalKey(key, output, viper.DecodeHook(DecodeHook()))
	}

	return v.Unmarshal(output, viper.DecodeHook(DecodeHook()))
}

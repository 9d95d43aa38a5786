// SPDX-FileCopyrightText: 2025 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

/*
Package xviper provides customizations on use of viper for configuration loading.

An application's Viper is assembled from Options: the standard *nix configuration paths, an
environment prefix, command line flags bound to configuration keys, and an optional explicit
configuration file.  Unmarshal applies the decode hooks that configuration structs in this
module depend upon.
*/
package xviper

// Copyright 2025 Raamsri Kumar <raam@tinkershack.in>
// Copyright 2025 The StrataSTOR Authors and Contributors
// SPDX-License-Identifier: Apache-2.0

package privilege

import (
	"github.com/stratastor/smbd-companion/internal/constants"
)

// Config carries the sudo allow-lists, normally sourced from the
// daemon's own configuration (config.Config.Privilege).
type Config struct {
	// AllowedPaths defines paths that can be accessed with sudo.
	AllowedPaths []string `yaml:"allowed_paths" json:"allowed_paths"`

	// AllowedCommands lists commands for sudo execution. It is carried in
	// the configuration only: SudoFileOperations.ExecuteCommand does not
	// check commands against it.
	AllowedCommands []string `yaml:"allowed_commands" json:"allowed_commands"`
}

// DefaultConfig admits exactly the files and commands this daemon
// touches: the two importer inputs and the Samba supervision binaries.
func DefaultConfig() *Config {
	return &Config{
		AllowedPaths: []string{
			constants.DefaultShareConfPath,
			"/etc/samba/conf.d",
			constants.DefaultUsersDBPath,
		},
		AllowedCommands: []string{
			"smbcontrol",
			"smbstatus",
			"testparm",
			"systemctl",
		},
	}
}
